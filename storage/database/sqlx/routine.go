package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/routine"
)

const (
	routineColumns = "id, faculty_id, faculty_name, start_date, end_date, revision, version, entries, created_at, updated_at"

	// attempts at taking the next revision number when creations race
	maxRevisionAttempts = 3
)

type routineRow struct {
	ID          string         `db:"id"`
	FacultyID   string         `db:"faculty_id"`
	FacultyName string         `db:"faculty_name"`
	StartDate   time.Time      `db:"start_date"`
	EndDate     sql.NullTime   `db:"end_date"`
	Revision    int64          `db:"revision"`
	Version     int64          `db:"version"`
	Entries     types.JSONText `db:"entries"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func (r routineRow) toRoutine() (routine.Routine, error) {
	rtn := routine.Routine{
		ID:          r.ID,
		FacultyID:   r.FacultyID,
		FacultyName: r.FacultyName,
		StartDate:   routine.CalendarDay(r.StartDate),
		Revision:    r.Revision,
		Version:     r.Version,
		Entries:     []routine.Entry{},
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
	if r.EndDate.Valid {
		end := routine.CalendarDay(r.EndDate.Time)
		rtn.EndDate = &end
	}
	if err := r.Entries.Unmarshal(&rtn.Entries); err != nil {
		return routine.Routine{}, core.NewStorageError("decoding routine entries", err)
	}
	return rtn, nil
}

func encodeEntries(rtn *routine.Routine) (types.JSONText, error) {
	if rtn.Entries == nil {
		rtn.Entries = []routine.Entry{}
	}
	for i := range rtn.Entries {
		if rtn.Entries[i].ID == "" {
			rtn.Entries[i].ID = uuid.NewString()
		}
	}
	b, err := json.Marshal(rtn.Entries)
	if err != nil {
		return nil, err
	}
	return types.JSONText(b), nil
}

func endDate(rtn routine.Routine) sql.NullTime {
	if rtn.EndDate == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: routine.CalendarDay(*rtn.EndDate), Valid: true}
}

type routineRepository struct {
	db *sqlx.DB
}

func NewRoutineRepository(db *sqlx.DB) routine.Repository {
	return &routineRepository{db: db}
}

func (repo routineRepository) CreateRoutine(ctx context.Context, rtn routine.Routine) (routine.Routine, error) {
	entries, err := encodeEntries(&rtn)
	if err != nil {
		return routine.Routine{}, core.NewStorageError("encoding routine entries", err)
	}
	rtn.ID = uuid.NewString()
	rtn.Version = 1

	for attempt := 1; ; attempt++ {
		err = sqlx.GetContext(ctx, executor(ctx, repo.db), &rtn.Revision,
			`INSERT INTO routines (`+routineColumns+`)
			SELECT $1, $2, $3, $4, $5, COALESCE(MAX(revision), 0) + 1, $6, $7, $8, $9
			FROM routines WHERE faculty_id = $2
			RETURNING revision`,
			rtn.ID, rtn.FacultyID, rtn.FacultyName, routine.CalendarDay(rtn.StartDate), endDate(rtn),
			rtn.Version, entries, rtn.CreatedAt, rtn.UpdatedAt,
		)
		if isUniqueViolation(err) && attempt < maxRevisionAttempts && !inTx(ctx) {
			continue
		}
		if err != nil {
			return routine.Routine{}, core.NewStorageError("creating routine", err)
		}
		return rtn, nil
	}
}

func (repo routineRepository) GetRoutineByID(ctx context.Context, id string) (routine.Routine, error) {
	var row routineRow
	err := sqlx.GetContext(ctx, executor(ctx, repo.db), &row,
		"SELECT "+routineColumns+" FROM routines WHERE id = $1", routine.NormalizeID(id))
	if isNoRows(err) {
		return routine.Routine{}, routine.ErrNotFound
	}
	if err != nil {
		return routine.Routine{}, core.NewStorageError("getting routine", err)
	}
	return row.toRoutine()
}

func (repo routineRepository) QueryRoutines(ctx context.Context, filter routine.QueryFilter) ([]routine.Routine, error) {
	var w where
	if filter.FacultyID != "" {
		w.add("faculty_id = ?", filter.FacultyID)
	}
	if !filter.From.IsZero() && !filter.To.IsZero() {
		w.add("start_date <= ?", routine.CalendarDay(filter.To))
		w.add("(end_date IS NULL OR end_date >= ?)", routine.CalendarDay(filter.From))
	}

	var rows []routineRow
	q := "SELECT " + routineColumns + " FROM routines" + w.String() + " ORDER BY revision DESC, updated_at DESC"
	if err := sqlx.SelectContext(ctx, executor(ctx, repo.db), &rows, q, w.args...); err != nil {
		return nil, core.NewStorageError("querying routines", err)
	}

	routines := make([]routine.Routine, 0, len(rows))
	for _, r := range rows {
		rtn, err := r.toRoutine()
		if err != nil {
			return nil, err
		}
		routines = append(routines, rtn)
	}
	return routines, nil
}

func (repo routineRepository) UpdateRoutine(ctx context.Context, rtn routine.Routine) (routine.Routine, error) {
	entries, err := encodeEntries(&rtn)
	if err != nil {
		return routine.Routine{}, core.NewStorageError("encoding routine entries", err)
	}

	var row routineRow
	err = sqlx.GetContext(ctx, executor(ctx, repo.db), &row,
		`UPDATE routines
		SET faculty_name = $3, start_date = $4, end_date = $5, entries = $6, updated_at = $7, version = version + 1
		WHERE id = $1 AND version = $2
		RETURNING `+routineColumns,
		rtn.ID, rtn.Version, rtn.FacultyName, routine.CalendarDay(rtn.StartDate), endDate(rtn), entries, rtn.UpdatedAt,
	)
	if isNoRows(err) {
		if _, getErr := repo.GetRoutineByID(ctx, rtn.ID); getErr != nil {
			return routine.Routine{}, getErr
		}
		return routine.Routine{}, routine.ErrVersionConflict
	}
	if err != nil {
		return routine.Routine{}, core.NewStorageError("updating routine", err)
	}
	return row.toRoutine()
}
