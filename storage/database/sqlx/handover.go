package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/handover"
	"github.com/trezcool/ratiba/core/routine"
)

const handoverColumns = `id, faculty_id, faculty_name, substitute_id, substitute_name, routine_id, class_id,
	date_of_class, time_slot, subject, course, room_no, reason, status, remarks,
	decided_by, decided_by_name, decided_at, propagated_at, created_at, updated_at`

type handoverRow struct {
	ID             string       `db:"id"`
	FacultyID      string       `db:"faculty_id"`
	FacultyName    string       `db:"faculty_name"`
	SubstituteID   string       `db:"substitute_id"`
	SubstituteName string       `db:"substitute_name"`
	RoutineID      string       `db:"routine_id"`
	ClassID        string       `db:"class_id"`
	DateOfClass    time.Time    `db:"date_of_class"`
	TimeSlot       string       `db:"time_slot"`
	Subject        string       `db:"subject"`
	Course         string       `db:"course"`
	RoomNo         string       `db:"room_no"`
	Reason         string       `db:"reason"`
	Status         string       `db:"status"`
	Remarks        string       `db:"remarks"`
	DecidedBy      string       `db:"decided_by"`
	DecidedByName  string       `db:"decided_by_name"`
	DecidedAt      sql.NullTime `db:"decided_at"`
	PropagatedAt   sql.NullTime `db:"propagated_at"`
	CreatedAt      time.Time    `db:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at"`
}

func (r handoverRow) toRequest() handover.Request {
	return handover.Request{
		ID:             r.ID,
		FacultyID:      r.FacultyID,
		FacultyName:    r.FacultyName,
		SubstituteID:   r.SubstituteID,
		SubstituteName: r.SubstituteName,
		RoutineID:      r.RoutineID,
		ClassID:        r.ClassID,
		DateOfClass:    routine.CalendarDay(r.DateOfClass),
		TimeSlot:       r.TimeSlot,
		Subject:        r.Subject,
		Course:         r.Course,
		RoomNo:         r.RoomNo,
		Reason:         r.Reason,
		Status:         handover.Status(r.Status),
		Remarks:        r.Remarks,
		DecidedBy:      r.DecidedBy,
		DecidedByName:  r.DecidedByName,
		DecidedAt:      timePtr(r.DecidedAt),
		PropagatedAt:   timePtr(r.PropagatedAt),
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
}

type handoverRepository struct {
	db *sqlx.DB
}

func NewHandoverRepository(db *sqlx.DB) handover.Repository {
	return &handoverRepository{db: db}
}

func (repo handoverRepository) CreateHandover(ctx context.Context, req handover.Request) (handover.Request, error) {
	req.ID = uuid.NewString()
	_, err := executor(ctx, repo.db).ExecContext(ctx,
		`INSERT INTO handovers (`+handoverColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
		req.ID, req.FacultyID, req.FacultyName, req.SubstituteID, req.SubstituteName, req.RoutineID, req.ClassID,
		routine.CalendarDay(req.DateOfClass), req.TimeSlot, req.Subject, req.Course, req.RoomNo, req.Reason,
		string(req.Status), req.Remarks, req.DecidedBy, req.DecidedByName, nullTime(req.DecidedAt),
		nullTime(req.PropagatedAt), req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		return handover.Request{}, core.NewStorageError("creating handover", err)
	}
	return req, nil
}

func (repo handoverRepository) GetHandoverByID(ctx context.Context, id string) (handover.Request, error) {
	var row handoverRow
	err := sqlx.GetContext(ctx, executor(ctx, repo.db), &row,
		"SELECT "+handoverColumns+" FROM handovers WHERE id = $1", routine.NormalizeID(id))
	if isNoRows(err) {
		return handover.Request{}, handover.ErrNotFound
	}
	if err != nil {
		return handover.Request{}, core.NewStorageError("getting handover", err)
	}
	return row.toRequest(), nil
}

func (repo handoverRepository) QueryHandovers(ctx context.Context, filter handover.QueryFilter) ([]handover.Request, error) {
	var w where
	if filter.FacultyID != "" {
		w.add("faculty_id = ?", filter.FacultyID)
	}
	if filter.SubstituteID != "" {
		w.add("substitute_id = ?", filter.SubstituteID)
	}
	if filter.Party != "" {
		w.add("(faculty_id = ? OR substitute_id = ?)", filter.Party)
	}
	if filter.Status != "" {
		w.add("status = ?", string(filter.Status))
	}
	if !filter.Date.IsZero() {
		w.add("date_of_class = ?", routine.CalendarDay(filter.Date))
	}
	if filter.Unpropagated {
		w.conds = append(w.conds, "propagated_at IS NULL")
	}

	var rows []handoverRow
	q := "SELECT " + handoverColumns + " FROM handovers" + w.String() + " ORDER BY date_of_class DESC, created_at DESC"
	if err := sqlx.SelectContext(ctx, executor(ctx, repo.db), &rows, q, w.args...); err != nil {
		return nil, core.NewStorageError("querying handovers", err)
	}

	reqs := make([]handover.Request, 0, len(rows))
	for _, r := range rows {
		reqs = append(reqs, r.toRequest())
	}
	return reqs, nil
}

func (repo handoverRepository) UpdateHandover(ctx context.Context, req handover.Request) (handover.Request, error) {
	var row handoverRow
	err := sqlx.GetContext(ctx, executor(ctx, repo.db), &row,
		`UPDATE handovers
		SET status = $2, remarks = $3, decided_by = $4, decided_by_name = $5, decided_at = $6,
			propagated_at = $7, updated_at = $8
		WHERE id = $1
		RETURNING `+handoverColumns,
		req.ID, string(req.Status), req.Remarks, req.DecidedBy, req.DecidedByName,
		nullTime(req.DecidedAt), nullTime(req.PropagatedAt), req.UpdatedAt,
	)
	if isNoRows(err) {
		return handover.Request{}, handover.ErrNotFound
	}
	if err != nil {
		return handover.Request{}, core.NewStorageError("updating handover", err)
	}
	return row.toRequest(), nil
}
