package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/attendance"
	"github.com/trezcool/ratiba/core/routine"
)

const eventColumns = "id, entry_id, routine_id, faculty_id, date, status, marked_by, auto, absent_students, created_at, updated_at"

type eventRow struct {
	ID             string         `db:"id"`
	EntryID        string         `db:"entry_id"`
	RoutineID      string         `db:"routine_id"`
	FacultyID      string         `db:"faculty_id"`
	Date           time.Time      `db:"date"`
	Status         string         `db:"status"`
	MarkedBy       string         `db:"marked_by"`
	Auto           bool           `db:"auto"`
	AbsentStudents pq.StringArray `db:"absent_students"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

func (r eventRow) toEvent() attendance.Event {
	return attendance.Event{
		ID:             r.ID,
		EntryID:        r.EntryID,
		RoutineID:      r.RoutineID,
		FacultyID:      r.FacultyID,
		Date:           routine.CalendarDay(r.Date),
		Status:         routine.Status(r.Status),
		MarkedBy:       r.MarkedBy,
		Auto:           r.Auto,
		AbsentStudents: []string(r.AbsentStudents),
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
}

func eventArgs(e attendance.Event) []interface{} {
	students := e.AbsentStudents
	if students == nil {
		students = []string{}
	}
	return []interface{}{
		e.ID, e.EntryID, e.RoutineID, e.FacultyID, routine.CalendarDay(e.Date), string(e.Status),
		e.MarkedBy, e.Auto, pq.Array(students), e.CreatedAt, e.UpdatedAt,
	}
}

type attendanceRepository struct {
	db *sqlx.DB
}

func NewAttendanceRepository(db *sqlx.DB) attendance.Repository {
	return &attendanceRepository{db: db}
}

func (repo attendanceRepository) GetEvent(ctx context.Context, entryID string, date time.Time) (attendance.Event, error) {
	var row eventRow
	err := sqlx.GetContext(ctx, executor(ctx, repo.db), &row,
		"SELECT "+eventColumns+" FROM attendance_events WHERE entry_id = $1 AND date = $2",
		routine.NormalizeID(entryID), routine.CalendarDay(date))
	if isNoRows(err) {
		return attendance.Event{}, attendance.ErrEventNotFound
	}
	if err != nil {
		return attendance.Event{}, core.NewStorageError("getting attendance event", err)
	}
	return row.toEvent(), nil
}

func (repo attendanceRepository) QueryEvents(ctx context.Context, facultyID string, start, end time.Time) ([]attendance.Event, error) {
	var rows []eventRow
	err := sqlx.SelectContext(ctx, executor(ctx, repo.db), &rows,
		"SELECT "+eventColumns+" FROM attendance_events WHERE faculty_id = $1 AND date BETWEEN $2 AND $3 ORDER BY date",
		facultyID, routine.CalendarDay(start), routine.CalendarDay(end))
	if err != nil {
		return nil, core.NewStorageError("querying attendance events", err)
	}

	events := make([]attendance.Event, 0, len(rows))
	for _, r := range rows {
		events = append(events, r.toEvent())
	}
	return events, nil
}

func (repo attendanceRepository) UpsertEvent(ctx context.Context, e attendance.Event) (attendance.Event, error) {
	e.ID = uuid.NewString()
	var row eventRow
	err := sqlx.GetContext(ctx, executor(ctx, repo.db), &row,
		`INSERT INTO attendance_events (`+eventColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (entry_id, date) DO UPDATE
		SET routine_id = EXCLUDED.routine_id, faculty_id = EXCLUDED.faculty_id, status = EXCLUDED.status,
			marked_by = EXCLUDED.marked_by, auto = EXCLUDED.auto, absent_students = EXCLUDED.absent_students,
			updated_at = EXCLUDED.updated_at
		RETURNING `+eventColumns,
		eventArgs(e)...,
	)
	if err != nil {
		return attendance.Event{}, core.NewStorageError("saving attendance event", err)
	}
	return row.toEvent(), nil
}

func (repo attendanceRepository) InsertEventIfAbsent(ctx context.Context, e attendance.Event) (attendance.Event, bool, error) {
	e.ID = uuid.NewString()
	var row eventRow
	err := sqlx.GetContext(ctx, executor(ctx, repo.db), &row,
		`INSERT INTO attendance_events (`+eventColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (entry_id, date) DO NOTHING
		RETURNING `+eventColumns,
		eventArgs(e)...,
	)
	if isNoRows(err) {
		existing, err := repo.GetEvent(ctx, e.EntryID, e.Date)
		return existing, false, err
	}
	if err != nil {
		return attendance.Event{}, false, core.NewStorageError("inserting attendance event", err)
	}
	return row.toEvent(), true, nil
}

func (repo attendanceRepository) CreateAbsence(ctx context.Context, a attendance.Absence) (attendance.Absence, error) {
	a.ID = uuid.NewString()
	a.Date = routine.CalendarDay(a.Date)
	_, err := executor(ctx, repo.db).ExecContext(ctx,
		`INSERT INTO absences (id, date, entry_id, routine_id, faculty_id, subject, students, recorded_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.Date, a.EntryID, a.RoutineID, a.FacultyID, a.Subject, pq.Array(a.Students), a.RecordedBy, a.CreatedAt,
	)
	if err != nil {
		return attendance.Absence{}, core.NewStorageError("recording absence", err)
	}
	return a, nil
}
