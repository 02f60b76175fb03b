package inmemdb

import (
	"context"
	"time"

	"github.com/trezcool/ratiba/core/attendance"
	"github.com/trezcool/ratiba/core/routine"
)

type eventKey struct {
	entryID string
	date    string
}

func keyOf(e attendance.Event) eventKey {
	return eventKey{entryID: routine.NormalizeID(e.EntryID), date: routine.FormatDate(e.Date)}
}

type attendanceRepository struct {
	events   *eventTable
	absences *absenceTable
}

func NewAttendanceRepository(db *DB) attendance.Repository {
	return &attendanceRepository{events: db.event, absences: db.absence}
}

func cloneEvent(e attendance.Event) attendance.Event {
	e.AbsentStudents = copyStrings(e.AbsentStudents)
	return e
}

func (repo *attendanceRepository) GetEvent(_ context.Context, entryID string, date time.Time) (attendance.Event, error) {
	repo.events.RLock()
	defer repo.events.RUnlock()

	if e, ok := repo.events.table[keyOf(attendance.Event{EntryID: entryID, Date: date})]; ok {
		return cloneEvent(*e), nil
	}
	return attendance.Event{}, attendance.ErrEventNotFound
}

func (repo *attendanceRepository) QueryEvents(_ context.Context, facultyID string, start, end time.Time) ([]attendance.Event, error) {
	repo.events.RLock()
	defer repo.events.RUnlock()

	start, end = routine.CalendarDay(start), routine.CalendarDay(end)
	events := make([]attendance.Event, 0)
	for _, e := range repo.events.table {
		day := routine.CalendarDay(e.Date)
		if e.FacultyID == facultyID && !day.Before(start) && !day.After(end) {
			events = append(events, cloneEvent(*e))
		}
	}
	return events, nil
}

func (repo *attendanceRepository) UpsertEvent(_ context.Context, e attendance.Event) (attendance.Event, error) {
	repo.events.Lock()
	defer repo.events.Unlock()

	e = cloneEvent(e)
	e.Date = routine.CalendarDay(e.Date)
	k := keyOf(e)
	if orig, ok := repo.events.table[k]; ok {
		e.ID = orig.ID
		e.CreatedAt = orig.CreatedAt
	} else {
		e.ID = newID()
	}
	repo.events.table[k] = &e
	return cloneEvent(e), nil
}

func (repo *attendanceRepository) InsertEventIfAbsent(_ context.Context, e attendance.Event) (attendance.Event, bool, error) {
	repo.events.Lock()
	defer repo.events.Unlock()

	e = cloneEvent(e)
	e.Date = routine.CalendarDay(e.Date)
	k := keyOf(e)
	if orig, ok := repo.events.table[k]; ok {
		return cloneEvent(*orig), false, nil
	}
	e.ID = newID()
	repo.events.table[k] = &e
	return cloneEvent(e), true, nil
}

func (repo *attendanceRepository) CreateAbsence(_ context.Context, a attendance.Absence) (attendance.Absence, error) {
	repo.absences.Lock()
	defer repo.absences.Unlock()

	a.ID = newID()
	a.Date = routine.CalendarDay(a.Date)
	a.Students = copyStrings(a.Students)
	repo.absences.table[a.ID] = &a
	return a, nil
}

// Absences lists every recorded absence.
func (db *DB) Absences() []attendance.Absence {
	db.absence.RLock()
	defer db.absence.RUnlock()

	absences := make([]attendance.Absence, 0, len(db.absence.table))
	for _, a := range db.absence.table {
		absences = append(absences, *a)
	}
	return absences
}
