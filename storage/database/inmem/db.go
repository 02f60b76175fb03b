package inmemdb

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/trezcool/ratiba/core/attendance"
	"github.com/trezcool/ratiba/core/faculty"
	"github.com/trezcool/ratiba/core/handover"
	"github.com/trezcool/ratiba/core/notification"
	"github.com/trezcool/ratiba/core/routine"
)

type (
	// DB keeps every table in memory. It backs tests and the `memory` engine.
	DB struct {
		txMutex      sync.Mutex
		faculty      *facultyTable
		routine      *routineTable
		handover     *handoverTable
		event        *eventTable
		absence      *absenceTable
		notification *notificationTable
	}

	facultyTable struct {
		sync.RWMutex
		table map[string]*faculty.Faculty
	}

	routineTable struct {
		sync.RWMutex
		table map[string]*routine.Routine
	}

	handoverTable struct {
		sync.RWMutex
		table map[string]*handover.Request
	}

	eventTable struct {
		sync.RWMutex
		table map[eventKey]*attendance.Event
	}

	absenceTable struct {
		sync.RWMutex
		table map[string]*attendance.Absence
	}

	notificationTable struct {
		sync.RWMutex
		table map[string]*notification.Notification
	}
)

func Open() *DB {
	return &DB{
		faculty:      &facultyTable{table: make(map[string]*faculty.Faculty)},
		routine:      &routineTable{table: make(map[string]*routine.Routine)},
		handover:     &handoverTable{table: make(map[string]*handover.Request)},
		event:        &eventTable{table: make(map[eventKey]*attendance.Event)},
		absence:      &absenceTable{table: make(map[string]*attendance.Absence)},
		notification: &notificationTable{table: make(map[string]*notification.Notification)},
	}
}

type txKey struct{}

// WithinTx serializes transactions. Nothing is rolled back on failure.
func (db *DB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	db.txMutex.Lock()
	defer db.txMutex.Unlock()
	return fn(context.WithValue(ctx, txKey{}, true))
}

// Reset empties every table.
func (db *DB) Reset() {
	fresh := Open()
	db.faculty.Lock()
	db.faculty.table = fresh.faculty.table
	db.faculty.Unlock()
	db.routine.Lock()
	db.routine.table = fresh.routine.table
	db.routine.Unlock()
	db.handover.Lock()
	db.handover.table = fresh.handover.table
	db.handover.Unlock()
	db.event.Lock()
	db.event.table = fresh.event.table
	db.event.Unlock()
	db.absence.Lock()
	db.absence.table = fresh.absence.table
	db.absence.Unlock()
	db.notification.Lock()
	db.notification.table = fresh.notification.table
	db.notification.Unlock()
}

func newID() string {
	return uuid.NewString()
}

func copyStrings(ss []string) []string {
	if ss == nil {
		return nil
	}
	return append(make([]string, 0, len(ss)), ss...)
}
