package testutil

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/attendance"
	"github.com/trezcool/ratiba/core/faculty"
	"github.com/trezcool/ratiba/core/handover"
	"github.com/trezcool/ratiba/core/notification"
	"github.com/trezcool/ratiba/core/routine"
	"github.com/trezcool/ratiba/services/email"
	"github.com/trezcool/ratiba/services/logger"
	"github.com/trezcool/ratiba/storage/database/inmem"
)

// Env wires every service over a fresh in-memory store.
type Env struct {
	Conf   *core.Config
	DB     *inmemdb.DB
	Logger core.Logger
	Mail   *emailsvc.ConsoleServiceMock
	clock  func() time.Time

	FacultyRepo  faculty.Repository
	RoutineRepo  routine.Repository
	HandoverRepo handover.Repository
	EventRepo    attendance.Repository
	NotifRepo    notification.Repository

	Faculty       *faculty.Service
	Routines      *routine.Service
	Notifications *notification.Service
	Attendance    *attendance.Service
	Handovers     *handover.Service
}

func Config() *core.Config {
	conf := core.NewConfig()
	conf.Debug = false
	conf.TestMode = true
	conf.Database.Engine = core.EngineMemory
	conf.Schedule.Timezone = "UTC"
	conf.Schedule.GracePeriod = 30 * time.Minute
	conf.Schedule.MaxStatsDays = 366
	return conf
}

func NewEnv() *Env {
	conf := Config()
	logger := logsvc.NewRollbarLogger(io.Discard, conf)
	db := inmemdb.Open()

	env := &Env{
		Conf:         conf,
		DB:           db,
		Logger:       logger,
		Mail:         emailsvc.NewConsoleServiceMock(conf, logger),
		FacultyRepo:  inmemdb.NewFacultyRepository(db),
		RoutineRepo:  inmemdb.NewRoutineRepository(db),
		HandoverRepo: inmemdb.NewHandoverRepository(db),
		EventRepo:    inmemdb.NewAttendanceRepository(db),
		NotifRepo:    inmemdb.NewNotificationRepository(db),
	}
	env.Faculty = faculty.NewService(env.FacultyRepo)
	env.Routines = routine.NewService(env.RoutineRepo)
	env.Notifications = notification.NewService(env.NotifRepo, env.Mail)
	env.Attendance = attendance.NewService(
		env.EventRepo,
		env.Routines,
		env.Faculty,
		env.Notifications,
		logger,
		attendance.Options{
			Location:     conf.Schedule.Location(),
			GracePeriod:  conf.Schedule.GracePeriod,
			MaxStatsDays: conf.Schedule.MaxStatsDays,
			Now:          env.now,
		},
	)
	env.Handovers = handover.NewService(handover.Deps{
		Repo:      env.HandoverRepo,
		Checker:   handover.NewConflictChecker(env.Routines, env.HandoverRepo, conf.Schedule.OverlapConflicts),
		Routines:  env.Routines,
		Faculty:   env.Faculty,
		Instances: env.Attendance,
		Notifier:  env.Notifications,
		Tx:        db,
		Logger:    logger,
	})
	return env
}

func (env *Env) now() time.Time {
	if env.clock != nil {
		return env.clock()
	}
	return time.Now()
}

// SetNow replaces the attendance clock and returns a func restoring it.
func (env *Env) SetNow(now func() time.Time) func() {
	prev := env.clock
	env.clock = now
	return func() { env.clock = prev }
}

func CreateFaculty(t *testing.T, repo faculty.Repository, name, email string, head bool, subjects ...string) faculty.Faculty {
	roles := []string{faculty.RoleFaculty}
	if head {
		roles = faculty.AllRoles
	}
	now := time.Now().UTC()
	fac, err := repo.CreateFaculty(context.Background(), faculty.Faculty{
		Name:       name,
		Email:      email,
		Department: "CSE",
		Subjects:   subjects,
		Roles:      roles,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		t.Fatalf("CreateFaculty() failed: %v", err)
	}
	return fac
}

func Entry(day, slot, subject string) routine.Entry {
	return routine.Entry{
		Day:      day,
		TimeSlot: slot,
		Subject:  subject,
		Course:   "B.Tech",
		Room:     "R" + subject,
		Status:   routine.StatusPending,
	}
}

// CreateRoutine stores a routine for fac starting on start (YYYY-MM-DD). end may be empty.
func CreateRoutine(t *testing.T, svc *routine.Service, fac faculty.Faculty, start, end string, entries ...routine.Entry) routine.Routine {
	rtn := routine.Routine{
		FacultyID:   fac.ID,
		FacultyName: fac.Name,
		StartDate:   Date(t, start),
		Entries:     entries,
	}
	if end != "" {
		e := Date(t, end)
		rtn.EndDate = &e
	}
	rtn, err := svc.Save(context.Background(), rtn)
	if err != nil {
		t.Fatalf("CreateRoutine() failed: %v", err)
	}
	return rtn
}

func Date(t *testing.T, s string) time.Time {
	d, err := routine.ParseDate(s)
	if err != nil {
		t.Fatalf("Date(%q) failed: %v", s, err)
	}
	return d
}

// At returns a clock stuck at the given UTC time ("2006-01-02 15:04").
func At(t *testing.T, s string) func() time.Time {
	tm, err := time.Parse("2006-01-02 15:04", s)
	if err != nil {
		t.Fatalf("At(%q) failed: %v", s, err)
	}
	return func() time.Time { return tm }
}
