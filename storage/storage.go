package storage

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/attendance"
	"github.com/trezcool/ratiba/core/faculty"
	"github.com/trezcool/ratiba/core/handover"
	"github.com/trezcool/ratiba/core/notification"
	"github.com/trezcool/ratiba/core/routine"
	"github.com/trezcool/ratiba/storage/database"
	inmemdb "github.com/trezcool/ratiba/storage/database/inmem"
	mongorepos "github.com/trezcool/ratiba/storage/database/mongodb"
	sqlxrepos "github.com/trezcool/ratiba/storage/database/sqlx"
)

// Store bundles the repositories of the configured engine.
type Store struct {
	Engine        string
	Faculty       faculty.Repository
	Routines      routine.Repository
	Handovers     handover.Repository
	Events        attendance.Repository
	Notifications notification.Repository
	Tx            core.Transactor

	SQL   *sqlx.DB       // postgres only
	Mongo *mongorepos.DB // mongodb only
	Mem   *inmemdb.DB    // memory only
	close func(context.Context) error
}

// Open connects to the store selected by conf.Database.Engine. Postgres databases are created and migrated
// when migrate is set.
func Open(ctx context.Context, conf *core.Config, migrate bool) (*Store, error) {
	switch conf.Database.Engine {
	case core.EngineMemory:
		return Memory(), nil

	case core.EnginePostgres:
		if migrate {
			if err := database.CreateIfNotExist(ctx, conf); err != nil {
				return nil, errors.Wrap(err, "creating database")
			}
		}
		db, err := database.Open(ctx, conf)
		if err != nil {
			return nil, err
		}
		if migrate {
			if err = database.Migrate(db.DB, "up"); err != nil {
				_ = db.Close()
				return nil, err
			}
		}
		return &Store{
			Engine:        core.EnginePostgres,
			Faculty:       sqlxrepos.NewFacultyRepository(db),
			Routines:      sqlxrepos.NewRoutineRepository(db),
			Handovers:     sqlxrepos.NewHandoverRepository(db),
			Events:        sqlxrepos.NewAttendanceRepository(db),
			Notifications: sqlxrepos.NewNotificationRepository(db),
			Tx:            sqlxrepos.NewTransactor(db),
			SQL:           db,
			close:         func(context.Context) error { return db.Close() },
		}, nil

	case core.EngineMongo:
		db, err := mongorepos.Open(ctx, conf)
		if err != nil {
			return nil, err
		}
		return &Store{
			Engine:        core.EngineMongo,
			Faculty:       mongorepos.NewFacultyRepository(db),
			Routines:      mongorepos.NewRoutineRepository(db),
			Handovers:     mongorepos.NewHandoverRepository(db),
			Events:        mongorepos.NewAttendanceRepository(db),
			Notifications: mongorepos.NewNotificationRepository(db),
			Tx:            db,
			Mongo:         db,
			close:         db.Close,
		}, nil

	default:
		return nil, errors.Errorf("unknown database engine %q", conf.Database.Engine)
	}
}

// Memory returns a Store over a fresh in-memory database.
func Memory() *Store {
	db := inmemdb.Open()
	return &Store{
		Engine:        core.EngineMemory,
		Faculty:       inmemdb.NewFacultyRepository(db),
		Routines:      inmemdb.NewRoutineRepository(db),
		Handovers:     inmemdb.NewHandoverRepository(db),
		Events:        inmemdb.NewAttendanceRepository(db),
		Notifications: inmemdb.NewNotificationRepository(db),
		Tx:            db,
		Mem:           db,
	}
}

func (s *Store) Close(ctx context.Context) error {
	if s.close == nil {
		return nil
	}
	return s.close(ctx)
}
