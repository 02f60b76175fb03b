package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/ratiba/apps/api/echo"
	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/attendance"
	"github.com/trezcool/ratiba/core/faculty"
	"github.com/trezcool/ratiba/core/handover"
	"github.com/trezcool/ratiba/core/notification"
	"github.com/trezcool/ratiba/core/routine"
	emailsvc "github.com/trezcool/ratiba/services/email"
	logsvc "github.com/trezcool/ratiba/services/logger"
	schedulersvc "github.com/trezcool/ratiba/services/scheduler"
	"github.com/trezcool/ratiba/storage"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(os.Stdout, conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(os.Stdout, conf).With(map[string]interface{}{"component": "db"})
}

func newStore(conf *core.Config, loggerParam DBLoggerParam) *storage.Store {
	store, err := storage.Open(context.Background(), conf, true /* migrate */)
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	loggerParam.Logger.Info("connected to " + store.Engine)
	return store
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	routine.InitValidators(validate, translator)
	return validate
}

func newFacultyService(store *storage.Store) *faculty.Service {
	return faculty.NewService(store.Faculty)
}

func newRoutineService(store *storage.Store) *routine.Service {
	return routine.NewService(store.Routines)
}

func newNotificationService(store *storage.Store, mailSvc core.EmailService) *notification.Service {
	return notification.NewService(store.Notifications, mailSvc)
}

func newAttendanceService(
	conf *core.Config,
	store *storage.Store,
	routines *routine.Service,
	facultySvc *faculty.Service,
	notifSvc *notification.Service,
	logger core.Logger,
) *attendance.Service {
	return attendance.NewService(store.Events, routines, facultySvc, notifSvc, logger, attendance.Options{
		Location:     conf.Schedule.Location(),
		GracePeriod:  conf.Schedule.GracePeriod,
		MaxStatsDays: conf.Schedule.MaxStatsDays,
	})
}

func newHandoverService(
	conf *core.Config,
	store *storage.Store,
	routines *routine.Service,
	facultySvc *faculty.Service,
	attendanceSvc *attendance.Service,
	notifSvc *notification.Service,
	logger core.Logger,
) *handover.Service {
	return handover.NewService(handover.Deps{
		Repo:      store.Handovers,
		Checker:   handover.NewConflictChecker(routines, store.Handovers, conf.Schedule.OverlapConflicts),
		Routines:  routines,
		Faculty:   facultySvc,
		Instances: attendanceSvc,
		Notifier:  notifSvc,
		Tx:        store.Tx,
		Logger:    logger,
	})
}

func newScheduler(conf *core.Config, handovers *handover.Service, logger core.Logger) *schedulersvc.Scheduler {
	return schedulersvc.New(conf, handovers, logger)
}

func newDeps(
	facultySvc *faculty.Service,
	routines *routine.Service,
	handovers *handover.Service,
	attendanceSvc *attendance.Service,
	notifSvc *notification.Service,
) echoapi.Deps {
	return echoapi.Deps{
		Faculty:       facultySvc,
		Routines:      routines,
		Handovers:     handovers,
		Attendance:    attendanceSvc,
		Notifications: notifSvc,
	}
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStore))
	must(c.Provide(emailsvc.NewService))
	must(c.Provide(newTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(newFacultyService))
	must(c.Provide(newRoutineService))
	must(c.Provide(newNotificationService))
	must(c.Provide(newAttendanceService))
	must(c.Provide(newHandoverService))
	must(c.Provide(newScheduler))
	must(c.Provide(newDeps))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
