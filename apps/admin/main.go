package main

import (
	"context"
	"fmt"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

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

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(os.Stderr, conf).With(map[string]interface{}{"component": "admin"})

	// set up storage; schema changes go through the migrate command
	store, err := storage.Open(context.Background(), conf, false /* migrate */)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer store.Close(context.Background())

	// start CLI
	cli := newCommandLine(conf, store, logger)
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		store.Close(context.Background())
		os.Exit(1)
	}
}

func newCommandLine(conf *core.Config, store *storage.Store, logger core.Logger) *commandLine {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)

	facultySvc := faculty.NewService(store.Faculty)
	routines := routine.NewService(store.Routines)
	notifSvc := notification.NewService(store.Notifications, emailsvc.NewService(conf, logger))
	attendanceSvc := attendance.NewService(store.Events, routines, facultySvc, notifSvc, logger, attendance.Options{
		Location:     conf.Schedule.Location(),
		GracePeriod:  conf.Schedule.GracePeriod,
		MaxStatsDays: conf.Schedule.MaxStatsDays,
	})
	handovers := handover.NewService(handover.Deps{
		Repo:      store.Handovers,
		Checker:   handover.NewConflictChecker(routines, store.Handovers, conf.Schedule.OverlapConflicts),
		Routines:  routines,
		Faculty:   facultySvc,
		Instances: attendanceSvc,
		Notifier:  notifSvc,
		Tx:        store.Tx,
		Logger:    logger,
	})

	cli := &commandLine{
		conf:       conf,
		facultySvc: facultySvc,
		scheduler:  schedulersvc.New(conf, handovers, logger),
		validate:   validate,
	}
	if store.SQL != nil {
		cli.db = store.SQL.DB
	}
	return cli
}
