package schedulersvc

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/ratiba/core"
)

// Reconciler repairs approved handovers whose schedule changes were not fully applied.
type Reconciler interface {
	Reconcile(ctx context.Context) (int, error)
}

// Scheduler runs the handover reconciliation on a cron spec.
type Scheduler struct {
	cron       *cron.Cron
	spec       string
	timeout    time.Duration
	reconciler Reconciler
	logger     core.Logger
}

// New returns a Scheduler for conf.Reconcile. An empty cron spec disables it.
func New(conf *core.Config, reconciler Reconciler, logger core.Logger) *Scheduler {
	timeout := conf.Reconcile.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Scheduler{
		cron:       cron.New(cron.WithLocation(conf.Schedule.Location()), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		spec:       conf.Reconcile.CronSpec,
		timeout:    timeout,
		reconciler: reconciler,
		logger:     logger,
	}
}

func (s *Scheduler) Enabled() bool {
	return s.spec != ""
}

// Start registers the job and starts the cron engine in its own goroutine.
func (s *Scheduler) Start() error {
	if !s.Enabled() {
		s.logger.Info("handover reconciliation disabled")
		return nil
	}
	if _, err := s.cron.AddFunc(s.spec, func() { _, _ = s.RunOnce(context.Background()) }); err != nil {
		return errors.Wrapf(err, "scheduling reconciliation %q", s.spec)
	}
	s.cron.Start()
	s.logger.Info(fmt.Sprintf("handover reconciliation scheduled: %s", s.spec))
	return nil
}

// Stop stops the engine and waits for a running job, at most until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("reconciliation still running at shutdown")
	}
}

// RunOnce reconciles once with the configured timeout.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	repaired, err := s.reconciler.Reconcile(ctx)
	if err != nil {
		s.logger.Error(fmt.Sprintf("reconciling handovers: %v", err), err, map[string]interface{}{"repaired": repaired})
		return repaired, err
	}
	if repaired > 0 {
		s.logger.Info(fmt.Sprintf("reconciled %d handover(s)", repaired))
	} else {
		s.logger.Debug("no handover to reconcile")
	}
	return repaired, nil
}
