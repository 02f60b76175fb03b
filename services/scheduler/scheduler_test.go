package schedulersvc

import (
	"context"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ratiba/services/logger"
	"github.com/trezcool/ratiba/tests"
)

type stubReconciler struct {
	calls    int32
	repaired int
	err      error
	deadline bool
}

func (r *stubReconciler) Reconcile(ctx context.Context) (int, error) {
	atomic.AddInt32(&r.calls, 1)
	_, r.deadline = ctx.Deadline()
	return r.repaired, r.err
}

func newScheduler(spec string, rec Reconciler) *Scheduler {
	conf := testutil.Config()
	conf.Reconcile.CronSpec = spec
	conf.Reconcile.Timeout = time.Second
	return New(conf, rec, logsvc.NewRollbarLogger(io.Discard, conf))
}

func TestScheduler_RunOnce(t *testing.T) {
	tests := []struct {
		name    string
		rec     *stubReconciler
		want    int
		wantErr bool
	}{
		{name: "nothing to do", rec: &stubReconciler{}},
		{name: "repaired", rec: &stubReconciler{repaired: 2}, want: 2},
		{name: "partial failure", rec: &stubReconciler{repaired: 1, err: errors.New("boom")}, want: 1, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newScheduler("@every 1h", tt.rec)
			got, err := s.RunOnce(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
			assert.True(t, tt.rec.deadline, "job runs with a timeout")
		})
	}
}

func TestScheduler_disabled(t *testing.T) {
	rec := &stubReconciler{}
	s := newScheduler("", rec)
	assert.False(t, s.Enabled())
	require.NoError(t, s.Start())
	s.Stop(context.Background())
	assert.Zero(t, atomic.LoadInt32(&rec.calls))
}

func TestScheduler_invalidSpec(t *testing.T) {
	s := newScheduler("every now and then", &stubReconciler{})
	assert.Error(t, s.Start())
}

func TestScheduler_runsOnSchedule(t *testing.T) {
	rec := &stubReconciler{}
	s := newScheduler("@every 1s", rec)
	require.NoError(t, s.Start())
	defer s.Stop(context.Background())

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&rec.calls) > 0 }, 3*time.Second, 50*time.Millisecond)
}
