package handover_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/attendance"
	"github.com/trezcool/ratiba/core/faculty"
	"github.com/trezcool/ratiba/core/handover"
	"github.com/trezcool/ratiba/core/routine"
	"github.com/trezcool/ratiba/tests"
)

type fixture struct {
	env        *testutil.Env
	head       faculty.Faculty
	requester  faculty.Faculty
	substitute faculty.Faculty
	other      faculty.Faculty
	rtn        routine.Routine
	anatomy    routine.Entry
}

// newFixture: requester teaches Anatomy on Mondays 10:00-10:50, the substitute teaches on Mondays at 12:00
// and the other member teaches Anatomy on Mondays 10:00-10:50 too.
func newFixture(t *testing.T) fixture {
	t.Helper()
	env := testutil.NewEnv()
	f := fixture{env: env}
	f.head = testutil.CreateFaculty(t, env.FacultyRepo, "Hana Head", "head@ratiba.test", true)
	f.requester = testutil.CreateFaculty(t, env.FacultyRepo, "Amani F1", "f1@ratiba.test", false, "Anatomy")
	f.substitute = testutil.CreateFaculty(t, env.FacultyRepo, "Baraka F2", "f2@ratiba.test", false, "Anatomy", "Physiology")
	f.other = testutil.CreateFaculty(t, env.FacultyRepo, "Chausiku F3", "f3@ratiba.test", false, "Anatomy")

	f.rtn = testutil.CreateRoutine(t, env.Routines, f.requester, "2024-01-01", "",
		testutil.Entry("Monday", "10:00–10:50", "Anatomy"),
		testutil.Entry("Wednesday", "09:00-09:50", "Histology"),
	)
	f.anatomy = f.rtn.Entries[0]
	testutil.CreateRoutine(t, env.Routines, f.substitute, "2024-01-01", "",
		testutil.Entry("Monday", "12:00-12:50", "Physiology"),
	)
	testutil.CreateRoutine(t, env.Routines, f.other, "2024-01-01", "",
		testutil.Entry("Mon", "10:00 - 10:50", "Anatomy"),
	)
	return f
}

func (f fixture) newRequest(date string) handover.NewRequest {
	return handover.NewRequest{
		SubstituteID: f.substitute.ID,
		RoutineID:    f.rtn.ID,
		ClassID:      f.anatomy.ID,
		DateOfClass:  date,
		Reason:       "conference",
	}
}

func conflictType(t *testing.T, err error) string {
	t.Helper()
	cErr, ok := errors.Cause(err).(*core.ConflictError)
	require.Truef(t, ok, "want *core.ConflictError; got %T (%v)", errors.Cause(err), err)
	return cErr.Type
}

func countHandoverEntries(t *testing.T, env *testutil.Env, facultyID, handoverID string) int {
	t.Helper()
	routines, err := env.Routines.QueryByFaculty(context.Background(), facultyID)
	require.NoError(t, err)
	var n int
	for _, r := range routines {
		for _, e := range r.Entries {
			if e.Handover && e.HandoverID == handoverID {
				n++
			}
		}
	}
	return n
}

func TestCheckAvailability(t *testing.T) {
	defer handover.SetNow(testutil.At(t, "2024-06-01 09:00"))()
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name         string
		substituteID string
		date         string
		slot         string
		wantErr      bool
		wantAvail    bool
		wantConflict string
	}{
		{name: "missing substitute", substituteID: "", date: "2024-06-03", slot: "10:00-10:50", wantErr: true},
		{name: "malformed date", substituteID: f.substitute.ID, date: "03/06/2024", slot: "10:00-10:50", wantErr: true},
		{name: "missing slot", substituteID: f.substitute.ID, date: "2024-06-03", slot: " ", wantErr: true},
		{name: "free slot", substituteID: f.substitute.ID, date: "2024-06-03", slot: "10:00-10:50", wantAvail: true},
		{name: "regular class", substituteID: f.substitute.ID, date: "2024-06-03", slot: "12:00 - 12:50", wantConflict: handover.ConflictRegularClass},
		{name: "other weekday", substituteID: f.substitute.ID, date: "2024-06-04", slot: "12:00-12:50", wantAvail: true},
		{name: "overlap is not a clash by default", substituteID: f.substitute.ID, date: "2024-06-03", slot: "12:30-13:20", wantAvail: true},
		{name: "no routine", substituteID: f.head.ID, date: "2024-06-03", slot: "12:00-12:50", wantAvail: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			avail, err := f.env.Handovers.CheckAvailability(ctx, tt.substituteID, tt.date, tt.slot)
			if tt.wantErr {
				_, ok := errors.Cause(err).(*core.ValidationError)
				assert.Truef(t, ok, "want *core.ValidationError; got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAvail, avail.Available)
			if tt.wantConflict != "" {
				require.NotNil(t, avail.Conflict)
				assert.Equal(t, tt.wantConflict, avail.Conflict.Type)
				assert.Equal(t, "Physiology", avail.Conflict.Subject)
			} else {
				assert.Nil(t, avail.Conflict)
			}
		})
	}
}

func TestCheckAvailability_overlap(t *testing.T) {
	env := testutil.NewEnv()
	sub := testutil.CreateFaculty(t, env.FacultyRepo, "Baraka", "b@ratiba.test", false)
	testutil.CreateRoutine(t, env.Routines, sub, "2024-01-01", "", testutil.Entry("Monday", "10:00-10:50", "Physics"))

	checker := handover.NewConflictChecker(env.Routines, env.HandoverRepo, true)
	avail, err := checker.CheckAvailability(context.Background(), sub.ID, "2024-06-03", "10:30 to 11:20")
	require.NoError(t, err)
	assert.False(t, avail.Available)
	assert.Equal(t, handover.ConflictRegularClass, avail.Conflict.Type)

	avail, err = checker.CheckAvailability(context.Background(), sub.ID, "2024-06-03", "10:50-11:40")
	require.NoError(t, err)
	assert.True(t, avail.Available)
}

func TestCheckAvailability_routineOfTheClassDate(t *testing.T) {
	env := testutil.NewEnv()
	sub := testutil.CreateFaculty(t, env.FacultyRepo, "Baraka", "b@ratiba.test", false)
	testutil.CreateRoutine(t, env.Routines, sub, "2024-01-01", "", testutil.Entry("Monday", "10:00-10:50", "Physics"))
	testutil.CreateRoutine(t, env.Routines, sub, "2024-07-01", "", testutil.Entry("Tuesday", "10:00-10:50", "Physics"))
	checker := handover.NewConflictChecker(env.Routines, env.HandoverRepo, false)

	tests := []struct {
		name      string
		date      string
		wantAvail bool
	}{
		{name: "before the new revision starts", date: "2024-06-03", wantAvail: false},
		{name: "once the new revision applies", date: "2024-07-08", wantAvail: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			avail, err := checker.CheckAvailability(context.Background(), sub.ID, tt.date, "10:00-10:50")
			require.NoError(t, err)
			assert.Equal(t, tt.wantAvail, avail.Available)
			if !tt.wantAvail {
				require.NotNil(t, avail.Conflict)
				assert.Equal(t, handover.ConflictRegularClass, avail.Conflict.Type)
			}
		})
	}
}

func TestApprove_propagates(t *testing.T) {
	defer handover.SetNow(testutil.At(t, "2024-06-01 09:00"))()
	f := newFixture(t)
	defer f.env.SetNow(testutil.At(t, "2024-06-01 09:00"))()
	ctx := context.Background()

	req, err := f.env.Handovers.Create(ctx, f.requester, f.newRequest("2024-06-03"))
	require.NoError(t, err)
	assert.Equal(t, handover.StatusPending, req.Status)
	assert.Equal(t, "Anatomy", req.Subject)
	assert.Equal(t, "10:00–10:50", req.TimeSlot)

	approved, err := f.env.Handovers.Approve(ctx, req.ID, f.head)
	require.NoError(t, err)
	assert.Equal(t, handover.StatusApproved, approved.Status)
	assert.Equal(t, f.head.ID, approved.DecidedBy)
	require.NotNil(t, approved.PropagatedAt)
	assert.False(t, approved.IsOrphaned())

	// substitute teaches it that day
	day := testutil.Date(t, "2024-06-03")
	classes, err := f.env.Attendance.DailySchedule(ctx, f.substitute.ID, day, attendance.FacultyView)
	require.NoError(t, err)
	var found bool
	for _, c := range classes {
		if c.Subject == "Anatomy" {
			found = true
			assert.Equal(t, "10:00", c.StartTime)
			assert.Equal(t, "10:50", c.EndTime)
			assert.Equal(t, routine.StatusPending, c.Status)
			assert.True(t, c.Handover)
			assert.Equal(t, f.requester.Name, c.OriginalFacultyName)
		}
	}
	assert.True(t, found, "substitute schedule lacks the handed over class")

	// requester sees it handed over
	classes, err = f.env.Attendance.DailySchedule(ctx, f.requester.ID, day, attendance.FacultyView)
	require.NoError(t, err)
	require.Len(t, classes, 1)
	assert.Equal(t, routine.StatusHandover, classes[0].Status)
	assert.Equal(t, f.substitute.Name, classes[0].SubstituteName)

	// the appended entry recurs weekly
	avail, err := f.env.Handovers.CheckAvailability(ctx, f.substitute.ID, "2024-06-10", "10:00 - 10:50")
	require.NoError(t, err)
	assert.False(t, avail.Available)
	assert.Equal(t, handover.ConflictRegularClass, avail.Conflict.Type)

	// approving again changes nothing
	again, err := f.env.Handovers.Approve(ctx, req.ID, f.head)
	require.NoError(t, err)
	assert.Equal(t, approved.PropagatedAt, again.PropagatedAt)
	assert.Equal(t, 1, countHandoverEntries(t, f.env, f.substitute.ID, req.ID))

	notifs, err := f.env.Notifications.Query(ctx, f.substitute.ID, false)
	require.NoError(t, err)
	assert.Len(t, notifs, 2) // asked, assigned
	notifs, err = f.env.Notifications.Query(ctx, f.requester.ID, false)
	require.NoError(t, err)
	assert.Len(t, notifs, 1)
}

func TestCreate_errors(t *testing.T) {
	defer handover.SetNow(testutil.At(t, "2024-06-01 09:00"))()
	f := newFixture(t)
	ctx := context.Background()

	t.Run("substitute busy", func(t *testing.T) {
		nr := f.newRequest("2024-06-03")
		nr.TimeSlot = "12:00-12:50"
		_, err := f.env.Handovers.Create(ctx, f.requester, nr)
		assert.Equal(t, handover.ConflictRegularClass, conflictType(t, err))
	})

	t.Run("wrong weekday", func(t *testing.T) {
		_, err := f.env.Handovers.Create(ctx, f.requester, f.newRequest("2024-06-04"))
		_, ok := errors.Cause(err).(*core.ValidationError)
		assert.Truef(t, ok, "want *core.ValidationError; got %v", err)
	})

	t.Run("before the routine starts", func(t *testing.T) {
		_, err := f.env.Handovers.Create(ctx, f.requester, f.newRequest("2023-12-25"))
		_, ok := errors.Cause(err).(*core.ValidationError)
		assert.Truef(t, ok, "want *core.ValidationError; got %v", err)
	})

	t.Run("self substitution", func(t *testing.T) {
		nr := f.newRequest("2024-06-03")
		nr.SubstituteID = f.requester.ID
		_, err := f.env.Handovers.Create(ctx, f.requester, nr)
		_, ok := errors.Cause(err).(*core.ValidationError)
		assert.Truef(t, ok, "want *core.ValidationError; got %v", err)
	})

	t.Run("routine of someone else", func(t *testing.T) {
		_, err := f.env.Handovers.Create(ctx, f.other, f.newRequest("2024-06-03"))
		assert.True(t, core.IsNotFound(err))
	})

	t.Run("unknown class", func(t *testing.T) {
		nr := f.newRequest("2024-06-03")
		nr.ClassID = "nope"
		_, err := f.env.Handovers.Create(ctx, f.requester, nr)
		assert.Equal(t, routine.ErrEntryNotFound, errors.Cause(err))
	})

	t.Run("duplicate", func(t *testing.T) {
		_, err := f.env.Handovers.Create(ctx, f.requester, f.newRequest("2024-06-17"))
		require.NoError(t, err)
		_, err = f.env.Handovers.Create(ctx, f.requester, f.newRequest("2024-06-17"))
		assert.Equal(t, "duplicate_request", conflictType(t, err))
	})
}

func TestDecide(t *testing.T) {
	defer handover.SetNow(testutil.At(t, "2024-06-01 09:00"))()
	f := newFixture(t)
	defer f.env.SetNow(testutil.At(t, "2024-06-01 09:00"))()
	ctx := context.Background()

	req, err := f.env.Handovers.Create(ctx, f.requester, f.newRequest("2024-06-03"))
	require.NoError(t, err)

	_, err = f.env.Handovers.Approve(ctx, req.ID, f.requester)
	assert.Equal(t, core.ErrForbidden, errors.Cause(err))
	_, err = f.env.Handovers.Decide(ctx, req.ID, f.head, handover.Decision{Status: "Maybe"})
	_, ok := errors.Cause(err).(*core.ValidationError)
	assert.True(t, ok)

	rejected, err := f.env.Handovers.Decide(ctx, req.ID, f.head, handover.Decision{Status: handover.StatusRejected, Remarks: " exams "})
	require.NoError(t, err)
	assert.Equal(t, handover.StatusRejected, rejected.Status)
	assert.Equal(t, "exams", rejected.Remarks)

	again, err := f.env.Handovers.Reject(ctx, req.ID, f.head, "")
	require.NoError(t, err)
	assert.Equal(t, "exams", again.Remarks)

	_, err = f.env.Handovers.Approve(ctx, req.ID, f.head)
	assert.Equal(t, handover.ErrAlreadyDecided, errors.Cause(err))
	assert.Equal(t, 0, countHandoverEntries(t, f.env, f.substitute.ID, req.ID))

	_, err = f.env.Handovers.Approve(ctx, "missing", f.head)
	assert.Equal(t, handover.ErrNotFound, errors.Cause(err))
}

func TestApprove_rechecksConflicts(t *testing.T) {
	defer handover.SetNow(testutil.At(t, "2024-06-01 09:00"))()
	f := newFixture(t)
	defer f.env.SetNow(testutil.At(t, "2024-06-01 09:00"))()
	ctx := context.Background()

	latest, ok, err := f.env.Routines.Latest(ctx, f.other.ID)
	require.NoError(t, err)
	require.True(t, ok)

	first, err := f.env.Handovers.Create(ctx, f.requester, f.newRequest("2024-06-03"))
	require.NoError(t, err)
	second, err := f.env.Handovers.Create(ctx, f.other, handover.NewRequest{
		SubstituteID: f.substitute.ID,
		RoutineID:    latest.ID,
		ClassID:      latest.Entries[0].ID,
		DateOfClass:  "2024-06-03",
	})
	require.NoError(t, err, "both requests are pending, so the substitute still looks free")

	_, err = f.env.Handovers.Approve(ctx, first.ID, f.head)
	require.NoError(t, err)
	_, err = f.env.Handovers.Approve(ctx, second.ID, f.head)
	assert.NotEmpty(t, conflictType(t, err))

	stored, err := f.env.HandoverRepo.GetHandoverByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, handover.StatusPending, stored.Status)
}

type failingRecorder struct{}

func (failingRecorder) RecordHandover(context.Context, routine.Routine, string, time.Time, string) error {
	return errors.New("store unavailable")
}

func TestReconcile(t *testing.T) {
	defer handover.SetNow(testutil.At(t, "2024-06-01 09:00"))()
	f := newFixture(t)
	defer f.env.SetNow(testutil.At(t, "2024-06-01 09:00"))()
	ctx := context.Background()

	broken := handover.NewService(handover.Deps{
		Repo:      f.env.HandoverRepo,
		Checker:   handover.NewConflictChecker(f.env.Routines, f.env.HandoverRepo, false),
		Routines:  f.env.Routines,
		Faculty:   f.env.Faculty,
		Instances: failingRecorder{},
		Notifier:  f.env.Notifications,
		Logger:    f.env.Logger,
	})

	req, err := broken.Create(ctx, f.requester, f.newRequest("2024-06-03"))
	require.NoError(t, err)
	approved, err := broken.Approve(ctx, req.ID, f.head)
	require.NoError(t, err, "approval succeeds even when propagation fails")
	assert.Equal(t, handover.StatusApproved, approved.Status)
	assert.True(t, approved.IsOrphaned())

	n, err := broken.Reconcile(ctx)
	assert.Error(t, err)
	assert.Equal(t, 0, n)

	n, err = f.env.Handovers.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = f.env.Handovers.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	stored, err := f.env.HandoverRepo.GetHandoverByID(ctx, req.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.PropagatedAt)
	assert.Equal(t, 1, countHandoverEntries(t, f.env, f.substitute.ID, req.ID))

	ev, err := f.env.EventRepo.GetEvent(ctx, f.anatomy.ID, testutil.Date(t, "2024-06-03"))
	require.NoError(t, err)
	assert.Equal(t, routine.StatusHandover, ev.Status)
	assert.Equal(t, f.head.ID, ev.MarkedBy)
}

func TestApprove_missingClass(t *testing.T) {
	defer handover.SetNow(testutil.At(t, "2024-06-01 09:00"))()
	f := newFixture(t)
	defer f.env.SetNow(testutil.At(t, "2024-06-01 09:00"))()
	ctx := context.Background()

	req, err := f.env.Handovers.Create(ctx, f.requester, f.newRequest("2024-06-03"))
	require.NoError(t, err)

	// the class disappears before approval
	_, err = f.env.Routines.Modify(ctx, f.rtn.ID, func(rtn *routine.Routine) (bool, error) {
		rtn.Entries = rtn.Entries[1:]
		return true, nil
	})
	require.NoError(t, err)

	approved, err := f.env.Handovers.Approve(ctx, req.ID, f.head)
	require.NoError(t, err)
	require.NotNil(t, approved.PropagatedAt)
	assert.Equal(t, 1, countHandoverEntries(t, f.env, f.substitute.ID, req.ID))

	rtn, err := f.env.Routines.GetByID(ctx, f.rtn.ID)
	require.NoError(t, err)
	assert.True(t, rtn.HasHandover(req.ID), "fallback entry added to the requester routine")
}

func TestSuggestSubstitutes(t *testing.T) {
	defer handover.SetNow(testutil.At(t, "2024-06-01 09:00"))()
	f := newFixture(t)
	ctx := context.Background()

	got, err := f.env.Handovers.SuggestSubstitutes(ctx, f.requester.ID, "2024-06-03", "10:00-10:50", "Anatomy")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, f.substitute.ID, got[0].ID)

	got, err = f.env.Handovers.SuggestSubstitutes(ctx, f.requester.ID, "2024-06-03", "12:00-12:50", "")
	require.NoError(t, err)
	ids := make([]string, 0, len(got))
	for _, m := range got {
		ids = append(ids, m.ID)
	}
	assert.ElementsMatch(t, []string{f.head.ID, f.other.ID}, ids)
}

func TestQuery_scoping(t *testing.T) {
	defer handover.SetNow(testutil.At(t, "2024-06-01 09:00"))()
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.env.Handovers.Create(ctx, f.requester, f.newRequest("2024-06-03"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		actor faculty.Faculty
		want  int
	}{
		{"requester", f.requester, 1},
		{"substitute", f.substitute, 1},
		{"outsider", f.other, 0},
		{"head", f.head, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reqs, err := f.env.Handovers.Query(ctx, tt.actor, handover.QueryFilter{})
			require.NoError(t, err)
			assert.Len(t, reqs, tt.want)

			_, err = f.env.Handovers.Get(ctx, tt.actor, req.ID)
			if tt.want == 0 {
				assert.Equal(t, handover.ErrNotFound, errors.Cause(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
