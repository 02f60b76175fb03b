package attendance_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/attendance"
	"github.com/trezcool/ratiba/core/faculty"
	"github.com/trezcool/ratiba/core/notification"
	"github.com/trezcool/ratiba/core/routine"
	"github.com/trezcool/ratiba/tests"
)

type fixture struct {
	env    *testutil.Env
	head   faculty.Faculty
	member faculty.Faculty
	other  faculty.Faculty
	rtn    routine.Routine
}

// newFixture: on Mondays the member teaches Physics 10:00-10:50 and Maths 08:00-08:50.
func newFixture(t *testing.T) fixture {
	t.Helper()
	env := testutil.NewEnv()
	f := fixture{env: env}
	f.head = testutil.CreateFaculty(t, env.FacultyRepo, "Hana Head", "head@ratiba.test", true)
	f.member = testutil.CreateFaculty(t, env.FacultyRepo, "Amani", "amani@ratiba.test", false)
	f.other = testutil.CreateFaculty(t, env.FacultyRepo, "Baraka", "baraka@ratiba.test", false)
	f.rtn = testutil.CreateRoutine(t, env.Routines, f.member, "2024-01-01", "",
		testutil.Entry("Monday", "10:00-10:50", "Physics"),
		testutil.Entry("mon", "8:00 AM - 8:50 AM", "Maths"),
		testutil.Entry("Tuesday", "10:00-10:50", "Chemistry"),
		testutil.Entry("Monday", "whenever", "Club"),
	)
	return f
}

func (f fixture) entry(subject string) routine.Entry {
	for _, e := range f.rtn.Entries {
		if e.Subject == subject {
			return e
		}
	}
	return routine.Entry{}
}

func (f fixture) mark(subject, status, date string) attendance.MarkRequest {
	return attendance.MarkRequest{
		EntryID:   f.entry(subject).ID,
		RoutineID: f.rtn.ID,
		Status:    routine.Status(status),
		Date:      date,
	}
}

func subjects(classes []attendance.ClassInstance) []string {
	ss := make([]string, 0, len(classes))
	for _, c := range classes {
		ss = append(ss, c.Subject)
	}
	return ss
}

func TestDailySchedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	monday := testutil.Date(t, "2024-06-03")

	tests := []struct {
		name       string
		now        string
		wantStatus map[string]routine.Status
	}{
		{
			name:       "before the classes",
			now:        "2024-06-03 07:00",
			wantStatus: map[string]routine.Status{"Maths": "pending", "Physics": "pending", "Club": "pending"},
		},
		{
			name:       "within the grace period",
			now:        "2024-06-03 09:20",
			wantStatus: map[string]routine.Status{"Maths": "pending", "Physics": "pending", "Club": "pending"},
		},
		{
			name:       "after the grace period",
			now:        "2024-06-03 09:21",
			wantStatus: map[string]routine.Status{"Maths": "missed", "Physics": "pending", "Club": "pending"},
		},
		{
			name:       "next day",
			now:        "2024-06-04 00:00",
			wantStatus: map[string]routine.Status{"Maths": "missed", "Physics": "missed", "Club": "pending"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer f.env.SetNow(testutil.At(t, tt.now))()

			classes, err := f.env.Attendance.DailySchedule(ctx, f.member.ID, monday, attendance.FacultyView)
			require.NoError(t, err)
			// malformed slots sort last
			assert.Equal(t, []string{"Maths", "Physics", "Club"}, subjects(classes))
			for _, c := range classes {
				assert.Equal(t, tt.wantStatus[c.Subject], c.Status, c.Subject)
				assert.Equal(t, "2024-06-03", c.Date)
				assert.Equal(t, f.member.Name, c.FacultyName)
			}
			assert.Equal(t, "8:00 AM", classes[0].StartTime)
			assert.Equal(t, "8:50 AM", classes[0].EndTime)
			assert.Empty(t, classes[2].StartTime)
			assert.Empty(t, classes[2].EndTime)
		})
	}

	// faculty view never writes
	events, err := f.env.EventRepo.QueryEvents(ctx, f.member.ID, monday, monday)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestDailySchedule_noRoutine(t *testing.T) {
	f := newFixture(t)
	classes, err := f.env.Attendance.DailySchedule(context.Background(), f.member.ID, testutil.Date(t, "2023-06-05"), attendance.FacultyView)
	require.NoError(t, err)
	assert.NotNil(t, classes)
	assert.Empty(t, classes)
}

func TestDailySchedule_latestRevisionWins(t *testing.T) {
	f := newFixture(t)
	testutil.CreateRoutine(t, f.env.Routines, f.member, "2024-06-01", "2024-06-30",
		testutil.Entry("Monday", "14:00-14:50", "Biology"),
	)
	defer f.env.SetNow(testutil.At(t, "2024-05-01 00:00"))()

	classes, err := f.env.Attendance.DailySchedule(context.Background(), f.member.ID, testutil.Date(t, "2024-06-03"), attendance.FacultyView)
	require.NoError(t, err)
	assert.Equal(t, []string{"Biology"}, subjects(classes))

	classes, err = f.env.Attendance.DailySchedule(context.Background(), f.member.ID, testutil.Date(t, "2024-07-01"), attendance.FacultyView)
	require.NoError(t, err)
	assert.Equal(t, []string{"Maths", "Physics", "Club"}, subjects(classes))
}

func TestHeadDailySchedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	monday := testutil.Date(t, "2024-06-03")
	testutil.CreateRoutine(t, f.env.Routines, f.other, "2024-01-01", "",
		testutil.Entry("Monday", "09:00-09:50", "History"),
	)
	defer f.env.SetNow(testutil.At(t, "2024-06-03 12:00"))()

	_, err := f.env.Attendance.HeadDailySchedule(ctx, f.member, monday)
	assert.Equal(t, core.ErrForbidden, errors.Cause(err))

	for i := 0; i < 3; i++ { // polling
		classes, err := f.env.Attendance.HeadDailySchedule(ctx, f.head, monday)
		require.NoError(t, err)
		assert.Equal(t, []string{"Maths", "History", "Physics", "Club"}, subjects(classes))
		for _, c := range classes {
			if c.Subject == "Club" {
				assert.Equal(t, routine.StatusPending, c.Status)
				continue
			}
			assert.Equal(t, routine.StatusMissed, c.Status, c.Subject)
			assert.Equal(t, attendance.SystemActor, c.MarkedBy)
		}
	}

	events, err := f.env.EventRepo.QueryEvents(ctx, f.member.ID, monday, monday)
	require.NoError(t, err)
	assert.Len(t, events, 2)
	for _, ev := range events {
		assert.True(t, ev.Auto)
		assert.Equal(t, routine.StatusMissed, ev.Status)
	}
}

func TestHeadDailySchedule_storedPendingPastGrace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	monday := testutil.Date(t, "2024-06-03")
	defer f.env.SetNow(testutil.At(t, "2024-06-03 12:00"))()

	marked, err := f.env.Attendance.Mark(ctx, f.head, f.mark("Physics", "pending", "2024-06-03"))
	require.NoError(t, err)

	statusOf := func(classes []attendance.ClassInstance, subject string) routine.Status {
		for _, c := range classes {
			if c.Subject == subject {
				return c.Status
			}
		}
		return ""
	}

	classes, err := f.env.Attendance.DailySchedule(ctx, f.member.ID, monday, attendance.FacultyView)
	require.NoError(t, err)
	assert.Equal(t, routine.StatusMissed, statusOf(classes, "Physics"))

	for i := 0; i < 2; i++ {
		classes, err = f.env.Attendance.HeadDailySchedule(ctx, f.head, monday)
		require.NoError(t, err)
		assert.Equal(t, routine.StatusMissed, statusOf(classes, "Physics"))
	}

	stats, err := f.env.Attendance.RangeStatistics(ctx, f.member.ID, "2024-06-03", "2024-06-03")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.MissedClasses)
	assert.Equal(t, 1, stats.PendingClasses)

	stored, err := f.env.EventRepo.GetEvent(ctx, f.entry("Physics").ID, monday)
	require.NoError(t, err)
	assert.Equal(t, marked.ID, stored.ID)
	assert.Equal(t, routine.StatusMissed, stored.Status)
	assert.Equal(t, attendance.SystemActor, stored.MarkedBy)
	assert.True(t, stored.Auto)
}

func TestMark(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	defer f.env.SetNow(testutil.At(t, "2024-06-03 10:55"))()

	tests := []struct {
		name    string
		actor   func(f fixture) faculty.Faculty
		req     attendance.MarkRequest
		wantErr func(err error) bool
	}{
		{
			name:  "own class taken",
			actor: func(f fixture) faculty.Faculty { return f.member },
			req:   f.mark("Physics", "taken", "2024-06-03"),
		},
		{
			name:    "grace period over",
			actor:   func(f fixture) faculty.Faculty { return f.member },
			req:     f.mark("Maths", "taken", "2024-06-03"),
			wantErr: isValidation,
		},
		{
			name:    "someone else's class",
			actor:   func(f fixture) faculty.Faculty { return f.other },
			req:     f.mark("Physics", "taken", "2024-06-03"),
			wantErr: func(err error) bool { return errors.Cause(err) == core.ErrForbidden },
		},
		{
			name:    "member cannot mark handover",
			actor:   func(f fixture) faculty.Faculty { return f.member },
			req:     f.mark("Physics", "handover", "2024-06-03"),
			wantErr: isValidation,
		},
		{
			name:    "wrong weekday",
			actor:   func(f fixture) faculty.Faculty { return f.member },
			req:     f.mark("Physics", "taken", "2024-06-04"),
			wantErr: isValidation,
		},
		{
			name:    "unknown status",
			actor:   func(f fixture) faculty.Faculty { return f.head },
			req:     f.mark("Physics", "late", "2024-06-03"),
			wantErr: isValidation,
		},
		{
			name:    "unknown entry",
			actor:   func(f fixture) faculty.Faculty { return f.head },
			req:     attendance.MarkRequest{EntryID: "nope", RoutineID: f.rtn.ID, Status: "taken", Date: "2024-06-03"},
			wantErr: func(err error) bool { return errors.Cause(err) == routine.ErrEntryNotFound },
		},
		{
			name:    "unknown routine",
			actor:   func(f fixture) faculty.Faculty { return f.head },
			req:     attendance.MarkRequest{EntryID: "nope", RoutineID: "nope", Status: "taken", Date: "2024-06-03"},
			wantErr: func(err error) bool { return errors.Cause(err) == routine.ErrNotFound },
		},
		{
			name:  "head overrides after the grace period",
			actor: func(f fixture) faculty.Faculty { return f.head },
			req:   f.mark("Maths", "pending", "2024-06-03"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actor := tt.actor(f)
			ev, err := f.env.Attendance.Mark(ctx, actor, tt.req)
			if tt.wantErr != nil {
				assert.Truef(t, tt.wantErr(err), "unexpected error: %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.req.Status, ev.Status)
			assert.Equal(t, actor.ID, ev.MarkedBy)
			assert.NotEmpty(t, ev.ID)
		})
	}
}

func isValidation(err error) bool {
	_, ok := errors.Cause(err).(*core.ValidationError)
	return ok
}

func TestMark_headWithAbsentees(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	defer f.env.SetNow(testutil.At(t, "2024-06-10 10:00"))()

	mr := f.mark("Physics", "taken", "2024-06-03")
	mr.AbsentStudents = []string{"S-01", "S-07"}
	first, err := f.env.Attendance.Mark(ctx, f.head, mr)
	require.NoError(t, err)

	absences := f.env.DB.Absences()
	require.Len(t, absences, 1)
	assert.Equal(t, []string{"S-01", "S-07"}, absences[0].Students)
	assert.Equal(t, "Physics", absences[0].Subject)

	notifs, err := f.env.Notifications.Query(ctx, f.member.ID, true)
	require.NoError(t, err)
	require.Len(t, notifs, 1)
	assert.Equal(t, first.ID, notifs[0].RefID)

	// marking again replaces the event
	second, err := f.env.Attendance.Mark(ctx, f.head, f.mark("Physics", "missed", "2024-06-03"))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	classes, err := f.env.Attendance.DailySchedule(ctx, f.member.ID, testutil.Date(t, "2024-06-03"), attendance.FacultyView)
	require.NoError(t, err)
	for _, c := range classes {
		if c.Subject == "Physics" {
			assert.Equal(t, routine.StatusMissed, c.Status)
			assert.Equal(t, f.head.ID, c.MarkedBy)
		}
	}
}

func TestMark_notifiesOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	own := testutil.CreateRoutine(t, f.env.Routines, f.head, "2024-01-01", "",
		testutil.Entry("Wednesday", "10:00-10:50", "Ethics"),
	)
	defer f.env.SetNow(testutil.At(t, "2024-06-05 10:30"))()

	tests := []struct {
		name  string
		actor faculty.Faculty
		owner faculty.Faculty
		req   attendance.MarkRequest
		want  int
	}{
		{
			name:  "member marks own class",
			actor: f.member,
			owner: f.member,
			req:   f.mark("Physics", "taken", "2024-06-10"),
			want:  0,
		},
		{
			name:  "head marks a member's class",
			actor: f.head,
			owner: f.member,
			req:   f.mark("Maths", "missed", "2024-06-03"),
			want:  1,
		},
		{
			name:  "head marks own class",
			actor: f.head,
			owner: f.head,
			req: attendance.MarkRequest{
				EntryID:   own.Entries[0].ID,
				RoutineID: own.ID,
				Status:    routine.StatusTaken,
				Date:      "2024-06-05",
			},
			want: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before, err := f.env.Notifications.Query(ctx, tt.owner.ID, false)
			require.NoError(t, err)

			ev, err := f.env.Attendance.Mark(ctx, tt.actor, tt.req)
			require.NoError(t, err)

			after, err := f.env.Notifications.Query(ctx, tt.owner.ID, false)
			require.NoError(t, err)
			require.Len(t, after, len(before)+tt.want)
			if tt.want == 0 {
				return
			}
			var found bool
			for _, n := range after {
				if n.RefID == ev.ID {
					found = true
					assert.Equal(t, notification.TypeAttendance, n.Type)
					assert.Contains(t, n.Description, f.head.Name+" marked your")
				}
			}
			assert.True(t, found)
		})
	}
}

func TestRangeStatistics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	defer f.env.SetNow(testutil.At(t, "2024-06-03 10:30"))()

	_, err := f.env.Attendance.Mark(ctx, f.member, f.mark("Physics", "taken", "2024-06-03"))
	require.NoError(t, err)

	t.Run("one day matches the daily schedule", func(t *testing.T) {
		stats, err := f.env.Attendance.RangeStatistics(ctx, f.member.ID, "2024-06-03", "2024-06-03")
		require.NoError(t, err)
		classes, err := f.env.Attendance.DailySchedule(ctx, f.member.ID, testutil.Date(t, "2024-06-03"), attendance.FacultyView)
		require.NoError(t, err)

		assert.Equal(t, len(classes), stats.TotalClasses)
		assert.Equal(t, 1, stats.TakenClasses)
		assert.Equal(t, 1, stats.MissedClasses) // Maths, past its grace period
		assert.Equal(t, 1, stats.PendingClasses)
		assert.Equal(t, 33, stats.AttendancePercentage)
		assert.Len(t, stats.PerClassBreakdown, 3)
	})

	t.Run("two weeks", func(t *testing.T) {
		stats, err := f.env.Attendance.RangeStatistics(ctx, f.member.ID, "2024-06-03", "2024-06-16")
		require.NoError(t, err)
		// 2 mondays x 3 classes + 2 tuesdays x 1 class
		assert.Equal(t, 8, stats.TotalClasses)
		assert.Equal(t, 1, stats.TakenClasses)
		assert.Equal(t, 1, stats.MissedClasses)
		assert.Equal(t, 6, stats.PendingClasses)
		assert.Equal(t, 13, stats.AttendancePercentage)
		assert.Len(t, stats.PerClassBreakdown, 4)
		for _, cs := range stats.PerClassBreakdown {
			assert.Equal(t, 2, cs.TotalClasses, cs.Subject)
			if cs.Subject == "Physics" {
				assert.Equal(t, 50, cs.AttendancePercentage)
			}
		}
	})

	t.Run("across a new revision", func(t *testing.T) {
		f := newFixture(t)
		defer f.env.SetNow(testutil.At(t, "2024-06-03 10:30"))()
		_, err := f.env.Attendance.Mark(ctx, f.member, f.mark("Physics", "taken", "2024-06-03"))
		require.NoError(t, err)
		next := testutil.CreateRoutine(t, f.env.Routines, f.member, "2024-06-10", "",
			testutil.Entry("Monday", "14:00-14:50", "Biology"),
		)

		stats, err := f.env.Attendance.RangeStatistics(ctx, f.member.ID, "2024-06-03", "2024-06-16")
		require.NoError(t, err)
		// first week from the old routine, second week from the new one
		assert.Equal(t, 5, stats.TotalClasses)
		assert.Equal(t, 1, stats.TakenClasses)
		assert.Equal(t, 1, stats.MissedClasses)
		assert.Equal(t, 3, stats.PendingClasses)
		assert.Equal(t, 20, stats.AttendancePercentage)
		require.Len(t, stats.PerClassBreakdown, 5)
		for _, cs := range stats.PerClassBreakdown {
			assert.Equal(t, 1, cs.TotalClasses, cs.Subject)
			if cs.Subject == "Biology" {
				assert.Equal(t, next.ID, cs.RoutineID)
			} else {
				assert.Equal(t, f.rtn.ID, cs.RoutineID, cs.Subject)
			}
		}
	})

	t.Run("invalid ranges", func(t *testing.T) {
		for _, r := range [][2]string{
			{"", "2024-06-03"},
			{"2024-06-03", "junk"},
			{"2024-06-10", "2024-06-03"},
			{"2023-01-01", "2024-06-03"},
		} {
			_, err := f.env.Attendance.RangeStatistics(ctx, f.member.ID, r[0], r[1])
			assert.Truef(t, isValidation(err), "%v: %v", r, err)
		}
	})
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		taken, total, want int
	}{
		{0, 0, 0},
		{0, 3, 0},
		{1, 3, 33},
		{2, 3, 67},
		{1, 8, 13},
		{1, 2, 50},
		{1, 200, 1},
		{3, 3, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, attendance.Percentage(tt.taken, tt.total), "%d/%d", tt.taken, tt.total)
	}
}
