package attendance

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/faculty"
	"github.com/trezcool/ratiba/core/notification"
	"github.com/trezcool/ratiba/core/routine"
)

var (
	// errors
	ErrEventNotFound = core.NewNotFoundError("attendance event")
	errWindowClosed  = "attendance window closed"
)

// View selects whether resolving a schedule may persist grace transitions.
type View int

const (
	FacultyView View = iota // read-only
	HeadView                // persists auto-missed events
)

type (
	Repository interface {
		GetEvent(ctx context.Context, entryID string, date time.Time) (Event, error)
		// QueryEvents returns the faculty member's events dated within [start, end].
		QueryEvents(ctx context.Context, facultyID string, start, end time.Time) ([]Event, error)
		// UpsertEvent creates or replaces the event keyed by (e.EntryID, e.Date).
		UpsertEvent(ctx context.Context, e Event) (Event, error)
		// InsertEventIfAbsent creates e unless its key exists and returns the stored event
		// and whether it was created.
		InsertEventIfAbsent(ctx context.Context, e Event) (Event, bool, error)
		CreateAbsence(ctx context.Context, a Absence) (Absence, error)
	}

	FacultyFinder interface {
		GetByID(ctx context.Context, id string) (faculty.Faculty, error)
		Active(ctx context.Context) ([]faculty.Faculty, error)
	}

	Options struct {
		Location     *time.Location // zone class times are expressed in
		GracePeriod  time.Duration
		MaxStatsDays int
		Now          func() time.Time // clock; time.Now when nil
	}

	Service struct {
		repo     Repository
		routines *routine.Service
		faculty  FacultyFinder
		notifier notification.Notifier
		logger   core.Logger
		opts     Options
	}
)

func NewService(
	repo Repository,
	routines *routine.Service,
	facultySvc FacultyFinder,
	notifier notification.Notifier,
	logger core.Logger,
	opts Options,
) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = 30 * time.Minute
	}
	if opts.MaxStatsDays <= 0 {
		opts.MaxStatsDays = 366
	}
	return &Service{
		repo:     repo,
		routines: routines,
		faculty:  facultySvc,
		notifier: notifier,
		logger:   logger,
		opts:     opts,
	}
}

func (svc *Service) now() time.Time {
	if svc.opts.Now != nil {
		return svc.opts.Now()
	}
	return time.Now()
}

type eventKey struct {
	entryID string
	date    string
}

func keyOf(entryID string, day time.Time) eventKey {
	return eventKey{entryID: routine.NormalizeID(entryID), date: routine.FormatDate(day)}
}

func (svc *Service) eventsByKey(ctx context.Context, facultyID string, start, end time.Time) (map[eventKey]Event, error) {
	events, err := svc.repo.QueryEvents(ctx, facultyID, start, end)
	if err != nil {
		return nil, errors.Wrap(err, "querying attendance events")
	}
	byKey := make(map[eventKey]Event, len(events))
	for _, e := range events {
		byKey[keyOf(e.EntryID, e.Date)] = e
	}
	return byKey, nil
}

// graceEnd is day@end of the slot plus the grace period, in the configured zone.
func (svc *Service) graceEnd(day time.Time, slot string) (time.Time, bool) {
	_, end := routine.SplitSlot(slot)
	hour, min, ok := routine.ParseClock(end)
	if !ok {
		return time.Time{}, false
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, min, 0, 0, svc.opts.Location).Add(svc.opts.GracePeriod), true
}

// resolve returns the status of entry on day and whether it results from the grace transition.
func (svc *Service) resolve(e routine.Entry, day time.Time, ev *Event, now time.Time) (routine.Status, bool) {
	status := routine.StatusPending
	switch {
	case ev != nil:
		status = ev.Status
	case e.IsHandedOverOn(day):
		status = routine.StatusHandover
	}
	if status != routine.StatusPending {
		return status, false
	}
	if end, ok := svc.graceEnd(day, e.TimeSlot); ok && now.After(end) {
		return routine.StatusMissed, true
	}
	return status, false
}

func newInstance(rtn routine.Routine, e routine.Entry, day time.Time) ClassInstance {
	start, end := routine.SplitSlot(e.TimeSlot)
	inst := ClassInstance{
		EntryID:     e.ID,
		RoutineID:   rtn.ID,
		FacultyID:   rtn.FacultyID,
		FacultyName: rtn.FacultyName,
		Date:        routine.FormatDate(day),
		Day:         e.Day,
		TimeSlot:    e.TimeSlot,
		StartTime:   start,
		EndTime:     end,
		Subject:     e.Subject,
		Course:      e.Course,
		Room:        e.Room,
		Handover:    e.Handover,
	}
	if e.Handover {
		inst.OriginalFacultyName = e.OriginalFacultyName
	}
	if e.IsHandedOverOn(day) {
		inst.SubstituteName = e.SubstituteName
	}
	return inst
}

// DailySchedule resolves the faculty member's classes on day. The head view persists grace transitions.
func (svc *Service) DailySchedule(ctx context.Context, facultyID string, day time.Time, view View) ([]ClassInstance, error) {
	day = routine.CalendarDay(day)
	rtn, ok, err := svc.routines.ActiveOn(ctx, facultyID, day)
	if err != nil {
		return nil, errors.Wrap(err, "loading routine")
	}
	instances := make([]ClassInstance, 0)
	if !ok {
		return instances, nil
	}

	events, err := svc.eventsByKey(ctx, facultyID, day, day)
	if err != nil {
		return nil, err
	}
	now := svc.now()
	for _, e := range rtn.EntriesOn(day.Weekday()) {
		inst := newInstance(rtn, e, day)
		var evPtr *Event
		if ev, found := events[keyOf(e.ID, day)]; found {
			evPtr = &ev
			inst.MarkedBy = ev.MarkedBy
		}
		status, auto := svc.resolve(e, day, evPtr, now)
		inst.Status = status

		if auto && view == HeadView {
			stored, err := svc.persistMissed(ctx, rtn, e, day, evPtr, now)
			if err != nil {
				svc.logger.Warn("persisting missed class", err, map[string]interface{}{
					"entry_id": e.ID,
					"date":     inst.Date,
				})
			} else if stored.Status != routine.StatusPending {
				inst.Status = stored.Status
				inst.MarkedBy = stored.MarkedBy
			}
		}
		instances = append(instances, inst)
	}

	sortInstances(instances)
	return instances, nil
}

// persistMissed stores the missed outcome of an entry whose grace period has passed. A stored
// pending event is overwritten; any other stored event is left as is.
func (svc *Service) persistMissed(ctx context.Context, rtn routine.Routine, e routine.Entry, day time.Time, ev *Event, now time.Time) (Event, error) {
	missed := Event{
		EntryID:   e.ID,
		RoutineID: rtn.ID,
		FacultyID: rtn.FacultyID,
		Date:      day,
		Status:    routine.StatusMissed,
		MarkedBy:  SystemActor,
		Auto:      true,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
	if ev != nil {
		missed.CreatedAt = ev.CreatedAt
		return svc.repo.UpsertEvent(ctx, missed)
	}
	stored, _, err := svc.repo.InsertEventIfAbsent(ctx, missed)
	return stored, err
}

// HeadDailySchedule resolves the classes of every active faculty member on day.
func (svc *Service) HeadDailySchedule(ctx context.Context, head faculty.Faculty, day time.Time) ([]ClassInstance, error) {
	if !head.IsHead() {
		return nil, core.ErrForbidden
	}
	members, err := svc.faculty.Active(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing active faculty")
	}

	all := make([]ClassInstance, 0)
	for _, m := range members {
		instances, err := svc.DailySchedule(ctx, m.ID, day, HeadView)
		if err != nil {
			return nil, errors.Wrapf(err, "resolving schedule of %s", m.ID)
		}
		for i := range instances {
			instances[i].FacultyID = m.ID
			instances[i].FacultyName = m.Name
		}
		all = append(all, instances...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		if ki, kj := startMinutes(all[i]), startMinutes(all[j]); ki != kj {
			return ki < kj
		}
		return all[i].FacultyName < all[j].FacultyName
	})
	return all, nil
}

// startMinutes sorts unparseable slots last.
func startMinutes(inst ClassInstance) int {
	if h, m, ok := routine.ParseClock(inst.StartTime); ok {
		return h*60 + m
	}
	return 24 * 60
}

func sortInstances(instances []ClassInstance) {
	sort.SliceStable(instances, func(i, j int) bool {
		if ki, kj := startMinutes(instances[i]), startMinutes(instances[j]); ki != kj {
			return ki < kj
		}
		return strings.ToLower(instances[i].Subject) < strings.ToLower(instances[j].Subject)
	})
}

// Mark records the outcome of a class on a date. Members other than heads may only mark their own
// classes as taken or missed, before the grace period of the class has ended.
func (svc *Service) Mark(ctx context.Context, actor faculty.Faculty, mr MarkRequest) (Event, error) {
	day, err := routine.ParseDateField("date", mr.Date)
	if err != nil {
		return Event{}, err
	}
	if !mr.Status.IsValid() {
		return Event{}, core.NewFieldError("status", "must be one of: pending, taken, missed, handover")
	}

	rtn, err := svc.routines.GetByID(ctx, mr.RoutineID)
	if err != nil {
		return Event{}, errors.Wrap(err, "finding routine")
	}
	if mr.FacultyID != "" && mr.FacultyID != rtn.FacultyID {
		return Event{}, routine.ErrEntryNotFound
	}
	i, ok := rtn.FindEntry(mr.EntryID)
	if !ok {
		return Event{}, routine.ErrEntryNotFound
	}
	entry := rtn.Entries[i]

	isHead := actor.IsHead()
	if !isHead && rtn.FacultyID != actor.ID {
		return Event{}, core.ErrForbidden
	}
	if !rtn.Covers(day) || !routine.DayMatches(entry.Day, day.Weekday()) {
		return Event{}, core.NewFieldError("date", "class is not scheduled on this date")
	}
	if !isHead {
		if mr.Status != routine.StatusTaken && mr.Status != routine.StatusMissed {
			return Event{}, core.NewFieldError("status", "must be one of: taken, missed")
		}
		if end, ok := svc.graceEnd(day, entry.TimeSlot); ok && svc.now().After(end) {
			return Event{}, core.NewFieldError("date", errWindowClosed)
		}
	}

	now := svc.now().UTC()
	ev, err := svc.repo.UpsertEvent(ctx, Event{
		EntryID:        entry.ID,
		RoutineID:      rtn.ID,
		FacultyID:      rtn.FacultyID,
		Date:           day,
		Status:         mr.Status,
		MarkedBy:       actor.ID,
		AbsentStudents: mr.AbsentStudents,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return Event{}, errors.Wrap(err, "saving attendance event")
	}

	if isHead && mr.Status == routine.StatusTaken && len(mr.AbsentStudents) > 0 {
		if _, err = svc.repo.CreateAbsence(ctx, Absence{
			Date:       day,
			EntryID:    entry.ID,
			RoutineID:  rtn.ID,
			FacultyID:  rtn.FacultyID,
			Subject:    entry.Subject,
			Students:   mr.AbsentStudents,
			RecordedBy: actor.ID,
			CreatedAt:  now,
		}); err != nil {
			return Event{}, errors.Wrap(err, "recording absence")
		}
	}

	if isHead {
		svc.notifyMarked(ctx, rtn, entry, ev, actor)
	}
	return ev, nil
}

func (svc *Service) notifyMarked(ctx context.Context, rtn routine.Routine, entry routine.Entry, ev Event, head faculty.Faculty) {
	if svc.notifier == nil {
		return
	}
	to := notification.Recipient{ID: rtn.FacultyID, Name: rtn.FacultyName}
	if fac, err := svc.faculty.GetByID(ctx, rtn.FacultyID); err == nil {
		to.Name = fac.Name
		to.Email = fac.Email
	}
	msg := fmt.Sprintf("%s marked your %s class of %s at %s as %s.",
		head.Name, entry.Subject, routine.FormatDate(ev.Date), entry.TimeSlot, ev.Status)
	if _, err := svc.notifier.Notify(ctx, to, notification.TypeAttendance, ev.ID, msg); err != nil {
		svc.logger.Warn("sending attendance notification", err, map[string]interface{}{"event_id": ev.ID})
	}
}

// RecordHandover stores the handover outcome of an entry on day.
func (svc *Service) RecordHandover(ctx context.Context, rtn routine.Routine, entryID string, day time.Time, markedBy string) error {
	now := svc.now().UTC()
	_, err := svc.repo.UpsertEvent(ctx, Event{
		EntryID:   entryID,
		RoutineID: rtn.ID,
		FacultyID: rtn.FacultyID,
		Date:      routine.CalendarDay(day),
		Status:    routine.StatusHandover,
		MarkedBy:  markedBy,
		CreatedAt: now,
		UpdatedAt: now,
	})
	return err
}

// RangeStatistics counts the resolved statuses of every class of facultyID between startDate and
// endDate (YYYY-MM-DD, inclusive). It never writes.
func (svc *Service) RangeStatistics(ctx context.Context, facultyID, startDate, endDate string) (Statistics, error) {
	facultyID = core.CleanString(facultyID)
	if facultyID == "" {
		return Statistics{}, core.NewFieldError("faculty_id", "this field is required")
	}
	start, err := routine.ParseDateField("start_date", startDate)
	if err != nil {
		return Statistics{}, err
	}
	end, err := routine.ParseDateField("end_date", endDate)
	if err != nil {
		return Statistics{}, err
	}
	if end.Before(start) {
		return Statistics{}, core.NewFieldError("end_date", "must not be before start_date")
	}
	if days := int(end.Sub(start).Hours()/24) + 1; days > svc.opts.MaxStatsDays {
		return Statistics{}, core.NewFieldError("end_date", fmt.Sprintf("range must not exceed %d days", svc.opts.MaxStatsDays))
	}

	routines, err := svc.routines.InRange(ctx, facultyID, start, end)
	if err != nil {
		return Statistics{}, errors.Wrap(err, "loading routines")
	}
	events, err := svc.eventsByKey(ctx, facultyID, start, end)
	if err != nil {
		return Statistics{}, err
	}

	var total counters
	var order []eventKey
	perKey := make(map[eventKey]*ClassStatistics)
	perCnt := make(map[eventKey]*counters)
	now := svc.now()
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		rtn, ok := routine.ActiveOn(routines, day)
		if !ok {
			continue
		}
		for _, e := range rtn.EntriesOn(day.Weekday()) {
			var evPtr *Event
			if ev, found := events[keyOf(e.ID, day)]; found {
				evPtr = &ev
			}
			status, _ := svc.resolve(e, day, evPtr, now)
			total.add(status)

			k := eventKey{entryID: routine.NormalizeID(e.ID)}
			if _, seen := perKey[k]; !seen {
				order = append(order, k)
				perKey[k] = &ClassStatistics{
					EntryID:   e.ID,
					RoutineID: rtn.ID,
					Subject:   e.Subject,
					Course:    e.Course,
					Day:       e.Day,
					TimeSlot:  e.TimeSlot,
				}
				perCnt[k] = &counters{}
			}
			perCnt[k].add(status)
		}
	}

	stats := Statistics{
		FacultyID:            facultyID,
		StartDate:            routine.FormatDate(start),
		EndDate:              routine.FormatDate(end),
		TotalClasses:         total.total,
		TakenClasses:         total.taken,
		MissedClasses:        total.missed,
		HandoverClasses:      total.handover,
		PendingClasses:       total.pending,
		AttendancePercentage: Percentage(total.taken, total.total),
		PerClassBreakdown:    make([]ClassStatistics, 0, len(order)),
	}
	for _, k := range order {
		cs, c := perKey[k], perCnt[k]
		cs.TotalClasses = c.total
		cs.TakenClasses = c.taken
		cs.MissedClasses = c.missed
		cs.HandoverClasses = c.handover
		cs.PendingClasses = c.pending
		cs.AttendancePercentage = Percentage(c.taken, c.total)
		stats.PerClassBreakdown = append(stats.PerClassBreakdown, *cs)
	}
	return stats, nil
}
