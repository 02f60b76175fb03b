package handover

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/faculty"
	"github.com/trezcool/ratiba/core/notification"
	"github.com/trezcool/ratiba/core/routine"
)

var (
	// errors
	ErrNotFound       = core.NewNotFoundError("handover")
	ErrAlreadyDecided = core.NewConflictError("already_decided", "handover request already decided", nil)

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateHandover(ctx context.Context, r Request) (Request, error)
		GetHandoverByID(ctx context.Context, id string) (Request, error)
		// QueryHandovers returns the matching requests, most recent class date first.
		QueryHandovers(ctx context.Context, filter QueryFilter) ([]Request, error)
		UpdateHandover(ctx context.Context, r Request) (Request, error)
	}

	FacultyFinder interface {
		GetByID(ctx context.Context, id string) (faculty.Faculty, error)
		Active(ctx context.Context) ([]faculty.Faculty, error)
	}

	// InstanceRecorder materializes the per-date outcome of a routine entry.
	InstanceRecorder interface {
		RecordHandover(ctx context.Context, rtn routine.Routine, entryID string, day time.Time, markedBy string) error
	}

	Deps struct {
		Repo      Repository
		Checker   *ConflictChecker
		Routines  *routine.Service
		Faculty   FacultyFinder
		Instances InstanceRecorder
		Notifier  notification.Notifier
		Tx        core.Transactor
		Logger    core.Logger
	}

	Service struct {
		repo      Repository
		checker   *ConflictChecker
		routines  *routine.Service
		faculty   FacultyFinder
		instances InstanceRecorder
		notifier  notification.Notifier
		tx        core.Transactor
		logger    core.Logger
	}
)

func NewService(deps Deps) *Service {
	tx := deps.Tx
	if tx == nil {
		tx = core.NewNoopTransactor()
	}
	return &Service{
		repo:      deps.Repo,
		checker:   deps.Checker,
		routines:  deps.Routines,
		faculty:   deps.Faculty,
		instances: deps.Instances,
		notifier:  deps.Notifier,
		tx:        tx,
		logger:    deps.Logger,
	}
}

// CheckAvailability exposes the conflict check.
func (svc *Service) CheckAvailability(ctx context.Context, substituteID, dateOfClass, timeSlot string) (Availability, error) {
	return svc.checker.CheckAvailability(ctx, substituteID, dateOfClass, timeSlot)
}

// SuggestSubstitutes lists the active members, other than the requester, who teach subject
// (anyone when empty) and are free on dateOfClass at timeSlot.
func (svc *Service) SuggestSubstitutes(ctx context.Context, requesterID, dateOfClass, timeSlot, subject string) ([]faculty.Faculty, error) {
	day, err := routine.ParseDateField("date", dateOfClass)
	if err != nil {
		return nil, err
	}
	timeSlot = core.CleanString(timeSlot)
	if timeSlot == "" {
		return nil, core.NewFieldError("time_slot", "this field is required")
	}

	members, err := svc.faculty.Active(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing active faculty")
	}
	suggestions := make([]faculty.Faculty, 0)
	for _, m := range members {
		if m.ID == requesterID || !m.CanTeach(subject) {
			continue
		}
		avail, err := svc.checker.check(ctx, m.ID, day, timeSlot, "")
		if err != nil {
			return nil, errors.Wrapf(err, "checking availability of %s", m.ID)
		}
		if avail.Available {
			suggestions = append(suggestions, m)
		}
	}
	return suggestions, nil
}

// Create files a pending request to hand one of the requester's classes to a substitute.
func (svc *Service) Create(ctx context.Context, requester faculty.Faculty, nr NewRequest) (Request, error) {
	day, err := routine.ParseDateField("date_of_class", nr.DateOfClass)
	if err != nil {
		return Request{}, err
	}
	if nr.SubstituteID == requester.ID {
		return Request{}, core.NewFieldError("substitute_id", "must be someone else")
	}
	sub, err := svc.faculty.GetByID(ctx, nr.SubstituteID)
	if err != nil {
		if errors.Cause(err) == faculty.ErrNotFound {
			return Request{}, core.NewFieldError("substitute_id", "faculty member not found")
		}
		return Request{}, errors.Wrap(err, "finding substitute")
	}
	if !sub.IsActive {
		return Request{}, core.NewFieldError("substitute_id", "faculty member is not active")
	}

	rtn, err := svc.routines.GetByID(ctx, nr.RoutineID)
	if err != nil {
		return Request{}, errors.Wrap(err, "finding routine")
	}
	if rtn.FacultyID != requester.ID {
		return Request{}, routine.ErrNotFound
	}
	idx, ok := rtn.FindEntry(nr.ClassID)
	if !ok {
		return Request{}, routine.ErrEntryNotFound
	}
	entry := rtn.Entries[idx]
	if !routine.DayMatches(entry.Day, day.Weekday()) {
		return Request{}, core.NewFieldError("date_of_class", fmt.Sprintf("class is held on %s", entry.Day))
	}
	if !rtn.Covers(day) {
		return Request{}, core.NewFieldError("date_of_class", "routine is not effective on this date")
	}

	req := Request{
		FacultyID:      requester.ID,
		FacultyName:    requester.Name,
		SubstituteID:   sub.ID,
		SubstituteName: sub.Name,
		RoutineID:      rtn.ID,
		ClassID:        entry.ID,
		DateOfClass:    day,
		TimeSlot:       firstNonEmpty(nr.TimeSlot, entry.TimeSlot),
		Subject:        firstNonEmpty(nr.Subject, entry.Subject),
		Course:         firstNonEmpty(nr.Course, entry.Course),
		RoomNo:         firstNonEmpty(nr.RoomNo, entry.Room),
		Reason:         nr.Reason,
		Status:         StatusPending,
	}

	existing, err := svc.repo.QueryHandovers(ctx, QueryFilter{FacultyID: requester.ID, Date: day})
	if err != nil {
		return Request{}, errors.Wrap(err, "querying existing handovers")
	}
	for _, r := range existing {
		if r.Status != StatusRejected && routine.SameID(r.ClassID, req.ClassID) {
			return Request{}, core.NewConflictError("duplicate_request", "this class is already handed over for this date", r)
		}
	}

	avail, err := svc.checker.check(ctx, sub.ID, day, req.TimeSlot, "")
	if err != nil {
		return Request{}, errors.Wrap(err, "checking substitute availability")
	}
	if !avail.Available {
		return Request{}, core.NewConflictError(avail.Conflict.Type, avail.Conflict.Message, avail.Conflict)
	}

	now := nowFunc().UTC()
	req.CreatedAt = now
	req.UpdatedAt = now
	req, err = svc.repo.CreateHandover(ctx, req)
	if err != nil {
		return Request{}, errors.Wrap(err, "creating handover")
	}

	svc.notify(ctx, sub.ID, req.ID, fmt.Sprintf(
		"%s asked you to take %s (%s) on %s at %s.",
		req.FacultyName, req.Subject, req.Course, routine.FormatDate(day), req.TimeSlot,
	))
	return req, nil
}

func (svc *Service) Get(ctx context.Context, actor faculty.Faculty, id string) (Request, error) {
	req, err := svc.repo.GetHandoverByID(ctx, routine.NormalizeID(id))
	if err != nil {
		return Request{}, err
	}
	if !actor.IsHead() && !req.IsParty(actor.ID) {
		return Request{}, ErrNotFound
	}
	return req, nil
}

// Query lists requests; members other than heads only see the ones they are party to.
func (svc *Service) Query(ctx context.Context, actor faculty.Faculty, filter QueryFilter) ([]Request, error) {
	if !actor.IsHead() {
		filter.Party = actor.ID
	}
	return svc.repo.QueryHandovers(ctx, filter)
}

// Decide approves or rejects a request.
func (svc *Service) Decide(ctx context.Context, id string, head faculty.Faculty, d Decision) (Request, error) {
	switch d.Status {
	case StatusApproved:
		return svc.Approve(ctx, id, head)
	case StatusRejected:
		return svc.Reject(ctx, id, head, d.Remarks)
	default:
		return Request{}, core.NewFieldError("status", "must be one of: Approved, Rejected")
	}
}

// Approve approves a pending request and propagates it to both schedules.
// Approving an approved request resumes an incomplete propagation and is otherwise a no-op.
// Failures after the approval is stored are logged and left to Reconcile.
func (svc *Service) Approve(ctx context.Context, id string, head faculty.Faculty) (Request, error) {
	if !head.IsHead() {
		return Request{}, core.ErrForbidden
	}
	req, err := svc.repo.GetHandoverByID(ctx, routine.NormalizeID(id))
	if err != nil {
		return Request{}, err
	}

	switch req.Status {
	case StatusRejected:
		return req, ErrAlreadyDecided
	case StatusApproved:
		if !req.IsOrphaned() {
			return req, nil
		}
		return svc.completeApproval(ctx, req)
	}

	avail, err := svc.checker.check(ctx, req.SubstituteID, req.DateOfClass, req.TimeSlot, req.ID)
	if err != nil {
		return Request{}, errors.Wrap(err, "checking substitute availability")
	}
	if !avail.Available {
		return req, core.NewConflictError(avail.Conflict.Type, avail.Conflict.Message, avail.Conflict)
	}

	now := nowFunc().UTC()
	req.Status = StatusApproved
	req.DecidedBy = head.ID
	req.DecidedByName = head.Name
	req.DecidedAt = &now
	req.UpdatedAt = now
	if req, err = svc.repo.UpdateHandover(ctx, req); err != nil {
		return Request{}, errors.Wrap(err, "approving handover")
	}
	return svc.completeApproval(ctx, req)
}

// completeApproval propagates req and notifies both parties. It never fails the approval.
func (svc *Service) completeApproval(ctx context.Context, req Request) (Request, error) {
	propagated, err := svc.propagate(ctx, req)
	if err != nil {
		svc.logger.Warn("handover approved but not propagated", errors.Wrap(err, "propagating handover"), map[string]interface{}{
			"handover_id":   req.ID,
			"substitute_id": req.SubstituteID,
			"date_of_class": routine.FormatDate(req.DateOfClass),
		})
		return req, nil
	}

	day := routine.FormatDate(propagated.DateOfClass)
	svc.notify(ctx, propagated.SubstituteID, propagated.ID, fmt.Sprintf(
		"You are assigned %s (%s) for %s on %s at %s.",
		propagated.Subject, propagated.Course, propagated.FacultyName, day, propagated.TimeSlot,
	))
	svc.notify(ctx, propagated.FacultyID, propagated.ID, fmt.Sprintf(
		"Your handover of %s on %s to %s was approved.",
		propagated.Subject, day, propagated.SubstituteName,
	))
	return propagated, nil
}

// Reject rejects a pending request. Rejecting a rejected request is a no-op.
func (svc *Service) Reject(ctx context.Context, id string, head faculty.Faculty, remarks string) (Request, error) {
	if !head.IsHead() {
		return Request{}, core.ErrForbidden
	}
	req, err := svc.repo.GetHandoverByID(ctx, routine.NormalizeID(id))
	if err != nil {
		return Request{}, err
	}

	switch req.Status {
	case StatusRejected:
		return req, nil
	case StatusApproved:
		return req, ErrAlreadyDecided
	}

	now := nowFunc().UTC()
	req.Status = StatusRejected
	req.Remarks = core.CleanString(remarks)
	req.DecidedBy = head.ID
	req.DecidedByName = head.Name
	req.DecidedAt = &now
	req.UpdatedAt = now
	if req, err = svc.repo.UpdateHandover(ctx, req); err != nil {
		return Request{}, errors.Wrap(err, "rejecting handover")
	}

	msg := fmt.Sprintf("Your handover of %s on %s was rejected.", req.Subject, routine.FormatDate(req.DateOfClass))
	if req.Remarks != "" {
		msg += " Remarks: " + req.Remarks
	}
	svc.notify(ctx, req.FacultyID, req.ID, msg)
	return req, nil
}

// Reconcile completes the propagation of approved requests left orphaned and returns how many were repaired.
func (svc *Service) Reconcile(ctx context.Context) (int, error) {
	orphans, err := svc.repo.QueryHandovers(ctx, QueryFilter{Status: StatusApproved, Unpropagated: true})
	if err != nil {
		return 0, errors.Wrap(err, "querying orphaned handovers")
	}

	var repaired int
	var lastErr error
	for _, req := range orphans {
		if ctx.Err() != nil {
			return repaired, ctx.Err()
		}
		propagated, err := svc.completeApproval(ctx, req)
		if err != nil {
			lastErr = err
			continue
		}
		if propagated.PropagatedAt != nil {
			repaired++
		} else {
			lastErr = errors.Errorf("handover %s is still not propagated", req.ID)
		}
	}
	return repaired, lastErr
}

// notify tells a faculty member about a handover. Failures are logged only.
func (svc *Service) notify(ctx context.Context, facultyID, handoverID, msg string) {
	if svc.notifier == nil {
		return
	}
	to := notification.Recipient{ID: facultyID}
	if fac, err := svc.faculty.GetByID(ctx, facultyID); err == nil {
		to.Name = fac.Name
		to.Email = fac.Email
	}
	if _, err := svc.notifier.Notify(ctx, to, notification.TypeHandover, handoverID, msg); err != nil {
		svc.logger.Warn("sending handover notification", err, map[string]interface{}{
			"handover_id": handoverID,
			"faculty_id":  facultyID,
		})
	}
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}
	return ""
}
