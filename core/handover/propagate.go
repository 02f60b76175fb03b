package handover

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/routine"
)

// propagate writes an approved request into both routines, records the handover instance
// and stamps PropagatedAt, inside one transaction when the store supports it.
// Every step is guarded by the handover id so a retry never duplicates anything.
func (svc *Service) propagate(ctx context.Context, req Request) (Request, error) {
	var propagated Request
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := svc.assignSubstitute(ctx, req); err != nil {
			return errors.Wrap(err, "assigning substitute")
		}
		rtn, entryID, err := svc.markOriginal(ctx, req)
		if err != nil {
			return errors.Wrap(err, "marking original class")
		}
		if err = svc.instances.RecordHandover(ctx, rtn, entryID, req.DateOfClass, req.DecidedBy); err != nil {
			return errors.Wrap(err, "recording handover instance")
		}

		now := nowFunc().UTC()
		req.PropagatedAt = &now
		req.UpdatedAt = now
		if propagated, err = svc.repo.UpdateHandover(ctx, req); err != nil {
			return errors.Wrap(err, "stamping propagation")
		}
		return nil
	})
	return propagated, err
}

// assignSubstitute appends the class to the substitute's routine effective on the class date.
func (svc *Service) assignSubstitute(ctx context.Context, req Request) error {
	entry := routine.Entry{
		Day:                 req.DateOfClass.Weekday().String(),
		TimeSlot:            req.TimeSlot,
		Subject:             req.Subject,
		Course:              req.Course,
		Room:                req.RoomNo,
		Status:              routine.StatusPending,
		Handover:            true,
		OriginalFacultyID:   req.FacultyID,
		OriginalFacultyName: req.FacultyName,
		HandoverID:          req.ID,
		HandoverDate:        routine.FormatDate(req.DateOfClass),
	}

	routines, err := svc.routines.QueryByFaculty(ctx, req.SubstituteID)
	if err != nil {
		return errors.Wrap(err, "loading substitute routines")
	}
	for _, r := range routines {
		if r.HasHandover(req.ID) {
			return nil
		}
	}

	if rtn, ok := routine.ActiveOn(routines, req.DateOfClass); ok {
		_, err = svc.routines.Modify(ctx, rtn.ID, func(rtn *routine.Routine) (bool, error) {
			if rtn.HasHandover(req.ID) {
				return false, nil
			}
			rtn.Entries = append(rtn.Entries, entry)
			return true, nil
		})
		return err
	}

	// no routine covers the date: start one there, ending before the next routine if any
	start := routine.CalendarDay(req.DateOfClass)
	newRtn := routine.Routine{
		FacultyID:   req.SubstituteID,
		FacultyName: req.SubstituteName,
		StartDate:   start,
		Entries:     []routine.Entry{entry},
	}
	for _, r := range routines {
		if next := routine.CalendarDay(r.StartDate); next.After(start) {
			end := next.AddDate(0, 0, -1)
			if newRtn.EndDate == nil || end.Before(*newRtn.EndDate) {
				newRtn.EndDate = &end
			}
		}
	}
	_, err = svc.routines.Save(ctx, newRtn)
	return err
}

// markOriginal flags the handed over class on the requester's routine and returns the routine and entry id
// the handover instance belongs to. A class that cannot be found gets a fallback entry.
func (svc *Service) markOriginal(ctx context.Context, req Request) (routine.Routine, string, error) {
	mark := func(e *routine.Entry) bool {
		if e.HandoverStatus == routine.HandedOver && e.HandoverID == req.ID && e.SubstituteID == req.SubstituteID &&
			e.HandoverDate == routine.FormatDate(req.DateOfClass) {
			return false
		}
		e.HandoverStatus = routine.HandedOver
		e.SubstituteID = req.SubstituteID
		e.SubstituteName = req.SubstituteName
		e.HandoverID = req.ID
		e.HandoverDate = routine.FormatDate(req.DateOfClass)
		return true
	}

	rtn, err := svc.routines.GetByID(ctx, req.RoutineID)
	switch {
	case err == nil && rtn.FacultyID == req.FacultyID:
		if _, ok := rtn.FindEntry(req.ClassID); ok {
			var entryID string
			updated, err := svc.routines.Modify(ctx, rtn.ID, func(rtn *routine.Routine) (bool, error) {
				i, ok := rtn.FindEntry(req.ClassID)
				if !ok {
					return false, routine.ErrEntryNotFound
				}
				entryID = rtn.Entries[i].ID
				return mark(&rtn.Entries[i]), nil
			})
			return updated, entryID, err
		}
	case err != nil && !core.IsNotFound(err):
		return routine.Routine{}, "", errors.Wrap(err, "loading original routine")
	}

	// degraded path: the referenced class is gone, look in the requester's latest routine
	latest, ok, err := svc.routines.Latest(ctx, req.FacultyID)
	if err != nil {
		return routine.Routine{}, "", errors.Wrap(err, "loading requester routine")
	}
	if ok {
		if i, found := latest.FindEntry(req.ClassID); found {
			entryID := latest.Entries[i].ID
			updated, err := svc.routines.Modify(ctx, latest.ID, func(rtn *routine.Routine) (bool, error) {
				i, ok := rtn.FindEntry(entryID)
				if !ok {
					return false, routine.ErrEntryNotFound
				}
				return mark(&rtn.Entries[i]), nil
			})
			return updated, entryID, err
		}
	}

	svc.logger.Warn("handed over class not found, adding a fallback entry", map[string]interface{}{
		"handover_id": req.ID,
		"routine_id":  req.RoutineID,
		"class_id":    req.ClassID,
	})
	fallback := routine.Entry{
		Day:      req.DateOfClass.Weekday().String(),
		TimeSlot: req.TimeSlot,
		Subject:  req.Subject,
		Course:   req.Course,
		Room:     req.RoomNo,
		Status:   routine.StatusPending,
	}
	mark(&fallback)
	fallbackEntryID := func(rtn routine.Routine) string {
		for _, e := range rtn.Entries {
			if e.HandoverID == req.ID {
				return e.ID
			}
		}
		return ""
	}

	if ok {
		updated, err := svc.routines.Modify(ctx, latest.ID, func(rtn *routine.Routine) (bool, error) {
			if rtn.HasHandover(req.ID) {
				return false, nil
			}
			rtn.Entries = append(rtn.Entries, fallback)
			return true, nil
		})
		if err != nil {
			return routine.Routine{}, "", err
		}
		return updated, fallbackEntryID(updated), nil
	}

	created, err := svc.routines.Save(ctx, routine.Routine{
		FacultyID:   req.FacultyID,
		FacultyName: req.FacultyName,
		StartDate:   routine.CalendarDay(req.DateOfClass),
		Entries:     []routine.Entry{fallback},
	})
	if err != nil {
		return routine.Routine{}, "", err
	}
	return created, fallbackEntryID(created), nil
}
