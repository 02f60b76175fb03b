package handover

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/routine"
)

// Conflict types
const (
	ConflictRegularClass     = "regular_class"
	ConflictApprovedHandover = "approved_handover"
)

type (
	Availability struct {
		Available bool      `json:"available"`
		Conflict  *Conflict `json:"conflict,omitempty"`
	}

	// Conflict describes what keeps a substitute busy.
	Conflict struct {
		Type                string `json:"conflict_type"`
		Message             string `json:"message"`
		Day                 string `json:"day"`
		TimeSlot            string `json:"time_slot"`
		Subject             string `json:"subject"`
		Course              string `json:"course,omitempty"`
		Room                string `json:"room,omitempty"`
		RoutineID           string `json:"routine_id,omitempty"`
		EntryID             string `json:"entry_id,omitempty"`
		HandoverID          string `json:"handover_id,omitempty"`
		OriginalFacultyName string `json:"original_faculty_name,omitempty"`
	}

	// ConflictChecker is read-only: it decides whether a substitute is free at a date and time slot.
	ConflictChecker struct {
		routines *routine.Service
		repo     Repository
		overlap  bool
	}
)

// NewConflictChecker returns a checker. With overlap set, slots clash when their intervals intersect
// instead of when their canonical forms are equal.
func NewConflictChecker(routines *routine.Service, repo Repository, overlap bool) *ConflictChecker {
	return &ConflictChecker{routines: routines, repo: repo, overlap: overlap}
}

func (cc *ConflictChecker) clash(a, b string) bool {
	if cc.overlap {
		return routine.SlotsOverlap(a, b)
	}
	return routine.SameSlot(a, b)
}

// CheckAvailability decides whether substituteID is free on dateOfClass (YYYY-MM-DD) at timeSlot.
func (cc *ConflictChecker) CheckAvailability(ctx context.Context, substituteID, dateOfClass, timeSlot string) (Availability, error) {
	substituteID = core.CleanString(substituteID)
	if substituteID == "" {
		return Availability{}, core.NewFieldError("substitute_id", "this field is required")
	}
	day, err := routine.ParseDateField("date", dateOfClass)
	if err != nil {
		return Availability{}, err
	}
	timeSlot = core.CleanString(timeSlot)
	if timeSlot == "" {
		return Availability{}, core.NewFieldError("time_slot", "this field is required")
	}
	return cc.check(ctx, substituteID, day, timeSlot, "")
}

// check prefers a clash with the substitute's own routine over one with an approved handover.
// excludeID skips one request, the one being approved.
func (cc *ConflictChecker) check(ctx context.Context, substituteID string, day time.Time, slot, excludeID string) (Availability, error) {
	// the routine in force on day, which may be older than the latest one
	rtn, ok, err := cc.routines.ActiveOn(ctx, substituteID, day)
	if err != nil {
		return Availability{}, errors.Wrap(err, "loading substitute routine")
	}
	if ok {
		for _, e := range rtn.EntriesOn(day.Weekday()) {
			if e.IsHandedOverOn(day) { // their own class went to someone else that day
				continue
			}
			if excludeID != "" && e.Handover && routine.SameID(e.HandoverID, excludeID) {
				continue
			}
			if cc.clash(e.TimeSlot, slot) {
				return Availability{Conflict: &Conflict{
					Type:                ConflictRegularClass,
					Message:             fmt.Sprintf("substitute already teaches %s at %s on %s", e.Subject, e.TimeSlot, e.Day),
					Day:                 e.Day,
					TimeSlot:            e.TimeSlot,
					Subject:             e.Subject,
					Course:              e.Course,
					Room:                e.Room,
					RoutineID:           rtn.ID,
					EntryID:             e.ID,
					HandoverID:          e.HandoverID,
					OriginalFacultyName: e.OriginalFacultyName,
				}}, nil
			}
		}
	}

	approved, err := cc.repo.QueryHandovers(ctx, QueryFilter{
		SubstituteID: substituteID,
		Status:       StatusApproved,
		Date:         day,
	})
	if err != nil {
		return Availability{}, errors.Wrap(err, "querying approved handovers")
	}
	for _, r := range approved {
		if excludeID != "" && r.ID == excludeID {
			continue
		}
		if cc.clash(r.TimeSlot, slot) {
			return Availability{Conflict: &Conflict{
				Type:                ConflictApprovedHandover,
				Message:             fmt.Sprintf("substitute already covers %s for %s at %s", r.Subject, r.FacultyName, r.TimeSlot),
				Day:                 r.DateOfClass.Weekday().String(),
				TimeSlot:            r.TimeSlot,
				Subject:             r.Subject,
				Course:              r.Course,
				Room:                r.RoomNo,
				RoutineID:           r.RoutineID,
				EntryID:             r.ClassID,
				HandoverID:          r.ID,
				OriginalFacultyName: r.FacultyName,
			}}, nil
		}
	}
	return Availability{Available: true}, nil
}
