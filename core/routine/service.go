package routine

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
)

// maxWriteAttempts bounds the read-modify-write retries on version conflicts.
const maxWriteAttempts = 3

var (
	ErrNotFound        = core.NewNotFoundError("routine")
	ErrEntryNotFound   = core.NewNotFoundError("routine entry")
	ErrVersionConflict = errors.New("routine was modified concurrently")
)

type (
	// QueryFilter selects the routines of a faculty member; a non-zero From/To keeps those overlapping [From, To].
	QueryFilter struct {
		FacultyID string
		From      time.Time
		To        time.Time
	}

	Repository interface {
		// CreateRoutine stores r with the next revision of its faculty member, version 1 and ids for its entries.
		CreateRoutine(ctx context.Context, r Routine) (Routine, error)
		GetRoutineByID(ctx context.Context, id string) (Routine, error)
		QueryRoutines(ctx context.Context, filter QueryFilter) ([]Routine, error)
		// UpdateRoutine saves r if the stored version still equals r.Version and bumps the version.
		// A stale version yields ErrVersionConflict. Entries without id get one.
		UpdateRoutine(ctx context.Context, r Routine) (Routine, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create stores a new revision of the faculty member's routine.
func (svc *Service) Create(ctx context.Context, facultyID, facultyName string, nr NewRoutine) (Routine, error) {
	start, err := ParseDateField("start_date", nr.StartDate)
	if err != nil {
		return Routine{}, err
	}
	rtn := Routine{
		FacultyID:   facultyID,
		FacultyName: facultyName,
		StartDate:   start,
		Entries:     make([]Entry, 0, len(nr.Entries)),
	}
	if nr.EndDate != "" {
		end, err := ParseDateField("end_date", nr.EndDate)
		if err != nil {
			return Routine{}, err
		}
		if end.Before(start) {
			return Routine{}, core.NewFieldError("end_date", "must not be before start_date")
		}
		rtn.EndDate = &end
	}
	for _, ne := range nr.Entries {
		rtn.Entries = append(rtn.Entries, ne.entry())
	}
	return svc.Save(ctx, rtn)
}

// Save stores rtn as the next revision of its faculty member's routine.
func (svc *Service) Save(ctx context.Context, rtn Routine) (Routine, error) {
	now := time.Now().UTC()
	rtn.CreatedAt = now
	rtn.UpdatedAt = now
	if rtn.Entries == nil {
		rtn.Entries = []Entry{}
	}
	return svc.repo.CreateRoutine(ctx, rtn)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Routine, error) {
	return svc.repo.GetRoutineByID(ctx, NormalizeID(id))
}

func (svc *Service) QueryByFaculty(ctx context.Context, facultyID string) ([]Routine, error) {
	return svc.repo.QueryRoutines(ctx, QueryFilter{FacultyID: facultyID})
}

// InRange returns the faculty member's routines effective on at least one day of [start, end].
func (svc *Service) InRange(ctx context.Context, facultyID string, start, end time.Time) ([]Routine, error) {
	return svc.repo.QueryRoutines(ctx, QueryFilter{
		FacultyID: facultyID,
		From:      CalendarDay(start),
		To:        CalendarDay(end),
	})
}

// ActiveOn returns the authoritative routine of the faculty member for day.
func (svc *Service) ActiveOn(ctx context.Context, facultyID string, day time.Time) (Routine, bool, error) {
	routines, err := svc.InRange(ctx, facultyID, day, day)
	if err != nil {
		return Routine{}, false, err
	}
	rtn, ok := ActiveOn(routines, day)
	return rtn, ok, nil
}

// Latest returns the faculty member's routine with the highest revision.
func (svc *Service) Latest(ctx context.Context, facultyID string) (Routine, bool, error) {
	routines, err := svc.QueryByFaculty(ctx, facultyID)
	if err != nil {
		return Routine{}, false, err
	}
	rtn, ok := Latest(routines)
	return rtn, ok, nil
}

// Modify applies fn to a fresh copy of the routine and saves it when fn reports a change.
// Version conflicts are retried with a new read.
func (svc *Service) Modify(ctx context.Context, id string, fn func(rtn *Routine) (bool, error)) (Routine, error) {
	for attempt := 1; ; attempt++ {
		rtn, err := svc.GetByID(ctx, id)
		if err != nil {
			return Routine{}, err
		}
		changed, err := fn(&rtn)
		if err != nil || !changed {
			return rtn, err
		}
		rtn.UpdatedAt = time.Now().UTC()
		updated, err := svc.repo.UpdateRoutine(ctx, rtn)
		if errors.Cause(err) == ErrVersionConflict && attempt < maxWriteAttempts {
			continue
		}
		if err != nil {
			return Routine{}, errors.Wrapf(err, "updating routine %s", id)
		}
		return updated, nil
	}
}
