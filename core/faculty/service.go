package faculty

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
)

var (
	// errors
	ErrNotFound    = core.NewNotFoundError("faculty")
	ErrEmailExists = errors.New("a faculty member with this email already exists")
)

type (
	Repository interface {
		CreateFaculty(ctx context.Context, f Faculty) (Faculty, error)
		GetFacultyByID(ctx context.Context, id string) (Faculty, error)
		GetFacultyByEmail(ctx context.Context, email string) (Faculty, error)
		// QueryFaculty returns the members matching filter, sorted by name.
		QueryFaculty(ctx context.Context, filter QueryFilter) ([]Faculty, error)
		UpdateFaculty(ctx context.Context, f Faculty) (Faculty, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// UpdateOrCreate creates a faculty member, or updates the one with the same email.
func (svc *Service) UpdateOrCreate(ctx context.Context, nf NewFaculty) (Faculty, error) {
	now := time.Now().UTC()
	roles := []string{RoleFaculty}
	if nf.Head {
		roles = AllRoles
	}

	fac, err := svc.repo.GetFacultyByEmail(ctx, core.CleanString(nf.Email, true /* lower */))
	switch {
	case err == nil:
		fac.Name = nf.Name
		fac.Department = nf.Department
		fac.Subjects = nf.Subjects
		fac.Roles = roles
		fac.IsActive = true
		fac.UpdatedAt = now
		return svc.repo.UpdateFaculty(ctx, fac)
	case errors.Cause(err) == ErrNotFound:
		return svc.repo.CreateFaculty(ctx, Faculty{
			Name:       nf.Name,
			Email:      nf.Email,
			Department: nf.Department,
			Subjects:   nf.Subjects,
			Roles:      roles,
			IsActive:   true,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	default:
		return Faculty{}, errors.Wrap(err, "finding faculty by email")
	}
}

func (svc *Service) GetByID(ctx context.Context, id string) (Faculty, error) {
	return svc.repo.GetFacultyByID(ctx, core.CleanString(id))
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (Faculty, error) {
	return svc.repo.GetFacultyByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Faculty, error) {
	return svc.repo.QueryFaculty(ctx, filter)
}

func (svc *Service) Active(ctx context.Context) ([]Faculty, error) {
	return svc.repo.QueryFaculty(ctx, QueryFilter{ActiveOnly: true})
}

// SetActive activates or deactivates a member. Deactivated members keep their history.
func (svc *Service) SetActive(ctx context.Context, id string, active bool) (Faculty, error) {
	fac, err := svc.GetByID(ctx, id)
	if err != nil {
		return Faculty{}, err
	}
	fac.IsActive = active
	fac.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateFaculty(ctx, fac)
}
