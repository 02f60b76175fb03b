package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/ratiba/core/faculty"
)

type facultyRepository struct {
	db *facultyTable
}

func NewFacultyRepository(db *DB) faculty.Repository {
	return &facultyRepository{db: db.faculty}
}

func cloneFaculty(fac faculty.Faculty) faculty.Faculty {
	fac.Subjects = copyStrings(fac.Subjects)
	fac.Roles = copyStrings(fac.Roles)
	return fac
}

func (repo *facultyRepository) CreateFaculty(_ context.Context, fac faculty.Faculty) (faculty.Faculty, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, f := range repo.db.table {
		if strings.EqualFold(f.Email, fac.Email) {
			return faculty.Faculty{}, faculty.ErrEmailExists
		}
	}
	fac.ID = newID()
	stored := cloneFaculty(fac)
	repo.db.table[fac.ID] = &stored
	return cloneFaculty(stored), nil
}

func (repo *facultyRepository) GetFacultyByID(_ context.Context, id string) (faculty.Faculty, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if fac, ok := repo.db.table[id]; ok {
		return cloneFaculty(*fac), nil
	}
	return faculty.Faculty{}, faculty.ErrNotFound
}

func (repo *facultyRepository) GetFacultyByEmail(_ context.Context, email string) (faculty.Faculty, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, fac := range repo.db.table {
		if strings.EqualFold(fac.Email, email) {
			return cloneFaculty(*fac), nil
		}
	}
	return faculty.Faculty{}, faculty.ErrNotFound
}

func (repo *facultyRepository) QueryFaculty(_ context.Context, filter faculty.QueryFilter) ([]faculty.Faculty, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	members := make([]faculty.Faculty, 0, len(repo.db.table))
	for _, fac := range repo.db.table {
		if filter.Match(*fac) {
			members = append(members, cloneFaculty(*fac))
		}
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].Name != members[j].Name {
			return members[i].Name < members[j].Name
		}
		return members[i].ID < members[j].ID
	})
	return members, nil
}

func (repo *facultyRepository) UpdateFaculty(_ context.Context, fac faculty.Faculty) (faculty.Faculty, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[fac.ID]
	if !ok {
		return faculty.Faculty{}, faculty.ErrNotFound
	}
	for id, f := range repo.db.table {
		if id != fac.ID && strings.EqualFold(f.Email, fac.Email) {
			return faculty.Faculty{}, faculty.ErrEmailExists
		}
	}
	fac.CreatedAt = orig.CreatedAt
	stored := cloneFaculty(fac)
	repo.db.table[fac.ID] = &stored
	return cloneFaculty(stored), nil
}
