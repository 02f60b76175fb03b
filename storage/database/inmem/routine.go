package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/ratiba/core/routine"
)

type routineRepository struct {
	db *routineTable
}

func NewRoutineRepository(db *DB) routine.Repository {
	return &routineRepository{db: db.routine}
}

func cloneRoutine(rtn routine.Routine) routine.Routine {
	rtn.Entries = append(make([]routine.Entry, 0, len(rtn.Entries)), rtn.Entries...)
	if rtn.EndDate != nil {
		end := *rtn.EndDate
		rtn.EndDate = &end
	}
	return rtn
}

func assignEntryIDs(rtn *routine.Routine) {
	for i := range rtn.Entries {
		if rtn.Entries[i].ID == "" {
			rtn.Entries[i].ID = newID()
		}
	}
}

func (repo *routineRepository) CreateRoutine(_ context.Context, rtn routine.Routine) (routine.Routine, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	rtn = cloneRoutine(rtn)
	rtn.ID = newID()
	rtn.Version = 1
	rtn.Revision = 1
	for _, r := range repo.db.table {
		if r.FacultyID == rtn.FacultyID && r.Revision >= rtn.Revision {
			rtn.Revision = r.Revision + 1
		}
	}
	assignEntryIDs(&rtn)
	repo.db.table[rtn.ID] = &rtn
	return cloneRoutine(rtn), nil
}

func (repo *routineRepository) GetRoutineByID(_ context.Context, id string) (routine.Routine, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if rtn, ok := repo.db.table[routine.NormalizeID(id)]; ok {
		return cloneRoutine(*rtn), nil
	}
	return routine.Routine{}, routine.ErrNotFound
}

func (repo *routineRepository) QueryRoutines(_ context.Context, filter routine.QueryFilter) ([]routine.Routine, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	routines := make([]routine.Routine, 0)
	for _, rtn := range repo.db.table {
		if filter.FacultyID != "" && rtn.FacultyID != filter.FacultyID {
			continue
		}
		if !filter.From.IsZero() && !filter.To.IsZero() && !rtn.Overlaps(filter.From, filter.To) {
			continue
		}
		routines = append(routines, cloneRoutine(*rtn))
	}
	sort.Slice(routines, func(i, j int) bool { return routines[i].Revision > routines[j].Revision })
	return routines, nil
}

func (repo *routineRepository) UpdateRoutine(_ context.Context, rtn routine.Routine) (routine.Routine, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[rtn.ID]
	if !ok {
		return routine.Routine{}, routine.ErrNotFound
	}
	if orig.Version != rtn.Version {
		return routine.Routine{}, routine.ErrVersionConflict
	}
	rtn = cloneRoutine(rtn)
	rtn.Version++
	rtn.Revision = orig.Revision
	rtn.FacultyID = orig.FacultyID
	rtn.CreatedAt = orig.CreatedAt
	assignEntryIDs(&rtn)
	repo.db.table[rtn.ID] = &rtn
	return cloneRoutine(rtn), nil
}
