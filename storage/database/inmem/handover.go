package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/ratiba/core/handover"
	"github.com/trezcool/ratiba/core/routine"
)

type handoverRepository struct {
	db *handoverTable
}

func NewHandoverRepository(db *DB) handover.Repository {
	return &handoverRepository{db: db.handover}
}

func (repo *handoverRepository) CreateHandover(_ context.Context, req handover.Request) (handover.Request, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	req.ID = newID()
	repo.db.table[req.ID] = &req
	return req, nil
}

func (repo *handoverRepository) GetHandoverByID(_ context.Context, id string) (handover.Request, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if req, ok := repo.db.table[routine.NormalizeID(id)]; ok {
		return *req, nil
	}
	return handover.Request{}, handover.ErrNotFound
}

func (repo *handoverRepository) QueryHandovers(_ context.Context, filter handover.QueryFilter) ([]handover.Request, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	reqs := make([]handover.Request, 0)
	for _, req := range repo.db.table {
		if filter.Match(*req) {
			reqs = append(reqs, *req)
		}
	}
	sort.Slice(reqs, func(i, j int) bool {
		if !reqs[i].DateOfClass.Equal(reqs[j].DateOfClass) {
			return reqs[i].DateOfClass.After(reqs[j].DateOfClass)
		}
		return reqs[i].CreatedAt.After(reqs[j].CreatedAt)
	})
	return reqs, nil
}

func (repo *handoverRepository) UpdateHandover(_ context.Context, req handover.Request) (handover.Request, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[req.ID]
	if !ok {
		return handover.Request{}, handover.ErrNotFound
	}
	req.CreatedAt = orig.CreatedAt
	repo.db.table[req.ID] = &req
	return req, nil
}
