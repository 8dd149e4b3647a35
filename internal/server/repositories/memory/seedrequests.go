package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/xxiimcha/lk-web/internal/common"
	"github.com/xxiimcha/lk-web/internal/server/models"
)

type SeedRequestRepository struct {
	s *Store
}

func (r *SeedRequestRepository) Create(_ context.Context, req *models.SeedRequest) (*models.SeedRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c := copyRequest(req)
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = models.StatusPending
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = r.s.now()
	}
	if _, dup := r.s.requests[c.ID]; dup {
		return nil, common.ErrorAlreadyExists
	}
	r.s.requests[c.ID] = c
	return copyRequest(c), nil
}

func (r *SeedRequestRepository) GetByID(_ context.Context, id string) (*models.SeedRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	req, ok := r.s.requests[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return copyRequest(req), nil
}

func (r *SeedRequestRepository) List(_ context.Context, status models.Status) ([]*models.SeedRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]*models.SeedRequest, 0, len(r.s.requests))
	for _, req := range r.s.requests {
		if status != "" && req.Status != status {
			continue
		}
		out = append(out, copyRequest(req))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *SeedRequestRepository) UpdateStatus(_ context.Context, id string, from, to models.Status, reason *string) (*models.SeedRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	req, ok := r.s.requests[id]
	if !ok || req.Status != from {
		return nil, common.ErrorNotFound
	}
	req.Status = to
	req.RejectReason = copyString(reason)
	return copyRequest(req), nil
}

func (r *SeedRequestRepository) CountByStatus(_ context.Context) (map[models.Status]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make(map[models.Status]int64, len(models.Statuses))
	for _, s := range models.Statuses {
		out[s] = 0
	}
	for _, req := range r.s.requests {
		out[req.Status]++
	}
	return out, nil
}
