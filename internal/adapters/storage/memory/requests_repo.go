package memory

import (
	"context"
	"errors"
	"sort"

	"clinical-access-engine/internal/domain/audit"
	"clinical-access-engine/internal/domain/policies"
	"clinical-access-engine/internal/domain/requests"
)

type requestsRepo struct {
	s *Store
}

func (r *requestsRepo) Create(ctx context.Context, req requests.AccessRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if req.ID == "" {
		return errors.New("request id required")
	}
	if _, exists := r.s.requests[req.ID]; exists {
		return errors.New("request already exists")
	}
	r.s.requests[req.ID] = req
	return nil
}

func (r *requestsRepo) GetByID(ctx context.Context, tenantID, id string) (requests.AccessRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	req, ok := r.s.requests[id]
	if !ok || req.TenantID != tenantID {
		return requests.AccessRequest{}, requests.ErrNotFound
	}
	return req, nil
}

func (r *requestsRepo) ListPending(ctx context.Context, tenantID string) ([]requests.AccessRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]requests.AccessRequest, 0)
	for _, req := range r.s.requests {
		if req.TenantID == tenantID && req.Status == requests.StatusPending {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Approve: CAS + alta de política + auditoría, todo bajo el mismo lock.
// El perdedor de la carrera ve el status ya decidido y recibe ErrConflict.
func (r *requestsRepo) Approve(ctx context.Context, req requests.AccessRequest, p policies.AccessPolicy, events []audit.Event) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cur, ok := r.s.requests[req.ID]
	if !ok || cur.TenantID != req.TenantID {
		return requests.ErrNotFound
	}
	if cur.Status != requests.StatusPending {
		return requests.ErrConflict
	}
	if _, exists := r.s.policies[p.ID]; exists {
		return errors.New("policy already exists")
	}

	r.s.requests[req.ID] = req
	r.s.policies[p.ID] = p
	for _, e := range events {
		r.s.appendEventLocked(e)
	}
	return nil
}

func (r *requestsRepo) Reject(ctx context.Context, req requests.AccessRequest, event audit.Event) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cur, ok := r.s.requests[req.ID]
	if !ok || cur.TenantID != req.TenantID {
		return requests.ErrNotFound
	}
	if cur.Status != requests.StatusPending {
		return requests.ErrConflict
	}

	r.s.requests[req.ID] = req
	r.s.appendEventLocked(event)
	return nil
}
