package memory

import (
	"context"
	"errors"
	"sort"
	"time"

	"clinical-access-engine/internal/domain/policies"
)

type policiesRepo struct {
	s *Store
}

func (r *policiesRepo) Create(ctx context.Context, p policies.AccessPolicy) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if p.ID == "" {
		return errors.New("policy id required")
	}
	if _, exists := r.s.policies[p.ID]; exists {
		return errors.New("policy already exists")
	}
	r.s.policies[p.ID] = p
	return nil
}

func (r *policiesRepo) GetByID(ctx context.Context, tenantID, id string) (policies.AccessPolicy, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.policies[id]
	if !ok || p.TenantID != tenantID {
		return policies.AccessPolicy{}, policies.ErrNotFound
	}
	return p, nil
}

func (r *policiesRepo) ListByProfessional(ctx context.Context, tenantID, professionalID string) ([]policies.AccessPolicy, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]policies.AccessPolicy, 0)
	for _, p := range r.s.policies {
		if p.TenantID == tenantID && p.ProfessionalID == professionalID {
			out = append(out, p)
		}
	}
	sortPolicies(out)
	return out, nil
}

func (r *policiesRepo) ListByTenant(ctx context.Context, tenantID string) ([]policies.AccessPolicy, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]policies.AccessPolicy, 0)
	for _, p := range r.s.policies {
		if p.TenantID == tenantID {
			out = append(out, p)
		}
	}
	sortPolicies(out)
	return out, nil
}

// Revoke hace el compare-and-set bajo el lock del store: el segundo
// revocador concurrente recibe ErrConflict.
func (r *policiesRepo) Revoke(ctx context.Context, tenantID, id, actorID string, at time.Time) (policies.AccessPolicy, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.policies[id]
	if !ok || p.TenantID != tenantID {
		return policies.AccessPolicy{}, policies.ErrNotFound
	}
	if p.Status == policies.StatusRevoked {
		return policies.AccessPolicy{}, policies.ErrConflict
	}

	p.Status = policies.StatusRevoked
	p.RevokedAt = &at
	p.RevokedBy = actorID
	r.s.policies[id] = p
	return p, nil
}

func sortPolicies(out []policies.AccessPolicy) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
}
