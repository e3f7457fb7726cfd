package memory

import (
	"context"
	"errors"
	"sort"

	"clinical-access-engine/internal/domain/audit"
)

type auditRepo struct {
	s *Store
}

func (r *auditRepo) Append(ctx context.Context, e audit.Event) (audit.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if e.ID == "" || e.TenantID == "" {
		return audit.Event{}, errors.New("event id and tenant required")
	}
	return r.s.appendEventLocked(e), nil
}

func (r *auditRepo) Query(ctx context.Context, tenantID string, f audit.Filter) ([]audit.Event, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]audit.Event, 0)
	for _, e := range r.s.events {
		if e.TenantID != tenantID {
			continue
		}
		if f.ProfessionalID != "" && e.ProfessionalID != f.ProfessionalID {
			continue
		}
		if f.DocumentID != "" && e.DocumentID != f.DocumentID {
			continue
		}
		if f.Outcome != "" && e.Outcome != f.Outcome {
			continue
		}
		if f.Kind != "" && e.Kind != f.Kind {
			continue
		}
		if !f.From.IsZero() && e.OccurredAt.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && e.OccurredAt.After(f.To) {
			continue
		}
		out = append(out, e)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].Seq < out[j].Seq
		}
		return out[i].OccurredAt.Before(out[j].OccurredAt)
	})
	return out, nil
}
