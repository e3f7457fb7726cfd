package policies

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"clinical-access-engine/internal/domain/audit"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnavailable  = errors.New("policy store unavailable")
)

type Service struct {
	repo Repository
	rec  audit.Recorder
	now  func() time.Time
}

func NewService(repo Repository, rec audit.Recorder) *Service {
	return &Service{
		repo: repo,
		rec:  rec,
		now:  time.Now,
	}
}

type CreateInput struct {
	ProfessionalID string
	Scope          Scope
	Duration       Duration
}

// Create persiste una política AUTOMATIC. Las MANUAL solo las crea el
// workflow de solicitudes al aprobar; este camino las rechaza.
func (s *Service) Create(ctx context.Context, tenantID, actorID string, in CreateInput) (AccessPolicy, error) {
	tenantID = strings.TrimSpace(tenantID)
	professionalID := strings.TrimSpace(in.ProfessionalID)

	if tenantID == "" || professionalID == "" {
		return AccessPolicy{}, ErrInvalidInput
	}
	if err := in.Scope.Validate(); err != nil {
		return AccessPolicy{}, err
	}
	if err := in.Duration.Validate(); err != nil {
		return AccessPolicy{}, err
	}

	now := s.now()
	if in.Duration.Kind == DurationTemporary && !in.Duration.ExpiresAt.After(now) {
		return AccessPolicy{}, ErrInvalidInput
	}

	p := AccessPolicy{
		ID:             uuid.NewString(),
		TenantID:       tenantID,
		ProfessionalID: professionalID,
		Scope:          in.Scope,
		Duration:       in.Duration,
		Management:     ManagementAutomatic,
		Status:         StatusActive,
		CreatedAt:      now,
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return AccessPolicy{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if _, err := s.rec.Append(ctx, audit.Event{
		TenantID:       tenantID,
		Kind:           audit.KindPolicyCreated,
		ActorID:        strings.TrimSpace(actorID),
		ProfessionalID: professionalID,
		PolicyID:       p.ID,
		OccurredAt:     now,
	}); err != nil {
		return AccessPolicy{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return p, nil
}

// ActiveForProfessional devuelve solo políticas vigentes al momento de la
// llamada (expiración perezosa), ordenadas por created_at asc. Sin cache
// entre llamadas: correctitud antes que latencia.
func (s *Service) ActiveForProfessional(ctx context.Context, tenantID, professionalID string) ([]AccessPolicy, error) {
	tenantID = strings.TrimSpace(tenantID)
	professionalID = strings.TrimSpace(professionalID)
	if tenantID == "" || professionalID == "" {
		return nil, ErrInvalidInput
	}

	items, err := s.repo.ListByProfessional(ctx, tenantID, professionalID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	now := s.now()
	out := make([]AccessPolicy, 0, len(items))
	for _, p := range items {
		if p.Active(now) {
			out = append(out, p)
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

// ListByTenant expone todas las políticas del tenant (para reportes).
func (s *Service) ListByTenant(ctx context.Context, tenantID string) ([]AccessPolicy, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return nil, ErrInvalidInput
	}
	items, err := s.repo.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return items, nil
}

// Revoke marca la política como revocada (borrado lógico) y audita.
// Revocar dos veces es ErrConflict, no idempotente: el segundo actor
// debe enterarse de que llegó tarde.
func (s *Service) Revoke(ctx context.Context, tenantID, policyID, actorID string) (AccessPolicy, error) {
	tenantID = strings.TrimSpace(tenantID)
	policyID = strings.TrimSpace(policyID)
	actorID = strings.TrimSpace(actorID)
	if tenantID == "" || policyID == "" || actorID == "" {
		return AccessPolicy{}, ErrInvalidInput
	}

	now := s.now()
	p, err := s.repo.Revoke(ctx, tenantID, policyID, actorID, now)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrConflict):
			return AccessPolicy{}, err
		default:
			return AccessPolicy{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	if _, err := s.rec.Append(ctx, audit.Event{
		TenantID:       tenantID,
		Kind:           audit.KindPolicyRevoked,
		ActorID:        actorID,
		ProfessionalID: p.ProfessionalID,
		PolicyID:       p.ID,
		OccurredAt:     now,
	}); err != nil {
		return AccessPolicy{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return p, nil
}
