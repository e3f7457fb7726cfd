package requests

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"clinical-access-engine/internal/domain/audit"
	"clinical-access-engine/internal/domain/policies"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("request already decided")
	ErrUnavailable  = errors.New("request store unavailable")
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

// Submit crea una solicitud pending. El scope sigue las mismas reglas de
// forma que el de una política; reason es obligatorio.
func (s *Service) Submit(ctx context.Context, tenantID, professionalID string, scope policies.Scope, reason string) (AccessRequest, error) {
	tenantID = strings.TrimSpace(tenantID)
	professionalID = strings.TrimSpace(professionalID)
	reason = strings.TrimSpace(reason)

	if tenantID == "" || professionalID == "" || reason == "" {
		return AccessRequest{}, ErrInvalidInput
	}
	if err := scope.Validate(); err != nil {
		return AccessRequest{}, ErrInvalidInput
	}

	now := s.now()
	r := AccessRequest{
		ID:             uuid.NewString(),
		TenantID:       tenantID,
		ProfessionalID: professionalID,
		Scope:          scope,
		Reason:         reason,
		Status:         StatusPending,
		CreatedAt:      now,
	}

	if err := s.repo.Create(ctx, r); err != nil {
		return AccessRequest{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if _, err := s.rec.Append(ctx, audit.Event{
		TenantID:       tenantID,
		Kind:           audit.KindRequestCreated,
		ActorID:        professionalID,
		ProfessionalID: professionalID,
		RequestID:      r.ID,
		Detail:         reason,
		OccurredAt:     now,
	}); err != nil {
		return AccessRequest{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return r, nil
}

// Approve decide el request exactamente una vez y sintetiza exactamente
// una política MANUAL con el scope pedido y la duración otorgada.
// Request aprobado + política + eventos entran como una sola unidad
// atómica en el storage.
func (s *Service) Approve(ctx context.Context, tenantID, requestID, actorID string, granted policies.Duration) (AccessRequest, policies.AccessPolicy, error) {
	tenantID = strings.TrimSpace(tenantID)
	requestID = strings.TrimSpace(requestID)
	actorID = strings.TrimSpace(actorID)
	if tenantID == "" || requestID == "" || actorID == "" {
		return AccessRequest{}, policies.AccessPolicy{}, ErrInvalidInput
	}
	if err := granted.Validate(); err != nil {
		return AccessRequest{}, policies.AccessPolicy{}, ErrInvalidInput
	}

	now := s.now()
	if granted.Kind == policies.DurationTemporary && !granted.ExpiresAt.After(now) {
		return AccessRequest{}, policies.AccessPolicy{}, ErrInvalidInput
	}

	r, err := s.repo.GetByID(ctx, tenantID, requestID)
	if err != nil {
		return AccessRequest{}, policies.AccessPolicy{}, mapRepoErr(err)
	}
	if r.Status != StatusPending {
		return AccessRequest{}, policies.AccessPolicy{}, ErrConflict
	}

	decidedAt := now
	r.Status = StatusApproved
	r.DecidedBy = actorID
	r.DecidedAt = &decidedAt

	p := policies.AccessPolicy{
		ID:             uuid.NewString(),
		TenantID:       tenantID,
		ProfessionalID: r.ProfessionalID,
		Scope:          r.Scope,
		Duration:       granted,
		Management:     policies.ManagementManual,
		Status:         policies.StatusActive,
		CreatedAt:      decidedAt,
	}

	events := []audit.Event{
		{
			ID:             uuid.NewString(),
			TenantID:       tenantID,
			Kind:           audit.KindRequestApproved,
			ActorID:        actorID,
			ProfessionalID: r.ProfessionalID,
			RequestID:      r.ID,
			PolicyID:       p.ID,
			OccurredAt:     decidedAt,
		},
		{
			ID:             uuid.NewString(),
			TenantID:       tenantID,
			Kind:           audit.KindPolicyCreated,
			ActorID:        actorID,
			ProfessionalID: r.ProfessionalID,
			RequestID:      r.ID,
			PolicyID:       p.ID,
			OccurredAt:     decidedAt,
		},
	}

	if err := s.repo.Approve(ctx, r, p, events); err != nil {
		return AccessRequest{}, policies.AccessPolicy{}, mapRepoErr(err)
	}

	return r, p, nil
}

// Reject decide el request exactamente una vez; no crea política.
// rationale es opcional (reason se exige al pedir, no al rechazar).
func (s *Service) Reject(ctx context.Context, tenantID, requestID, actorID, rationale string) (AccessRequest, error) {
	tenantID = strings.TrimSpace(tenantID)
	requestID = strings.TrimSpace(requestID)
	actorID = strings.TrimSpace(actorID)
	if tenantID == "" || requestID == "" || actorID == "" {
		return AccessRequest{}, ErrInvalidInput
	}

	r, err := s.repo.GetByID(ctx, tenantID, requestID)
	if err != nil {
		return AccessRequest{}, mapRepoErr(err)
	}
	if r.Status != StatusPending {
		return AccessRequest{}, ErrConflict
	}

	now := s.now()
	r.Status = StatusRejected
	r.DecidedBy = actorID
	r.DecidedAt = &now
	r.DecisionNote = strings.TrimSpace(rationale)

	event := audit.Event{
		ID:             uuid.NewString(),
		TenantID:       tenantID,
		Kind:           audit.KindRequestRejected,
		ActorID:        actorID,
		ProfessionalID: r.ProfessionalID,
		RequestID:      r.ID,
		Detail:         r.DecisionNote,
		OccurredAt:     now,
	}

	if err := s.repo.Reject(ctx, r, event); err != nil {
		return AccessRequest{}, mapRepoErr(err)
	}

	return r, nil
}

func (s *Service) Get(ctx context.Context, tenantID, requestID string) (AccessRequest, error) {
	tenantID = strings.TrimSpace(tenantID)
	requestID = strings.TrimSpace(requestID)
	if tenantID == "" || requestID == "" {
		return AccessRequest{}, ErrInvalidInput
	}

	r, err := s.repo.GetByID(ctx, tenantID, requestID)
	if err != nil {
		return AccessRequest{}, mapRepoErr(err)
	}
	return r, nil
}

// ListPending: orden FIFO (created_at asc, id asc) para revisión.
func (s *Service) ListPending(ctx context.Context, tenantID string) ([]AccessRequest, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return nil, ErrInvalidInput
	}

	items, err := s.repo.ListPending(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return items, nil
}

func mapRepoErr(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return ErrNotFound
	case errors.Is(err, ErrConflict):
		return ErrConflict
	default:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}
