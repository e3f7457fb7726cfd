package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrUnavailable  = errors.New("audit log unavailable")
)

// Recorder es lo que consumen los otros módulos para emitir eventos
// (interfaz chica para no acoplarse al Service completo).
type Recorder interface {
	Append(ctx context.Context, e Event) (Event, error)
}

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

func (s *Service) Append(ctx context.Context, e Event) (Event, error) {
	if strings.TrimSpace(e.TenantID) == "" || e.Kind == "" {
		return Event{}, ErrInvalidInput
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = s.now()
	}

	stored, err := s.repo.Append(ctx, e)
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return stored, nil
}

func (s *Service) Query(ctx context.Context, tenantID string, f Filter) ([]Event, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, ErrInvalidInput
	}

	items, err := s.repo.Query(ctx, tenantID, f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return items, nil
}
