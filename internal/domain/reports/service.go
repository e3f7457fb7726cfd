package reports

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"clinical-access-engine/internal/domain/audit"
	"clinical-access-engine/internal/domain/policies"
	"clinical-access-engine/internal/domain/requests"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrUnavailable  = errors.New("report sources unavailable")
)

// Interfaces chicas sobre los otros módulos: reportes es solo lectura
// y no necesita los services completos.
type AuditSource interface {
	Query(ctx context.Context, tenantID string, f audit.Filter) ([]audit.Event, error)
}

type PolicySource interface {
	ListByTenant(ctx context.Context, tenantID string) ([]policies.AccessPolicy, error)
}

type RequestSource interface {
	ListPending(ctx context.Context, tenantID string) ([]requests.AccessRequest, error)
}

type Service struct {
	events AuditSource
	pols   PolicySource
	reqs   RequestSource
	now    func() time.Time
}

func NewService(events AuditSource, pols PolicySource, reqs RequestSource) *Service {
	return &Service{
		events: events,
		pols:   pols,
		reqs:   reqs,
		now:    time.Now,
	}
}

type DenialReport struct {
	TenantID       string    `json:"tenant_id"`
	ProfessionalID string    `json:"professional_id,omitempty"`
	From           time.Time `json:"from"`
	To             time.Time `json:"to"`
	Evaluations    int       `json:"evaluations"`
	Denials        int       `json:"denials"`
	DenialRate     float64   `json:"denial_rate"`
}

// DenialRate cuenta evaluaciones y denegaciones dentro de la ventana.
// professionalID vacío agrega todo el tenant.
func (s *Service) DenialRate(ctx context.Context, tenantID, professionalID string, window time.Duration) (DenialReport, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" || window <= 0 {
		return DenialReport{}, ErrInvalidInput
	}

	to := s.now()
	from := to.Add(-window)

	events, err := s.events.Query(ctx, tenantID, audit.Filter{
		ProfessionalID: strings.TrimSpace(professionalID),
		From:           from,
		To:             to,
	})
	if err != nil {
		return DenialReport{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	rep := DenialReport{
		TenantID:       tenantID,
		ProfessionalID: strings.TrimSpace(professionalID),
		From:           from,
		To:             to,
	}
	for _, e := range events {
		switch e.Outcome {
		case audit.OutcomeAllowed:
			rep.Evaluations++
		case audit.OutcomeDenied:
			rep.Evaluations++
			rep.Denials++
		}
	}
	if rep.Evaluations > 0 {
		rep.DenialRate = float64(rep.Denials) / float64(rep.Evaluations)
	}
	return rep, nil
}

type StaleRequestsReport struct {
	TenantID  string     `json:"tenant_id"`
	Threshold time.Time  `json:"threshold"`
	Pending   int        `json:"pending"`
	Stale     int        `json:"stale"`
	OldestAt  *time.Time `json:"oldest_created_at,omitempty"`
}

// StalePending: solicitudes pending creadas antes de ahora-olderThan
// (alerta de revisiones estancadas).
func (s *Service) StalePending(ctx context.Context, tenantID string, olderThan time.Duration) (StaleRequestsReport, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" || olderThan <= 0 {
		return StaleRequestsReport{}, ErrInvalidInput
	}

	pending, err := s.reqs.ListPending(ctx, tenantID)
	if err != nil {
		return StaleRequestsReport{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	threshold := s.now().Add(-olderThan)
	rep := StaleRequestsReport{
		TenantID:  tenantID,
		Threshold: threshold,
		Pending:   len(pending),
	}
	for _, r := range pending {
		if r.CreatedAt.Before(threshold) {
			rep.Stale++
		}
		if rep.OldestAt == nil || r.CreatedAt.Before(*rep.OldestAt) {
			createdAt := r.CreatedAt
			rep.OldestAt = &createdAt
		}
	}
	return rep, nil
}

type ExpiringPolicy struct {
	PolicyID       string    `json:"policy_id"`
	ProfessionalID string    `json:"professional_id"`
	ExpiresAt      time.Time `json:"expires_at"`

	// Lapsed: ya venció pero sigue marcada active (la expiración es
	// perezosa; acá se reconcilia para el reporte).
	Lapsed bool `json:"lapsed"`
}

type ExpiryForecastReport struct {
	TenantID string           `json:"tenant_id"`
	Horizon  time.Time        `json:"horizon"`
	Items    []ExpiringPolicy `json:"items"`
}

// ExpiryForecast: políticas temporarias activas que vencen dentro de N días,
// más las ya vencidas que nadie revocó todavía.
func (s *Service) ExpiryForecast(ctx context.Context, tenantID string, withinDays int) (ExpiryForecastReport, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" || withinDays <= 0 {
		return ExpiryForecastReport{}, ErrInvalidInput
	}

	all, err := s.pols.ListByTenant(ctx, tenantID)
	if err != nil {
		return ExpiryForecastReport{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	now := s.now()
	horizon := now.Add(time.Duration(withinDays) * 24 * time.Hour)

	rep := ExpiryForecastReport{
		TenantID: tenantID,
		Horizon:  horizon,
		Items:    make([]ExpiringPolicy, 0),
	}
	for _, p := range all {
		if p.Status != policies.StatusActive {
			continue
		}
		if p.Duration.Kind != policies.DurationTemporary || p.Duration.ExpiresAt == nil {
			continue
		}
		if p.Duration.ExpiresAt.After(horizon) {
			continue
		}
		rep.Items = append(rep.Items, ExpiringPolicy{
			PolicyID:       p.ID,
			ProfessionalID: p.ProfessionalID,
			ExpiresAt:      *p.Duration.ExpiresAt,
			Lapsed:         p.Expired(now),
		})
	}
	return rep, nil
}
