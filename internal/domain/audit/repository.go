package audit

import (
	"context"
	"time"
)

// Filter acota Query. Campos vacíos no filtran.
type Filter struct {
	ProfessionalID string
	DocumentID     string
	Outcome        Outcome
	Kind           Kind
	From           time.Time
	To             time.Time
}

// Repository es append-only: no existe update ni delete en el contrato.
type Repository interface {
	// Append asigna Seq y persiste. Nunca falla en silencio: si el
	// storage no responde, el error sube al caller.
	Append(ctx context.Context, e Event) (Event, error)

	// Query devuelve eventos del tenant ordenados por (occurred_at, seq) asc.
	Query(ctx context.Context, tenantID string, f Filter) ([]Event, error)
}
