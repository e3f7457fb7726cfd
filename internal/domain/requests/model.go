package requests

import (
	"time"

	"clinical-access-engine/internal/domain/policies"
)

// Status del workflow: pending es el único estado no terminal.
// No existe transición que salga de approved o rejected.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

type AccessRequest struct {
	ID       string
	TenantID string

	// Profesional que pide el acceso (será el grantee de la política
	// si se aprueba).
	ProfessionalID string

	Scope  policies.Scope
	Reason string

	Status Status

	// Seteados solo al salir de pending.
	DecidedBy    string
	DecidedAt    *time.Time
	DecisionNote string

	CreatedAt time.Time
}
