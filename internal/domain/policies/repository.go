package policies

import (
	"context"
	"time"
)

// Repository es dueño exclusivo de las filas de AccessPolicy.
// Toda consulta va parametrizada por tenantID: el aislamiento entre
// tenants es estructural, no una convención.
type Repository interface {
	Create(ctx context.Context, p AccessPolicy) error

	GetByID(ctx context.Context, tenantID, id string) (AccessPolicy, error)

	// ListByProfessional devuelve todas las políticas del grantee
	// (incluidas revocadas/expiradas) ordenadas por created_at asc.
	// El filtrado de vigencia se hace al leer, en el service.
	ListByProfessional(ctx context.Context, tenantID, professionalID string) ([]AccessPolicy, error)

	// ListByTenant alimenta reportes (pronóstico de expiración).
	ListByTenant(ctx context.Context, tenantID string) ([]AccessPolicy, error)

	// Revoke es un compare-and-set sobre status: falla con ErrNotFound si
	// la política no existe en el tenant y con ErrConflict si ya estaba
	// revocada. Devuelve la política ya revocada.
	Revoke(ctx context.Context, tenantID, id, actorID string, at time.Time) (AccessPolicy, error)
}
