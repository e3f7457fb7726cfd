package requests

import (
	"context"

	"clinical-access-engine/internal/domain/audit"
	"clinical-access-engine/internal/domain/policies"
)

// Repository es dueño exclusivo de las filas de AccessRequest y el único
// escritor capaz de crear políticas MANUAL (vía Approve).
//
// Approve y Reject implementan el compare-and-set sobre status: la
// transición solo aplica si la fila sigue pending; el perdedor de una
// carrera recibe ErrConflict, nunca corrupción.
type Repository interface {
	Create(ctx context.Context, r AccessRequest) error

	GetByID(ctx context.Context, tenantID, id string) (AccessRequest, error)

	// ListPending ordena por created_at asc, empates por id asc (FIFO).
	ListPending(ctx context.Context, tenantID string) ([]AccessRequest, error)

	// Approve aplica como unidad atómica: CAS del request a approved,
	// alta de la política manual y append de los eventos de auditoría.
	// O entra todo o no entra nada; ningún lector concurrente puede ver
	// la política sin el request aprobado ni al revés.
	Approve(ctx context.Context, r AccessRequest, p policies.AccessPolicy, events []audit.Event) error

	// Reject aplica el CAS a rejected junto con su evento de auditoría.
	Reject(ctx context.Context, r AccessRequest, event audit.Event) error
}
