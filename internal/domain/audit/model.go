package audit

import "time"

// Kind del evento de auditoría.
type Kind string

const (
	KindPolicyCreated   Kind = "POLICY_CREATED"
	KindPolicyRevoked   Kind = "POLICY_REVOKED"
	KindRequestCreated  Kind = "REQUEST_CREATED"
	KindRequestApproved Kind = "REQUEST_APPROVED"
	KindRequestRejected Kind = "REQUEST_REJECTED"
	KindAccessAllowed   Kind = "ACCESS_ALLOWED"
	KindAccessDenied    Kind = "ACCESS_DENIED"
)

// Outcome de una evaluación de acceso. Vacío en eventos que no son decisión.
type Outcome string

const (
	OutcomeAllowed Outcome = "allowed"
	OutcomeDenied  Outcome = "denied"
)

// Event es el registro inmutable del log de auditoría. Nunca se actualiza
// ni se borra; una corrección se modela como un evento nuevo.
type Event struct {
	ID       string
	TenantID string

	// Seq lo asigna el store al hacer append: monótono creciente dentro
	// del tenant, desempata timestamps iguales.
	Seq uint64

	Kind    Kind
	ActorID string

	// Campos de decisión de acceso (vacíos en eventos de workflow).
	ProfessionalID string
	DocumentID     string
	DocumentType   string
	Outcome        Outcome

	PolicyID  string
	RequestID string
	Detail    string

	OccurredAt time.Time
}
