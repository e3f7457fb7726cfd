package memory

import (
	"sync"

	"clinical-access-engine/internal/domain/audit"
	"clinical-access-engine/internal/domain/policies"
	"clinical-access-engine/internal/domain/requests"
)

// Store agrupa las tres tablas in-memory bajo un solo mutex: así el
// Approve compuesto (request + política + auditoría) es atómico también
// en modo dev, igual que la transacción SQL en Postgres.
type Store struct {
	mu sync.RWMutex

	policies map[string]policies.AccessPolicy
	requests map[string]requests.AccessRequest
	events   []audit.Event

	// Secuencia monótona por tenant para ordenar la auditoría de forma
	// determinística incluso con timestamps iguales.
	seq map[string]uint64
}

func NewStore() *Store {
	return &Store{
		policies: make(map[string]policies.AccessPolicy),
		requests: make(map[string]requests.AccessRequest),
		events:   make([]audit.Event, 0),
		seq:      make(map[string]uint64),
	}
}

func (s *Store) Policies() policies.Repository { return &policiesRepo{s: s} }
func (s *Store) Requests() requests.Repository { return &requestsRepo{s: s} }
func (s *Store) Audit() audit.Repository       { return &auditRepo{s: s} }

// appendEventLocked asigna seq y guarda. El caller sostiene s.mu.
func (s *Store) appendEventLocked(e audit.Event) audit.Event {
	s.seq[e.TenantID]++
	e.Seq = s.seq[e.TenantID]
	s.events = append(s.events, e)
	return e
}
