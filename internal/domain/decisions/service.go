package decisions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"clinical-access-engine/internal/domain/audit"
	"clinical-access-engine/internal/domain/policies"
)

var (
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnavailable significa falla de infraestructura, no denegación:
	// el caller debe tratarlo como fail-closed (ningún acceso se otorga).
	ErrUnavailable = errors.New("evaluator unavailable")
)

// PolicySource evita importar el Service de policies completo
// (misma idea que los lookups chicos entre módulos).
type PolicySource interface {
	ActiveForProfessional(ctx context.Context, tenantID, professionalID string) ([]policies.AccessPolicy, error)
}

// Decision es el resultado de una evaluación. Denegar es una respuesta
// válida del negocio, nunca un error.
type Decision struct {
	Outcome         audit.Outcome
	MatchedPolicyID string // vacío en denegación
	EvaluatedAt     time.Time
}

type Service struct {
	src PolicySource
	rec audit.Recorder
	now func() time.Time
}

func NewService(src PolicySource, rec audit.Recorder) *Service {
	return &Service{
		src: src,
		rec: rec,
		now: time.Now,
	}
}

// Evaluate responde si el profesional puede leer el documento y deja
// registro de auditoría incondicionalmente antes de devolver, tanto en
// allowed como en denied. Si el Policy Store o el Audit Log no responden,
// devuelve ErrUnavailable y no se otorga nada (fail-closed).
func (s *Service) Evaluate(ctx context.Context, tenantID, professionalID, documentID, documentType string) (Decision, error) {
	tenantID = strings.TrimSpace(tenantID)
	professionalID = strings.TrimSpace(professionalID)
	documentID = strings.TrimSpace(documentID)
	documentType = strings.TrimSpace(documentType)

	if tenantID == "" || professionalID == "" || documentID == "" || documentType == "" {
		return Decision{}, ErrInvalidInput
	}

	active, err := s.src.ActiveForProfessional(ctx, tenantID, professionalID)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	d := Decision{
		Outcome:     audit.OutcomeDenied,
		EvaluatedAt: s.now(),
	}
	if winner, ok := pickPolicy(active, documentID, documentType); ok {
		d.Outcome = audit.OutcomeAllowed
		d.MatchedPolicyID = winner.ID
	}

	kind := audit.KindAccessDenied
	if d.Outcome == audit.OutcomeAllowed {
		kind = audit.KindAccessAllowed
	}

	if _, err := s.rec.Append(ctx, audit.Event{
		TenantID:       tenantID,
		Kind:           kind,
		ActorID:        professionalID,
		ProfessionalID: professionalID,
		DocumentID:     documentID,
		DocumentType:   documentType,
		Outcome:        d.Outcome,
		PolicyID:       d.MatchedPolicyID,
		OccurredAt:     d.EvaluatedAt,
	}); err != nil {
		// Sin registro no hay acceso: la auditoría no es salteable.
		return Decision{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return d, nil
}

// pickPolicy elige la política que autoriza el intento: gana el scope más
// angosto (specific_document > documents_by_type > all_documents) y, a
// igual angostura, la de created_at más reciente, para que la auditoría
// apunte a la autorización más específica.
func pickPolicy(active []policies.AccessPolicy, documentID, documentType string) (policies.AccessPolicy, bool) {
	var winner policies.AccessPolicy
	found := false

	for _, p := range active {
		if !p.Scope.Matches(documentID, documentType) {
			continue
		}
		if !found {
			winner = p
			found = true
			continue
		}

		pr, wr := scopeRank(p.Scope.Kind), scopeRank(winner.Scope.Kind)
		if pr > wr || (pr == wr && p.CreatedAt.After(winner.CreatedAt)) {
			winner = p
		}
	}

	return winner, found
}

func scopeRank(k policies.ScopeKind) int {
	switch k {
	case policies.ScopeSpecificDocument:
		return 2
	case policies.ScopeDocumentsByType:
		return 1
	case policies.ScopeAllDocuments:
		return 0
	default:
		return -1
	}
}
