package policies

import (
	"strings"
	"time"
)

// Scope define qué documentos cubre una política (o una solicitud).
type Scope struct {
	Kind ScopeKind

	// Solo para documents_by_type.
	DocumentTypes []string

	// Solo para specific_document.
	DocumentID string
}

// Validate aplica las invariantes de forma:
// - by_type exige un set de tipos no vacío y sin documento puntual
// - specific_document exige un id y ningún set de tipos
// - all_documents no lleva ninguno de los dos
func (s Scope) Validate() error {
	switch s.Kind {
	case ScopeAllDocuments:
		if len(s.DocumentTypes) != 0 || strings.TrimSpace(s.DocumentID) != "" {
			return ErrInvalidInput
		}
	case ScopeDocumentsByType:
		if len(s.DocumentTypes) == 0 || strings.TrimSpace(s.DocumentID) != "" {
			return ErrInvalidInput
		}
		for _, dt := range s.DocumentTypes {
			if strings.TrimSpace(dt) == "" {
				return ErrInvalidInput
			}
		}
	case ScopeSpecificDocument:
		if strings.TrimSpace(s.DocumentID) == "" || len(s.DocumentTypes) != 0 {
			return ErrInvalidInput
		}
	default:
		return ErrInvalidInput
	}
	return nil
}

// Matches decide si el scope cubre el intento (documentId, documentType).
func (s Scope) Matches(documentID, documentType string) bool {
	switch s.Kind {
	case ScopeAllDocuments:
		return true
	case ScopeDocumentsByType:
		for _, dt := range s.DocumentTypes {
			if dt == documentType {
				return true
			}
		}
		return false
	case ScopeSpecificDocument:
		return s.DocumentID == documentID
	default:
		return false
	}
}

type Duration struct {
	Kind DurationKind

	// Requerido sii Kind == temporary.
	ExpiresAt *time.Time
}

func (d Duration) Validate() error {
	switch d.Kind {
	case DurationIndefinite:
		if d.ExpiresAt != nil {
			return ErrInvalidInput
		}
	case DurationTemporary:
		if d.ExpiresAt == nil || d.ExpiresAt.IsZero() {
			return ErrInvalidInput
		}
	default:
		return ErrInvalidInput
	}
	return nil
}

type AccessPolicy struct {
	ID             string
	TenantID       string
	ProfessionalID string // grantee

	Scope      Scope
	Duration   Duration
	Management ManagementType

	Status    Status
	CreatedAt time.Time

	// Revocación = borrado lógico; la fila nunca se elimina físicamente.
	RevokedAt *time.Time
	RevokedBy string
}

// Expired aplica la expiración perezosa: una temporaria con expiresAt
// en el pasado se trata como ausente, sin sweep de fondo.
func (p AccessPolicy) Expired(at time.Time) bool {
	if p.Duration.Kind != DurationTemporary || p.Duration.ExpiresAt == nil {
		return false
	}
	return !p.Duration.ExpiresAt.After(at)
}

// Active: no revocada y no expirada al momento dado.
func (p AccessPolicy) Active(at time.Time) bool {
	return p.Status == StatusActive && !p.Expired(at)
}
