package policies

// ScopeKind cerrado: agregar una variante obliga a revisar cada switch.
type ScopeKind string

const (
	ScopeAllDocuments     ScopeKind = "all_documents"
	ScopeDocumentsByType  ScopeKind = "documents_by_type"
	ScopeSpecificDocument ScopeKind = "specific_document"
)

type DurationKind string

const (
	DurationIndefinite DurationKind = "indefinite"
	DurationTemporary  DurationKind = "temporary"
)

type ManagementType string

const (
	// Otorgada por el sistema (p.ej. la clínica tratante de registro).
	ManagementAutomatic ManagementType = "automatic"
	// Solo se crea como efecto terminal de una solicitud aprobada.
	ManagementManual ManagementType = "manual"
)

type Status string

const (
	StatusActive  Status = "active"
	StatusRevoked Status = "revoked"
)
