package policies

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"clinical-access-engine/internal/middleware"
	"clinical-access-engine/internal/ports/auth"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/policies", func(pr chi.Router) {
		pr.Post("/", createPolicyHandler(svc))
		pr.Get("/", listActivePoliciesHandler(svc))
		pr.Post("/{policyID}/revoke", revokePolicyHandler(svc))
	})
}

type scopePayload struct {
	Kind          string   `json:"kind"`
	DocumentTypes []string `json:"document_types,omitempty"`
	DocumentID    string   `json:"document_id,omitempty"`
}

type durationPayload struct {
	Kind      string     `json:"kind"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	// Alternativa relativa: temporary con days calcula expires_at
	// como ahora + days. Ignorado si viene expires_at explícito.
	Days int `json:"days,omitempty"`
}

type createPolicyRequest struct {
	ProfessionalID string          `json:"professional_id"`
	Scope          scopePayload    `json:"scope"`
	Duration       durationPayload `json:"duration"`
}

type policyResponse struct {
	ID             string         `json:"id"`
	TenantID       string         `json:"tenant_id"`
	ProfessionalID string         `json:"professional_id"`
	Scope          scopePayload   `json:"scope"`
	Duration       DurationKind   `json:"duration"`
	ExpiresAt      *time.Time     `json:"expires_at,omitempty"`
	Management     ManagementType `json:"management"`
	Status         Status         `json:"status"`
	CreatedAt      time.Time      `json:"created_at"`
	RevokedAt      *time.Time     `json:"revoked_at,omitempty"`
	RevokedBy      string         `json:"revoked_by,omitempty"`
}

func createPolicyHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireAdmin(w, r)
		if !ok {
			return
		}

		var req createPolicyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		dur, err := ToDuration(req.Duration.Kind, req.Duration.ExpiresAt, req.Duration.Days, time.Now())
		if err != nil {
			http.Error(w, "invalid duration", http.StatusBadRequest)
			return
		}

		p, err := svc.Create(r.Context(), claims.TenantID, claims.ProfessionalID, CreateInput{
			ProfessionalID: req.ProfessionalID,
			Scope:          ToScope(req.Scope.Kind, req.Scope.DocumentTypes, req.Scope.DocumentID),
			Duration:       dur,
		})
		if err != nil {
			writePolicyError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toPolicyResponse(p))
	}
}

// GET /policies?professional_id=
// Sin query param lista las políticas vigentes del propio caller;
// consultar a otro profesional requiere rol admin.
func listActivePoliciesHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.TenantID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		professionalID := strings.TrimSpace(r.URL.Query().Get("professional_id"))
		if professionalID == "" {
			professionalID = claims.ProfessionalID
		}
		if professionalID != claims.ProfessionalID && claims.Role != auth.RoleAdmin {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		items, err := svc.ActiveForProfessional(r.Context(), claims.TenantID, professionalID)
		if err != nil {
			writePolicyError(w, err)
			return
		}

		out := make([]policyResponse, 0, len(items))
		for _, p := range items {
			out = append(out, toPolicyResponse(p))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func revokePolicyHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireAdmin(w, r)
		if !ok {
			return
		}

		policyID := chi.URLParam(r, "policyID")
		p, err := svc.Revoke(r.Context(), claims.TenantID, policyID, claims.ProfessionalID)
		if err != nil {
			writePolicyError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toPolicyResponse(p))
	}
}

func requireAdmin(w http.ResponseWriter, r *http.Request) (auth.Claims, bool) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok || strings.TrimSpace(claims.TenantID) == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return auth.Claims{}, false
	}
	if claims.Role != auth.RoleAdmin {
		http.Error(w, "forbidden", http.StatusForbidden)
		return auth.Claims{}, false
	}
	return claims, true
}

func writePolicyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, ErrConflict):
		http.Error(w, "already revoked", http.StatusConflict)
	case errors.Is(err, ErrUnavailable):
		http.Error(w, "policy store unavailable", http.StatusServiceUnavailable)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// ToScope arma un Scope desde el payload crudo. La validación fuerte
// queda en Scope.Validate (la hace el service).
func ToScope(kind string, documentTypes []string, documentID string) Scope {
	return Scope{
		Kind:          ScopeKind(strings.TrimSpace(kind)),
		DocumentTypes: normalizeTypes(documentTypes),
		DocumentID:    strings.TrimSpace(documentID),
	}
}

// ToDuration resuelve la forma relativa (days) a un expires_at absoluto.
func ToDuration(kind string, expiresAt *time.Time, days int, now time.Time) (Duration, error) {
	k := DurationKind(strings.TrimSpace(kind))
	switch k {
	case DurationIndefinite:
		return Duration{Kind: DurationIndefinite}, nil
	case DurationTemporary:
		if expiresAt != nil {
			t := expiresAt.UTC()
			return Duration{Kind: DurationTemporary, ExpiresAt: &t}, nil
		}
		if days <= 0 {
			return Duration{}, ErrInvalidInput
		}
		t := now.UTC().Add(time.Duration(days) * 24 * time.Hour)
		return Duration{Kind: DurationTemporary, ExpiresAt: &t}, nil
	default:
		return Duration{}, ErrInvalidInput
	}
}

func normalizeTypes(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, raw := range in {
		dt := strings.TrimSpace(raw)
		if dt == "" {
			continue
		}
		if _, ok := seen[dt]; ok {
			continue
		}
		seen[dt] = struct{}{}
		out = append(out, dt)
	}
	return out
}

func toPolicyResponse(p AccessPolicy) policyResponse {
	return policyResponse{
		ID:             p.ID,
		TenantID:       p.TenantID,
		ProfessionalID: p.ProfessionalID,
		Scope: scopePayload{
			Kind:          string(p.Scope.Kind),
			DocumentTypes: p.Scope.DocumentTypes,
			DocumentID:    p.Scope.DocumentID,
		},
		Duration:   p.Duration.Kind,
		ExpiresAt:  p.Duration.ExpiresAt,
		Management: p.Management,
		Status:     p.Status,
		CreatedAt:  p.CreatedAt,
		RevokedAt:  p.RevokedAt,
		RevokedBy:  p.RevokedBy,
	}
}

// writeJSON está duplicado intencionalmente en handlers de distintos módulos
// para evitar crear paquetes/helpers compartidos demasiado pronto.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
