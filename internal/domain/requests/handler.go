package requests

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"clinical-access-engine/internal/domain/policies"
	"clinical-access-engine/internal/middleware"
	"clinical-access-engine/internal/ports/auth"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/requests", func(rr chi.Router) {
		rr.Post("/", submitRequestHandler(svc))
		rr.Get("/pending", listPendingHandler(svc))
		rr.Get("/{requestID}", getRequestHandler(svc))
		rr.Post("/{requestID}/approve", approveRequestHandler(svc))
		rr.Post("/{requestID}/reject", rejectRequestHandler(svc))
	})
}

type scopePayload struct {
	Kind          string   `json:"kind"`
	DocumentTypes []string `json:"document_types,omitempty"`
	DocumentID    string   `json:"document_id,omitempty"`
}

type submitRequest struct {
	Scope  scopePayload `json:"scope"`
	Reason string       `json:"reason"`
}

type durationPayload struct {
	Kind      string     `json:"kind"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Days      int        `json:"days,omitempty"`
}

type approveRequest struct {
	Duration durationPayload `json:"duration"`
}

type rejectRequest struct {
	Rationale string `json:"rationale"`
}

type requestResponse struct {
	ID             string       `json:"id"`
	TenantID       string       `json:"tenant_id"`
	ProfessionalID string       `json:"professional_id"`
	Scope          scopePayload `json:"scope"`
	Reason         string       `json:"reason"`
	Status         Status       `json:"status"`
	DecidedBy      string       `json:"decided_by,omitempty"`
	DecidedAt      *time.Time   `json:"decided_at,omitempty"`
	DecisionNote   string       `json:"decision_note,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}

type approveResponse struct {
	Request requestResponse `json:"request"`
	// PolicyID de la política MANUAL sintetizada por la aprobación.
	PolicyID string `json:"policy_id"`
}

func submitRequestHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.TenantID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		scope := policies.ToScope(req.Scope.Kind, req.Scope.DocumentTypes, req.Scope.DocumentID)
		out, err := svc.Submit(r.Context(), claims.TenantID, claims.ProfessionalID, scope, req.Reason)
		if err != nil {
			writeRequestError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toRequestResponse(out))
	}
}

func listPendingHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireAdmin(w, r)
		if !ok {
			return
		}

		items, err := svc.ListPending(r.Context(), claims.TenantID)
		if err != nil {
			writeRequestError(w, err)
			return
		}

		out := make([]requestResponse, 0, len(items))
		for _, it := range items {
			out = append(out, toRequestResponse(it))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// El solicitante puede ver su propio request; el resto requiere admin.
func getRequestHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.TenantID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		out, err := svc.Get(r.Context(), claims.TenantID, chi.URLParam(r, "requestID"))
		if err != nil {
			writeRequestError(w, err)
			return
		}

		if out.ProfessionalID != claims.ProfessionalID && claims.Role != auth.RoleAdmin {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		writeJSON(w, http.StatusOK, toRequestResponse(out))
	}
}

func approveRequestHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireAdmin(w, r)
		if !ok {
			return
		}

		var req approveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		dur, err := policies.ToDuration(req.Duration.Kind, req.Duration.ExpiresAt, req.Duration.Days, time.Now())
		if err != nil {
			http.Error(w, "invalid duration", http.StatusBadRequest)
			return
		}

		out, pol, err := svc.Approve(r.Context(), claims.TenantID, chi.URLParam(r, "requestID"), claims.ProfessionalID, dur)
		if err != nil {
			writeRequestError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, approveResponse{
			Request:  toRequestResponse(out),
			PolicyID: pol.ID,
		})
	}
}

func rejectRequestHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireAdmin(w, r)
		if !ok {
			return
		}

		var req rejectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		out, err := svc.Reject(r.Context(), claims.TenantID, chi.URLParam(r, "requestID"), claims.ProfessionalID, req.Rationale)
		if err != nil {
			writeRequestError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toRequestResponse(out))
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

func writeRequestError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, ErrConflict):
		// Alguien ya decidió este request: el caller refresca estado,
		// no reintenta a ciegas.
		http.Error(w, "request already decided", http.StatusConflict)
	case errors.Is(err, ErrUnavailable):
		http.Error(w, "request store unavailable", http.StatusServiceUnavailable)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func toRequestResponse(r AccessRequest) requestResponse {
	return requestResponse{
		ID:             r.ID,
		TenantID:       r.TenantID,
		ProfessionalID: r.ProfessionalID,
		Scope: scopePayload{
			Kind:          string(r.Scope.Kind),
			DocumentTypes: r.Scope.DocumentTypes,
			DocumentID:    r.Scope.DocumentID,
		},
		Reason:       r.Reason,
		Status:       r.Status,
		DecidedBy:    r.DecidedBy,
		DecidedAt:    r.DecidedAt,
		DecisionNote: r.DecisionNote,
		CreatedAt:    r.CreatedAt,
	}
}

// writeJSON está duplicado intencionalmente en handlers de distintos módulos
// para evitar crear paquetes/helpers compartidos demasiado pronto.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
