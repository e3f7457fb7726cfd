package audit

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
	r.Get("/audit", queryAuditHandler(svc))
}

type eventResponse struct {
	ID             string    `json:"id"`
	TenantID       string    `json:"tenant_id"`
	Seq            uint64    `json:"seq"`
	Kind           Kind      `json:"kind"`
	ActorID        string    `json:"actor_id,omitempty"`
	ProfessionalID string    `json:"professional_id,omitempty"`
	DocumentID     string    `json:"document_id,omitempty"`
	DocumentType   string    `json:"document_type,omitempty"`
	Outcome        Outcome   `json:"outcome,omitempty"`
	PolicyID       string    `json:"policy_id,omitempty"`
	RequestID      string    `json:"request_id,omitempty"`
	Detail         string    `json:"detail,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// GET /audit?professional_id=&document_id=&outcome=&kind=&from=&to=
// from/to en RFC3339. Solo admins: el log contiene actividad de todo el tenant.
func queryAuditHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.TenantID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if claims.Role != auth.RoleAdmin {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		q := r.URL.Query()
		f := Filter{
			ProfessionalID: strings.TrimSpace(q.Get("professional_id")),
			DocumentID:     strings.TrimSpace(q.Get("document_id")),
			Outcome:        Outcome(strings.TrimSpace(q.Get("outcome"))),
			Kind:           Kind(strings.TrimSpace(q.Get("kind"))),
		}

		if raw := strings.TrimSpace(q.Get("from")); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				http.Error(w, "invalid from", http.StatusBadRequest)
				return
			}
			f.From = t
		}
		if raw := strings.TrimSpace(q.Get("to")); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				http.Error(w, "invalid to", http.StatusBadRequest)
				return
			}
			f.To = t
		}

		items, err := svc.Query(r.Context(), claims.TenantID, f)
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidInput):
				http.Error(w, err.Error(), http.StatusBadRequest)
			case errors.Is(err, ErrUnavailable):
				http.Error(w, "audit log unavailable", http.StatusServiceUnavailable)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		out := make([]eventResponse, 0, len(items))
		for _, e := range items {
			out = append(out, toEventResponse(e))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func toEventResponse(e Event) eventResponse {
	return eventResponse{
		ID:             e.ID,
		TenantID:       e.TenantID,
		Seq:            e.Seq,
		Kind:           e.Kind,
		ActorID:        e.ActorID,
		ProfessionalID: e.ProfessionalID,
		DocumentID:     e.DocumentID,
		DocumentType:   e.DocumentType,
		Outcome:        e.Outcome,
		PolicyID:       e.PolicyID,
		RequestID:      e.RequestID,
		Detail:         e.Detail,
		OccurredAt:     e.OccurredAt,
	}
}

// writeJSON está duplicado intencionalmente en handlers de distintos módulos
// para evitar crear paquetes/helpers compartidos demasiado pronto.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
