package decisions

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"clinical-access-engine/internal/domain/audit"
	"clinical-access-engine/internal/middleware"

	"github.com/go-chi/chi/v5"
)

// POST y no GET: cada evaluación escribe una fila de auditoría.
func RegisterRoutes(r chi.Router, svc *Service) {
	r.Post("/access/evaluate", evaluateHandler(svc))
}

type evaluateRequest struct {
	DocumentID   string `json:"document_id"`
	DocumentType string `json:"document_type"`
}

type evaluateResponse struct {
	Outcome         audit.Outcome `json:"outcome"`
	MatchedPolicyID string        `json:"matched_policy_id,omitempty"`
	EvaluatedAt     time.Time     `json:"evaluated_at"`
}

func evaluateHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.TenantID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req evaluateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		d, err := svc.Evaluate(r.Context(), claims.TenantID, claims.ProfessionalID, req.DocumentID, req.DocumentType)
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidInput):
				http.Error(w, err.Error(), http.StatusBadRequest)
			case errors.Is(err, ErrUnavailable):
				// 503 distinguible de un denied legítimo (que es 200).
				http.Error(w, "evaluator unavailable", http.StatusServiceUnavailable)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		writeJSON(w, http.StatusOK, evaluateResponse{
			Outcome:         d.Outcome,
			MatchedPolicyID: d.MatchedPolicyID,
			EvaluatedAt:     d.EvaluatedAt,
		})
	}
}

// writeJSON está duplicado intencionalmente en handlers de distintos módulos
// para evitar crear paquetes/helpers compartidos demasiado pronto.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
