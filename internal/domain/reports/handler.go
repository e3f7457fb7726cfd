package reports

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"clinical-access-engine/internal/middleware"
	"clinical-access-engine/internal/ports/auth"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/reports", func(rr chi.Router) {
		rr.Get("/denials", denialsHandler(svc))
		rr.Get("/stale-requests", staleRequestsHandler(svc))
		rr.Get("/expiring-policies", expiringPoliciesHandler(svc))
	})
}

// GET /reports/denials?professional_id=&window_days=7
func denialsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireAdmin(w, r)
		if !ok {
			return
		}

		windowDays := queryInt(r, "window_days", 7)
		rep, err := svc.DenialRate(
			r.Context(),
			claims.TenantID,
			r.URL.Query().Get("professional_id"),
			time.Duration(windowDays)*24*time.Hour,
		)
		if err != nil {
			writeReportError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rep)
	}
}

// GET /reports/stale-requests?older_than_hours=48
func staleRequestsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireAdmin(w, r)
		if !ok {
			return
		}

		olderThanHours := queryInt(r, "older_than_hours", 48)
		rep, err := svc.StalePending(r.Context(), claims.TenantID, time.Duration(olderThanHours)*time.Hour)
		if err != nil {
			writeReportError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rep)
	}
}

// GET /reports/expiring-policies?within_days=30
func expiringPoliciesHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireAdmin(w, r)
		if !ok {
			return
		}

		withinDays := queryInt(r, "within_days", 30)
		rep, err := svc.ExpiryForecast(r.Context(), claims.TenantID, withinDays)
		if err != nil {
			writeReportError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rep)
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

func queryInt(r *http.Request, key string, def int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func writeReportError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrUnavailable):
		http.Error(w, "report sources unavailable", http.StatusServiceUnavailable)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// writeJSON está duplicado intencionalmente en handlers de distintos módulos
// para evitar crear paquetes/helpers compartidos demasiado pronto.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
