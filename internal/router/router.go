package router

import (
	"database/sql"
	"net/http"
	"os"

	mem "clinical-access-engine/internal/adapters/storage/memory"
	pg "clinical-access-engine/internal/adapters/storage/postgres"
	"clinical-access-engine/internal/domain/audit"
	"clinical-access-engine/internal/domain/decisions"
	"clinical-access-engine/internal/domain/policies"
	"clinical-access-engine/internal/domain/reports"
	"clinical-access-engine/internal/domain/requests"
	"clinical-access-engine/internal/middleware"
	"clinical-access-engine/internal/platform/logger"
	"clinical-access-engine/internal/ports/auth"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type Options struct {
	AuthVerifier auth.AuthVerifier // puede ser nil (modo dev)

	// Opcional: si viene, usa Postgres. Si no, in-memory.
	DB *sql.DB

	Log *zap.SugaredLogger // nil => Nop
}

func NewRouter(opts Options) http.Handler {
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(log))

	r.Use(middleware.AuthContext(opts.AuthVerifier))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	var (
		policiesRepo policies.Repository
		requestsRepo requests.Repository
		auditRepo    audit.Repository
	)

	// Si no te pasan DB explícita, intenta por env (para dev/handoff)
	db := opts.DB
	if db == nil {
		if dsn := os.Getenv("DB_DSN"); dsn != "" {
			opened, err := pg.Open(dsn)
			if err == nil {
				db = opened
			} else {
				log.Warnw("postgres unavailable, falling back to in-memory", "error", err)
			}
		}
	}

	if db != nil {
		policiesRepo = pg.NewPoliciesRepo(db)
		requestsRepo = pg.NewRequestsRepo(db)
		auditRepo = pg.NewAuditRepo(db)
	} else {
		store := mem.NewStore()
		policiesRepo = store.Policies()
		requestsRepo = store.Requests()
		auditRepo = store.Audit()
	}

	// Services por módulo. El audit service es el Recorder de todos:
	// ningún camino de escritura queda sin evento.
	auditSvc := audit.NewService(auditRepo)
	policiesSvc := policies.NewService(policiesRepo, auditSvc)
	requestsSvc := requests.NewService(requestsRepo, auditSvc)
	decisionsSvc := decisions.NewService(policiesSvc, auditSvc)
	reportsSvc := reports.NewService(auditSvc, policiesSvc, requestsSvc)

	// Rutas por módulo
	policies.RegisterRoutes(r, policiesSvc)
	requests.RegisterRoutes(r, requestsSvc)
	decisions.RegisterRoutes(r, decisionsSvc)
	audit.RegisterRoutes(r, auditSvc)
	reports.RegisterRoutes(r, reportsSvc)

	return r
}
