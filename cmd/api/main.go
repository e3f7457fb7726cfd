package main

import (
	"database/sql"
	"net/http"
	"time"

	"clinical-access-engine/internal/adapters/storage/postgres"
	"clinical-access-engine/internal/platform/config"
	"clinical-access-engine/internal/platform/logger"
	"clinical-access-engine/internal/router"
)

func main() {
	cfg := config.Load()

	log := logger.New(logger.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		App:    cfg.AppName,
	})
	defer func() { _ = log.Sync() }()

	var db *sql.DB
	if cfg.DBDSN != "" {
		opened, err := postgres.Open(cfg.DBDSN)
		if err != nil {
			log.Fatalw("cannot open postgres", "error", err)
		}
		db = opened
		defer func() { _ = db.Close() }()
	} else {
		log.Infow("no DB_DSN set, using in-memory storage")
	}

	r := router.NewRouter(router.Options{
		AuthVerifier: nil, // sin verifier para modo dev
		DB:           db,
		Log:          log,
	})

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	log.Infow("starting server", "addr", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalw("server error", "error", err)
	}
}
