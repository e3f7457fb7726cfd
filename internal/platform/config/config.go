package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr      string // :8080 por defecto
	DBDSN     string // vacío => repos in-memory (modo dev)
	LogLevel  string
	LogFormat string
	AppName   string
}

// Load lee un .env opcional (si existe) y luego el entorno.
func Load() Config {
	_ = godotenv.Load()

	addr := ":8080"
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		addr = ":" + v
	}

	return Config{
		Addr:      addr,
		DBDSN:     strings.TrimSpace(os.Getenv("DB_DSN")),
		LogLevel:  os.Getenv("LOG_LEVEL"),
		LogFormat: os.Getenv("LOG_FORMAT"),
		AppName:   os.Getenv("APP_NAME"),
	}
}
