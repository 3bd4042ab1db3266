package server

import (
	"log/slog"
	"net/http"
)

// defaultMaxUploadBytes caps request bodies at 2 GiB.
const defaultMaxUploadBytes = 2 << 30

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
	// MaxUploadBytes caps the request body size; 0 disables the limit.
	MaxUploadBytes int64
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
		MaxUploadBytes: defaultMaxUploadBytes,
	}
}

// NewRouter creates a new HTTP router with all routes configured.
// It uses Go 1.22+ ServeMux with method-based routing.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	mux := http.NewServeMux()

	// Register routes with method-based patterns (Go 1.22+)
	mux.HandleFunc("GET /healthz", h.Health)
	mux.HandleFunc("POST /api/v1/videos", h.CreateJob)
	mux.HandleFunc("GET /api/v1/jobs", h.ListJobs)
	mux.HandleFunc("GET /api/v1/jobs/{id}", h.GetJob)
	mux.HandleFunc("GET /api/v1/jobs/{id}/download", h.DownloadJob)
	mux.HandleFunc("DELETE /api/v1/jobs/{id}", h.DeleteJob)

	// Apply middleware chain
	chain := ChainMiddleware(
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		BodyLimitMiddleware(cfg.MaxUploadBytes),
		CORSMiddleware(cfg.AllowedOrigins),
	)

	return chain(mux)
}
