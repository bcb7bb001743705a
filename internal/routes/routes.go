package routes

import (
	"net/http"

	"checkin/internal/config"
	"checkin/internal/handlers"
	"checkin/internal/logger"
	"checkin/internal/middleware"
	"checkin/internal/services"
)

// SetupRoutes registers the monitor API and wraps the mux with the token
// middleware.
func SetupRoutes(manager *services.Manager, cfg *config.Config, logger *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	// API endpoints
	mux.HandleFunc("/api/view", handlers.ViewWebsocketHandler(manager, logger))
	mux.HandleFunc("/api/attempts", handlers.GetAttemptsHandler(manager, logger))
	mux.HandleFunc("/api/attempts/stats", handlers.GetStatsHandler(manager, logger))
	mux.HandleFunc("/api/renewals", handlers.GetRenewalsHandler(manager, logger))

	// Log endpoints
	mux.HandleFunc("/logs", handlers.ShowTrailHandler(logger))
	mux.HandleFunc("/logs/file", handlers.ShowLogFileHandler(cfg))

	return middleware.TokenMiddleware(cfg.MonitorToken, mux)
}
