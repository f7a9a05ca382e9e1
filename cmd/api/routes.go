package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"ofsync/internal/shared/config"
	"ofsync/internal/shared/middleware"
)

// SetupRoutes configures all HTTP routes and returns the final handler with middleware.
func SetupRoutes(deps *Dependencies, cfg *config.Config, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Logging(log))
	if cfg.Telemetry.Enabled {
		r.Use(middleware.Tracing)
	}
	r.Use(middleware.CORS(cfg.Server.AllowedHosts))

	// Apply security middleware when TLS is enabled
	if cfg.TLS.Enabled {
		r.Use(middleware.HSTS)
		log.Info("TLS security middleware enabled (HSTS)")
	}

	// Health check
	r.Get("/health", deps.HealthHandler.HandleHealth)

	r.Route("/api/openfinance", func(r chi.Router) {
		// Aggregator-facing; authenticated by the HMAC signature instead.
		r.Post("/webhook", deps.OpenFinanceHandler.HandleWebhook)

		// Operator-facing
		r.With(middleware.ServiceAuth(deps.ServiceKeys)).
			Post("/sync", deps.OpenFinanceHandler.HandleSync)

		// User-facing
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(deps.IdentityVerifier))

			r.Post("/connect", deps.OpenFinanceHandler.HandleConnect)

			r.Get("/links", deps.LinkHandler.HandleListLinks)
			r.Get("/links/{linkID}", deps.LinkHandler.HandleGetLink)
			r.Delete("/links/{linkID}", deps.OpenFinanceHandler.HandleDisconnect)
			r.Get("/links/{linkID}/sync-logs", deps.LinkHandler.HandleSyncLogs)

			r.Get("/accounts", deps.AccountHandler.HandleListAccounts)
			r.Get("/accounts/{accountID}", deps.AccountHandler.HandleGetAccount)

			r.Get("/transactions", deps.TransactionHandler.HandleListTransactions)

			r.Get("/summary", deps.SummaryHandler.HandleSummary)
		})
	})

	return r
}
