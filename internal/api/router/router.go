package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/report-ivr/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/report-ivr/internal/http/middleware"
	"github.com/wolfman30/report-ivr/pkg/logging"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SessionCounter exposes the number of calls in progress.
type SessionCounter interface {
	Active() int
}

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	CarrierWebhook *handlers.CarrierWebhookHandler
	MetricsHandler http.Handler
	Sessions       SessionCounter
	Database       Pinger

	CarrierWebhookSecret string
	WebhookRateLimit     float64
	WebhookRateBurst     int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", healthHandler(cfg))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.CarrierWebhook != nil {
		r.Route("/webhooks/carrier", func(carrier chi.Router) {
			if cfg.WebhookRateLimit > 0 {
				carrier.Use(httpmiddleware.RateLimit(cfg.WebhookRateLimit, cfg.WebhookRateBurst))
			}
			carrier.Use(httpmiddleware.CarrierJWT(cfg.CarrierWebhookSecret))
			carrier.Post("/events", cfg.CarrierWebhook.HandleEvent)
		})
	}

	return r
}

func healthHandler(cfg *Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{"status": "ok"}
		status := http.StatusOK
		if cfg.Sessions != nil {
			resp["active_calls"] = cfg.Sessions.Active()
		}
		if cfg.Database != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := cfg.Database.Ping(ctx); err != nil {
				resp["status"] = "degraded"
				resp["database"] = err.Error()
				status = http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
