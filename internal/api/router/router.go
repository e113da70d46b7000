package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/reginald441/reginaldkargbo-site/internal/bookings"
	httpmiddleware "github.com/reginald441/reginaldkargbo-site/internal/http/middleware"
	"github.com/reginald441/reginaldkargbo-site/internal/payments"
	"github.com/reginald441/reginaldkargbo-site/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	BookingsHandler    *bookings.Handler
	StripeWebhook      *payments.StripeWebhookHandler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int

	// HealthCheck reports store reachability. Nil means always healthy.
	HealthCheck func(context.Context) error
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", healthHandler(cfg.HealthCheck))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}
	if cfg.StripeWebhook != nil {
		r.Post("/webhooks/stripe", cfg.StripeWebhook.Handle)
	}

	// Public booking API, rate limited per client IP.
	r.Group(func(api chi.Router) {
		api.Use(httpmiddleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
		if cfg.BookingsHandler != nil {
			api.Mount("/bookings", cfg.BookingsHandler.Routes())
			api.Get("/slots", cfg.BookingsHandler.ListSlots)
		}
	})

	return r
}

type healthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func healthHandler(check func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(w).Encode(healthResponse{Status: "unavailable", Error: err.Error()})
				return
			}
		}
		_ = json.NewEncoder(w).Encode(healthResponse{Status: "ok"})
	}
}
