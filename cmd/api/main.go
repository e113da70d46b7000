package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/reginald441/reginaldkargbo-site/internal/api/router"
	"github.com/reginald441/reginaldkargbo-site/internal/app/bootstrap"
	"github.com/reginald441/reginaldkargbo-site/internal/bookings"
	appconfig "github.com/reginald441/reginaldkargbo-site/internal/config"
	"github.com/reginald441/reginaldkargbo-site/internal/observability/metrics"
	"github.com/reginald441/reginaldkargbo-site/internal/payments"
	"github.com/reginald441/reginaldkargbo-site/internal/slots"
	"github.com/reginald441/reginaldkargbo-site/pkg/logging"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.NewWithWriter(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	logger.Info("starting consultation booking API",
		"env", cfg.Env,
		"port", cfg.Port,
		"store", cfg.StoreBackend,
	)

	ctx := context.Background()
	srv, store, err := newServer(ctx, cfg, logger, prometheus.NewRegistry())
	if err != nil {
		logger.Error("failed to initialize server", "error", err)
		os.Exit(1)
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if err := store.Close(shutdownCtx); err != nil {
		logger.Error("failed to close store", "error", err)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// newServer wires the store, services and router described by cfg.
func newServer(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, reg *prometheus.Registry) (*http.Server, *bootstrap.StoreHandle, error) {
	loc, err := slots.LoadLocation(cfg.BusinessTimezone)
	if err != nil {
		return nil, nil, err
	}

	store, err := bootstrap.BuildStore(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	svc := bookings.NewService(store.Store, logger, bookings.WithMetrics(metrics.NewBookingMetrics(reg)))

	routerCfg := &router.Config{
		Logger: logger,
		BookingsHandler: bookings.NewHandler(svc, slots.Options{
			Location:  loc,
			ZoneLabel: cfg.BusinessZoneLabel,
			LeadTime:  cfg.SlotLeadTime,
		}, logger),
		MetricsHandler:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
		HealthCheck:        store.Ping,
	}
	if cfg.StripeWebhookSecret != "" {
		routerCfg.StripeWebhook = payments.NewStripeWebhookHandler(cfg.StripeWebhookSecret, svc, metrics.NewPaymentMetrics(reg), logger)
	} else {
		logger.Warn("STRIPE_WEBHOOK_SECRET not set; stripe webhook disabled")
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router.New(routerCfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return srv, store, nil
}
