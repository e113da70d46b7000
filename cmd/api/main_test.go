package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	appconfig "github.com/reginald441/reginaldkargbo-site/internal/config"
	"github.com/reginald441/reginaldkargbo-site/pkg/logging"
)

func testConfig() *appconfig.Config {
	return &appconfig.Config{
		Port:                "0",
		StoreBackend:        appconfig.BackendMemory,
		CORSAllowedOrigins:  []string{"*"},
		BusinessTimezone:    "America/New_York",
		BusinessZoneLabel:   "ET",
		SlotLeadTime:        2 * time.Hour,
		StripeWebhookSecret: "whsec_main",
	}
}

func TestNewServerServesBookingsAndMetrics(t *testing.T) {
	srv, store, err := newServer(context.Background(), testConfig(), logging.Discard(), prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("newServer: %v", err)
	}
	defer func() { _ = store.Close(context.Background()) }()

	if srv.Addr != ":0" || srv.ReadTimeout != 15*time.Second {
		t.Fatalf("unexpected server settings: addr=%s read=%s", srv.Addr, srv.ReadTimeout)
	}

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/bookings", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 from /bookings, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"bookings":[]`) {
		t.Fatalf("expected empty bookings list, got %s", rr.Body.String())
	}

	rr = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rr.Body.String(), "go_goroutines") {
		t.Fatalf("expected go collector metrics to be exported")
	}

	rr = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{}`)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected unsigned webhook to be rejected, got %d", rr.Code)
	}
}

func TestNewServerRejectsBadTimezone(t *testing.T) {
	cfg := testConfig()
	cfg.BusinessTimezone = "Mars/Olympus_Mons"
	if _, _, err := newServer(context.Background(), cfg, logging.Discard(), prometheus.NewRegistry()); err == nil {
		t.Fatalf("expected timezone error")
	}
}

func TestNewServerRejectsUnknownBackend(t *testing.T) {
	cfg := testConfig()
	cfg.StoreBackend = "cassandra"
	if _, _, err := newServer(context.Background(), cfg, logging.Discard(), prometheus.NewRegistry()); err == nil {
		t.Fatalf("expected backend error")
	}
}
