package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCORS(t *testing.T) {
	tests := []struct {
		name        string
		allowed     []string
		method      string
		origin      string
		preflight   bool
		wantOrigin  string
		wantMethods string
		wantCalled  bool
	}{
		{name: "listed origin echoed", allowed: []string{"https://reginaldkargbo.com"}, method: http.MethodGet, origin: "https://reginaldkargbo.com", wantOrigin: "https://reginaldkargbo.com", wantMethods: corsAllowedMethods, wantCalled: true},
		{name: "unknown origin gets nothing", allowed: []string{"https://reginaldkargbo.com"}, method: http.MethodGet, origin: "https://evil.example", wantCalled: true},
		{name: "wildcard ignores origin", allowed: []string{" * "}, method: http.MethodPost, origin: "https://random.example", wantOrigin: "*", wantMethods: corsAllowedMethods, wantCalled: true},
		{name: "wildcard without origin header", allowed: []string{"*"}, method: http.MethodDelete, wantOrigin: "*", wantMethods: corsAllowedMethods, wantCalled: true},
		{name: "preflight short circuits", allowed: []string{"*"}, method: http.MethodOptions, origin: "https://reginaldkargbo.com", preflight: true, wantOrigin: "*", wantMethods: corsAllowedMethods},
		{name: "bare options reaches handler", allowed: []string{"*"}, method: http.MethodOptions, wantOrigin: "*", wantMethods: corsAllowedMethods, wantCalled: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusNoContent)
			})

			req := httptest.NewRequest(tt.method, "/bookings", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rec := httptest.NewRecorder()
			CORS(tt.allowed)(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCalled, called)
			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantMethods, rec.Header().Get("Access-Control-Allow-Methods"))
			if tt.wantMethods != "" {
				assert.Equal(t, corsAllowedHeaders, rec.Header().Get("Access-Control-Allow-Headers"))
			}
			if tt.preflight {
				assert.Equal(t, http.StatusOK, rec.Code)
				assert.Zero(t, rec.Body.Len())
			}
		})
	}
}
