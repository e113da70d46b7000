package bookings

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reginald441/reginaldkargbo-site/internal/slots"
	"github.com/reginald441/reginaldkargbo-site/pkg/logging"
)

func newTestRouter(t *testing.T) (http.Handler, *Service) {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	svc := newTestService(t, nil)
	h := NewHandler(svc, slots.Options{Location: loc}, logging.Discard())
	r := chi.NewRouter()
	r.Mount("/bookings", h.Routes())
	r.Get("/slots", h.ListSlots)
	return r, svc
}

func doJSON(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHandlerJaneDoeScenario(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/slots", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var calendar struct {
		Slots []SlotView `json:"slots"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &calendar))
	require.Len(t, calendar.Slots, 40)
	first := calendar.Slots[0]
	assert.True(t, first.Available)

	rec = doJSON(t, router, http.MethodPost, "/bookings", map[string]any{
		"timestamp":   first.Timestamp,
		"slotTime":    first.Time,
		"slotDate":    first.DateStr,
		"fullTime":    first.FullTime,
		"clientName":  "Jane Doe",
		"clientEmail": "jane@example.com",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode(t, rec)
	assert.Equal(t, true, created["success"])
	assert.Equal(t, "Booking created successfully", created["message"])
	booking := created["booking"].(map[string]any)
	assert.Equal(t, "pending", booking["paymentStatus"])
	id := booking["id"].(string)

	rec = doJSON(t, router, http.MethodPut, "/bookings", map[string]any{"id": id, "paymentStatus": "completed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "completed", decode(t, rec)["booking"].(map[string]any)["paymentStatus"])

	target := "/bookings?checkAvailability=true&slot=" + jsonNumber(first.Timestamp)
	rec = doJSON(t, router, http.MethodGet, target, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["available"])

	rec = doJSON(t, router, http.MethodPost, "/bookings", map[string]any{
		"timestamp":   first.Timestamp,
		"clientName":  "John Roe",
		"clientEmail": "john@example.com",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	conflict := decode(t, rec)
	assert.Equal(t, "Slot already booked", conflict["error"])
	assert.Equal(t, "This time slot has already been reserved. Please select another time.", conflict["message"])

	rec = doJSON(t, router, http.MethodGet, "/bookings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Bookings []*Booking `json:"bookings"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed.Bookings, 1)
	assert.Equal(t, "Jane Doe", listed.Bookings[0].ClientName)

	rec = doJSON(t, router, http.MethodGet, "/slots", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &calendar))
	assert.False(t, calendar.Slots[0].Available)
	assert.True(t, calendar.Slots[1].Available)
}

func TestHandlerCancelUnknownID(t *testing.T) {
	router, svc := newTestRouter(t)
	_, err := svc.Create(t.Context(), sampleRequest(1791993600000))
	require.NoError(t, err)

	rec := doJSON(t, router, http.MethodDelete, "/bookings?id=BK-does-not-exist", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Booking not found", decode(t, rec)["error"])

	list, err := svc.List(t.Context())
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestHandlerCancel(t *testing.T) {
	router, svc := newTestRouter(t)
	b, err := svc.Create(t.Context(), sampleRequest(1791993600000))
	require.NoError(t, err)

	rec := doJSON(t, router, http.MethodDelete, "/bookings?id="+b.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Booking cancelled successfully", body["message"])
}

func TestHandlerUpdateStatuses(t *testing.T) {
	router, svc := newTestRouter(t)
	b, err := svc.Create(t.Context(), sampleRequest(1791993600000))
	require.NoError(t, err)

	tests := []struct {
		name string
		body map[string]any
		code int
	}{
		{"unknown id", map[string]any{"id": "BK-x", "paymentStatus": "completed"}, http.StatusNotFound},
		{"bad status", map[string]any{"id": b.ID, "paymentStatus": "refunded"}, http.StatusBadRequest},
		{"to failed", map[string]any{"id": b.ID, "paymentStatus": "failed"}, http.StatusOK},
		{"failed to completed", map[string]any{"id": b.ID, "paymentStatus": "completed"}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPut, "/bookings", tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}
}

func TestHandlerBadRequests(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/bookings", map[string]any{"timestamp": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid booking", decode(t, rec)["error"])

	req := httptest.NewRequest(http.MethodPost, "/bookings", bytes.NewBufferString("{"))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/bookings?checkAvailability=true&slot=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerMethodNotAllowedAndOptions(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPatch, "/bookings", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "Method not allowed", decode(t, rec)["error"])

	rec = doJSON(t, router, http.MethodOptions, "/bookings", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestHandlerListEmpty(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/bookings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"bookings":[]}`, rec.Body.String())
}

func jsonNumber(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
