package bookings

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/reginald441/reginaldkargbo-site/internal/slots"
	"github.com/reginald441/reginaldkargbo-site/pkg/logging"
)

const (
	conflictMessage = "This time slot has already been reserved. Please select another time."
	createdMessage  = "Booking created successfully"
	canceledMessage = "Booking cancelled successfully"
)

// Handler serves the /bookings and /slots endpoints.
type Handler struct {
	svc      *Service
	slotOpts slots.Options
	logger   *logging.Logger
}

// NewHandler creates a bookings handler. slotOpts drives GET /slots.
func NewHandler(svc *Service, slotOpts slots.Options, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, slotOpts: slotOpts, logger: logger}
}

// Routes returns the router mounted at /bookings.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.MethodNotAllowed(h.methodNotAllowed)
	r.Get("/", h.Get)
	r.Post("/", h.Create)
	r.Put("/", h.Update)
	r.Delete("/", h.Cancel)
	r.Options("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

type listResponse struct {
	Bookings []*Booking `json:"bookings"`
}

type availabilityResponse struct {
	Available bool `json:"available"`
}

type mutationResponse struct {
	Success bool     `json:"success"`
	Booking *Booking `json:"booking,omitempty"`
	Message string   `json:"message,omitempty"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// Get handles GET /bookings and GET /bookings?checkAvailability=true&slot=<ts>.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("checkAvailability") != "" {
		ts, err := strconv.ParseInt(strings.TrimSpace(q.Get("slot")), 10, 64)
		if err != nil || ts <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid slot", Message: "slot must be a millisecond timestamp"})
			return
		}
		available, err := h.svc.CheckAvailability(r.Context(), ts)
		if err != nil {
			h.internalError(w, "check availability", err)
			return
		}
		writeJSON(w, http.StatusOK, availabilityResponse{Available: available})
		return
	}

	list, err := h.svc.List(r.Context())
	if err != nil {
		h.internalError(w, "list bookings", err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Bookings: list})
}

// Create handles POST /bookings.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode booking request", "error", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body", Message: err.Error()})
		return
	}

	b, err := h.svc.Create(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, mutationResponse{Success: true, Booking: b, Message: createdMessage})
	case errors.Is(err, ErrSlotConflict):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "Slot already booked", Message: conflictMessage})
	case errors.Is(err, ErrInvalidBooking):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid booking", Message: err.Error()})
	default:
		h.internalError(w, "create booking", err)
	}
}

// Update handles PUT /bookings.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode update request", "error", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body", Message: err.Error()})
		return
	}

	b, err := h.svc.Update(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, mutationResponse{Success: true, Booking: b})
	case errors.Is(err, ErrBookingNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Booking not found"})
	case errors.Is(err, ErrInvalidBooking):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid booking", Message: err.Error()})
	case errors.Is(err, ErrSlotConflict):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "Slot already booked", Message: conflictMessage})
	case errors.Is(err, ErrInvalidTransition):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "Invalid status transition"})
	default:
		h.internalError(w, "update booking", err)
	}
}

// Cancel handles DELETE /bookings?id=<id>.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	err := h.svc.Cancel(r.Context(), r.URL.Query().Get("id"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, mutationResponse{Success: true, Message: canceledMessage})
	case errors.Is(err, ErrBookingNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Booking not found"})
	default:
		h.internalError(w, "cancel booking", err)
	}
}

// SlotView is a generated slot annotated with server-side availability.
type SlotView struct {
	slots.TimeSlot
	Available bool `json:"available"`
}

type slotsResponse struct {
	Slots []SlotView `json:"slots"`
}

// ListSlots handles GET /slots: the generated calendar merged with completed bookings.
func (h *Handler) ListSlots(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.List(r.Context())
	if err != nil {
		h.internalError(w, "list slots", err)
		return
	}
	taken := make(map[int64]struct{}, len(list))
	for _, b := range list {
		if b.HoldsSlot() {
			taken[b.Timestamp] = struct{}{}
		}
	}

	generated := slots.Generate(h.svc.now(), h.slotOpts)
	views := make([]SlotView, 0, len(generated))
	for _, s := range generated {
		_, booked := taken[s.Timestamp]
		views = append(views, SlotView{TimeSlot: s, Available: !booked})
	}
	writeJSON(w, http.StatusOK, slotsResponse{Slots: views})
}

func (h *Handler) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed"})
}

func (h *Handler) internalError(w http.ResponseWriter, op string, err error) {
	h.logger.Error("failed to "+op, "error", err)
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
