package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/reginald441/reginaldkargbo-site/internal/bookings"
	"github.com/reginald441/reginaldkargbo-site/internal/notify"
	"github.com/reginald441/reginaldkargbo-site/internal/payments"
	"github.com/reginald441/reginaldkargbo-site/internal/slots"
	"github.com/reginald441/reginaldkargbo-site/pkg/logging"
)

// State is a step of the booking workflow.
type State int

const (
	SelectingSlot State = iota
	EnteringInfo
	ReviewingPayment
	AwaitingPaymentConfirmation
	Confirmed
)

func (s State) String() string {
	switch s {
	case SelectingSlot:
		return "selecting_slot"
	case EnteringInfo:
		return "entering_info"
	case ReviewingPayment:
		return "reviewing_payment"
	case AwaitingPaymentConfirmation:
		return "awaiting_payment_confirmation"
	case Confirmed:
		return "confirmed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrSlotUnavailable means the chosen slot was taken before the booking completed.
	ErrSlotUnavailable = errors.New("client: slot no longer available")
	// ErrWorkflowReset means Close ran while the call was in flight; its result was dropped.
	ErrWorkflowReset = errors.New("client: workflow reset")
	// ErrWrongStep means the action is not valid in the current state.
	ErrWrongStep = errors.New("client: action not valid in current step")
	// ErrIncompleteInfo means name or email is missing.
	ErrIncompleteInfo = errors.New("client: name and email are required")
	// ErrPolicyNotAccepted means the non-refundable policy was not acknowledged.
	ErrPolicyNotAccepted = errors.New("client: non-refundable policy must be accepted")
)

// BookingsWriter is the write side of the booking API used by the workflow.
type BookingsWriter interface {
	CreateBooking(ctx context.Context, req bookings.CreateRequest) (*bookings.Booking, error)
}

// PaymentLinker builds the hosted payment page URL.
type PaymentLinker interface {
	URL(email, reference string) string
}

// Notifier hands confirmations to the notification dispatcher without waiting.
type Notifier interface {
	DispatchAsync(ctx context.Context, c notify.Confirmation)
}

// ClientInfo is what the visitor enters about themselves.
type ClientInfo struct {
	Name  string
	Email string
	Phone string
}

// WorkflowDeps wires a Workflow.
type WorkflowDeps struct {
	API          BookingsWriter
	Availability *Availability
	Payments     PaymentLinker
	Open         notify.Opener
	Notifier     Notifier
	Renderer     *notify.Renderer
	Logger       *logging.Logger
	Now          func() time.Time
}

// Workflow is the visitor booking state machine. Network calls run without the lock
// held; Close bumps an epoch so results arriving afterwards are discarded.
type Workflow struct {
	api      BookingsWriter
	avail    *Availability
	payments PaymentLinker
	open     notify.Opener
	notifier Notifier
	renderer *notify.Renderer
	logger   *logging.Logger
	now      func() time.Time

	mu          sync.Mutex
	epoch       uint64
	state       State
	slot        *slots.TimeSlot
	info        ClientInfo
	policyOK    bool
	paymentURL  string
	receiptID   string
	booking     *bookings.Booking
	confirmedAt time.Time
}

func NewWorkflow(deps WorkflowDeps) *Workflow {
	w := &Workflow{
		api:      deps.API,
		avail:    deps.Availability,
		payments: deps.Payments,
		open:     deps.Open,
		notifier: deps.Notifier,
		renderer: deps.Renderer,
		logger:   deps.Logger,
		now:      deps.Now,
	}
	if w.logger == nil {
		w.logger = logging.Default()
	}
	if w.now == nil {
		w.now = time.Now
	}
	if w.renderer == nil {
		w.renderer = notify.NewRenderer(notify.DefaultBusiness)
	}
	if w.open == nil {
		w.open = notify.OpenURL
	}
	return w
}

// Start refreshes availability for a freshly opened booking dialog.
func (w *Workflow) Start(ctx context.Context) error {
	return w.avail.Refresh(ctx)
}

// State returns the current step.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Selected returns the chosen slot, if any.
func (w *Workflow) Selected() (slots.TimeSlot, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.slot == nil {
		return slots.TimeSlot{}, false
	}
	return *w.slot, true
}

// PaymentURL is the hosted payment page opened by StartPayment.
func (w *Workflow) PaymentURL() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.paymentURL
}

// Booking returns the created booking once Confirmed.
func (w *Workflow) Booking() *bookings.Booking {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.booking
}

// SelectSlot records the choice. Slots the current view knows are booked are ignored.
func (w *Workflow) SelectSlot(slot slots.TimeSlot) bool {
	if w.avail.IsBooked(slot.Timestamp) {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != SelectingSlot {
		return false
	}
	s := slot
	w.slot = &s
	return true
}

// ContinueFromSlot re-checks the selection with the server before moving to EnteringInfo.
func (w *Workflow) ContinueFromSlot(ctx context.Context) error {
	w.mu.Lock()
	if w.state != SelectingSlot || w.slot == nil {
		w.mu.Unlock()
		return ErrWrongStep
	}
	epoch, ts := w.epoch, w.slot.Timestamp
	w.mu.Unlock()

	available, err := w.avail.Check(ctx, ts)
	if err != nil {
		return w.settle(epoch, err)
	}
	if !available {
		w.mu.Lock()
		if w.epoch != epoch {
			w.mu.Unlock()
			return ErrWorkflowReset
		}
		w.slot = nil
		w.mu.Unlock()
		w.refresh(ctx)
		return ErrSlotUnavailable
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.epoch != epoch {
		return ErrWorkflowReset
	}
	w.state = EnteringInfo
	return nil
}

// SubmitInfo stores the visitor's details and moves to ReviewingPayment.
func (w *Workflow) SubmitInfo(info ClientInfo) error {
	info = ClientInfo{
		Name:  strings.TrimSpace(info.Name),
		Email: strings.TrimSpace(info.Email),
		Phone: strings.TrimSpace(info.Phone),
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != EnteringInfo {
		return ErrWrongStep
	}
	if info.Name == "" || info.Email == "" {
		return ErrIncompleteInfo
	}
	w.info = info
	w.state = ReviewingPayment
	return nil
}

// AcknowledgePolicy records whether the non-refundable policy was accepted.
func (w *Workflow) AcknowledgePolicy(accepted bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.policyOK = accepted
}

// StartPayment opens the hosted payment page with the email prefilled. No booking exists
// yet, so the link carries no client_reference_id and the Stripe webhook never sees these
// sessions; the booking is created completed by ConfirmPayment instead.
func (w *Workflow) StartPayment(ctx context.Context) error {
	w.mu.Lock()
	if w.state != ReviewingPayment {
		w.mu.Unlock()
		return ErrWrongStep
	}
	if !w.policyOK {
		w.mu.Unlock()
		return ErrPolicyNotAccepted
	}
	if w.payments == nil {
		w.mu.Unlock()
		return payments.ErrNoPaymentLink
	}
	uri := w.payments.URL(w.info.Email, "")
	w.paymentURL = uri
	w.state = AwaitingPaymentConfirmation
	w.mu.Unlock()

	if err := w.open(ctx, uri); err != nil {
		w.logger.Warn("could not open payment page", "error", err)
	}
	return nil
}

// ConfirmPayment is the visitor attesting they paid. The slot is re-checked, then the
// booking is created with a fresh receipt id as its payment reference.
func (w *Workflow) ConfirmPayment(ctx context.Context) (*bookings.Booking, error) {
	w.mu.Lock()
	if w.state != AwaitingPaymentConfirmation || w.slot == nil {
		w.mu.Unlock()
		return nil, ErrWrongStep
	}
	epoch := w.epoch
	slot := *w.slot
	info := w.info
	w.mu.Unlock()

	available, err := w.avail.Check(ctx, slot.Timestamp)
	if err != nil {
		return nil, w.settle(epoch, err)
	}
	if !available {
		if err := w.restart(epoch); err != nil {
			return nil, err
		}
		w.refresh(ctx)
		return nil, ErrSlotUnavailable
	}

	now := w.now()
	receiptID := NewReceiptID(now)
	created, err := w.api.CreateBooking(ctx, bookings.CreateRequest{
		Timestamp:       slot.Timestamp,
		SlotTime:        slot.Time,
		SlotDate:        slot.DateStr,
		FullTime:        slot.FullTime,
		ClientName:      info.Name,
		ClientEmail:     info.Email,
		ClientPhone:     info.Phone,
		StripeSessionID: receiptID,
	})
	if err != nil {
		if errors.Is(err, bookings.ErrSlotConflict) || errors.Is(err, bookings.ErrInvalidBooking) {
			if rerr := w.restart(epoch); rerr != nil {
				return nil, rerr
			}
			w.refresh(ctx)
			return nil, err
		}
		return nil, w.settle(epoch, err)
	}

	w.mu.Lock()
	if w.epoch != epoch {
		w.mu.Unlock()
		return nil, ErrWorkflowReset
	}
	w.state = Confirmed
	w.receiptID = receiptID
	w.booking = created
	w.confirmedAt = now
	w.mu.Unlock()

	if err := w.avail.MarkBooked(ctx, slot.Timestamp); err != nil {
		w.logger.Warn("failed to record booked slot locally", "error", err)
	}
	if w.notifier != nil {
		w.notifier.DispatchAsync(ctx, w.confirmation(info, slot, receiptID, now))
	}
	w.logger.Info("booking confirmed", "receipt", receiptID, "slot_ts", slot.Timestamp)
	return created, nil
}

// Back moves one step toward slot selection.
func (w *Workflow) Back() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch w.state {
	case EnteringInfo:
		w.state = SelectingSlot
	case ReviewingPayment:
		w.state = EnteringInfo
	case AwaitingPaymentConfirmation:
		w.state = ReviewingPayment
	default:
		return ErrWrongStep
	}
	return nil
}

// Receipt returns the downloadable receipt text for a confirmed booking.
func (w *Workflow) Receipt() (id, text string, err error) {
	w.mu.Lock()
	if w.state != Confirmed || w.slot == nil {
		w.mu.Unlock()
		return "", "", ErrWrongStep
	}
	c := w.confirmation(w.info, *w.slot, w.receiptID, w.confirmedAt)
	w.mu.Unlock()

	text, err = w.renderer.Receipt(c)
	return c.ReceiptID, text, err
}

// WriteReceipt writes the receipt text to out.
func (w *Workflow) WriteReceipt(out io.Writer) error {
	_, text, err := w.Receipt()
	if err != nil {
		return err
	}
	_, err = io.WriteString(out, text)
	return err
}

// Close abandons the workflow and returns to an empty SelectingSlot.
func (w *Workflow) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.epoch++
	w.resetLocked()
}

func (w *Workflow) resetLocked() {
	w.state = SelectingSlot
	w.slot = nil
	w.info = ClientInfo{}
	w.policyOK = false
	w.paymentURL = ""
	w.receiptID = ""
	w.booking = nil
	w.confirmedAt = time.Time{}
}

// restart discards the selection after a conflict unless Close already did.
func (w *Workflow) restart(epoch uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.epoch != epoch {
		return ErrWorkflowReset
	}
	w.epoch++
	w.resetLocked()
	return nil
}

func (w *Workflow) settle(epoch uint64, err error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.epoch != epoch {
		return ErrWorkflowReset
	}
	return err
}

func (w *Workflow) refresh(ctx context.Context) {
	if err := w.avail.Refresh(ctx); err != nil {
		w.logger.Warn("availability refresh failed", "error", err)
	}
}

func (w *Workflow) confirmation(info ClientInfo, slot slots.TimeSlot, receiptID string, at time.Time) notify.Confirmation {
	return notify.Confirmation{
		ReceiptID:   receiptID,
		ClientName:  info.Name,
		ClientEmail: info.Email,
		ClientPhone: info.Phone,
		FullTime:    slot.FullTime,
		IssuedAt:    at,
	}
}
