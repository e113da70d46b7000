package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/reginald441/reginaldkargbo-site/internal/bookings"
	"github.com/reginald441/reginaldkargbo-site/internal/client"
	"github.com/reginald441/reginaldkargbo-site/internal/notify"
	"github.com/reginald441/reginaldkargbo-site/internal/payments"
)

const (
	policyTitle       = "All bookings are non-refundable"
	policyDescription = "You may reschedule up to 24 hours in advance."
	paidTitle         = "I have completed payment"
)

// BookCmd walks the booking workflow. Flags pre-fill answers; anything missing is prompted.
type BookCmd struct {
	Slot       int64  `help:"Slot start in unix milliseconds. Prompted when omitted."`
	Name       string `help:"Client name."`
	Email      string `help:"Client email."`
	Phone      string `help:"Client phone."`
	Yes        bool   `short:"y" help:"Accept the policy and attest payment without prompting."`
	ReceiptDir string `name:"receipt-dir" help:"Directory to save the text receipt in." type:"path"`
}

func (c *BookCmd) Run(ctx *Context) error {
	if ctx.Payments == nil {
		return payments.ErrNoPaymentLink
	}
	wf := client.NewWorkflow(client.WorkflowDeps{
		API:          ctx.API,
		Availability: ctx.Avail,
		Payments:     ctx.Payments,
		Open:         ctx.Open,
		Notifier:     ctx.Notifier,
		Renderer:     ctx.Dispatcher.Renderer(),
		Logger:       ctx.Logger,
		Now:          ctx.Now,
	})
	defer wf.Close()

	info := client.ClientInfo{Name: c.Name, Email: c.Email, Phone: c.Phone}
	accepted, asked := c.Yes, c.Yes
	for {
		if err := c.selectSlot(ctx, wf); err != nil {
			return err
		}
		if info.Name == "" || info.Email == "" {
			if err := ctx.Prompt.ClientInfo(&info); err != nil {
				return err
			}
		}
		if err := wf.SubmitInfo(info); err != nil {
			return userError(err)
		}

		if !asked {
			ok, err := ctx.Prompt.Confirm(policyTitle, policyDescription)
			if err != nil {
				return err
			}
			accepted, asked = ok, true
		}
		wf.AcknowledgePolicy(accepted)
		if err := wf.StartPayment(ctx.Ctx); err != nil {
			return userError(err)
		}
		ctx.printf("Complete payment at:\n  %s\n", wf.PaymentURL())

		err := c.confirmPaid(ctx, wf)
		if err == nil {
			break
		}
		lost := errors.Is(err, client.ErrSlotUnavailable) || errors.Is(err, bookings.ErrSlotConflict)
		if lost && c.Slot == 0 {
			continue
		}
		return err
	}

	slot, _ := wf.Selected()
	id, _, err := wf.Receipt()
	if err != nil {
		return err
	}
	ctx.printf("Booking confirmed for %s. Receipt #%s\n", slot.FullTime, id)

	if c.ReceiptDir != "" {
		path, err := c.saveReceipt(wf, id)
		if err != nil {
			return err
		}
		ctx.printf("Receipt saved to %s\n", path)
	}
	return nil
}

// selectSlot repeats pickSlot while the chosen slot turns out to be taken and the slot was
// not fixed by flag.
func (c *BookCmd) selectSlot(ctx *Context, wf *client.Workflow) error {
	for {
		err := c.pickSlot(ctx, wf)
		if err == nil {
			return nil
		}
		if errors.Is(err, client.ErrSlotUnavailable) && c.Slot == 0 {
			ctx.printf("%s\n", client.UserMessage(err))
			continue
		}
		return userError(err)
	}
}

// confirmPaid asks for the payment attestation and creates the booking. Transport errors
// are retried when prompting.
func (c *BookCmd) confirmPaid(ctx *Context, wf *client.Workflow) error {
	for {
		if !c.Yes {
			ok, err := ctx.Prompt.Confirm(paidTitle, "The booking is created once you confirm.")
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("payment not confirmed, booking not created")
			}
		}
		_, err := wf.ConfirmPayment(ctx.Ctx)
		if err == nil {
			return nil
		}
		ctx.printf("%s\n", client.UserMessage(err))
		if c.Yes || !errors.Is(err, client.ErrTransport) {
			return err
		}
	}
}

func (c *BookCmd) pickSlot(ctx *Context, wf *client.Workflow) error {
	if err := wf.Start(ctx.Ctx); err != nil {
		return err
	}
	list, degraded, err := ctx.calendar()
	if err != nil {
		return err
	}
	if degraded {
		ctx.printf("Booking service unreachable, showing local history.\n")
	}

	ts := c.Slot
	if ts == 0 {
		open := make([]bookings.SlotView, 0, len(list))
		for _, s := range list {
			if s.Available {
				open = append(open, s)
			}
		}
		if len(open) == 0 {
			return fmt.Errorf("no open slots")
		}
		if ts, err = ctx.Prompt.SelectSlot(open); err != nil {
			return err
		}
	}

	var chosen *bookings.SlotView
	for i := range list {
		if list[i].Timestamp == ts {
			chosen = &list[i]
			break
		}
	}
	if chosen == nil {
		return fmt.Errorf("slot %d is not on the calendar", ts)
	}
	if !chosen.Available || !wf.SelectSlot(chosen.TimeSlot) {
		return client.ErrSlotUnavailable
	}
	return wf.ContinueFromSlot(ctx.Ctx)
}

func (c *BookCmd) saveReceipt(wf *client.Workflow, id string) (string, error) {
	if err := os.MkdirAll(c.ReceiptDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(c.ReceiptDir, notify.ReceiptFilename(id))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := wf.WriteReceipt(f); err != nil {
		_ = f.Close()
		return "", err
	}
	return path, f.Close()
}

func userError(err error) error {
	return fmt.Errorf("%s: %w", client.UserMessage(err), err)
}
