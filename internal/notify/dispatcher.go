package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/reginald441/reginaldkargbo-site/pkg/logging"
)

// DefaultStagger is the pause between the operator and client hand-offs.
const DefaultStagger = 500 * time.Millisecond

// Dispatcher sends the operator notice, waits the stagger, then sends the client receipt.
type Dispatcher struct {
	composer Composer
	renderer *Renderer
	stagger  time.Duration
	logger   *logging.Logger
	wg       sync.WaitGroup
}

// DispatcherOption customizes a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithStagger overrides DefaultStagger. Zero disables the pause.
func WithStagger(d time.Duration) DispatcherOption {
	return func(disp *Dispatcher) {
		if d >= 0 {
			disp.stagger = d
		}
	}
}

// WithRenderer replaces the default renderer.
func WithRenderer(r *Renderer) DispatcherOption {
	return func(disp *Dispatcher) {
		if r != nil {
			disp.renderer = r
		}
	}
}

func NewDispatcher(composer Composer, logger *logging.Logger, opts ...DispatcherOption) *Dispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	d := &Dispatcher{
		composer: composer,
		renderer: NewRenderer(DefaultBusiness),
		stagger:  DefaultStagger,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Renderer exposes the templates, e.g. for writing a downloadable receipt.
func (d *Dispatcher) Renderer() *Renderer {
	return d.renderer
}

// Dispatch renders both messages and hands them to the composer in order. A failed
// operator hand-off does not stop the client receipt.
func (d *Dispatcher) Dispatch(ctx context.Context, c Confirmation) error {
	if d.composer == nil {
		return fmt.Errorf("notify: no composer configured")
	}
	operator, err := d.renderer.Operator(c)
	if err != nil {
		return err
	}
	client, err := d.renderer.Client(c)
	if err != nil {
		return err
	}

	opErr := d.composer.Compose(ctx, operator)
	if opErr != nil {
		d.logger.Warn("operator notification failed", "receipt", c.ReceiptID, "error", opErr)
	}

	if d.stagger > 0 {
		timer := time.NewTimer(d.stagger)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	if err := d.composer.Compose(ctx, client); err != nil {
		return fmt.Errorf("notify: client receipt: %w", err)
	}
	if opErr != nil {
		return fmt.Errorf("notify: operator notice: %w", opErr)
	}
	return nil
}

// DispatchAsync runs Dispatch in the background. Failures are logged only.
func (d *Dispatcher) DispatchAsync(ctx context.Context, c Confirmation) {
	ctx = context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.Dispatch(ctx, c); err != nil {
			d.logger.Error("booking notification failed", "receipt", c.ReceiptID, "error", err)
			return
		}
		d.logger.Info("booking notifications dispatched", "receipt", c.ReceiptID)
	}()
}

// Wait blocks until every DispatchAsync call has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
