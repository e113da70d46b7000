package client

import (
	"context"
	"time"

	"github.com/reginald441/reginaldkargbo-site/pkg/logging"
)

// DefaultPollInterval is how often an open calendar refreshes availability.
const DefaultPollInterval = 30 * time.Second

// Poller refreshes an Availability on a fixed interval.
type Poller struct {
	avail    *Availability
	interval time.Duration
	logger   *logging.Logger
	onTick   func(error)
}

// NewPoller creates a poller. A non-positive interval uses DefaultPollInterval.
func NewPoller(avail *Availability, interval time.Duration, logger *logging.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Poller{avail: avail, interval: interval, logger: logger}
}

// OnRefresh registers a callback run after every refresh attempt.
func (p *Poller) OnRefresh(fn func(error)) {
	p.onTick = fn
}

// Run refreshes immediately, then every interval until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.refresh(ctx)
		}
	}
}

func (p *Poller) refresh(ctx context.Context) {
	err := p.avail.Refresh(ctx)
	if err != nil && ctx.Err() == nil {
		p.logger.Warn("availability refresh failed", "error", err)
	}
	if p.onTick != nil {
		p.onTick(err)
	}
}
