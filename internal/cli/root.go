// Package cli implements bookingctl, the operator and walk-in booking tool that talks to
// the booking API.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/alecthomas/kong"

	"github.com/reginald441/reginaldkargbo-site/internal/app/bootstrap"
	"github.com/reginald441/reginaldkargbo-site/internal/client"
	"github.com/reginald441/reginaldkargbo-site/internal/config"
	"github.com/reginald441/reginaldkargbo-site/internal/notify"
	"github.com/reginald441/reginaldkargbo-site/internal/payments"
	"github.com/reginald441/reginaldkargbo-site/internal/slots"
	"github.com/reginald441/reginaldkargbo-site/pkg/logging"
)

// Globals are the flags shared by every command.
type Globals struct {
	APIURL      string `name:"api-url" help:"Booking API base URL." env:"BOOKING_API_URL" default:"http://localhost:8080"`
	Mirror      string `help:"SQLite file remembering slots booked from this machine. Empty keeps it in memory." env:"BOOKING_MIRROR_PATH"`
	LogFile     string `name:"log-file" help:"Rotating log file. Empty logs warnings to stderr." env:"BOOKING_LOG_FILE"`
	LogLevel    string `name:"log-level" help:"Log level." default:"info" enum:"debug,info,warn,error"`
	PaymentLink string `name:"payment-link" help:"Hosted payment page URL." env:"PAYMENT_LINK_URL"`
	Timezone    string `help:"Business timezone used when the calendar is built locally." env:"BUSINESS_TIMEZONE" default:"America/New_York"`
	Notify      string `help:"How confirmations are handed off." default:"mailto" enum:"mailto,sendgrid,ses,none"`

	SendGridAPIKey string `name:"sendgrid-api-key" help:"SendGrid key for --notify=sendgrid." env:"SENDGRID_API_KEY"`
	FromEmail      string `name:"from-email" help:"Sender address for sendgrid and ses." env:"NOTIFY_FROM_EMAIL"`
	AWSRegion      string `name:"aws-region" help:"Region for --notify=ses." env:"AWS_REGION" default:"us-east-1"`
	AWSEndpoint    string `name:"aws-endpoint" help:"AWS endpoint override, e.g. LocalStack." env:"AWS_ENDPOINT_OVERRIDE"`
}

// CLI is the bookingctl command tree.
type CLI struct {
	Globals

	Version  kong.VersionFlag `help:"Print version and exit."`
	Slots    SlotsCmd         `cmd:"" help:"Show the consultation calendar."`
	Bookings BookingsCmd      `cmd:"" help:"List bookings with status totals."`
	Check    CheckCmd         `cmd:"" help:"Check whether a slot is free."`
	Book     BookCmd          `cmd:"" help:"Book a consultation step by step."`
	Cancel   CancelCmd        `cmd:"" help:"Cancel a booking by id."`
	Mark     MarkCmd          `cmd:"" help:"Set the payment status of a booking."`
	Watch    WatchCmd         `cmd:"" help:"Poll availability and print changes."`
}

// Context is what every command runs against.
type Context struct {
	Ctx        context.Context
	Out        io.Writer
	Logger     *logging.Logger
	API        *client.Client
	Mirror     client.Mirror
	Avail      *client.Availability
	Payments   client.PaymentLinker
	Dispatcher *notify.Dispatcher
	Notifier   client.Notifier
	Open       notify.Opener
	Prompt     Prompter
	SlotOpts   slots.Options
	Now        func() time.Time

	closers []func() error
}

// NewContext builds the command context from parsed flags.
func NewContext(ctx context.Context, g Globals, out io.Writer) (*Context, error) {
	logger, err := newLogger(g)
	if err != nil {
		return nil, err
	}
	api, err := client.New(g.APIURL, client.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	loc, err := slots.LoadLocation(g.Timezone)
	if err != nil {
		return nil, err
	}

	c := &Context{
		Ctx:      ctx,
		Out:      out,
		Logger:   logger,
		API:      api,
		Open:     notify.OpenURL,
		Prompt:   HuhPrompter{},
		SlotOpts: slots.Options{Location: loc},
		Now:      time.Now,
	}

	if g.Mirror != "" {
		m, err := client.OpenSQLiteMirror(g.Mirror)
		if err != nil {
			return nil, err
		}
		c.Mirror = m
		c.closers = append(c.closers, m.Close)
	} else {
		c.Mirror = client.NewMemoryMirror()
	}
	c.Avail = client.NewAvailability(api, c.Mirror, logger)

	if g.PaymentLink != "" {
		link, err := payments.NewLink(g.PaymentLink)
		if err != nil {
			return nil, err
		}
		c.Payments = link
	}

	composer, err := c.buildComposer(g)
	if err != nil {
		return nil, err
	}
	c.Dispatcher = notify.NewDispatcher(composer, logger)
	// --notify=none leaves Notifier nil so confirmations dispatch nothing.
	if composer != nil {
		c.Notifier = c.Dispatcher
	}
	return c, nil
}

func (c *Context) buildComposer(g Globals) (notify.Composer, error) {
	switch g.Notify {
	case "mailto", "":
		return notify.NewMailtoComposer(c.openURL, c.Logger), nil
	case "sendgrid":
		if g.SendGridAPIKey == "" || g.FromEmail == "" {
			return nil, fmt.Errorf("--notify=sendgrid needs --sendgrid-api-key and --from-email")
		}
		return notify.NewSendGridComposer(notify.SendGridConfig{APIKey: g.SendGridAPIKey, FromEmail: g.FromEmail}, c.Logger), nil
	case "ses":
		if g.FromEmail == "" {
			return nil, fmt.Errorf("--notify=ses needs --from-email")
		}
		cfg := &config.Config{AWSRegion: g.AWSRegion, AWSEndpointOverride: g.AWSEndpoint}
		awsCfg, err := bootstrap.LoadAWSConfig(c.Ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return notify.NewSESComposer(bootstrap.NewSESClient(awsCfg, cfg), notify.SESConfig{FromEmail: g.FromEmail}, c.Logger), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown notify mode %q", g.Notify)
	}
}

func newLogger(g Globals) (*logging.Logger, error) {
	if g.LogFile == "" {
		return logging.NewWithWriter("warn", "text", os.Stderr), nil
	}
	logger, err := logging.NewRotating(g.LogLevel, g.LogFile)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return logger, nil
}

// openURL defers to c.Open so tests can swap it after construction.
func (c *Context) openURL(ctx context.Context, uri string) error {
	return c.Open(ctx, uri)
}

// Close waits for pending notifications and releases the mirror.
func (c *Context) Close() error {
	if c.Dispatcher != nil {
		c.Dispatcher.Wait()
	}
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i]())
	}
	return errors.Join(errs...)
}

func (c *Context) printf(format string, args ...any) {
	fmt.Fprintf(c.Out, format, args...)
}
