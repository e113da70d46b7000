// Package payments connects the booking flow to the external payment provider. Payment
// processing happens on the provider's hosted page; this package only builds the outbound
// link and records the outcome the provider reports back.
package payments

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrNoPaymentLink is returned when no hosted payment page is configured.
var ErrNoPaymentLink = errors.New("payments: payment link not configured")

// Link builds URLs for a hosted Stripe Payment Link.
type Link struct {
	base *url.URL
}

// NewLink parses the hosted page address, e.g. https://buy.stripe.com/xyz.
func NewLink(raw string) (*Link, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrNoPaymentLink
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("payments: parse link: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, fmt.Errorf("payments: link must be http(s), got %q", u.Scheme)
	}
	return &Link{base: u}, nil
}

// URL returns the link with the payer email prefilled. reference, when set, is passed
// as client_reference_id so the webhook can match the session to a booking.
func (l *Link) URL(email, reference string) string {
	u := *l.base
	q := u.Query()
	if email = strings.TrimSpace(email); email != "" {
		q.Set("prefilled_email", email)
	}
	if reference = strings.TrimSpace(reference); reference != "" {
		q.Set("client_reference_id", reference)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
