// Package client talks to the booking API and drives the visitor booking workflow.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/reginald441/reginaldkargbo-site/internal/bookings"
	"github.com/reginald441/reginaldkargbo-site/pkg/logging"
)

// DefaultTimeout bounds every API call.
const DefaultTimeout = 10 * time.Second

// Client is an HTTP client for the booking API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *logging.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client with its 10s timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a client for the API rooted at baseURL, e.g. https://example.com/api.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, fmt.Errorf("client: base url required")
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("client: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("client: base url must be http(s), got %q", baseURL)
	}
	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     logging.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type listResponse struct {
	Bookings []*bookings.Booking `json:"bookings"`
}

type availabilityResponse struct {
	Available bool `json:"available"`
}

type mutationResponse struct {
	Success bool              `json:"success"`
	Booking *bookings.Booking `json:"booking"`
	Message string            `json:"message"`
}

type slotsResponse struct {
	Slots []bookings.SlotView `json:"slots"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ListBookings returns every booking the server knows about.
func (c *Client) ListBookings(ctx context.Context) ([]*bookings.Booking, error) {
	var resp listResponse
	if err := c.do(ctx, "list bookings", http.MethodGet, "/bookings", nil, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Bookings == nil {
		resp.Bookings = []*bookings.Booking{}
	}
	return resp.Bookings, nil
}

// CheckAvailability asks the server whether timestamp is free.
func (c *Client) CheckAvailability(ctx context.Context, timestamp int64) (bool, error) {
	q := url.Values{}
	q.Set("checkAvailability", "true")
	q.Set("slot", strconv.FormatInt(timestamp, 10))
	var resp availabilityResponse
	if err := c.do(ctx, "check availability", http.MethodGet, "/bookings", q, nil, &resp); err != nil {
		return false, err
	}
	return resp.Available, nil
}

// CreateBooking posts a new booking.
func (c *Client) CreateBooking(ctx context.Context, req bookings.CreateRequest) (*bookings.Booking, error) {
	var resp mutationResponse
	if err := c.do(ctx, "create booking", http.MethodPost, "/bookings", nil, req, &resp); err != nil {
		return nil, err
	}
	return resp.Booking, nil
}

// UpdateBooking changes the payment status or session reference of a booking.
func (c *Client) UpdateBooking(ctx context.Context, req bookings.UpdateRequest) (*bookings.Booking, error) {
	var resp mutationResponse
	if err := c.do(ctx, "update booking", http.MethodPut, "/bookings", nil, req, &resp); err != nil {
		return nil, err
	}
	return resp.Booking, nil
}

// CancelBooking deletes a booking by id.
func (c *Client) CancelBooking(ctx context.Context, id string) error {
	q := url.Values{}
	q.Set("id", id)
	return c.do(ctx, "cancel booking", http.MethodDelete, "/bookings", q, nil, nil)
}

// Slots returns the server-generated calendar with availability.
func (c *Client) Slots(ctx context.Context) ([]bookings.SlotView, error) {
	var resp slotsResponse
	if err := c.do(ctx, "list slots", http.MethodGet, "/slots", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Slots, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = query.Encode()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: %s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("client: %s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("booking api unreachable", "op", op, "error", err)
		return &TransportError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	c.logger.Debug("booking api call", "op", op, "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Op: op, StatusCode: resp.StatusCode, Code: http.StatusText(resp.StatusCode)}
		var er errorResponse
		if json.Unmarshal(raw, &er) == nil {
			if er.Error != "" {
				apiErr.Code = er.Error
			}
			apiErr.Message = er.Message
		}
		return apiErr
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("client: %s: decode response: %w", op, err)
	}
	return nil
}
