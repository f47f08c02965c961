// Package product is the synchronous HTTP facade over the product service,
// used by the order orchestrator to validate availability and capture
// prices at order-creation time.
package product

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/microshop/platform/internal/pkg/fault"
)

const defaultTimeout = 5 * time.Second

// Client talks to the product service over HTTP. Every call is bounded by
// the configured timeout; a timeout, transport error or non-2xx response
// surfaces as fault.KindUnavailable for the caller to translate.
type Client struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger
}

// Option tweaks client construction.
type Option func(*Client)

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithTransport injects a RoundTripper (tests).
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.http.Transport = rt }
}

func NewClient(baseURL string, log *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		log: log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CheckAvailability reports whether quantity units of the product can be
// supplied right now. A 2xx response means available; any transport error
// or non-2xx status is reported as Unavailable.
func (c *Client) CheckAvailability(ctx context.Context, productID uuid.UUID, quantity int) (bool, error) {
	url := fmt.Sprintf("%s/api/products/%s/availability?quantity=%d", c.baseURL, productID, quantity)

	resp, err := c.get(ctx, url)
	if err != nil {
		return false, fault.Wrap(err, fault.KindUnavailable,
			"availability check for product %s failed", productID)
	}
	defer resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
}

// GetPrice fetches the product's current unit price.
func (c *Client) GetPrice(ctx context.Context, productID uuid.UUID) (decimal.Decimal, error) {
	url := fmt.Sprintf("%s/api/products/%s", c.baseURL, productID)

	resp, err := c.get(ctx, url)
	if err != nil {
		return decimal.Zero, fault.Wrap(err, fault.KindUnavailable,
			"price lookup for product %s failed", productID)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decimal.Zero, fault.New(fault.KindUnavailable,
			"price lookup for product %s returned %d", productID, resp.StatusCode)
	}

	var body struct {
		ID    uuid.UUID       `json:"id"`
		Name  string          `json:"name"`
		Price decimal.Decimal `json:"price"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, fault.Wrap(err, fault.KindUnavailable,
			"price response for product %s is malformed", productID)
	}
	return body.Price, nil
}

func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.WarnContext(ctx, "product service call failed", "url", url, "error", err)
		return nil, err
	}
	return resp, nil
}
