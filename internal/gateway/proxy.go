package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/microshop/platform/internal/pkg/fault"
	"github.com/microshop/platform/internal/pkg/metrics"
)

// HeaderRequestID correlates a request across the gateway and every
// downstream hop. The gateway generates one when the client sent none and
// always echoes it on the response.
const HeaderRequestID = "X-Request-ID"

// hopHeaders are connection-scoped and must not be relayed.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Proxy relays requests to the downstream service selected by the route
// table, applying the route's circuit breaker and retry policy on the way.
type Proxy struct {
	table     *RouteTable
	transport http.RoundTripper
	metrics   metrics.GatewayCollector
	log       *slog.Logger
}

type ProxyOption func(*Proxy)

// WithTransport replaces the outbound transport, mainly for tests.
func WithTransport(rt http.RoundTripper) ProxyOption {
	return func(p *Proxy) { p.transport = rt }
}

func NewProxy(table *RouteTable, collector metrics.GatewayCollector, log *slog.Logger, opts ...ProxyOption) *Proxy {
	p := &Proxy{
		table: table,
		// otelhttp injects traceparent into every downstream call and opens
		// a client span per attempt.
		transport: otelhttp.NewTransport(http.DefaultTransport),
		metrics:   collector,
		log:       log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get(HeaderRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set(HeaderRequestID, requestID)

	route, ok := p.table.Match(r.URL.Path)
	if !ok {
		p.writeFault(w, r, "", fault.New(fault.KindNoRoute, "no route for %s", r.URL.Path))
		return
	}
	p.metrics.RecordRequest(route.Def.Name)

	resp, err := p.forward(r, route, requestID)
	if err != nil {
		p.writeFault(w, r, route.Def.Name, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		p.metrics.RecordError(route.Def.Name)
	}
	p.relay(w, resp, requestID)
}

// forward runs the breaker-and-retry loop and returns the downstream
// response. The breaker is consulted before every attempt and told about
// every outcome; only transport failures of idempotent reads are retried.
func (p *Proxy) forward(r *http.Request, route *Route, requestID string) (*http.Response, error) {
	policy := route.Def.Retry.withDefaults()
	maxRetries := policy.MaxRetries
	if !retryableMethod(r.Method) {
		maxRetries = 0
	}

	// A retried request must resend the same bytes, so the body is buffered
	// once up front and replayed per attempt.
	var bodyBytes []byte
	if maxRetries > 0 && r.Body != nil && r.Body != http.NoBody {
		var err error
		bodyBytes, err = io.ReadAll(r.Body)
		if err != nil {
			return nil, fault.Wrap(err, fault.KindUnavailable, "reading request body")
		}
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := route.Breaker.Allow(); err != nil {
			if lastErr != nil {
				return nil, lastErr
			}
			return nil, err
		}

		var body io.Reader = r.Body
		if bodyBytes != nil {
			body = bytes.NewReader(bodyBytes)
		}
		resp, err := p.attempt(r, route, requestID, body)
		if err == nil {
			route.Breaker.Record(!downstreamFailure(resp.StatusCode))
			return resp, nil
		}
		route.Breaker.Record(false)
		lastErr = classify(err)

		if attempt >= maxRetries || !transient(err) {
			return nil, lastErr
		}
		p.log.WarnContext(r.Context(), "retrying downstream call",
			"route", route.Def.Name,
			"attempt", attempt+1,
			"request_id", requestID,
			"error", err,
		)
		if err := sleep(r.Context(), policy.Backoff(attempt)); err != nil {
			return nil, lastErr
		}
	}
}

func (p *Proxy) attempt(r *http.Request, route *Route, requestID string, body io.Reader) (*http.Response, error) {
	timeout := route.Def.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)

	// The escaped form goes downstream untouched: re-encoding from the
	// decoded path would turn %2F into a real separator.
	target := &url.URL{
		Scheme:   "http",
		Host:     net.JoinHostPort(route.Def.Host, strconv.Itoa(route.Def.Port)),
		Path:     r.URL.Path,
		RawPath:  r.URL.RawPath,
		RawQuery: r.URL.RawQuery,
	}

	out, err := http.NewRequestWithContext(ctx, r.Method, target.String(), body)
	if err != nil {
		cancel()
		return nil, err
	}
	if cloned := r.Header.Clone(); cloned != nil {
		out.Header = cloned
	}
	for _, h := range hopHeaders {
		out.Header.Del(h)
	}
	out.Header.Set(HeaderRequestID, requestID)

	resp, err := p.transport.RoundTrip(out)
	if err != nil {
		cancel()
		return nil, err
	}
	// The timeout covers the body transfer too, so the context stays alive
	// until the caller closes the body.
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

func (p *Proxy) relay(w http.ResponseWriter, resp *http.Response, requestID string) {
	for key, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	for _, h := range hopHeaders {
		w.Header().Del(h)
	}
	w.Header().Set(HeaderRequestID, requestID)
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}

func (p *Proxy) writeFault(w http.ResponseWriter, r *http.Request, routeName string, err error) {
	kind, _ := fault.KindOf(err)
	status := http.StatusBadGateway
	switch kind {
	case fault.KindNoRoute:
		status = http.StatusNotFound
	case fault.KindCircuitOpen:
		status = http.StatusServiceUnavailable
	case fault.KindTimeout:
		status = http.StatusGatewayTimeout
	}

	if routeName != "" {
		p.metrics.RecordError(routeName)
	}
	p.log.ErrorContext(r.Context(), "request failed at the gateway",
		"route", routeName,
		"path", r.URL.Path,
		"status", status,
		"error", err,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   string(kind),
		"message": err.Error(),
	})
}

// downstreamFailure reports whether a relayed status still counts against
// the breaker. The response goes back to the client either way.
func downstreamFailure(status int) bool {
	return status == http.StatusBadGateway ||
		status == http.StatusServiceUnavailable ||
		status == http.StatusGatewayTimeout
}

func classify(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fault.Wrap(err, fault.KindTimeout, "downstream timed out")
	}
	return fault.Wrap(err, fault.KindUnavailable, "downstream unreachable")
}
