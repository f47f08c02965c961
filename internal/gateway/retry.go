package gateway

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

// RetryPolicy bounds the gateway's retry behaviour for a route. Retries
// apply only to idempotent reads that failed at the transport level; a
// downstream that answered, however unhappily, is never asked again.
type RetryPolicy struct {
	// MaxRetries is the number of additional attempts after the first.
	MaxRetries int
	// BaseDelay seeds the exponential backoff: attempt n waits
	// BaseDelay * 2^n, capped at MaxDelay.
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 100 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 2 * time.Second
	}
	return p
}

// Backoff returns the delay before retry number attempt (zero-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	return d
}

// retryableMethod reports whether the gateway may repeat a request without
// risking a duplicated side effect.
func retryableMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

// transient reports whether a transport error is worth another attempt:
// timeouts and broken connections, not anything the client did wrong.
func transient(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// sleep waits for d unless ctx ends first.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
