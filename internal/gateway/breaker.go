package gateway

import (
	"sync"
	"time"

	"github.com/microshop/platform/internal/pkg/fault"
)

// BreakerState is the circuit breaker's current mode.
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// BreakerPolicy configures a route's circuit breaker.
type BreakerPolicy struct {
	// FailureThreshold is the number of consecutive failures that opens
	// the circuit.
	FailureThreshold int
	// CoolDown is how long the circuit stays open before a probe is
	// allowed through.
	CoolDown time.Duration
}

func (p BreakerPolicy) withDefaults() BreakerPolicy {
	if p.FailureThreshold < 1 {
		p.FailureThreshold = 5
	}
	if p.CoolDown <= 0 {
		p.CoolDown = 30 * time.Second
	}
	return p
}

// Breaker is a per-route circuit breaker. Closed passes everything through
// and counts consecutive failures; Open fails fast until the cool-down
// elapses; HalfOpen admits exactly one probe whose outcome decides between
// Closed and another full cool-down.
//
// All state lives behind the mutex; Allow and Record are safe for
// concurrent use from request goroutines.
type Breaker struct {
	mu sync.Mutex

	policy      BreakerPolicy
	state       BreakerState
	consecutive int
	openedAt    time.Time
	probeInUse  bool

	now func() time.Time
}

func NewBreaker(policy BreakerPolicy) *Breaker {
	return &Breaker{
		policy: policy.withDefaults(),
		state:  StateClosed,
		now:    time.Now,
	}
}

// Allow reports whether a request may go downstream right now. It returns a
// fault.KindCircuitOpen error while the circuit rejects traffic. When the
// cool-down has elapsed the first caller through becomes the half-open
// probe; concurrent callers keep failing fast until that probe reports.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.policy.CoolDown {
			return fault.New(fault.KindCircuitOpen, "circuit open, cooling down")
		}
		b.state = StateHalfOpen
		b.probeInUse = true
		return nil
	case StateHalfOpen:
		if b.probeInUse {
			return fault.New(fault.KindCircuitOpen, "probe in flight")
		}
		b.probeInUse = true
		return nil
	}
	return nil
}

// Record reports the outcome of a downstream attempt previously admitted by
// Allow.
func (b *Breaker) Record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		if success {
			b.consecutive = 0
			return
		}
		b.consecutive++
		if b.consecutive >= b.policy.FailureThreshold {
			b.trip()
		}
	case StateHalfOpen:
		b.probeInUse = false
		if success {
			b.state = StateClosed
			b.consecutive = 0
			return
		}
		b.trip()
	case StateOpen:
		// A late result from before the trip; nothing to update.
	}
}

// State returns the current state, honouring an elapsed cool-down.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.policy.CoolDown {
		return StateHalfOpen
	}
	return b.state
}

func (b *Breaker) trip() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.consecutive = 0
	b.probeInUse = false
}
