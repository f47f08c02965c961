package bus

import (
	"context"
	"sync"
)

// Event is one recorded publication.
type Event struct {
	Topic   string
	Key     string
	Payload any
}

// Recorder is an in-memory Publisher for tests and local development. It
// records every event and can be told to fail, so the best-effort publish
// contract is exercisable without a broker.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(ctx context.Context, topic, key string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, Event{Topic: topic, Key: key, Payload: payload})
	return nil
}

// FailWith makes every subsequent Publish return err (nil restores success).
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Events returns a snapshot of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// EventsOn returns the recorded events for one topic, in publish order.
func (r *Recorder) EventsOn(topic string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Topic == topic {
			out = append(out, e)
		}
	}
	return out
}
