package gateway

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDoublesAndCaps(t *testing.T) {
	p := RetryPolicy{BaseDelay: 100 * time.Millisecond, MaxDelay: 500 * time.Millisecond}

	assert.Equal(t, 100*time.Millisecond, p.Backoff(0))
	assert.Equal(t, 200*time.Millisecond, p.Backoff(1))
	assert.Equal(t, 400*time.Millisecond, p.Backoff(2))
	assert.Equal(t, 500*time.Millisecond, p.Backoff(3))
	assert.Equal(t, 500*time.Millisecond, p.Backoff(10))
}

func TestRetryableMethods(t *testing.T) {
	assert.True(t, retryableMethod(http.MethodGet))
	assert.True(t, retryableMethod(http.MethodHead))
	assert.False(t, retryableMethod(http.MethodPost))
	assert.False(t, retryableMethod(http.MethodPut))
	assert.False(t, retryableMethod(http.MethodDelete))
}

func TestTransientErrors(t *testing.T) {
	assert.True(t, transient(context.DeadlineExceeded))
	assert.True(t, transient(&net.OpError{Op: "dial", Err: errors.New("connection refused")}))
	assert.False(t, transient(context.Canceled))
	assert.False(t, transient(errors.New("malformed request")))
}
