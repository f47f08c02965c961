package ports

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microshop/platform/internal/pkg/fault"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// occupy binds loopback listeners on ports base..base+n-1 and returns a
// release func. Skips the test if any of the ports is already taken by
// something else on the host.
func occupy(t *testing.T, base, n int) func() {
	t.Helper()
	listeners := make([]net.Listener, 0, n)
	for p := base; p < base+n; p++ {
		l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", p))
		if err != nil {
			for _, held := range listeners {
				_ = held.Close()
			}
			t.Skipf("port %d busy on host, skipping", p)
		}
		listeners = append(listeners, l)
	}
	return func() {
		for _, l := range listeners {
			_ = l.Close()
		}
	}
}

func TestResolveDefaultPortFree(t *testing.T) {
	r := NewResolver(map[string]int{"orders": 42112}, discardLogger())

	port, err := r.Resolve("orders")
	require.NoError(t, err)
	assert.Equal(t, 42112, port)
}

func TestResolveShiftsPastConflicts(t *testing.T) {
	const base = 42200
	release := occupy(t, base, 3)
	defer release()

	r := NewResolver(map[string]int{"orders": base}, discardLogger())

	port, err := r.Resolve("orders")
	require.NoError(t, err)
	assert.Equal(t, base+3, port)

	// A second call must return the recorded port, not rescan.
	again, err := r.Resolve("orders")
	require.NoError(t, err)
	assert.Equal(t, port, again)
}

func TestResolveUnknownService(t *testing.T) {
	r := NewResolver(map[string]int{"orders": 42300}, discardLogger())

	_, err := r.Resolve("shipping")
	assert.True(t, fault.Is(err, fault.KindUnknownService))
}

func TestResolveExhausted(t *testing.T) {
	const base = 42400
	release := occupy(t, base, maxShift+1)
	defer release()

	r := NewResolver(map[string]int{"orders": base}, discardLogger())

	_, err := r.Resolve("orders")
	assert.True(t, fault.Is(err, fault.KindResolutionExhausted))
}
