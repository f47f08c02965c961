// Package ports resolves the listening port for each named service at
// process start.
//
// Every service has a configured default port. Resolve probes loopback
// starting at that default and walks upward until it finds a free port,
// so several services can share a host without manual port juggling.
//
// The probe opens a TCP listener and immediately closes it, which leaves a
// window between "probe succeeded" and "consumer actually binds". Two
// processes racing on the same range can still collide; treat Resolve as
// best effort, not a reservation.
package ports

import (
	"fmt"
	"log/slog"
	"net"

	"github.com/microshop/platform/internal/pkg/fault"
)

// maxShift bounds the upward scan: defaultPort..defaultPort+maxShift are
// probed before giving up.
const maxShift = 100

// Defaults lists every known service and the port it asks for first.
func Defaults() map[string]int {
	return map[string]int{
		"gateway":       5001,
		"products":      5011,
		"orders":        5012,
		"payments":      5013,
		"notifications": 5014,
		"users":         5015,
		"inventory":     5018,
		"frontend":      5019,
	}
}

type binding struct {
	defaultPort int
	currentPort int
	resolved    bool
}

// Resolver holds the registered service-to-port table. It is intended for
// startup use on a single goroutine; bindings are immutable once resolved.
type Resolver struct {
	bindings map[string]*binding
	log      *slog.Logger
}

// NewResolver registers the known services and their default ports.
func NewResolver(defaults map[string]int, log *slog.Logger) *Resolver {
	bindings := make(map[string]*binding, len(defaults))
	for name, port := range defaults {
		bindings[name] = &binding{defaultPort: port, currentPort: port}
	}
	return &Resolver{bindings: bindings, log: log}
}

// Resolve returns a usable port for serviceName, scanning upward from the
// service's default when it is taken. Repeat calls for the same service
// return the port chosen the first time.
func (r *Resolver) Resolve(serviceName string) (int, error) {
	b, ok := r.bindings[serviceName]
	if !ok {
		return 0, fault.New(fault.KindUnknownService, "unknown service: %s", serviceName)
	}
	if b.resolved {
		return b.currentPort, nil
	}

	port := b.currentPort
	for !portFree(port) {
		r.log.Warn("port in use, trying next",
			"service", serviceName, "port", port)
		port++
		if port > b.defaultPort+maxShift {
			return 0, fault.New(fault.KindResolutionExhausted,
				"no free port for %s in %d..%d",
				serviceName, b.defaultPort, b.defaultPort+maxShift)
		}
	}

	if port != b.defaultPort {
		r.log.Warn("service shifted off its default port",
			"service", serviceName, "port", port, "default_port", b.defaultPort)
	}
	b.currentPort = port
	b.resolved = true
	return port, nil
}

func portFree(port int) bool {
	l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return false
	}
	_ = l.Close()
	return true
}
