package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewRouter mounts the gateway's own endpoints and hands everything else to
// the proxy.
func NewRouter(proxy *Proxy, metricsHandler http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metricsHandler)

	// The server span opened here is what the proxy's outbound transport
	// continues downstream. Health and metrics stay untraced.
	r.Handle("/*", otelhttp.NewHandler(proxy, "gateway"))
	return r
}
