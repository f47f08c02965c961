package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/microshop/platform/internal/gateway"
	"github.com/microshop/platform/internal/pkg/metrics"
	"github.com/microshop/platform/internal/pkg/ports"
	"github.com/microshop/platform/internal/pkg/telemetry"
)

func main() {
	cfg, err := gateway.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	telemetry.InitLogger(telemetry.ParseLevel(cfg.Log.Level))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.SetupTracer(ctx, getEnv("OTEL_SERVICE_NAME", "gateway"))
	if err != nil {
		slog.Error("failed to initialise tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			slog.Error("tracer shutdown error", "error", err)
		}
	}()

	resolver := ports.NewResolver(cfg.ServicePorts, slog.Default())
	port, err := resolver.Resolve("gateway")
	if err != nil {
		slog.Error("could not resolve a listen port", "error", err)
		os.Exit(1)
	}

	defs, err := cfg.RouteDefinitions()
	if err != nil {
		slog.Error("invalid route configuration", "error", err)
		os.Exit(1)
	}

	collector := metrics.NewGateway()
	proxy := gateway.NewProxy(gateway.NewRouteTable(defs), collector, slog.Default())

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      gateway.NewRouter(proxy, collector.Handler()),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		slog.Info("gateway running", "port", port, "routes", len(defs))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
