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

	"github.com/microshop/platform/internal/order"
	"github.com/microshop/platform/internal/order/httpx"
	"github.com/microshop/platform/internal/order/sqlite"
	"github.com/microshop/platform/internal/pkg/bus"
	"github.com/microshop/platform/internal/pkg/cache"
	"github.com/microshop/platform/internal/pkg/metrics"
	"github.com/microshop/platform/internal/pkg/ports"
	"github.com/microshop/platform/internal/pkg/telemetry"
	"github.com/microshop/platform/internal/product"
)

func main() {
	cfg, err := order.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	telemetry.InitLogger(telemetry.ParseLevel(cfg.Log.Level))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.SetupTracer(ctx, getEnv("OTEL_SERVICE_NAME", "order-service"))
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
	port, err := resolver.Resolve("orders")
	if err != nil {
		slog.Error("could not resolve a listen port", "error", err)
		os.Exit(1)
	}

	repo, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		slog.Error("failed to open database", "path", cfg.Database.Path, "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	var publisher bus.Publisher
	if cfg.Kafka.Brokers != "" {
		kafka := bus.NewKafkaPublisher(cfg.Kafka.Brokers)
		defer kafka.Close()
		publisher = kafka
	} else {
		slog.Warn("no kafka brokers configured, events stay in process")
		publisher = bus.NewRecorder()
	}

	var orderCache cache.Cache
	if cfg.Redis.Addr != "" {
		orderCache = cache.NewRedis(cfg.Redis.Addr, "order")
	} else {
		orderCache = cache.NewMemory("order")
	}

	products := product.NewClient(cfg.Products.BaseURL, slog.Default(),
		product.WithTimeout(cfg.Products.Timeout))

	collector := metrics.NewOrder()
	svc := order.NewService(repo, products, publisher, orderCache, collector, slog.Default())
	defer svc.Close()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: httpx.NewRouter(httpx.NewHandler(svc), collector.Handler()),
	}

	go func() {
		slog.Info("order service running", "port", port, "database", cfg.Database.Path)
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
