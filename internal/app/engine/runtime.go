// Package engine wires the run engine runtime: storage, content, the
// orchestrator, the AFK sweep schedule, and the serving surfaces.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/emberline/saga/internal/content"
	"github.com/emberline/saga/internal/engine/orchestrator"
	"github.com/emberline/saga/internal/platform/metrics"
	"github.com/emberline/saga/internal/storage/sqlite"
)

// RuntimeConfig controls engine startup, dependencies, and sweep cadence.
type RuntimeConfig struct {
	Port          int
	MetricsPort   int
	DBPath        string
	ContentDir    string
	SweepSchedule string
}

const (
	defaultEnginePort    = 8095
	defaultMetricsPort   = 9095
	defaultEngineDB      = "data/engine.db"
	defaultContentDir    = "content"
	defaultSweepSchedule = "@every 1m"
)

const shutdownTimeout = 5 * time.Second

// normalized fills zero-valued fields with runtime defaults.
func (cfg RuntimeConfig) normalized() RuntimeConfig {
	if cfg.Port <= 0 {
		cfg.Port = defaultEnginePort
	}
	if cfg.MetricsPort <= 0 {
		cfg.MetricsPort = defaultMetricsPort
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = defaultEngineDB
	}
	if strings.TrimSpace(cfg.ContentDir) == "" {
		cfg.ContentDir = defaultContentDir
	}
	if strings.TrimSpace(cfg.SweepSchedule) == "" {
		cfg.SweepSchedule = defaultSweepSchedule
	}
	return cfg
}

// Run starts the engine runtime and blocks until the context is canceled.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg = cfg.normalized()

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create engine storage dir: %w", err)
		}
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open engine sqlite store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Printf("close engine sqlite store: %v", closeErr)
		}
	}()

	engineMetrics := metrics.New()
	engine := orchestrator.New(orchestrator.Config{
		Store:   store,
		Content: content.NewFSProvider(os.DirFS(cfg.ContentDir)),
		Metrics: engineMetrics,
	})

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.SweepSchedule, func() {
		result, sweepErr := engine.ProcessAfkTimeouts(ctx, time.Now())
		if sweepErr != nil {
			log.Printf("afk sweep: %v", sweepErr)
			return
		}
		if result.Swept > 0 || result.Failed > 0 {
			log.Printf("afk sweep resolved %d run(s), %d failure(s)", result.Swept, result.Failed)
		}
	}); err != nil {
		return fmt.Errorf("schedule afk sweep %q: %w", cfg.SweepSchedule, err)
	}
	scheduler.Start()
	defer func() {
		<-scheduler.Stop().Done()
	}()

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("listen on engine port %d: %w", cfg.Port, err)
	}
	defer listener.Close()

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("engine.runtime", grpc_health_v1.HealthCheckResponse_SERVING)

	mux := http.NewServeMux()
	mux.Handle("/metrics", engineMetrics.Handler())
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler: mux,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if serveErr := grpcServer.Serve(listener); serveErr != nil {
			return fmt.Errorf("serve engine health: %w", serveErr)
		}
		return nil
	})
	group.Go(func() error {
		if serveErr := metricsServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			return fmt.Errorf("serve engine metrics: %w", serveErr)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if shutdownErr := metricsServer.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Printf("shutdown engine metrics server: %v", shutdownErr)
		}
		return groupCtx.Err()
	})

	log.Printf("engine server listening at %v", listener.Addr())
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
