package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/api"
	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/auth"
	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/catalog"
	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/engine"
	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/logging"
	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/metrics"
	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/observability"
	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/propagation"
	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/risk"
	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/stream"
	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/tle"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	logger, closeLog, err := logging.New(logging.Config{
		Level: os.Getenv("LAUNCHSIM_LOG_LEVEL"),
		File:  os.Getenv("LAUNCHSIM_LOG_FILE"),
	})
	if err != nil {
		logger.Warn("invalid LAUNCHSIM_LOG_LEVEL value, using info", "error", err)
	}
	defer closeLog()

	addr := os.Getenv("LAUNCHSIM_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	authCfg, err := loadAuthConfig(logger)
	if err != nil {
		logger.Error("invalid auth configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, loadTracingConfig(logger), logger)
	if err != nil {
		logger.Error("failed to initialise tracing", "error", err)
		os.Exit(1)
	}

	catCfg, err := loadCatalogConfig(logger)
	if err != nil {
		logger.Error("invalid catalog configuration", "error", err)
		os.Exit(1)
	}

	store := catalog.NewStore()
	var snapshots *tle.Snapshots
	if catCfg.SnapshotDir != "" {
		snapshots = tle.NewSnapshots(catCfg.SnapshotDir, catCfg.SnapshotMaxFiles)
	}
	loader := catalog.NewLoader(store, tle.NewFetcher(logger), snapshots, catalog.LoaderConfig{
		Sources:      catCfg.Sources,
		AllowPartial: catCfg.AllowPartial,
	}, logger)

	// Serve the last snapshot until the first refresh lands.
	if snapshots != nil {
		if _, err := loader.Restore(); err != nil {
			logger.Info("no catalog snapshot restored, starting without catalog", "error", err)
		}
	}

	var refresher engine.Refresher
	if catCfg.EnableFetch {
		refresher = loader
	}

	prop := propagation.NewEngine(loadPropConfig(logger), logger)
	analyzer := risk.NewAnalyzer(prop, loadRiskConfig(logger), logger)
	eng := engine.New(store, refresher, prop, analyzer, logger)

	streamHandler := stream.NewHandler(eng, loadStreamConfig(logger), logger)
	ready := func() bool { return store.Get() != nil }
	srv := api.NewServer(addr, logger, authCfg, eng, streamHandler, ready)

	if catCfg.EnableFetch {
		go refreshLoop(ctx, eng, catCfg.RefreshInterval, logger)
	}

	// Background goroutine to update catalog age gauge.
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				age := store.AgeSeconds()
				if age >= 0 {
					metrics.SetCatalogAge(age)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		logger.Info("starting server", "addr", addr, "auth_enabled", authCfg.Enabled, "fetch_enabled", catCfg.EnableFetch)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	observability.ShutdownWithTimeout(context.Background(), shutdownTracing, logger)

	logger.Info("server stopped")
}

// refreshLoop refreshes the catalog immediately and then every interval. A failed
// refresh keeps the live catalog and is retried on the next tick.
func refreshLoop(ctx context.Context, eng *engine.Engine, interval time.Duration, logger *slog.Logger) {
	refresh := func() {
		if _, err := eng.RefreshCatalog(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("catalog refresh failed", "error", err)
		}
	}

	refresh()
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			refresh()
		case <-ctx.Done():
			return
		}
	}
}

func loadAuthConfig(logger *slog.Logger) (auth.Config, error) {
	cfg := auth.Config{}

	enabledStr := os.Getenv("LAUNCHSIM_AUTH_ENABLED")
	if enabledStr != "" {
		enabled, err := strconv.ParseBool(enabledStr)
		if err != nil {
			return cfg, errors.New("LAUNCHSIM_AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if cfg.Enabled {
		cfg.Token = os.Getenv("LAUNCHSIM_AUTH_TOKEN")
		if cfg.Token == "" {
			return cfg, errors.New("LAUNCHSIM_AUTH_TOKEN is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}

	return cfg, nil
}

type catalogConfig struct {
	EnableFetch      bool
	Sources          []tle.Source
	AllowPartial     bool
	RefreshInterval  time.Duration
	SnapshotDir      string
	SnapshotMaxFiles int
}

func loadCatalogConfig(logger *slog.Logger) (catalogConfig, error) {
	cfg := catalogConfig{
		EnableFetch:      true,
		Sources:          tle.DefaultSources,
		RefreshInterval:  6 * time.Hour,
		SnapshotDir:      "/tmp/launchsim/catalog",
		SnapshotMaxFiles: 5,
	}

	if v := os.Getenv("LAUNCHSIM_ENABLE_FETCH"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid LAUNCHSIM_ENABLE_FETCH value, defaulting to false", "value", v)
			cfg.EnableFetch = false
		} else {
			cfg.EnableFetch = enabled
		}
	}

	// A bad sources file is fatal: silently tracking a different catalog is worse
	// than not starting.
	if v := os.Getenv("LAUNCHSIM_SOURCES_FILE"); v != "" {
		sources, err := tle.LoadSources(v)
		if err != nil {
			return cfg, fmt.Errorf("LAUNCHSIM_SOURCES_FILE: %w", err)
		}
		cfg.Sources = sources
	}

	if v := os.Getenv("LAUNCHSIM_ALLOW_PARTIAL_REFRESH"); v != "" {
		allow, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid LAUNCHSIM_ALLOW_PARTIAL_REFRESH value, defaulting to false", "value", v)
		} else {
			cfg.AllowPartial = allow
		}
	}

	if v := os.Getenv("LAUNCHSIM_REFRESH_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			logger.Warn("invalid LAUNCHSIM_REFRESH_INTERVAL value, using default", "value", v, "default", cfg.RefreshInterval.String())
		} else {
			cfg.RefreshInterval = d
		}
	}

	if v, ok := os.LookupEnv("LAUNCHSIM_SNAPSHOT_DIR"); ok {
		cfg.SnapshotDir = v
	}

	if v := os.Getenv("LAUNCHSIM_SNAPSHOT_MAX_FILES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid LAUNCHSIM_SNAPSHOT_MAX_FILES value, using default", "value", v, "default", 5)
		} else {
			cfg.SnapshotMaxFiles = n
		}
	}

	names := make([]string, len(cfg.Sources))
	for i, s := range cfg.Sources {
		names[i] = s.Name
	}
	logger.Info("catalog config",
		"fetch_enabled", cfg.EnableFetch,
		"sources", names,
		"allow_partial", cfg.AllowPartial,
		"refresh_interval", cfg.RefreshInterval.String(),
		"snapshot_dir", cfg.SnapshotDir,
	)

	return cfg, nil
}

func loadPropConfig(logger *slog.Logger) propagation.Config {
	cfg := propagation.Config{
		Workers: runtime.NumCPU(),
	}

	if v := os.Getenv("LAUNCHSIM_PROP_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid LAUNCHSIM_PROP_WORKERS value, using default", "value", v, "default", cfg.Workers)
		} else {
			cfg.Workers = n
		}
	}

	logger.Info("propagation config", "workers", cfg.Workers)

	return cfg
}

func loadRiskConfig(logger *slog.Logger) risk.Config {
	cfg := risk.DefaultConfig()

	if v := os.Getenv("LAUNCHSIM_RISK_THRESHOLD_KM"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || !(f > 0) {
			logger.Warn("invalid LAUNCHSIM_RISK_THRESHOLD_KM value, using default", "value", v, "default", cfg.ThresholdKm)
		} else {
			cfg.ThresholdKm = f
		}
	}

	logger.Info("risk config",
		"threshold_km", cfg.ThresholdKm,
		"mission_duration_seconds", cfg.MissionDuration,
		"cadence_seconds", cfg.RiskCadence,
	)

	return cfg
}

func loadStreamConfig(logger *slog.Logger) stream.Config {
	cfg := stream.Config{
		MaxConcurrentPerIP: 10,
		MaxTotal:           1000,
		KeepaliveInterval:  30 * time.Second,
	}

	if v := os.Getenv("LAUNCHSIM_STREAM_MAX_CONCURRENT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid LAUNCHSIM_STREAM_MAX_CONCURRENT value, using default", "value", v, "default", 10)
		} else {
			cfg.MaxConcurrentPerIP = n
		}
	}

	if v := os.Getenv("LAUNCHSIM_STREAM_MAX_TOTAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid LAUNCHSIM_STREAM_MAX_TOTAL value, using default", "value", v, "default", 1000)
		} else {
			cfg.MaxTotal = n
		}
	}

	if v := os.Getenv("LAUNCHSIM_STREAM_KEEPALIVE_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid LAUNCHSIM_STREAM_KEEPALIVE_INTERVAL value, using default", "value", v, "default", 30)
		} else {
			cfg.KeepaliveInterval = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("LAUNCHSIM_STREAM_TRUST_PROXY"); v != "" {
		trust, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid LAUNCHSIM_STREAM_TRUST_PROXY value, defaulting to false", "value", v)
		} else {
			cfg.TrustProxy = trust
		}
	}

	logger.Info("stream config",
		"max_concurrent_per_ip", cfg.MaxConcurrentPerIP,
		"max_total", cfg.MaxTotal,
		"keepalive_interval_seconds", cfg.KeepaliveInterval.Seconds(),
		"trust_proxy", cfg.TrustProxy,
	)

	return cfg
}

func loadTracingConfig(logger *slog.Logger) observability.TracingConfig {
	cfg := observability.TracingConfig{
		ServiceName: "launchsim",
		Exporter:    "stdout",
		Endpoint:    "localhost:4317",
		SampleRatio: 1,
		Version:     version,
		Environment: os.Getenv("LAUNCHSIM_ENV"),
	}

	if v := os.Getenv("LAUNCHSIM_TRACING_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid LAUNCHSIM_TRACING_ENABLED value, defaulting to false", "value", v)
		} else {
			cfg.Enabled = enabled
		}
	}
	if v := os.Getenv("LAUNCHSIM_TRACING_SERVICE_NAME"); v != "" {
		cfg.ServiceName = v
	}
	if v := os.Getenv("LAUNCHSIM_TRACING_EXPORTER"); v != "" {
		if v != "stdout" && v != "otlp" {
			logger.Warn("invalid LAUNCHSIM_TRACING_EXPORTER value, using default", "value", v, "default", cfg.Exporter)
		} else {
			cfg.Exporter = v
		}
	}
	if v := os.Getenv("LAUNCHSIM_TRACING_ENDPOINT"); v != "" {
		cfg.Endpoint = v
	}
	if v := os.Getenv("LAUNCHSIM_TRACING_SAMPLE_RATIO"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 1 {
			logger.Warn("invalid LAUNCHSIM_TRACING_SAMPLE_RATIO value, using default", "value", v, "default", 1)
		} else {
			cfg.SampleRatio = f
		}
	}

	return cfg
}
