package risk

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/catalog"
	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/metrics"
	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/sgp4"
)

var tracer = otel.Tracer("github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/risk")

// Config holds risk evaluation configuration loaded from environment variables.
type Config struct {
	ThresholdKm     float64 // close-approach distance (default: 50)
	MissionDuration int     // seconds of modeled flight (default: 1200)
	RiskCadence     int     // seconds between proximity checks (default: 5)
}

// DefaultConfig returns the standard mission configuration.
func DefaultConfig() Config {
	return Config{
		ThresholdKm:     50,
		MissionDuration: 1200,
		RiskCadence:     5,
	}
}

// Analyzer evaluates launch requests against a catalog.
type Analyzer struct {
	integrator Integrator
	scanner    *Scanner
	config     Config
	logger     *slog.Logger
}

// NewAnalyzer creates an analyzer. Zero config fields take their defaults.
func NewAnalyzer(prop Propagator, config Config, logger *slog.Logger) *Analyzer {
	def := DefaultConfig()
	if config.ThresholdKm <= 0 {
		config.ThresholdKm = def.ThresholdKm
	}
	if config.MissionDuration <= 0 {
		config.MissionDuration = def.MissionDuration
	}
	if config.RiskCadence <= 0 {
		config.RiskCadence = def.RiskCadence
	}
	return &Analyzer{
		scanner: NewScanner(prop, config.ThresholdKm, config.RiskCadence),
		config:  config,
		logger:  logger,
	}
}

// Config returns the effective configuration.
func (a *Analyzer) Config() Config {
	return a.config
}

// Evaluate simulates the ascent for req and scans it against cat. A nil or empty
// catalog yields the full trajectory and no events. The result depends only on
// cat and req, so repeated calls return identical reports.
func (a *Analyzer) Evaluate(ctx context.Context, cat *catalog.Catalog, req LaunchRequest) (*Report, error) {
	ctx, span := tracer.Start(ctx, "risk.Evaluate")
	defer span.End()

	req.Epoch = req.Epoch.Truncate(sgp4.Resolution)

	start := time.Now()
	trajectory := a.integrator.Run(req, a.config.MissionDuration)

	events, err := a.scanner.Scan(ctx, cat, req.Epoch, trajectory)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scan failed")
		return nil, err
	}
	duration := time.Since(start)

	metrics.RecordRiskEvaluation(duration, len(events))
	span.SetAttributes(
		attribute.Int("risk.catalog_count", cat.Len()),
		attribute.Int("risk.events", len(events)),
	)

	a.logger.Info("risk evaluation complete",
		"launch_lat", req.LatitudeDeg,
		"launch_lon", req.LongitudeDeg,
		"launch_epoch", req.Epoch.UTC().Format(time.RFC3339),
		"catalog_count", cat.Len(),
		"events", len(events),
		"duration_ms", duration.Milliseconds(),
	)

	return &Report{Trajectory: trajectory, Events: events}, nil
}
