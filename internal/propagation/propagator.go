// Package propagation computes whole-catalog ECI positions at an instant.
package propagation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/catalog"
	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/metrics"
	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/sgp4"
	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/transform"
)

const defaultParallelThreshold = 256

var tracer = otel.Tracer("github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/propagation")

// Engine propagates catalogs. It holds no catalog of its own; callers pass the
// snapshot they read from the store, so one batch always sees one catalog.
type Engine struct {
	pool      *WorkerPool
	threshold int
	logger    *slog.Logger
}

// NewEngine creates a propagation engine.
func NewEngine(config Config, logger *slog.Logger) *Engine {
	threshold := config.ParallelThreshold
	if threshold <= 0 {
		threshold = defaultParallelThreshold
	}
	pool := NewWorkerPool(config.Workers, logger)
	metrics.SetPropagationWorkers(pool.Workers())
	return &Engine{
		pool:      pool,
		threshold: threshold,
		logger:    logger,
	}
}

// PropagateAll computes the position of every member of cat at instant.
// Positions[i] belongs to cat.At(i); members whose element set yields no position
// are marked not OK rather than failing the batch. A nil catalog gives an empty
// snapshot.
//
// instant is truncated to sgp4.Resolution so the sidereal angle and the positions
// describe the same moment; Snapshot.Instant is the truncated value.
func (e *Engine) PropagateAll(ctx context.Context, cat *catalog.Catalog, instant time.Time) (*Snapshot, error) {
	instant = instant.Truncate(sgp4.Resolution)
	n := cat.Len()
	snap := &Snapshot{
		Instant:       instant,
		SiderealAngle: transform.SiderealAngle(instant),
		Positions:     make([]Position, n),
	}
	if n == 0 {
		return snap, nil
	}

	_, span := tracer.Start(ctx, "propagation.PropagateAll")
	defer span.End()

	start := time.Now()
	var err error
	if n < e.threshold {
		if err = ctx.Err(); err == nil {
			snap.Failed = propagateRange(cat, instant, snap.Positions, 0, n)
		}
	} else {
		snap.Failed, err = e.pool.PropagateBatch(ctx, cat, instant, snap.Positions)
	}
	if err != nil {
		return nil, fmt.Errorf("propagating catalog: %w", err)
	}
	duration := time.Since(start)

	metrics.RecordPropagation(duration, n-snap.Failed, snap.Failed)
	span.SetAttributes(
		attribute.Int("propagation.objects", n),
		attribute.Int("propagation.failed", snap.Failed),
	)

	e.logger.Debug("propagation complete",
		"objects", n,
		"failed", snap.Failed,
		"instant", instant.UTC().Format(time.RFC3339),
		"duration_ms", duration.Milliseconds(),
	)

	return snap, nil
}
