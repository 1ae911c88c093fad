package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/metrics"
	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/tle"
)

var tracer = otel.Tracer("github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/catalog")

// LoaderConfig holds catalog refresh configuration.
type LoaderConfig struct {
	Sources []tle.Source
	// AllowPartial keeps a refresh going when some (not all) sources fail. By
	// default any failing source aborts the refresh and the live catalog stays.
	AllowPartial bool
}

// Loader refreshes a Store from the configured sources.
type Loader struct {
	store     *Store
	fetcher   *tle.Fetcher
	snapshots *tle.Snapshots
	parse     ParseFunc
	config    LoaderConfig
	logger    *slog.Logger
}

// NewLoader creates a Loader. snapshots may be nil to disable on-disk snapshots.
func NewLoader(store *Store, fetcher *tle.Fetcher, snapshots *tle.Snapshots, config LoaderConfig, logger *slog.Logger) *Loader {
	return &Loader{
		store:     store,
		fetcher:   fetcher,
		snapshots: snapshots,
		parse:     ParseSGP4,
		config:    config,
		logger:    logger,
	}
}

// Refresh fetches every source, builds a new catalog and swaps it into the store.
// On error the live catalog is left untouched.
func (l *Loader) Refresh(ctx context.Context) (*LoadResult, error) {
	l.store.Lock()
	defer l.store.Unlock()

	ctx, span := tracer.Start(ctx, "catalog.Refresh")
	defer span.End()

	start := time.Now()
	texts, failed, err := l.fetcher.FetchAll(ctx, l.config.Sources, l.config.AllowPartial)
	if err != nil {
		metrics.IncCatalogRefresh("error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, fmt.Errorf("refreshing catalog: %w", err)
	}

	fetchedAt := time.Now().UTC()
	res := Build(texts, l.parse, fetchedAt)
	res.FailedSources = failed
	l.install(res, "fetch", time.Since(start))

	span.SetAttributes(
		attribute.Int("catalog.count", res.Catalog.Len()),
		attribute.Int("catalog.dropped", res.Dropped),
		attribute.Int("catalog.failed_sources", len(failed)),
	)

	// Snapshots only ever hold complete refreshes.
	if l.snapshots != nil && len(failed) == 0 {
		if err := l.snapshots.Write(texts, fetchedAt); err != nil {
			l.logger.Warn("failed to write catalog snapshot", "error", err)
		}
	}

	return res, nil
}

// Restore rebuilds the catalog from the newest on-disk snapshot.
func (l *Loader) Restore() (*LoadResult, error) {
	if l.snapshots == nil {
		return nil, fmt.Errorf("snapshots disabled")
	}

	l.store.Lock()
	defer l.store.Unlock()

	start := time.Now()
	texts, fetchedAt, err := l.snapshots.LoadLatest()
	if err != nil {
		return nil, fmt.Errorf("restoring catalog: %w", err)
	}

	res := Build(texts, l.parse, fetchedAt)
	l.install(res, "snapshot", time.Since(start))
	return res, nil
}

func (l *Loader) install(res *LoadResult, origin string, took time.Duration) {
	old := l.store.Swap(res.Catalog)

	metrics.IncCatalogRefresh("ok")
	metrics.SetCatalogObjects(res.Catalog.Len())
	metrics.SetCatalogDropped(res.Dropped)

	l.logger.Info("catalog loaded",
		"origin", origin,
		"catalog_count", res.Catalog.Len(),
		"previous_count", old.Len(),
		"dropped", res.Dropped,
		"failed_sources", len(res.FailedSources),
		"fetched_at", res.Catalog.FetchedAt().Format(time.RFC3339),
		"duration_ms", took.Milliseconds(),
	)
	for _, s := range res.Catalog.Sources() {
		l.logger.Debug("catalog source",
			"source", s.Name,
			"records", s.Records,
			"loaded", s.Loaded,
		)
	}
}
