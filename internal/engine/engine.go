// Package engine is the single entry point for host requests: it owns the wire
// format and dispatches each request to the catalog, propagation or risk layer.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/catalog"
	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/metrics"
	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/propagation"
	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/risk"
)

var (
	// ErrUnknownRequest reports a request type the engine does not handle.
	ErrUnknownRequest = errors.New("unknown request type")
	// ErrNoCatalog reports that no catalog has been loaded yet. Only Catalog returns
	// it; propagation and risk requests treat a missing catalog as an empty one.
	ErrNoCatalog = errors.New("no catalog loaded")
	// ErrInvalidRequest reports missing or out-of-range request fields.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrRefreshDisabled reports a refresh request when fetching is turned off.
	ErrRefreshDisabled = errors.New("catalog refresh disabled")
	// ErrRefreshFailed wraps a refresh that left the live catalog unchanged.
	ErrRefreshFailed = errors.New("catalog refresh failed")
)

var tracer = otel.Tracer("github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/engine")

// Refresher rebuilds the live catalog from its sources.
type Refresher interface {
	Refresh(ctx context.Context) (*catalog.LoadResult, error)
}

// Engine dispatches host requests.
type Engine struct {
	store     *catalog.Store
	refresher Refresher
	prop      *propagation.Engine
	analyzer  *risk.Analyzer
	now       func() time.Time
	logger    *slog.Logger
}

// New creates an engine. refresher may be nil to disable REFRESH_CATALOG.
func New(store *catalog.Store, refresher Refresher, prop *propagation.Engine, analyzer *risk.Analyzer, logger *slog.Logger) *Engine {
	return &Engine{
		store:     store,
		refresher: refresher,
		prop:      prop,
		analyzer:  analyzer,
		now:       time.Now,
		logger:    logger,
	}
}

// Handle answers one request. Each request type maps to exactly one response type.
func (e *Engine) Handle(ctx context.Context, req Request) (*Response, error) {
	ctx, span := tracer.Start(ctx, "engine.Handle")
	defer span.End()
	span.SetAttributes(attribute.String("engine.request_type", string(req.Type)))

	resp, err := e.dispatch(ctx, req)

	kind, result := string(req.Type), "ok"
	if err != nil {
		result = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	// Unknown types come from callers; keep them out of the metric labels.
	if errors.Is(err, ErrUnknownRequest) {
		kind = "unknown"
	}
	metrics.IncEngineRequest(kind, result)
	return resp, err
}

func (e *Engine) dispatch(ctx context.Context, req Request) (*Response, error) {
	switch req.Type {
	case RefreshCatalog:
		p, err := e.RefreshCatalog(ctx)
		if err != nil {
			return nil, err
		}
		return &Response{Type: CatalogReady, Catalog: p}, nil

	case Propagate:
		instant := e.now()
		if req.InstantMs != nil {
			instant = time.UnixMilli(*req.InstantMs).UTC()
		}
		p, err := e.Propagate(ctx, instant, req.Frame)
		if err != nil {
			return nil, err
		}
		return &Response{Type: Positions, Positions: p}, nil

	case EvaluateRisk:
		lr, err := launchRequest(req)
		if err != nil {
			return nil, err
		}
		p, err := e.EvaluateRisk(ctx, lr)
		if err != nil {
			return nil, err
		}
		return &Response{Type: RiskResult, Risk: p}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRequest, req.Type)
	}
}

// RefreshCatalog fetches every source and installs the new catalog.
func (e *Engine) RefreshCatalog(ctx context.Context) (*CatalogPayload, error) {
	if e.refresher == nil {
		return nil, ErrRefreshDisabled
	}
	res, err := e.refresher.Refresh(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}
	return catalogPayload(res.Catalog, res.FailedSources), nil
}

// Catalog describes the live catalog without refreshing it.
func (e *Engine) Catalog() (*CatalogPayload, error) {
	c := e.store.Get()
	if c == nil {
		return nil, ErrNoCatalog
	}
	return catalogPayload(c, nil), nil
}

// Propagate computes the live catalog's positions at instant. An empty frame
// means ECI.
func (e *Engine) Propagate(ctx context.Context, instant time.Time, frame Frame) (*PositionPayload, error) {
	switch frame {
	case "":
		frame = FrameECI
	case FrameECI, FrameECF:
	default:
		return nil, fmt.Errorf("%w: unknown frame %q", ErrInvalidRequest, frame)
	}

	// Before the first refresh the store holds nil, which propagates as an empty catalog.
	snap, err := e.prop.PropagateAll(ctx, e.store.Get(), instant)
	if err != nil {
		return nil, err
	}
	return positionPayload(snap, frame), nil
}

// EvaluateRisk checks a launch against the live catalog.
func (e *Engine) EvaluateRisk(ctx context.Context, req risk.LaunchRequest) (*RiskPayload, error) {
	if err := validateLaunch(req); err != nil {
		return nil, err
	}
	report, err := e.analyzer.Evaluate(ctx, e.store.Get(), req)
	if err != nil {
		return nil, err
	}
	return riskPayload(report), nil
}

func launchRequest(req Request) (risk.LaunchRequest, error) {
	if req.LaunchLatitudeDeg == nil || req.LaunchLongitudeDeg == nil || req.LaunchEpochMs == nil {
		return risk.LaunchRequest{}, fmt.Errorf("%w: launchLatitudeDeg, launchLongitudeDeg and launchEpochMs are required", ErrInvalidRequest)
	}
	return risk.LaunchRequest{
		LatitudeDeg:  *req.LaunchLatitudeDeg,
		LongitudeDeg: *req.LaunchLongitudeDeg,
		Epoch:        time.UnixMilli(*req.LaunchEpochMs).UTC(),
	}, nil
}

// validateLaunch rejects sites the flat-Earth longitude scale cannot handle.
func validateLaunch(req risk.LaunchRequest) error {
	lat, lon := req.LatitudeDeg, req.LongitudeDeg
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lon) || math.IsInf(lon, 0) {
		return fmt.Errorf("%w: launch coordinates must be finite", ErrInvalidRequest)
	}
	if lat <= -90 || lat >= 90 {
		return fmt.Errorf("%w: launch latitude %v outside (-90, 90)", ErrInvalidRequest, lat)
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("%w: launch longitude %v outside [-180, 180]", ErrInvalidRequest, lon)
	}
	return nil
}
