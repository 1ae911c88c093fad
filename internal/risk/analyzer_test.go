package risk

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/catalog"
	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/propagation"
	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/sgp4"
)

const (
	issLine1 = "1 25544U 98067A   24100.50000000  .00016717  00000-0  10270-3 0  9005"
	issLine2 = "2 25544  51.6400 100.0000 0001000   0.0000   0.0000 15.50000000    09"
)

// farAway is well outside any threshold from an ascending vehicle.
var farAway = r3.Vec{X: 100000}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func newAnalyzer(cfg Config) *Analyzer {
	return NewAnalyzer(propagation.NewEngine(propagation.Config{Workers: 2}, testLogger()), cfg, testLogger())
}

// shadowElements sits on the vehicle's path, displaced by shift, at the offsets
// in at. Everywhere else it is far away.
type shadowElements struct {
	epoch time.Time
	path  []TrajectorySample
	at    map[int]bool
	shift r3.Vec
}

func (s shadowElements) PositionAt(t time.Time) (r3.Vec, error) {
	d := t.Sub(s.epoch)
	if d%time.Second != 0 {
		return farAway, nil
	}
	off := int(d / time.Second)
	if off < 0 || off >= len(s.path) || !s.at[off] {
		return farAway, nil
	}
	return r3.Add(s.path[off].ECI, s.shift), nil
}

type noPosition struct{}

func (noPosition) PositionAt(time.Time) (r3.Vec, error) { return r3.Vec{}, sgp4.ErrNoPosition }

func single(el catalog.Elements) *catalog.Catalog {
	return catalog.New([]catalog.TrackedObject{{Elements: el, Name: "SHADOW", CatalogNumber: "90000"}}, capeRequest.Epoch)
}

func offsets(from, to int) map[int]bool {
	m := make(map[int]bool)
	for i := from; i <= to; i++ {
		m[i] = true
	}
	return m
}

func TestEvaluateEmptyCatalog(t *testing.T) {
	a := newAnalyzer(DefaultConfig())

	for name, cat := range map[string]*catalog.Catalog{
		"nil":   nil,
		"empty": catalog.New(nil, time.Now()),
	} {
		t.Run(name, func(t *testing.T) {
			report, err := a.Evaluate(context.Background(), cat, capeRequest)
			require.NoError(t, err)
			assert.Empty(t, report.Events)
			require.Len(t, report.Trajectory, 1201)
			assert.InDelta(t, 0, report.Trajectory[0].AltitudeM, 1e-9)
		})
	}
}

// TestEvaluateForcedCoincidence places an object exactly on the vehicle at t=500.
func TestEvaluateForcedCoincidence(t *testing.T) {
	path := Integrator{}.Run(capeRequest, 1200)
	cat := single(shadowElements{epoch: capeRequest.Epoch, path: path, at: map[int]bool{500: true}})

	report, err := newAnalyzer(DefaultConfig()).Evaluate(context.Background(), cat, capeRequest)
	require.NoError(t, err)
	require.Len(t, report.Events, 1)

	ev := report.Events[0]
	assert.Equal(t, 500, ev.Offset)
	assert.InDelta(t, 0, ev.DistanceKm, 1e-9)
	assert.Equal(t, "SHADOW", ev.ObjectName)
	assert.Equal(t, "90000", ev.ObjectID)
	assert.Equal(t, 0, ev.ObjectIndex)
	assert.Equal(t, path[500].ECI, ev.VehicleECI)
}

// TestEvaluateBetweenChecks verifies coincidences off the cadence grid go unseen.
func TestEvaluateBetweenChecks(t *testing.T) {
	path := Integrator{}.Run(capeRequest, 1200)
	cat := single(shadowElements{epoch: capeRequest.Epoch, path: path, at: map[int]bool{501: true, 502: true, 503: true, 504: true}})

	report, err := newAnalyzer(DefaultConfig()).Evaluate(context.Background(), cat, capeRequest)
	require.NoError(t, err)
	assert.Empty(t, report.Events)
}

func TestEvaluateEventsOnCadence(t *testing.T) {
	path := Integrator{}.Run(capeRequest, 1200)
	cat := single(shadowElements{epoch: capeRequest.Epoch, path: path, at: offsets(0, 1200)})

	report, err := newAnalyzer(DefaultConfig()).Evaluate(context.Background(), cat, capeRequest)
	require.NoError(t, err)
	require.Len(t, report.Events, 241)
	for i, ev := range report.Events {
		assert.Zero(t, ev.Offset%5, "event at offset %d", ev.Offset)
		assert.Equal(t, i*5, ev.Offset)
	}
}

func TestEvaluateThreshold(t *testing.T) {
	path := Integrator{}.Run(capeRequest, 1200)
	cat := single(shadowElements{epoch: capeRequest.Epoch, path: path, at: map[int]bool{500: true}, shift: r3.Vec{Z: 60}})

	tests := []struct {
		thresholdKm float64
		wantEvents  int
	}{
		{50, 0},
		{59.9, 0},
		{60.1, 1},
		{100, 1},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		cfg.ThresholdKm = tt.thresholdKm
		report, err := newAnalyzer(cfg).Evaluate(context.Background(), cat, capeRequest)
		require.NoError(t, err)
		assert.Len(t, report.Events, tt.wantEvents, "threshold %v km", tt.thresholdKm)
	}
}

func TestEvaluateSkipsMembersWithoutPosition(t *testing.T) {
	path := Integrator{}.Run(capeRequest, 1200)
	cat := catalog.New([]catalog.TrackedObject{
		{Elements: noPosition{}, Name: "DECAYED", CatalogNumber: "1"},
		{Elements: shadowElements{epoch: capeRequest.Epoch, path: path, at: map[int]bool{100: true}}, Name: "SHADOW", CatalogNumber: "2"},
	}, capeRequest.Epoch)

	report, err := newAnalyzer(DefaultConfig()).Evaluate(context.Background(), cat, capeRequest)
	require.NoError(t, err)
	require.Len(t, report.Events, 1)
	assert.Equal(t, 1, report.Events[0].ObjectIndex)
	assert.Equal(t, 100, report.Events[0].Offset)
}

// TestEvaluateOrdering verifies events sort by offset, then catalog index.
func TestEvaluateOrdering(t *testing.T) {
	path := Integrator{}.Run(capeRequest, 1200)
	shadow := func(at ...int) catalog.Elements {
		m := make(map[int]bool)
		for _, o := range at {
			m[o] = true
		}
		return shadowElements{epoch: capeRequest.Epoch, path: path, at: m}
	}
	cat := catalog.New([]catalog.TrackedObject{
		{Elements: shadow(300), Name: "A"},
		{Elements: shadow(100, 300), Name: "B"},
		{Elements: shadow(100), Name: "C"},
	}, capeRequest.Epoch)

	report, err := newAnalyzer(DefaultConfig()).Evaluate(context.Background(), cat, capeRequest)
	require.NoError(t, err)

	type key struct {
		Offset int
		Name   string
	}
	var got []key
	for _, ev := range report.Events {
		got = append(got, key{ev.Offset, ev.ObjectName})
	}
	want := []key{{100, "B"}, {100, "C"}, {300, "A"}, {300, "B"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("event order mismatch (-want +got):\n%s", diff)
	}
}

func TestEvaluateIdempotent(t *testing.T) {
	iss, err := sgp4.Parse(issLine1, issLine2)
	require.NoError(t, err)
	path := Integrator{}.Run(capeRequest, 1200)
	cat := catalog.New([]catalog.TrackedObject{
		{Elements: iss, Name: "ISS", CatalogNumber: "25544"},
		{Elements: shadowElements{epoch: capeRequest.Epoch, path: path, at: offsets(400, 420)}, Name: "SHADOW"},
	}, capeRequest.Epoch)

	a := newAnalyzer(DefaultConfig())
	first, err := a.Evaluate(context.Background(), cat, capeRequest)
	require.NoError(t, err)
	second, err := a.Evaluate(context.Background(), cat, capeRequest)
	require.NoError(t, err)

	require.NotEmpty(t, first.Events)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("repeated evaluation differs (-first +second):\n%s", diff)
	}
}

// TestEvaluateSubSecondEpoch verifies the vehicle and the catalog are evaluated at
// the same whole-second instants, whatever the milliseconds of the epoch.
func TestEvaluateSubSecondEpoch(t *testing.T) {
	iss, err := sgp4.Parse(issLine1, issLine2)
	require.NoError(t, err)
	path := Integrator{}.Run(capeRequest, 1200)
	cat := catalog.New([]catalog.TrackedObject{
		{Elements: iss, Name: "ISS", CatalogNumber: "25544"},
		{Elements: shadowElements{epoch: capeRequest.Epoch, path: path, at: offsets(500, 500)}, Name: "SHADOW"},
	}, capeRequest.Epoch)

	a := newAnalyzer(DefaultConfig())
	whole, err := a.Evaluate(context.Background(), cat, capeRequest)
	require.NoError(t, err)

	late := capeRequest
	late.Epoch = capeRequest.Epoch.Add(999 * time.Millisecond)
	sub, err := a.Evaluate(context.Background(), cat, late)
	require.NoError(t, err)

	require.Len(t, whole.Events, 1)
	assert.InDelta(t, 0, whole.Events[0].DistanceKm, 1e-9)
	if diff := cmp.Diff(whole, sub); diff != "" {
		t.Errorf("sub-second epoch changes the report (-whole +sub):\n%s", diff)
	}
}

func TestEvaluateCancelled(t *testing.T) {
	iss, err := sgp4.Parse(issLine1, issLine2)
	require.NoError(t, err)
	cat := single(iss)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = newAnalyzer(DefaultConfig()).Evaluate(ctx, cat, capeRequest)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}

func TestNewAnalyzerDefaults(t *testing.T) {
	a := newAnalyzer(Config{})
	assert.Equal(t, DefaultConfig(), a.Config())
}
