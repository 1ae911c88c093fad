package propagation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/catalog"
	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/sgp4"
	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/transform"
)

// ISS TLE (epoch 2024, will still propagate reasonably for near-future times).
const (
	issLine1 = "1 25544U 98067A   24100.50000000  .00016717  00000-0  10270-3 0  9005"
	issLine2 = "2 25544  51.6400 100.0000 0001000   0.0000   0.0000 15.50000000    09"
)

// Starlink TLE (typical LEO constellation satellite).
const (
	starlinkLine1 = "1 44713U 19074A   24100.50000000  .00001000  00000-0  10000-4 0  9995"
	starlinkLine2 = "2 44713  53.0000 200.0000 0001500  90.0000 270.0000 15.06000000    05"
)

var target = time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// failingElements never yields a position.
type failingElements struct{}

func (failingElements) PositionAt(time.Time) (r3.Vec, error) {
	return r3.Vec{}, sgp4.ErrNoPosition
}

func mustParse(t testing.TB, line1, line2 string) *sgp4.Elements {
	t.Helper()
	el, err := sgp4.Parse(line1, line2)
	if err != nil {
		t.Fatalf("sgp4.Parse failed: %v", err)
	}
	return el
}

// buildCatalog returns n members cycling through ISS, Starlink and, when
// withFailures is set, an element set that never propagates.
func buildCatalog(t testing.TB, n int, withFailures bool) *catalog.Catalog {
	t.Helper()
	iss := mustParse(t, issLine1, issLine2)
	starlink := mustParse(t, starlinkLine1, starlinkLine2)

	objects := make([]catalog.TrackedObject, n)
	for i := range objects {
		var el catalog.Elements = iss
		switch {
		case withFailures && i%3 == 2:
			el = failingElements{}
		case i%3 == 1:
			el = starlink
		}
		objects[i] = catalog.TrackedObject{Elements: el, Name: "TEST"}
	}
	return catalog.New(objects, time.Now())
}

// TestPropagateAllAlignment verifies Positions[i] is the position of member i,
// both inline and through the pool.
func TestPropagateAllAlignment(t *testing.T) {
	iss := mustParse(t, issLine1, issLine2)
	starlink := mustParse(t, starlinkLine1, starlinkLine2)
	wantISS, err := iss.PositionAt(target)
	if err != nil {
		t.Fatalf("ISS PositionAt failed: %v", err)
	}
	wantStarlink, err := starlink.PositionAt(target)
	if err != nil {
		t.Fatalf("Starlink PositionAt failed: %v", err)
	}

	tests := []struct {
		name      string
		n         int
		threshold int
	}{
		{"inline", 9, 256},
		{"pool", 1000, 256},
		{"pool single chunk", 10, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat := buildCatalog(t, tt.n, true)
			engine := NewEngine(Config{Workers: 4, ParallelThreshold: tt.threshold}, testLogger())

			snap, err := engine.PropagateAll(context.Background(), cat, target)
			if err != nil {
				t.Fatalf("PropagateAll failed: %v", err)
			}
			if len(snap.Positions) != cat.Len() {
				t.Fatalf("got %d positions, want %d", len(snap.Positions), cat.Len())
			}

			wantFailed := 0
			for i, pos := range snap.Positions {
				switch i % 3 {
				case 0:
					if !pos.OK || pos.ECI != wantISS {
						t.Errorf("member %d: got %+v, want ISS position %v", i, pos, wantISS)
					}
				case 1:
					if !pos.OK || pos.ECI != wantStarlink {
						t.Errorf("member %d: got %+v, want Starlink position %v", i, pos, wantStarlink)
					}
				case 2:
					wantFailed++
					if pos.OK {
						t.Errorf("member %d: expected no position, got %v", i, pos.ECI)
					}
				}
			}
			if snap.Failed != wantFailed {
				t.Errorf("Failed = %d, want %d", snap.Failed, wantFailed)
			}
		})
	}
}

// TestPropagateAllSiderealAngle verifies the snapshot carries the angle for its instant.
func TestPropagateAllSiderealAngle(t *testing.T) {
	engine := NewEngine(Config{Workers: 2}, testLogger())
	snap, err := engine.PropagateAll(context.Background(), buildCatalog(t, 3, false), target)
	if err != nil {
		t.Fatalf("PropagateAll failed: %v", err)
	}
	if want := transform.SiderealAngle(target); snap.SiderealAngle != want {
		t.Errorf("SiderealAngle = %v, want %v", snap.SiderealAngle, want)
	}
	if !snap.Instant.Equal(target) {
		t.Errorf("Instant = %v, want %v", snap.Instant, target)
	}
}

// TestPropagateAllWholeSeconds verifies sub-second instants are truncated before
// both the sidereal angle and the positions are computed.
func TestPropagateAllWholeSeconds(t *testing.T) {
	engine := NewEngine(Config{Workers: 2}, testLogger())
	cat := buildCatalog(t, 3, false)

	whole, err := engine.PropagateAll(context.Background(), cat, target)
	if err != nil {
		t.Fatalf("PropagateAll failed: %v", err)
	}
	sub, err := engine.PropagateAll(context.Background(), cat, target.Add(999*time.Millisecond))
	if err != nil {
		t.Fatalf("PropagateAll failed: %v", err)
	}

	if !sub.Instant.Equal(target) {
		t.Errorf("Instant = %v, want %v", sub.Instant, target)
	}
	if sub.SiderealAngle != whole.SiderealAngle {
		t.Errorf("SiderealAngle = %v, want %v", sub.SiderealAngle, whole.SiderealAngle)
	}
	for i := range whole.Positions {
		if sub.Positions[i] != whole.Positions[i] {
			t.Errorf("Positions[%d] = %v, want %v", i, sub.Positions[i], whole.Positions[i])
		}
	}
}

// TestPropagateAllEmptyCatalog verifies empty and nil catalogs give empty buffers.
func TestPropagateAllEmptyCatalog(t *testing.T) {
	engine := NewEngine(Config{Workers: 2}, testLogger())

	for name, cat := range map[string]*catalog.Catalog{
		"nil":   nil,
		"empty": catalog.New(nil, time.Now()),
	} {
		t.Run(name, func(t *testing.T) {
			snap, err := engine.PropagateAll(context.Background(), cat, target)
			if err != nil {
				t.Fatalf("PropagateAll failed: %v", err)
			}
			if len(snap.Positions) != 0 {
				t.Errorf("got %d positions, want 0", len(snap.Positions))
			}
			if math.IsNaN(snap.SiderealAngle) {
				t.Error("sidereal angle is NaN")
			}
		})
	}
}

// TestPropagateAllReasonableMagnitude verifies ISS lands at a LEO radius.
func TestPropagateAllReasonableMagnitude(t *testing.T) {
	engine := NewEngine(Config{Workers: 2}, testLogger())
	snap, err := engine.PropagateAll(context.Background(), buildCatalog(t, 1, false), target)
	if err != nil {
		t.Fatalf("PropagateAll failed: %v", err)
	}

	// Expected: ~6371 + 420 ≈ 6791 km.
	mag := r3.Norm(snap.Positions[0].ECI)
	if mag < 6500 || mag > 7000 {
		t.Errorf("ECI position magnitude = %.1f km, expected ~6791 km (ISS orbit)", mag)
	}
}

// TestWorkerPoolCancellation verifies the worker pool respects context cancellation.
func TestWorkerPoolCancellation(t *testing.T) {
	cat := buildCatalog(t, 1000, false)
	engine := NewEngine(Config{Workers: 2}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately.

	_, err := engine.PropagateAll(ctx, cat, target)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	// Inline path too.
	_, err = engine.PropagateAll(ctx, buildCatalog(t, 3, false), target)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled for inline batch, got %v", err)
	}
}

// TestPropagateAllDeterministic verifies two batches at one instant are identical.
func TestPropagateAllDeterministic(t *testing.T) {
	cat := buildCatalog(t, 500, true)
	engine := NewEngine(Config{Workers: 8}, testLogger())

	a, err := engine.PropagateAll(context.Background(), cat, target)
	if err != nil {
		t.Fatal(err)
	}
	b, err := engine.PropagateAll(context.Background(), cat, target)
	if err != nil {
		t.Fatal(err)
	}
	for i := range a.Positions {
		if a.Positions[i] != b.Positions[i] {
			t.Fatalf("member %d differs between runs: %+v vs %+v", i, a.Positions[i], b.Positions[i])
		}
	}
}

// BenchmarkPropagate1000 benchmarks propagating 1000 satellites.
func BenchmarkPropagate1000(b *testing.B) {
	cat := buildCatalog(b, 1000, false)
	engine := NewEngine(Config{Workers: 4}, testLogger())
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.PropagateAll(ctx, cat, target); err != nil {
			b.Fatal(err)
		}
	}
}
