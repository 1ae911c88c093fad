package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/catalog"
	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/propagation"
	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/sgp4"
	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/transform"
)

// Propagator computes whole-catalog positions at an instant.
type Propagator interface {
	PropagateAll(ctx context.Context, cat *catalog.Catalog, instant time.Time) (*propagation.Snapshot, error)
}

// Scanner checks a trajectory against a catalog at a fixed cadence. It runs as
// its own pass over a finished trajectory, so the integrator never sees it.
type Scanner struct {
	prop        Propagator
	thresholdKm float64
	cadence     int // seconds
}

// NewScanner creates a scanner that flags members closer than thresholdKm at
// every offset that is a multiple of cadenceSec.
func NewScanner(prop Propagator, thresholdKm float64, cadenceSec int) *Scanner {
	if cadenceSec < 1 {
		cadenceSec = 1
	}
	return &Scanner{prop: prop, thresholdKm: thresholdKm, cadence: cadenceSec}
}

// Scan returns every close approach between the vehicle and a member of cat.
// trajectory[i] must be the sample at offset i. Members with no position at a
// checked instant are skipped for that instant. Events come out ordered by
// offset, then catalog index.
func (s *Scanner) Scan(ctx context.Context, cat *catalog.Catalog, epoch time.Time, trajectory []TrajectorySample) ([]Event, error) {
	epoch = epoch.Truncate(sgp4.Resolution)
	var events []Event
	if cat.Len() == 0 {
		return events, nil
	}

	for offset := 0; offset < len(trajectory); offset += s.cadence {
		vehicle := trajectory[offset].ECI
		instant := epoch.Add(time.Duration(offset) * time.Second)

		snap, err := s.prop.PropagateAll(ctx, cat, instant)
		if err != nil {
			return nil, fmt.Errorf("scanning offset %ds: %w", offset, err)
		}

		for i, pos := range snap.Positions {
			if !pos.OK {
				continue
			}
			d := transform.Distance(vehicle, pos.ECI)
			if d >= s.thresholdKm {
				continue
			}
			obj := cat.At(i)
			events = append(events, Event{
				Offset:      offset,
				DistanceKm:  d,
				ObjectIndex: i,
				ObjectName:  obj.Name,
				ObjectID:    obj.CatalogNumber,
				VehicleECI:  vehicle,
				ObjectECI:   pos.ECI,
			})
		}
	}
	return events, nil
}
