// Package risk simulates a two-stage launch ascent and checks it against a
// propagated catalog for close approaches.
package risk

import (
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// LaunchRequest describes a proposed launch. Coordinates are not range-checked
// here; callers validate input from the outside world.
type LaunchRequest struct {
	LatitudeDeg  float64
	LongitudeDeg float64
	Epoch        time.Time
}

// State is the integrator state at a whole-second offset from launch.
type State struct {
	Offset     int     // seconds since launch
	SpeedMS    float64 // scalar speed, m/s
	AltitudeM  float64
	DownrangeM float64
	PitchDeg   float64 // flight-path angle above the local horizontal; 90 is straight up
	Clamped    bool    // speed has reached the orbital-velocity ceiling
}

// TrajectorySample is the vehicle at one offset: the state before that offset's
// step is applied, projected to geodetic and ECI coordinates.
type TrajectorySample struct {
	State
	LatitudeDeg  float64
	LongitudeDeg float64
	ECI          r3.Vec // kilometers
}

// Event is a close approach between the vehicle and a catalog member.
type Event struct {
	Offset      int // seconds since launch
	DistanceKm  float64
	ObjectIndex int // position in the catalog
	ObjectName  string
	ObjectID    string // catalog number
	VehicleECI  r3.Vec
	ObjectECI   r3.Vec
}

// Report is the outcome of one evaluation. An empty Events slice means the whole
// modeled ascent is clear.
type Report struct {
	Trajectory []TrajectorySample
	Events     []Event
}
