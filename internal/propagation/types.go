package propagation

import (
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// Position is one catalog member's slot in a Snapshot. OK is false when the
// member's element set produced no usable position at the instant.
type Position struct {
	ECI r3.Vec // kilometers
	OK  bool
}

// Snapshot holds the positions of every catalog member at a single instant,
// aligned by index with the catalog it was computed from.
type Snapshot struct {
	Instant       time.Time
	SiderealAngle float64 // radians
	Positions     []Position
	Failed        int
}

// Config holds propagation configuration loaded from environment variables.
type Config struct {
	Workers int // Worker pool size (default: runtime.NumCPU())
	// ParallelThreshold is the catalog size below which members are propagated
	// inline instead of through the pool (default: 256).
	ParallelThreshold int
}
