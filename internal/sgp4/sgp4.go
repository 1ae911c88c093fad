// Package sgp4 adapts github.com/joshuaferrara/go-satellite to the engine's element
// set contract: parse two TLE lines once, then ask for the ECI position at any instant.
package sgp4

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrNoPosition reports that SGP4 produced no usable position for an instant
// (decayed object, diverged solution).
var ErrNoPosition = errors.New("no position")

// ErrMalformed reports TLE lines that cannot be turned into an element set.
var ErrMalformed = errors.New("malformed element set")

// Radius bounds for a usable propagated position, km. Below the lower bound the
// object is inside the Earth; above the upper bound the solution has diverged.
const (
	minRadiusKm = 6200.0
	maxRadiusKm = 500000.0
)

// Elements is a parsed, initialized SGP4 element set. Immutable after Parse; safe
// for concurrent use.
type Elements struct {
	sat satellite.Satellite
}

// Parse validates the two element lines and initializes SGP4.
//
// go-satellite calls log.Fatal when a numeric field does not parse, which would take
// the whole process down, so every field it reads is checked here first.
func Parse(line1, line2 string) (*Elements, error) {
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)

	if err := validateLines(line1, line2); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS72)
	if sat.Error != 0 {
		return nil, fmt.Errorf("%w: sgp4 init code=%d %s", ErrMalformed, sat.Error, sat.ErrorStr)
	}
	return &Elements{sat: sat}, nil
}

// Resolution is the finest time step PositionAt distinguishes. Callers that pair
// SGP4 positions with other time-dependent values should truncate instants to it.
const Resolution = time.Second

// PositionAt propagates to t and returns the ECI (TEME) position in kilometers.
// The returned error wraps ErrNoPosition when SGP4 yields nothing usable.
//
// go-satellite works at whole-second resolution; sub-second parts of t are dropped.
func (e *Elements) PositionAt(t time.Time) (r3.Vec, error) {
	t = t.UTC()
	pos, _ := satellite.Propagate(e.sat, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())

	if math.IsNaN(pos.X) || math.IsNaN(pos.Y) || math.IsNaN(pos.Z) ||
		math.IsInf(pos.X, 0) || math.IsInf(pos.Y, 0) || math.IsInf(pos.Z, 0) {
		return r3.Vec{}, fmt.Errorf("%w: output is NaN/Inf", ErrNoPosition)
	}

	v := r3.Vec{X: pos.X, Y: pos.Y, Z: pos.Z}
	if mag := r3.Norm(v); mag < minRadiusKm || mag > maxRadiusKm {
		return r3.Vec{}, fmt.Errorf("%w: radius %.1f km", ErrNoPosition, mag)
	}
	return v, nil
}

// validateLines checks line shape and every column range go-satellite parses.
func validateLines(line1, line2 string) error {
	if len(line1) != 69 {
		return fmt.Errorf("line1 length %d, expected 69", len(line1))
	}
	if len(line2) != 69 {
		return fmt.Errorf("line2 length %d, expected 69", len(line2))
	}
	if line1[0] != '1' {
		return fmt.Errorf("line1 must start with '1', got '%c'", line1[0])
	}
	if line2[0] != '2' {
		return fmt.Errorf("line2 must start with '2', got '%c'", line2[0])
	}

	if _, err := strconv.Atoi(strings.TrimSpace(line1[2:7])); err != nil {
		return fmt.Errorf("catalog number: %w", err)
	}
	if _, err := strconv.Atoi(line1[18:20]); err != nil {
		return fmt.Errorf("epoch year: %w", err)
	}

	fields := []struct {
		name  string
		value string
	}{
		{"epoch day", line1[20:32]},
		{"ndot", strings.Replace(line1[33:43], " ", "", 2)},
		{"nddot", strings.Replace(line1[44:45]+"."+line1[45:50]+"e"+line1[50:52], " ", "", 2)},
		{"bstar", strings.Replace(line1[53:54]+"."+line1[54:59]+"e"+line1[59:61], " ", "", 2)},
		{"inclination", strings.Replace(line2[8:16], " ", "", 2)},
		{"raan", strings.Replace(line2[17:25], " ", "", 2)},
		{"eccentricity", "." + line2[26:33]},
		{"argument of perigee", strings.Replace(line2[34:42], " ", "", 2)},
		{"mean anomaly", strings.Replace(line2[43:51], " ", "", 2)},
		{"mean motion", strings.Replace(line2[52:63], " ", "", 2)},
	}
	for _, f := range fields {
		if _, err := strconv.ParseFloat(f.value, 64); err != nil {
			return fmt.Errorf("%s %q: %w", f.name, f.value, err)
		}
	}
	return nil
}
