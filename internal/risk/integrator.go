package risk

import (
	"math"
	"time"

	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/sgp4"
	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/transform"
)

// Ascent profile.
const (
	gravity = 9.81 // m/s²

	stage1End = 180 // seconds
	stage2End = 900

	stage1TWRStart = 1.2
	stage1TWREnd   = 3.5
	stage2TWRStart = 0.8
	stage2TWREnd   = 4.0

	// Stage 1 climbs vertically until it clears this altitude.
	pitchHoldAltitudeM = 500.0
	stage1PitchEnd     = 30.0

	velocityCeilingMS = 7800.0

	// Flat-Earth longitude scale at the equator.
	metersPerDegreeLon = 111319.0
)

// stepSeconds is the integration step.
const stepSeconds = 1.0

// Integrator advances the ascent model one second at a time. It is stateless;
// the zero value is ready to use.
type Integrator struct{}

// Step applies the step at s.Offset and returns the state at s.Offset+1.
//
// The update order is fixed: pitch and acceleration, then speed, then the
// vertical/horizontal split of the new speed, then altitude and downrange.
func (Integrator) Step(s State) State {
	t := float64(s.Offset)

	var accel, pitch float64
	switch {
	case s.Offset < stage1End:
		p := t / stage1End
		accel = lerp(stage1TWRStart, stage1TWREnd, p)*gravity - gravity
		pitch = 90
		if s.AltitudeM > pitchHoldAltitudeM {
			pitch = lerp(90, stage1PitchEnd, p)
		}
	case s.Offset < stage2End:
		p := (t - stage1End) / (stage2End - stage1End)
		accel = lerp(stage2TWRStart, stage2TWREnd, p) * gravity
		pitch = lerp(stage1PitchEnd, 0, p)
	default:
		// Coast.
	}

	clamped := s.Clamped
	if clamped {
		accel = 0
	}

	speed := s.SpeedMS + accel*stepSeconds
	if speed >= velocityCeilingMS {
		speed = velocityCeilingMS
		clamped = true
	}

	sin, cos := math.Sincos(pitch * math.Pi / 180)
	return State{
		Offset:     s.Offset + 1,
		SpeedMS:    speed,
		AltitudeM:  s.AltitudeM + speed*sin*stepSeconds,
		DownrangeM: s.DownrangeM + speed*cos*stepSeconds,
		PitchDeg:   pitch,
		Clamped:    clamped,
	}
}

// Run integrates the ascent from the pad and returns durationSec+1 samples, one
// per second from offset 0 through durationSec inclusive. The epoch is truncated to
// sgp4.Resolution, the same instants the catalog is propagated to.
func (in Integrator) Run(req LaunchRequest, durationSec int) []TrajectorySample {
	req.Epoch = req.Epoch.Truncate(sgp4.Resolution)
	durationSec = max(durationSec, 0)
	samples := make([]TrajectorySample, 0, durationSec+1)
	s := State{PitchDeg: 90}
	for {
		samples = append(samples, project(req, s))
		if s.Offset == durationSec {
			return samples
		}
		s = in.Step(s)
	}
}

// project places a state over the Earth: latitude stays at the launch latitude,
// longitude advances east by downrange distance on a flat-Earth scale.
func project(req LaunchRequest, s State) TrajectorySample {
	latRad := req.LatitudeDeg * math.Pi / 180
	lon := req.LongitudeDeg + s.DownrangeM/(metersPerDegreeLon*math.Cos(latRad))

	ecf := transform.GeodeticToECF(transform.GeodeticFromDegrees(req.LatitudeDeg, lon, s.AltitudeM/1000))
	instant := req.Epoch.Add(time.Duration(s.Offset) * time.Second)

	return TrajectorySample{
		State:        s,
		LatitudeDeg:  req.LatitudeDeg,
		LongitudeDeg: lon,
		ECI:          transform.ECFToECI(ecf, transform.SiderealAngle(instant)),
	}
}

func lerp(a, b, p float64) float64 {
	return a + (b-a)*p
}
