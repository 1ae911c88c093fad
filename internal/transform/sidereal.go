package transform

import (
	"math"
	"time"
)

// j2000 is the Julian Date of the J2000.0 epoch (January 1, 2000, 12:00:00 TT).
const j2000 = 2451545.0

// secondsPerDay is the length of a solar day in seconds.
const secondsPerDay = 86400.0

// JulianDate converts a UTC instant to a Julian Date, keeping sub-second precision.
func JulianDate(t time.Time) float64 {
	t = t.UTC()
	y := float64(t.Year())
	m := float64(t.Month())
	d := float64(t.Day())
	dayFrac := (float64(t.Hour())*3600 + float64(t.Minute())*60 +
		float64(t.Second()) + float64(t.Nanosecond())/1e9) / secondsPerDay

	// Jan/Feb count as months 13/14 of the previous year.
	if m <= 2 {
		y--
		m += 12
	}

	a := math.Floor(y / 100)
	b := 2 - a + math.Floor(a/4)

	return math.Floor(365.25*(y+4716)) + math.Floor(30.6001*(m+1)) + d + b - 1524.5 + dayFrac
}

// SiderealAngle returns the Greenwich mean sidereal angle in radians, in [0, 2π),
// for the given instant (IAU-82, Vallado Eq 3-47). This is the rotation that takes
// an Earth-fixed vector into the inertial frame.
func SiderealAngle(t time.Time) float64 {
	tUT1 := (JulianDate(t) - j2000) / 36525.0

	// Seconds of time; 876600h = 3155760000 s.
	sec := 67310.54841 +
		(3155760000.0+8640184.812866)*tUT1 +
		0.093104*tUT1*tUT1 -
		6.2e-6*tUT1*tUT1*tUT1

	sec = math.Mod(sec, secondsPerDay)
	if sec < 0 {
		sec += secondsPerDay
	}
	return sec / secondsPerDay * 2 * math.Pi
}
