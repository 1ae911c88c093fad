// Package transform converts positions between the geodetic, Earth-fixed (ECF) and
// Earth-centered inertial (ECI) frames used by the engine. All distances are in
// kilometers.
//
// The ECF/ECI rotation uses the mean sidereal angle only (no nutation, no polar
// motion). SGP4 output is TEME, which is treated as ECI here; the difference is well
// below the proximity thresholds this engine works with.
package transform

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// WGS-84 ellipsoid, kilometers.
const (
	wgs84A  = 6378.137
	wgs84B  = 6356.7523142
	wgs84F  = (wgs84A - wgs84B) / wgs84A
	wgs84E2 = 2*wgs84F - wgs84F*wgs84F
)

// Geodetic is a point above the WGS-84 ellipsoid.
type Geodetic struct {
	LatRad, LonRad float64
	HeightKm       float64
}

// GeodeticFromDegrees builds a Geodetic from degrees and a height in kilometers.
func GeodeticFromDegrees(latDeg, lonDeg, heightKm float64) Geodetic {
	return Geodetic{
		LatRad:   latDeg * math.Pi / 180,
		LonRad:   lonDeg * math.Pi / 180,
		HeightKm: heightKm,
	}
}

// GeodeticToECF converts a geodetic point to Earth-fixed coordinates (km).
func GeodeticToECF(g Geodetic) r3.Vec {
	sinLat, cosLat := math.Sincos(g.LatRad)
	sinLon, cosLon := math.Sincos(g.LonRad)

	// Radius of curvature in the prime vertical.
	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	return r3.Vec{
		X: (n + g.HeightKm) * cosLat * cosLon,
		Y: (n + g.HeightKm) * cosLat * sinLon,
		Z: (n*(1-wgs84E2) + g.HeightKm) * sinLat,
	}
}

// ECFToECI rotates an Earth-fixed vector into the inertial frame by the sidereal
// angle (radians): r_ECI = R3(-θ) r_ECF.
func ECFToECI(ecf r3.Vec, sidereal float64) r3.Vec {
	s, c := math.Sincos(sidereal)
	return r3.Vec{
		X: ecf.X*c - ecf.Y*s,
		Y: ecf.X*s + ecf.Y*c,
		Z: ecf.Z,
	}
}

// ECIToECF is the inverse of ECFToECI: r_ECF = R3(θ) r_ECI.
func ECIToECF(eci r3.Vec, sidereal float64) r3.Vec {
	s, c := math.Sincos(sidereal)
	return r3.Vec{
		X: eci.X*c + eci.Y*s,
		Y: -eci.X*s + eci.Y*c,
		Z: eci.Z,
	}
}

// Distance is the Euclidean distance between two positions, in their unit.
func Distance(a, b r3.Vec) float64 {
	return r3.Norm(r3.Sub(a, b))
}
