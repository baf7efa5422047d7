// Package transform provides the WGS-84 frame conversions used by the
// signal model: geodetic/ECEF conversion, topocentric look angles and the
// Earth-rotation (Sagnac) correction of satellite positions.
package transform

import (
	"math"

	"github.com/denniszollo/peregrine/internal/kinematics"
)

// WGS-84 ellipsoid parameters.
const (
	wgs84A  = 6378137.0             // semi-major axis (meters)
	wgs84F  = 1.0 / 298.257223563   // flattening
	wgs84E2 = wgs84F * (2 - wgs84F) // first eccentricity squared
)

// Geodetic is a WGS-84 position. Latitude and longitude are in radians,
// height in meters above the ellipsoid.
type Geodetic struct {
	Lat, Lon, Height float64
}

// GeodeticToECEF converts a geodetic position to ECEF meters.
func GeodeticToECEF(g Geodetic) kinematics.Vec3 {
	sinLat, cosLat := math.Sincos(g.Lat)
	sinLon, cosLon := math.Sincos(g.Lon)

	// Radius of curvature in the prime vertical.
	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	return kinematics.Vec3{
		(n + g.Height) * cosLat * cosLon,
		(n + g.Height) * cosLat * sinLon,
		(n*(1-wgs84E2) + g.Height) * sinLat,
	}
}

// ECEFToGeodetic converts ECEF meters to geodetic coordinates by
// fixed-point iteration on latitude (Bowring start).
func ECEFToGeodetic(p kinematics.Vec3) Geodetic {
	x, y, z := p[0], p[1], p[2]
	lon := math.Atan2(y, x)
	rho := math.Hypot(x, y)

	lat := math.Atan2(z, rho*(1-wgs84E2))
	for i := 0; i < 6; i++ {
		sinLat := math.Sin(lat)
		n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
		lat = math.Atan2(z+wgs84E2*n*sinLat, rho)
	}

	sinLat, cosLat := math.Sincos(lat)
	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	var h float64
	if math.Abs(cosLat) > 1e-10 {
		h = rho/cosLat - n
	} else {
		h = math.Abs(z)/math.Abs(sinLat) - n*(1-wgs84E2)
	}

	return Geodetic{Lat: lat, Lon: lon, Height: h}
}
