package transform

import (
	"math"

	"github.com/denniszollo/peregrine/internal/kinematics"
)

// Observer is a receiver location with its local-level frame precomputed
// for repeated look-angle queries.
type Observer struct {
	ECEF     kinematics.Vec3
	Geodetic Geodetic

	sinLat, cosLat, sinLon, cosLon float64
}

// LookAngles are the azimuth (from north, clockwise) and elevation in
// radians, and the range in meters, from an observer to a target.
type LookAngles struct {
	Azimuth   float64
	Elevation float64
	Range     float64
}

// NewObserver creates an observer at an ECEF position.
func NewObserver(p kinematics.Vec3) Observer {
	g := ECEFToGeodetic(p)
	o := Observer{ECEF: p, Geodetic: g}
	o.sinLat, o.cosLat = math.Sincos(g.Lat)
	o.sinLon, o.cosLon = math.Sincos(g.Lon)
	return o
}

// LookAngles computes azimuth, elevation and range to a target in ECEF
// meters via the South-East-Zenith rotation.
func (o Observer) LookAngles(target kinematics.Vec3) LookAngles {
	r := target.Sub(o.ECEF)

	south := o.sinLat*o.cosLon*r[0] + o.sinLat*o.sinLon*r[1] - o.cosLat*r[2]
	east := -o.sinLon*r[0] + o.cosLon*r[1]
	zenith := o.cosLat*o.cosLon*r[0] + o.cosLat*o.sinLon*r[1] + o.sinLat*r[2]

	rng := math.Sqrt(south*south + east*east + zenith*zenith)

	az := math.Atan2(east, -south)
	if az < 0 {
		az += 2 * math.Pi
	}

	return LookAngles{
		Azimuth:   az,
		Elevation: math.Asin(zenith / rng),
		Range:     rng,
	}
}
