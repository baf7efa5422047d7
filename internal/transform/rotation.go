package transform

import (
	"math"

	"github.com/denniszollo/peregrine/internal/gps"
	"github.com/denniszollo/peregrine/internal/kinematics"
)

// RotateZ applies the frame rotation R3(angle) to p:
// x' = x cos + y sin, y' = -x sin + y cos.
func RotateZ(p kinematics.Vec3, angle float64) kinematics.Vec3 {
	sin, cos := math.Sincos(angle)
	return kinematics.Vec3{
		p[0]*cos + p[1]*sin,
		-p[0]*sin + p[1]*cos,
		p[2],
	}
}

// Sagnac expresses a satellite position computed at transmit time in the
// ECEF frame of the reception time, tof seconds later.
func Sagnac(satPos kinematics.Vec3, tof float64) kinematics.Vec3 {
	return RotateZ(satPos, gps.OmegaEDot*tof)
}

// Plausible reports whether p is finite and between 6200 km and 50000 km
// from the Earth's centre.
func Plausible(p kinematics.Vec3) bool {
	if !p.IsFinite() {
		return false
	}

	const minRadius = 6200.0 * 1000.0
	const maxRadius = 50000.0 * 1000.0

	mag := p.Norm()
	return mag >= minRadius && mag <= maxRadius
}
