// Package ephemeris holds GPS broadcast ephemerides and evaluates the
// satellite orbit and clock model they describe (IS-GPS-200 20.3.3.4.3).
package ephemeris

import (
	"errors"
	"fmt"
	"math"

	"github.com/denniszollo/peregrine/internal/gps"
	"github.com/denniszollo/peregrine/internal/kinematics"
)

// NumPRN is the number of GPS PRN slots.
const NumPRN = 32

// maxKeplerIter bounds the eccentric anomaly iteration.
const maxKeplerIter = 30

// keplerTol is the eccentric anomaly convergence threshold (rad).
const keplerTol = 1e-14

var (
	// ErrKeplerNoConvergence is returned when Kepler's equation does not converge.
	ErrKeplerNoConvergence = errors.New("kepler iteration did not converge")

	// ErrInvalidEphemeris is returned for ephemerides that fail validation.
	ErrInvalidEphemeris = errors.New("invalid ephemeris")
)

// Time is a GPS week number and seconds of week.
type Time struct {
	Week int     `yaml:"week"`
	TOW  float64 `yaml:"tow"`
}

// Ephemeris holds one satellite's broadcast orbit and clock parameters.
// Angles are in radians and rates in rad/s.
type Ephemeris struct {
	// PRN is the zero-based satellite index (broadcast SV number minus one).
	PRN int `yaml:"-"`

	TOC Time `yaml:"toc"`
	TOE Time `yaml:"toe"`

	L2Codes    int     `yaml:"l2_codes"`
	L2PFlag    int     `yaml:"l2p_flag"`
	SVAccuracy float64 `yaml:"sv_accuracy"`
	Health     int     `yaml:"health"`
	IODC       int     `yaml:"iodc"`
	IODE       int     `yaml:"iode"`

	TGD float64 `yaml:"tgd"`
	Af0 float64 `yaml:"af0"`
	Af1 float64 `yaml:"af1"`
	Af2 float64 `yaml:"af2"`

	M0     float64 `yaml:"m0"`
	DeltaN float64 `yaml:"dn"`
	Ecc    float64 `yaml:"ecc"`
	SqrtA  float64 `yaml:"sqrta"`

	Cuc float64 `yaml:"cuc"`
	Cus float64 `yaml:"cus"`
	Crc float64 `yaml:"crc"`
	Crs float64 `yaml:"crs"`
	Cic float64 `yaml:"cic"`
	Cis float64 `yaml:"cis"`

	Omega0   float64 `yaml:"omega0"`
	OmegaDot float64 `yaml:"omegadot"`
	Inc      float64 `yaml:"inc"`
	IncDot   float64 `yaml:"inc_dot"`
	W        float64 `yaml:"w"`

	Valid bool `yaml:"-"`
}

// Set is a per-PRN ephemeris table indexed by zero-based PRN.
type Set [NumPRN]*Ephemeris

// Get returns the valid ephemeris for prn, or nil.
func (s *Set) Get(prn int) *Ephemeris {
	if prn < 0 || prn >= NumPRN {
		return nil
	}
	e := s[prn]
	if e == nil || !e.Valid {
		return nil
	}
	return e
}

// PRNs returns the zero-based PRNs that have a valid ephemeris, in order.
func (s *Set) PRNs() []int {
	var out []int
	for prn := range s {
		if s.Get(prn) != nil {
			out = append(out, prn)
		}
	}
	return out
}

// Validate checks the parameters that the orbit model depends on.
func (e *Ephemeris) Validate() error {
	if e.PRN < 0 || e.PRN >= NumPRN {
		return fmt.Errorf("prn index %d out of range: %w", e.PRN, ErrInvalidEphemeris)
	}
	if !(e.SqrtA > 0) {
		return fmt.Errorf("sqrta %v must be positive: %w", e.SqrtA, ErrInvalidEphemeris)
	}
	if !(e.Ecc >= 0 && e.Ecc < 1) {
		return fmt.Errorf("eccentricity %v outside [0, 1): %w", e.Ecc, ErrInvalidEphemeris)
	}
	if e.TOC.Week < 0 || e.TOE.Week < 0 {
		return fmt.Errorf("negative week number: %w", ErrInvalidEphemeris)
	}
	for _, v := range []float64{
		e.TOC.TOW, e.TOE.TOW, e.SVAccuracy, e.TGD, e.Af0, e.Af1, e.Af2,
		e.M0, e.DeltaN, e.Cuc, e.Cus, e.Crc, e.Crs, e.Cic, e.Cis,
		e.Omega0, e.OmegaDot, e.Inc, e.IncDot, e.W,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("non-finite parameter: %w", ErrInvalidEphemeris)
		}
	}
	return nil
}

// timeDiff returns tow - ref wrapped into half a week either side.
func timeDiff(tow, ref float64) float64 {
	dt := tow - ref
	if dt > gps.SecondsPerWeek/2 {
		dt -= gps.SecondsPerWeek
	} else if dt < -gps.SecondsPerWeek/2 {
		dt += gps.SecondsPerWeek
	}
	return dt
}

// SatState evaluates the satellite ECEF position and velocity, clock error
// (s) and clock drift (s/s) at GPS time of week t. The clock error includes
// the group delay and relativistic correction.
func (e *Ephemeris) SatState(t float64) (pos, vel kinematics.Vec3, clockErr, clockRateErr float64, err error) {
	tc := timeDiff(t, e.TOC.TOW)
	clockErr = e.Af0 + tc*(e.Af1+tc*e.Af2) - e.TGD
	clockRateErr = e.Af1 + 2.0*tc*e.Af2

	tk := timeDiff(t, e.TOE.TOW)

	a := e.SqrtA * e.SqrtA
	maDot := math.Sqrt(gps.GM/(a*a*a)) + e.DeltaN
	ma := e.M0 + maDot*tk

	ea := ma
	converged := false
	for i := 0; i < maxKeplerIter; i++ {
		prev := ea
		ea += (ma - prev + e.Ecc*math.Sin(prev)) / (1.0 - e.Ecc*math.Cos(prev))
		if math.Abs(ea-prev) <= keplerTol {
			converged = true
			break
		}
	}
	if !converged {
		return pos, vel, 0, 0, fmt.Errorf("prn %d at tow %v: %w", e.PRN+1, t, ErrKeplerNoConvergence)
	}

	sinE, cosE := math.Sincos(ea)
	eaDot := maDot / (1.0 - e.Ecc*cosE)

	clockErr += gps.RelativisticF * e.Ecc * e.SqrtA * sinE

	root := math.Sqrt(1.0 - e.Ecc*e.Ecc)
	al := math.Atan2(root*sinE, cosE-e.Ecc) + e.W
	alDot := root * eaDot / (1.0 - e.Ecc*cosE)

	sin2, cos2 := math.Sincos(2.0 * al)

	cal := al + e.Cus*sin2 + e.Cuc*cos2
	calDot := alDot * (1.0 + 2.0*(e.Cus*cos2-e.Cuc*sin2))

	r := a*(1.0-e.Ecc*cosE) + e.Crc*cos2 + e.Crs*sin2
	rDot := a*e.Ecc*sinE*eaDot + 2.0*alDot*(e.Crs*cos2-e.Crc*sin2)

	inc := e.Inc + e.IncDot*tk + e.Cic*cos2 + e.Cis*sin2
	incDot := e.IncDot + 2.0*alDot*(e.Cis*cos2-e.Cic*sin2)

	sinCal, cosCal := math.Sincos(cal)
	x := r * cosCal
	y := r * sinCal
	xDot := rDot*cosCal - y*calDot
	yDot := rDot*sinCal + x*calDot

	omDot := e.OmegaDot - gps.OmegaEDot
	om := e.Omega0 + tk*omDot - gps.OmegaEDot*e.TOE.TOW

	sinOm, cosOm := math.Sincos(om)
	sinInc, cosInc := math.Sincos(inc)

	pos = kinematics.Vec3{
		x*cosOm - y*cosInc*sinOm,
		x*sinOm + y*cosInc*cosOm,
		y * sinInc,
	}

	tmp := yDot*cosInc - y*sinInc*incDot
	vel = kinematics.Vec3{
		-omDot*pos[1] + xDot*cosOm - tmp*sinOm,
		omDot*pos[0] + xDot*sinOm + tmp*cosOm,
		y*cosInc*incDot + yDot*sinInc,
	}

	return pos, vel, clockErr, clockRateErr, nil
}
