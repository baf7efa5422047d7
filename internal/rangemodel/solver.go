// Package rangemodel computes the pseudorange and range rate from a
// receiver to a satellite, iterating on the signal transit time.
package rangemodel

import (
	"errors"
	"fmt"
	"math"

	"github.com/denniszollo/peregrine/internal/ephemeris"
	"github.com/denniszollo/peregrine/internal/gps"
	"github.com/denniszollo/peregrine/internal/kinematics"
	"github.com/denniszollo/peregrine/internal/metrics"
	"github.com/denniszollo/peregrine/internal/transform"
)

const (
	// DefaultMaxIterations bounds the light-time iteration.
	DefaultMaxIterations = 20

	// DefaultTolerance is the transit-time convergence threshold in seconds.
	DefaultTolerance = 1e-8

	// initialTransit is the starting transit-time guess in seconds.
	initialTransit = 60e-3
)

var (
	// ErrRangeNoConvergence is returned when the transit time does not
	// settle within the iteration cap.
	ErrRangeNoConvergence = errors.New("range solve did not converge")

	// ErrImplausibleSatellite is returned when the ephemeris places the
	// satellite outside any Earth orbit.
	ErrImplausibleSatellite = errors.New("implausible satellite position")
)

// Result is the receiver-to-satellite geometry at one receive time.
type Result struct {
	// Pseudorange is the geometric range minus the satellite clock error, in meters.
	Pseudorange float64
	// RangeRate is the line-of-sight velocity plus clock drift, in m/s.
	RangeRate float64
	// Transit is the converged signal transit time in seconds.
	Transit float64
	// Iterations is the number of light-time iterations performed.
	Iterations int
	// LOS is the receiver-to-satellite vector in the receive-time ECEF frame.
	LOS kinematics.Vec3
}

// Solver computes satellite ranges. The zero value is not usable; use NewSolver.
type Solver struct {
	MaxIterations int
	Tolerance     float64
}

// NewSolver creates a solver with the default iteration cap and tolerance.
func NewSolver() Solver {
	return Solver{
		MaxIterations: DefaultMaxIterations,
		Tolerance:     DefaultTolerance,
	}
}

// Solve computes the range from a receiver at pos moving at vel to the
// satellite described by eph, for a signal received at GPS time of week tow.
func (s Solver) Solve(tow float64, pos, vel kinematics.Vec3, eph *ephemeris.Ephemeris) (Result, error) {
	if eph == nil {
		return Result{}, fmt.Errorf("nil ephemeris")
	}

	tof := initialTransit
	prev := 0.0
	var (
		satVel         kinematics.Vec3
		clkErr, clkDot float64
		los            kinematics.Vec3
		rng            float64
		iterations     int
	)

	for math.Abs(tof-prev) > s.Tolerance {
		if iterations >= s.MaxIterations {
			metrics.IncRangeFailures()
			return Result{}, fmt.Errorf("prn %d at tow %v after %d iterations: %w",
				eph.PRN+1, tow, iterations, ErrRangeNoConvergence)
		}

		satPos, v, clk, clkRate, err := eph.SatState(tow - tof)
		if err != nil {
			metrics.IncRangeFailures()
			return Result{}, fmt.Errorf("satellite state: %w", err)
		}
		if !transform.Plausible(satPos) {
			metrics.IncRangeFailures()
			return Result{}, fmt.Errorf("prn %d at tow %v: %v: %w", eph.PRN+1, tow, satPos, ErrImplausibleSatellite)
		}
		satVel, clkErr, clkDot = v, clk, clkRate

		los = transform.Sagnac(satPos, tof).Sub(pos)
		rng = los.Norm()

		prev = tof
		tof = rng / gps.SpeedOfLight
		iterations++
	}
	metrics.ObserveRangeIterations(iterations)

	return Result{
		Pseudorange: rng - clkErr*gps.SpeedOfLight,
		RangeRate:   satVel.Sub(vel).Dot(los)/rng + clkDot*gps.SpeedOfLight,
		Transit:     tof,
		Iterations:  iterations,
		LOS:         los,
	}, nil
}
