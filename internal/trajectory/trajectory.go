// Package trajectory holds receiver trajectories: validation, smoothing of
// discontinuities, interpolation and the per-epoch sampling grid.
package trajectory

import (
	"errors"
	"fmt"
	"sort"

	"github.com/denniszollo/peregrine/internal/kinematics"
)

var (
	// ErrEmptyTrajectory is returned when a trajectory has no states.
	ErrEmptyTrajectory = errors.New("empty trajectory")

	// ErrInvalidTrajectory is returned for non-finite values or times that
	// do not strictly increase.
	ErrInvalidTrajectory = errors.New("invalid trajectory")

	// ErrSmoothingInfeasible is returned when no bridge can join two states.
	ErrSmoothingInfeasible = errors.New("smoothing infeasible")
)

// Trajectory is a time-ordered sequence of kinematic states.
type Trajectory []kinematics.State

// Validate checks that traj is non-empty, finite and strictly increasing in time.
func Validate(traj Trajectory) error {
	if len(traj) == 0 {
		return ErrEmptyTrajectory
	}
	for i, s := range traj {
		if !s.IsFinite() {
			return fmt.Errorf("row %d: non-finite state: %w", i, ErrInvalidTrajectory)
		}
		if i > 0 && !(s.T > traj[i-1].T) {
			return fmt.Errorf("row %d: time %v not after %v: %w", i, s.T, traj[i-1].T, ErrInvalidTrajectory)
		}
	}
	return nil
}

// Start returns the time of the first state.
func (traj Trajectory) Start() float64 {
	return traj[0].T
}

// End returns the time of the last state.
func (traj Trajectory) End() float64 {
	return traj[len(traj)-1].T
}

// Interpolate returns the receiver position and velocity at time t by
// integrating from the latest state at or before t. Times before the first
// state integrate backwards from it.
func Interpolate(traj Trajectory, t float64) (pos, vel kinematics.Vec3) {
	// First index with T > t, minus one.
	idx := sort.Search(len(traj), func(i int) bool { return traj[i].T > t }) - 1
	if idx < 0 {
		idx = 0
	}
	s := traj[idx]
	out := kinematics.Integrate(s, t-s.T)
	return out.Pos, out.Vel
}
