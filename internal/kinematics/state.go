// Package kinematics implements the constant-jerk state model used for
// receiver trajectories.
package kinematics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Vec3 is a Cartesian 3-vector (ECEF metres or derivatives).
type Vec3 [3]float64

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v[0] + o[0], v[1] + o[1], v[2] + o[2]}
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v[0] - o[0], v[1] - o[1], v[2] - o[2]}
}

// Scale returns k*v.
func (v Vec3) Scale(k float64) Vec3 {
	return Vec3{k * v[0], k * v[1], k * v[2]}
}

// Dot returns the inner product of v and o.
func (v Vec3) Dot(o Vec3) float64 {
	return floats.Dot(v[:], o[:])
}

// Norm returns the Euclidean length of v.
func (v Vec3) Norm() float64 {
	return floats.Norm(v[:], 2)
}

// IsFinite reports whether every component is finite.
func (v Vec3) IsFinite() bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// RowLen is the number of columns in a serialised state row.
const RowLen = 13

// State is a receiver kinematic state at time T (seconds from trajectory start).
type State struct {
	T    float64
	Pos  Vec3
	Vel  Vec3
	Acc  Vec3
	Jerk Vec3
}

// Integrate advances s by dt assuming constant jerk over the interval.
func Integrate(s State, dt float64) State {
	dt2 := dt * dt / 2
	dt3 := dt * dt * dt / 6

	var out State
	out.T = s.T + dt
	for i := 0; i < 3; i++ {
		out.Pos[i] = s.Pos[i] + dt*s.Vel[i] + dt2*s.Acc[i] + dt3*s.Jerk[i]
		out.Vel[i] = s.Vel[i] + dt*s.Acc[i] + dt2*s.Jerk[i]
		out.Acc[i] = s.Acc[i] + dt*s.Jerk[i]
		out.Jerk[i] = s.Jerk[i]
	}
	return out
}

// FromRow builds a state from a row laid out as t, pos, vel, acc, jerk.
// Missing trailing columns are zero.
func FromRow(row []float64) (State, error) {
	if len(row) == 0 {
		return State{}, fmt.Errorf("empty state row")
	}
	if len(row) > RowLen {
		return State{}, fmt.Errorf("state row has %d columns, max %d", len(row), RowLen)
	}

	var padded [RowLen]float64
	copy(padded[:], row)

	s := State{T: padded[0]}
	copy(s.Pos[:], padded[1:4])
	copy(s.Vel[:], padded[4:7])
	copy(s.Acc[:], padded[7:10])
	copy(s.Jerk[:], padded[10:13])
	return s, nil
}

// Row serialises s in the FromRow layout.
func (s State) Row() [RowLen]float64 {
	var row [RowLen]float64
	row[0] = s.T
	copy(row[1:4], s.Pos[:])
	copy(row[4:7], s.Vel[:])
	copy(row[7:10], s.Acc[:])
	copy(row[10:13], s.Jerk[:])
	return row
}

// PVAJ returns position, velocity, acceleration and jerk as four vectors.
func (s State) PVAJ() [4]Vec3 {
	return [4]Vec3{s.Pos, s.Vel, s.Acc, s.Jerk}
}

// Magnitudes returns the Euclidean norm of each vector in pvaj.
func Magnitudes(pvaj [4]Vec3) [4]float64 {
	var out [4]float64
	for i, v := range pvaj {
		out[i] = v.Norm()
	}
	return out
}

// IsFinite reports whether all of s is finite.
func (s State) IsFinite() bool {
	if math.IsNaN(s.T) || math.IsInf(s.T, 0) {
		return false
	}
	return s.Pos.IsFinite() && s.Vel.IsFinite() && s.Acc.IsFinite() && s.Jerk.IsFinite()
}
