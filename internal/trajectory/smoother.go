package trajectory

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/denniszollo/peregrine/internal/kinematics"
	"github.com/denniszollo/peregrine/internal/metrics"
)

const (
	// DefaultRampFraction is the jerk ramp width as a fraction of the bridged interval.
	DefaultRampFraction = 0.01

	// minEventFraction keeps the event time strictly inside the interval.
	minEventFraction = 1e-5

	// residualLimit bounds the per-axis mismatch between the bridged end
	// state and the target state.
	residualLimit = 1e-5
)

// Tolerance holds the per-axis discontinuity thresholds.
type Tolerance struct {
	Pos float64 // m
	Vel float64 // m/s
	Acc float64 // m/s^2
}

// DefaultTolerance returns the standard discontinuity thresholds.
func DefaultTolerance() Tolerance {
	return Tolerance{Pos: 0.010, Vel: 0.1, Acc: 10}
}

// Smoother detects and optionally bridges discontinuities between
// consecutive trajectory states.
type Smoother struct {
	Tol          Tolerance
	RampFraction float64
	logger       *slog.Logger
}

// NewSmoother creates a smoother with default tolerances.
func NewSmoother(logger *slog.Logger) *Smoother {
	return &Smoother{
		Tol:          DefaultTolerance(),
		RampFraction: DefaultRampFraction,
		logger:       logger,
	}
}

// Check walks consecutive state pairs and reports whether traj is smooth.
// With repair set, three bridging states are inserted before the later
// state of each discontinuous pair. The input is never modified.
func (sm *Smoother) Check(traj Trajectory, repair bool) (Trajectory, bool, error) {
	if err := Validate(traj); err != nil {
		return nil, false, err
	}

	out := make(Trajectory, 0, len(traj))
	out = append(out, traj[0])
	smooth := true

	for i := 1; i < len(traj); i++ {
		prev, next := traj[i-1], traj[i]
		kinds := sm.discontinuities(prev, next)
		if len(kinds) > 0 {
			smooth = false
			for _, kind := range kinds {
				sm.logger.Warn("trajectory discontinuity",
					"row", i,
					"time", next.T,
					"kind", kind,
				)
			}
			if repair {
				bridge, err := Smoothify(prev, next, sm.RampFraction)
				if err != nil {
					return nil, false, fmt.Errorf("row %d at t=%v: %w", i, next.T, err)
				}
				out = append(out, bridge[:]...)
				metrics.IncTrajectoryRepairs()
				sm.logger.Info("trajectory discontinuity repaired",
					"row", i,
					"event_time", bridge[1].T,
				)
			}
		}
		out = append(out, next)
	}

	return out, smooth, nil
}

// discontinuities returns the quantities (position, velocity, acceleration)
// where integrating prev forward disagrees with next beyond tolerance.
func (sm *Smoother) discontinuities(prev, next kinematics.State) []string {
	pred := kinematics.Integrate(prev, next.T-prev.T)

	checks := []struct {
		kind      string
		got, want kinematics.Vec3
		tol       float64
	}{
		{"position", pred.Pos, next.Pos, sm.Tol.Pos},
		{"velocity", pred.Vel, next.Vel, sm.Tol.Vel},
		{"acceleration", pred.Acc, next.Acc, sm.Tol.Acc},
	}

	var kinds []string
	for _, c := range checks {
		for axis := 0; axis < 3; axis++ {
			if math.Abs(c.got[axis]-c.want[axis]) > c.tol {
				kinds = append(kinds, c.kind)
				break
			}
		}
	}
	return kinds
}

// Smoothify returns three states that join s0 to s1 with piecewise-constant
// jerk: s0's own jerk up to the ramp start, then three jerk segments around
// an event time chosen to minimise the acceleration excursion from s0.
func Smoothify(s0, s1 kinematics.State, rampFraction float64) ([3]kinematics.State, error) {
	var none [3]kinematics.State

	dt := s1.T - s0.T
	if !(dt > 0) || math.IsInf(dt, 0) {
		return none, fmt.Errorf("interval %v s: %w", dt, ErrSmoothingInfeasible)
	}
	bound := minEventFraction + rampFraction
	if !(rampFraction > 0) || !(bound < 0.5) {
		return none, fmt.Errorf("ramp fraction %v does not fit interval: %w", rampFraction, ErrSmoothingInfeasible)
	}
	ramp := rampFraction * dt
	lo, hi := bound, 1-bound

	// sin maps the unconstrained search variable onto [lo, hi].
	eventAt := func(u float64) float64 {
		return s0.T + dt*(lo+(hi-lo)*(1+math.Sin(u))/2)
	}

	best, err := fit3(s0, s1, eventAt(0), ramp)
	if err != nil {
		return none, err
	}
	bestCost := accelCost(s0, best)

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			states, err := fit3(s0, s1, eventAt(x[0]), ramp)
			if err != nil {
				return math.Inf(1)
			}
			c := accelCost(s0, states)
			if math.IsNaN(c) {
				return math.Inf(1)
			}
			return c
		},
	}
	settings := &optimize.Settings{
		Converger:       &optimize.FunctionConverge{Absolute: 1e-12, Iterations: 20},
		FuncEvaluations: 500,
	}

	res, err := optimize.Minimize(problem, []float64{0}, settings, &optimize.NelderMead{})
	if err != nil || res == nil {
		return best, nil
	}
	if states, err := fit3(s0, s1, eventAt(res.X[0]), ramp); err == nil {
		if c := accelCost(s0, states); c < bestCost {
			best = states
		}
	}
	return best, nil
}

// accelCost sums the squared acceleration change of the bridge states
// relative to s0 over all axes.
func accelCost(s0 kinematics.State, states [3]kinematics.State) float64 {
	var sum float64
	for _, s := range states {
		for axis := 0; axis < 3; axis++ {
			d := s.Acc[axis] - s0.Acc[axis]
			sum += d * d
		}
	}
	return sum
}

// transition is the constant-jerk state transition matrix over dt.
func transition(dt float64) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		1, dt, dt * dt / 2,
		0, 1, dt,
		0, 0, 1,
	})
}

// impulse maps a jerk held for dt onto the state.
func impulse(dt float64) *mat.VecDense {
	return mat.NewVecDense(3, []float64{dt * dt * dt / 6, dt * dt / 2, dt})
}

// advance returns a*x + b*j.
func advance(a mat.Matrix, b mat.Vector, x mat.Vector, j float64) *mat.VecDense {
	var out mat.VecDense
	out.MulVec(a, x)
	out.AddScaledVec(&out, j, b)
	return &out
}

// fit3 solves, per axis, for the three jerks applied over
// [tEvent-tRamp, tEvent], [tEvent, tEvent+tRamp] and [tEvent+tRamp, s1.T]
// that carry s0 exactly onto s1's position, velocity and acceleration.
func fit3(s0, s1 kinematics.State, tEvent, tRamp float64) ([3]kinematics.State, error) {
	var out [3]kinematics.State

	times := [5]float64{s0.T, tEvent - tRamp, tEvent, tEvent + tRamp, s1.T}
	var a [4]*mat.Dense
	var b [4]*mat.VecDense
	for i := 0; i < 4; i++ {
		d := times[i+1] - times[i]
		if !(d > 0) {
			return out, fmt.Errorf("segment %d has length %v: %w", i, d, ErrSmoothingInfeasible)
		}
		a[i] = transition(d)
		b[i] = impulse(d)
	}

	var a32, a321, a3210 mat.Dense
	a32.Mul(a[3], a[2])
	a321.Mul(&a32, a[1])
	a3210.Mul(&a321, a[0])

	var c0, c1 mat.VecDense
	c0.MulVec(&a32, b[1])
	c1.MulVec(a[3], b[2])
	r := mat.NewDense(3, 3, nil)
	r.SetCol(0, c0.RawVector().Data)
	r.SetCol(1, c1.RawVector().Data)
	r.SetCol(2, b[3].RawVector().Data)

	var a321b0 mat.VecDense
	a321b0.MulVec(&a321, b[0])

	for k := 0; k < 3; k++ {
		out[k].T = times[k+1]
	}

	for axis := 0; axis < 3; axis++ {
		x0 := mat.NewVecDense(3, []float64{s0.Pos[axis], s0.Vel[axis], s0.Acc[axis]})
		x4 := mat.NewVecDense(3, []float64{s1.Pos[axis], s1.Vel[axis], s1.Acc[axis]})
		j0 := s0.Jerk[axis]

		var q mat.VecDense
		q.MulVec(&a3210, x0)
		q.SubVec(x4, &q)
		q.AddScaledVec(&q, -j0, &a321b0)

		var jerks mat.VecDense
		if err := jerks.SolveVec(r, &q); err != nil {
			var cond mat.Condition
			if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) || jerks.Len() != 3 {
				return out, fmt.Errorf("axis %d at t=%v: singular bridge system: %w", axis, tEvent, ErrSmoothingInfeasible)
			}
		}

		x1 := advance(a[0], b[0], x0, j0)
		x2 := advance(a[1], b[1], x1, jerks.AtVec(0))
		x3 := advance(a[2], b[2], x2, jerks.AtVec(1))
		x4p := advance(a[3], b[3], x3, jerks.AtVec(2))

		var diff mat.VecDense
		diff.SubVec(x4p, x4)
		if res := mat.Norm(&diff, 2); !(res <= residualLimit) {
			return out, fmt.Errorf("axis %d at t=%v: residual %v too large: %w", axis, tEvent, res, ErrSmoothingInfeasible)
		}

		for k, x := range []*mat.VecDense{x1, x2, x3} {
			out[k].Pos[axis] = x.AtVec(0)
			out[k].Vel[axis] = x.AtVec(1)
			out[k].Acc[axis] = x.AtVec(2)
			out[k].Jerk[axis] = jerks.AtVec(k)
		}
	}

	return out, nil
}
