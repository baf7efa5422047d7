package trajectory

import (
	"fmt"
	"math"

	"github.com/denniszollo/peregrine/internal/kinematics"
)

// GridConfig selects the span and resolution of the sampling grid.
type GridConfig struct {
	// TOW0 is the GPS time of week of trajectory time zero.
	TOW0 float64
	// Skip is the offset from the first trajectory state to the first epoch (s).
	Skip float64
	// Run is the generated duration (s).
	Run float64
	// Step is the nominal epoch spacing (s). It is rounded down to a whole
	// number of samples.
	Step float64
	// SampleRate in Hz.
	SampleRate float64
}

// Epoch is one receiver sample on the grid.
type Epoch struct {
	T   float64 // trajectory time (s)
	TOW float64 // GPS time of week (s)
	Pos kinematics.Vec3
	Vel kinematics.Vec3
}

// Grid is the per-epoch receiver state used by the synthesizer. Every
// epoch spans StepSamples output samples.
type Grid struct {
	Epochs      []Epoch
	StepSamples int
	SampleRate  float64
}

// Samples returns the total number of output samples covered by the grid.
func (g Grid) Samples() int {
	return len(g.Epochs) * g.StepSamples
}

// EpochGrid interpolates traj onto epochs spaced by a whole number of
// samples, starting Skip seconds after the first state.
func EpochGrid(traj Trajectory, cfg GridConfig) (Grid, error) {
	if len(traj) == 0 {
		return Grid{}, ErrEmptyTrajectory
	}
	if !(cfg.SampleRate > 0) {
		return Grid{}, fmt.Errorf("sample rate must be positive, got %v", cfg.SampleRate)
	}

	stepSamples := int(cfg.SampleRate * cfg.Step)
	if stepSamples < 1 {
		return Grid{}, fmt.Errorf("step %v s is shorter than one sample at %v Hz", cfg.Step, cfg.SampleRate)
	}
	if !(cfg.Run > 0) {
		return Grid{}, fmt.Errorf("run length must be positive, got %v", cfg.Run)
	}
	stepDt := float64(stepSamples) / cfg.SampleRate

	// Guard against 1.0/0.002 landing a hair above an integer.
	n := int(math.Ceil(cfg.Run/stepDt - 1e-9))

	start := traj.Start() + cfg.Skip
	epochs := make([]Epoch, n)
	for k := range epochs {
		t := start + float64(k*stepSamples)/cfg.SampleRate
		pos, vel := Interpolate(traj, t)
		epochs[k] = Epoch{
			T:   t,
			TOW: cfg.TOW0 + t,
			Pos: pos,
			Vel: vel,
		}
	}

	return Grid{
		Epochs:      epochs,
		StepSamples: stepSamples,
		SampleRate:  cfg.SampleRate,
	}, nil
}
