// Package visibility finds the satellites above an elevation mask for a receiver.
package visibility

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/denniszollo/peregrine/internal/ephemeris"
	"github.com/denniszollo/peregrine/internal/gps"
	"github.com/denniszollo/peregrine/internal/kinematics"
	"github.com/denniszollo/peregrine/internal/rangemodel"
	"github.com/denniszollo/peregrine/internal/transform"
)

// DefaultMask is the elevation mask in degrees.
const DefaultMask = 10.0

// Satellite is the sky position of one satellite as seen by the receiver.
type Satellite struct {
	PRN       int     `json:"prn"`       // zero-based
	Azimuth   float64 `json:"azimuth"`   // degrees from north
	Elevation float64 `json:"elevation"` // degrees above horizon
	Range     float64 `json:"range"`     // meters
	Doppler   float64 `json:"doppler"`   // Hz at L1
	Visible   bool    `json:"visible"`
	Error     string  `json:"error,omitempty"`
}

// Request holds the parameters of a sky survey.
type Request struct {
	Ephemerides *ephemeris.Set
	Receiver    kinematics.Vec3 // ECEF meters
	Velocity    kinematics.Vec3 // ECEF m/s
	TOW         float64
	Mask        float64 // degrees
	Solver      rangemodel.Solver
}

// Survey computes look angles for every PRN with a valid ephemeris.
// Each satellite is processed in its own goroutine, bounded by a semaphore.
func Survey(ctx context.Context, req Request) []Satellite {
	if req.Ephemerides == nil {
		return nil
	}
	if req.Solver.MaxIterations == 0 {
		req.Solver = rangemodel.NewSolver()
	}
	prns := req.Ephemerides.PRNs()
	obs := transform.NewObserver(req.Receiver)

	results := make([]Satellite, len(prns))
	sem := make(chan struct{}, runtime.NumCPU())
	var wg sync.WaitGroup

	for i, prn := range prns {
		wg.Add(1)
		go func(idx, prn int) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[idx] = Satellite{PRN: prn, Error: "cancelled"}
				return
			}

			sat, err := look(req, obs, prn)
			if err != nil {
				results[idx] = Satellite{PRN: prn, Error: err.Error()}
				return
			}
			results[idx] = sat
		}(i, prn)
	}

	wg.Wait()
	return results
}

// Select returns the zero-based PRNs above the mask, in ascending order.
func Select(ctx context.Context, req Request) []int {
	var prns []int
	for _, sat := range Survey(ctx, req) {
		if sat.Visible {
			prns = append(prns, sat.PRN)
		}
	}
	return prns
}

func look(req Request, obs transform.Observer, prn int) (Satellite, error) {
	res, err := req.Solver.Solve(req.TOW, req.Receiver, req.Velocity, req.Ephemerides.Get(prn))
	if err != nil {
		return Satellite{}, fmt.Errorf("prn %d: %w", prn+1, err)
	}
	la := obs.LookAngles(req.Receiver.Add(res.LOS))
	el := la.Elevation * 180 / math.Pi

	return Satellite{
		PRN:       prn,
		Azimuth:   la.Azimuth * 180 / math.Pi,
		Elevation: el,
		Range:     la.Range,
		Doppler:   -res.RangeRate / (gps.SpeedOfLight / gps.L1Frequency),
		Visible:   el >= req.Mask,
	}, nil
}
