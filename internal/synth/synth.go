// Package synth turns per-epoch satellite ranges into a quantized
// intermediate-frequency GPS L1 C/A sample stream.
package synth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"time"

	"golang.org/x/exp/slices"

	"github.com/denniszollo/peregrine/internal/cacode"
	"github.com/denniszollo/peregrine/internal/ephemeris"
	"github.com/denniszollo/peregrine/internal/gps"
	"github.com/denniszollo/peregrine/internal/metrics"
	"github.com/denniszollo/peregrine/internal/navmsg"
	"github.com/denniszollo/peregrine/internal/rangemodel"
	"github.com/denniszollo/peregrine/internal/trajectory"
)

// ErrMissingEphemeris is returned when a requested PRN has no usable ephemeris.
var ErrMissingEphemeris = errors.New("missing ephemeris")

// Config holds the synthesis parameters.
type Config struct {
	SampleRate   float64 // Hz
	IF           float64 // Hz
	Step         float64 // seconds between range solves
	ChunkEpochs  int     // epochs per worker task
	Scale        float64 // amplitude applied before quantization
	SNR          float64 // per-satellite amplitude
	Workers      int
	NavSubframes int
}

// DefaultConfig returns the default synthesis parameters.
func DefaultConfig() Config {
	return Config{
		SampleRate:   16.368e6,
		IF:           4.092e6,
		Step:         0.002,
		ChunkEpochs:  10,
		Scale:        16,
		SNR:          1,
		Workers:      runtime.NumCPU(),
		NavSubframes: navmsg.DefaultSubframes,
	}
}

// GridConfig builds the epoch grid parameters for a run.
func (c Config) GridConfig(tow0, skip, run float64) trajectory.GridConfig {
	return trajectory.GridConfig{
		TOW0:       tow0,
		Skip:       skip,
		Run:        run,
		Step:       c.Step,
		SampleRate: c.SampleRate,
	}
}

// Buffer is a run of int8 samples in time order.
type Buffer []int8

// Request describes a single synthesis run.
type Request struct {
	Ephemerides *ephemeris.Set
	PRNs        []int // zero-based
	Grid        trajectory.Grid

	// Progress, if set, receives the sample count of each finished chunk.
	Progress func(samples int)
}

// satellite bundles the per-PRN inputs shared read-only by all workers.
type satellite struct {
	prn  int
	eph  *ephemeris.Ephemeris
	code *cacode.Code
	nav  navmsg.Bits
}

// Synthesizer generates sample buffers.
type Synthesizer struct {
	cfg    Config
	solver rangemodel.Solver
	codes  *cacode.Table
	logger *slog.Logger
}

// NewSynthesizer creates a synthesizer. The C/A code table is built once.
func NewSynthesizer(cfg Config, solver rangemodel.Solver, logger *slog.Logger) *Synthesizer {
	if cfg.ChunkEpochs < 1 {
		cfg.ChunkEpochs = 1
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Synthesizer{
		cfg:    cfg,
		solver: solver,
		codes:  cacode.NewTable(),
		logger: logger,
	}
}

// Config returns the synthesizer's effective configuration.
func (s *Synthesizer) Config() Config {
	return s.cfg
}

// Generate synthesizes the full sample buffer for req.
func (s *Synthesizer) Generate(ctx context.Context, req Request) (Buffer, error) {
	grid := req.Grid
	if len(grid.Epochs) == 0 {
		return nil, trajectory.ErrEmptyTrajectory
	}
	if grid.StepSamples < 1 {
		return nil, fmt.Errorf("%w: %d samples per epoch", trajectory.ErrInvalidTrajectory, grid.StepSamples)
	}
	if grid.SampleRate != s.cfg.SampleRate {
		return nil, fmt.Errorf("grid sample rate %g does not match configured %g", grid.SampleRate, s.cfg.SampleRate)
	}

	navTow0 := int(math.Floor(grid.Epochs[0].TOW/30)) * 30
	sats, err := s.prepare(req, navTow0)
	if err != nil {
		return nil, err
	}

	jobs := chunkJobs(len(grid.Epochs), s.cfg.ChunkEpochs)
	workers := min(s.cfg.Workers, len(jobs))

	s.logger.Info("synthesis started",
		"prns", len(sats),
		"epochs", len(grid.Epochs),
		"chunks", len(jobs),
		"workers", workers,
		"samples", grid.Samples(),
		"nav_tow0", navTow0,
	)

	start := time.Now()
	metrics.SetWorkersActive(workers)
	defer metrics.SetWorkersActive(0)

	pool := NewWorkerPool(workers, s.logger)
	chunks, err := pool.Run(ctx, jobs, func(ctx context.Context, job chunkJob) ([]int8, error) {
		return s.chunk(ctx, job, grid, sats, navTow0)
	}, req.Progress)
	if err != nil {
		return nil, fmt.Errorf("synthesis: %w", err)
	}

	buf := make(Buffer, 0, grid.Samples())
	for _, c := range chunks {
		buf = append(buf, c...)
	}

	elapsed := time.Since(start)
	metrics.ObserveGeneration(elapsed)
	s.logger.Info("synthesis complete",
		"samples", len(buf),
		"duration_ms", elapsed.Milliseconds(),
	)
	return buf, nil
}

// prepare resolves ephemerides, codes and nav messages in ascending PRN order.
func (s *Synthesizer) prepare(req Request, navTow0 int) ([]satellite, error) {
	if req.Ephemerides == nil {
		return nil, ErrMissingEphemeris
	}
	prns := slices.Clone(req.PRNs)
	slices.Sort(prns)
	prns = slices.Compact(prns)

	sats := make([]satellite, 0, len(prns))
	for _, prn := range prns {
		if prn < 0 || prn >= cacode.NumPRN {
			return nil, fmt.Errorf("%w: %d", cacode.ErrInvalidPRN, prn)
		}
		eph := req.Ephemerides.Get(prn)
		if eph == nil {
			return nil, fmt.Errorf("%w: prn %d", ErrMissingEphemeris, prn+1)
		}
		nav, err := navmsg.Encode(eph, navTow0, s.cfg.NavSubframes)
		if err != nil {
			return nil, fmt.Errorf("nav message for prn %d: %w", prn+1, err)
		}
		sats = append(sats, satellite{
			prn:  prn,
			eph:  eph,
			code: &s.codes[prn],
			nav:  nav,
		})
	}
	return sats, nil
}

// chunkJobs splits n epochs into runs of at most size epochs.
func chunkJobs(n, size int) []chunkJob {
	jobs := make([]chunkJob, 0, (n+size-1)/size)
	for first := 0; first < n; first += size {
		jobs = append(jobs, chunkJob{
			index: len(jobs),
			first: first,
			count: min(size, n-first),
		})
	}
	return jobs
}

// chunk synthesizes every epoch of job. Each epoch depends only on its own
// grid entry, so the output does not depend on how epochs are chunked.
func (s *Synthesizer) chunk(ctx context.Context, job chunkJob, grid trajectory.Grid, sats []satellite, navTow0 int) ([]int8, error) {
	n := grid.StepSamples
	out := make([]int8, job.count*n)
	acc := make([]float64, n)

	for e := 0; e < job.count; e++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ep := grid.Epochs[job.first+e]
		clear(acc)
		for i := range sats {
			sat := &sats[i]
			res, err := s.solver.Solve(ep.TOW, ep.Pos, ep.Vel, sat.eph)
			if err != nil {
				return nil, fmt.Errorf("prn %d at tow %.6f: %w", sat.prn+1, ep.TOW, err)
			}
			s.accumulate(acc, ep.TOW, res.Pseudorange, res.RangeRate, grid.SampleRate, navTow0, sat)
		}
		quantize(out[e*n:(e+1)*n], acc, s.cfg.Scale)
	}
	return out, nil
}

// accumulate adds one satellite's contribution for an epoch starting at t0
// with pseudorange x0 and range rate v.
func (s *Synthesizer) accumulate(acc []float64, t0, x0, v, fs float64, navTow0 int, sat *satellite) {
	fi := s.cfg.IF
	snr := s.cfg.SNR
	navLen := int64(len(sat.nav))
	navOffset := int64(gps.BitRate) * int64(navTow0)

	for k := range acc {
		t := t0 + float64(k)/fs
		x := x0 + (t-t0)*v
		carrier := 2 * gps.Pi * ((fi * t) - (x / (gps.SpeedOfLight / gps.L1Frequency)))
		codePhase := int64((t * gps.ChipRate) - (x / (gps.SpeedOfLight / gps.ChipRate)))
		code := sat.code[floorMod(codePhase, gps.ChipsPerCode)]
		bit := sat.nav[floorMod(floorDiv(codePhase, gps.ChipsPerCode*gps.CodesPerBit)-navOffset, navLen)]
		acc[k] += math.Cos(carrier) * float64(code) * float64(bit) * snr
	}
}

// quantize scales src, truncates toward zero and wraps into int8.
func quantize(dst []int8, src []float64, scale float64) {
	for i, v := range src {
		dst[i] = int8(int64(v * scale))
	}
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int64) int64 {
	m := a % b
	if m != 0 && ((m < 0) != (b < 0)) {
		m += b
	}
	return m
}
