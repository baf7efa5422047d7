package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/denniszollo/peregrine/internal/api"
	"github.com/denniszollo/peregrine/internal/config"
	"github.com/denniszollo/peregrine/internal/ephemeris"
	"github.com/denniszollo/peregrine/internal/gpstime"
	"github.com/denniszollo/peregrine/internal/health"
	"github.com/denniszollo/peregrine/internal/noise"
	"github.com/denniszollo/peregrine/internal/rangemodel"
	"github.com/denniszollo/peregrine/internal/samples"
	"github.com/denniszollo/peregrine/internal/spectrum"
	"github.com/denniszollo/peregrine/internal/synth"
	"github.com/denniszollo/peregrine/internal/trajectory"
	"github.com/denniszollo/peregrine/internal/visibility"
)

const (
	minDefaultLength = 60.0
	spectrumSegment  = 4096
)

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func run(ctx context.Context, cmd *cobra.Command, opts *options, outfile string) error {
	runID := uuid.NewString()
	logger := newLogger(opts.verbose).With("run_id", runID)

	env, err := config.Load(logger)
	if err != nil {
		return fmt.Errorf("invalid environment: %w", err)
	}
	applyFlags(cmd, opts, &env)

	format, err := samples.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	start, err := gpstime.Parse(opts.gpsTime)
	if err != nil {
		return err
	}

	traj, err := loadTrajectory(opts)
	if err != nil {
		return err
	}
	traj, smooth, err := trajectory.NewSmoother(logger).Check(traj, !opts.noRepair)
	if err != nil {
		return fmt.Errorf("checking trajectory: %w", err)
	}
	if !smooth && opts.noRepair {
		logger.Warn("trajectory has discontinuities, generating without repair")
	}

	ephs, err := ephemeris.LoadFile(opts.ephemeris, logger)
	if err != nil {
		return err
	}

	cfg := synth.DefaultConfig()
	cfg.SampleRate = opts.rate
	cfg.IF = opts.ifreq
	cfg.Step = opts.step
	cfg.Workers = env.Workers
	cfg.ChunkEpochs = env.ChunkEpochs

	length := opts.length
	if length <= 0 {
		length = max(traj.End()-traj.Start()-opts.start, minDefaultLength)
	}
	grid, err := trajectory.EpochGrid(traj, cfg.GridConfig(start.TOW, opts.start, length))
	if err != nil {
		return fmt.Errorf("building epoch grid: %w", err)
	}

	solver := rangemodel.Solver{MaxIterations: env.RangeMaxIter, Tolerance: rangemodel.DefaultTolerance}
	prns, err := selectPRNs(ctx, opts, ephs, grid, solver, logger)
	if err != nil {
		return err
	}

	logger.Info("run configured",
		"outfile", outfile,
		"gps_week", start.Week,
		"tow0", start.TOW,
		"length_seconds", length,
		"epochs", len(grid.Epochs),
		"samples", grid.Samples(),
		"format", format,
		"prns", oneBased(prns),
	)

	status := health.NewStatus(runID)
	stopServer := startStatusServer(env, logger, status)
	defer stopServer()

	status.SetPhase(health.PhaseGenerating)
	status.SetSamples(grid.Samples())

	syn := synth.NewSynthesizer(cfg, solver, logger)
	buf, err := syn.Generate(ctx, synth.Request{
		Ephemerides: ephs,
		PRNs:        prns,
		Grid:        grid,
		Progress:    status.AddCompleted,
	})
	if err != nil {
		status.Fail(err)
		return err
	}

	if opts.noise > 0 {
		inj := noise.NewInjector()
		inj.Seed = env.NoiseSeed
		inj.Add(buf, opts.noise)
		logger.Info("noise added", "level", opts.noise, "seed", inj.Seed)
	}

	if opts.verbose {
		logSpectrum(logger, buf, cfg.SampleRate)
	}

	status.SetPhase(health.PhaseWriting)
	written, err := writeSamples(outfile, buf, format)
	if err != nil {
		status.Fail(err)
		return err
	}

	meta := sidecar{
		RunID:       runID,
		PRNs:        oneBased(prns),
		SampleRate:  cfg.SampleRate,
		IF:          cfg.IF,
		Format:      string(format),
		Samples:     len(buf),
		Bytes:       written,
		GPSWeek:     start.Week,
		TOW0:        grid.Epochs[0].TOW,
		Noise:       opts.noise,
		NoiseSeed:   env.NoiseSeed,
		Step:        float64(grid.StepSamples) / cfg.SampleRate,
		Ephemeris:   opts.ephemeris,
		GeneratedAt: time.Now().UTC(),
	}
	if err := writeSidecar(outfile+".json", meta); err != nil {
		status.Fail(err)
		return err
	}
	status.SetPhase(health.PhaseDone)

	logger.Info("samples written", "outfile", outfile, "bytes", written, "samples", len(buf))

	if env.PushgatewayURL != "" {
		if err := metricsPush(env.PushgatewayURL, runID); err != nil {
			logger.Warn("metrics push failed", "error", err)
		}
	}
	return nil
}

// applyFlags lets explicitly set flags override the environment.
func applyFlags(cmd *cobra.Command, opts *options, env *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("workers") && opts.workers > 0 {
		env.Workers = opts.workers
	}
	if flags.Changed("chunk") && opts.chunk > 0 {
		env.ChunkEpochs = opts.chunk
	}
	if flags.Changed("metrics-addr") {
		env.MetricsAddr = opts.metricsAddr
	}
	if flags.Changed("pushgateway") {
		env.PushgatewayURL = opts.pushgateway
	}
}

func loadTrajectory(opts *options) (trajectory.Trajectory, error) {
	if opts.point != "" {
		return trajectory.ParsePoint(opts.point)
	}
	f, err := os.Open(opts.umtFile)
	if err != nil {
		return nil, fmt.Errorf("opening trajectory: %w", err)
	}
	defer f.Close()
	traj, err := trajectory.LoadUMT(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", opts.umtFile, err)
	}
	return traj, nil
}

// selectPRNs converts the 1-based -p list, or picks every satellite above
// the mask at the first epoch.
func selectPRNs(ctx context.Context, opts *options, ephs *ephemeris.Set, grid trajectory.Grid, solver rangemodel.Solver, logger *slog.Logger) ([]int, error) {
	if len(opts.prns) > 0 {
		prns := make([]int, len(opts.prns))
		for i, p := range opts.prns {
			if p < 1 || p > ephemeris.NumPRN {
				return nil, fmt.Errorf("prn %d out of range 1..%d", p, ephemeris.NumPRN)
			}
			prns[i] = p - 1
		}
		return prns, nil
	}

	first := grid.Epochs[0]
	sky := visibility.Survey(ctx, visibility.Request{
		Ephemerides: ephs,
		Receiver:    first.Pos,
		Velocity:    first.Vel,
		TOW:         first.TOW,
		Mask:        opts.mask,
		Solver:      solver,
	})
	var prns []int
	for _, sat := range sky {
		if sat.Error != "" {
			logger.Warn("visibility check failed", "prn", sat.PRN+1, "error", sat.Error)
			continue
		}
		logger.Debug("satellite",
			"prn", sat.PRN+1,
			"azimuth", sat.Azimuth,
			"elevation", sat.Elevation,
			"doppler_hz", sat.Doppler,
			"visible", sat.Visible,
		)
		if sat.Visible {
			prns = append(prns, sat.PRN)
		}
	}
	if len(prns) == 0 {
		return nil, errors.New("no satellites above the elevation mask")
	}
	return prns, nil
}

func oneBased(prns []int) []int {
	out := make([]int, len(prns))
	for i, p := range prns {
		out[i] = p + 1
	}
	return out
}

func logSpectrum(logger *slog.Logger, buf synth.Buffer, fs float64) {
	psd, err := spectrum.Estimate(buf, fs, spectrumSegment, spectrum.DefaultSegments)
	if err != nil {
		logger.Debug("spectrum skipped", "error", err)
		return
	}
	peak, power := psd.Peak()
	logger.Debug("spectrum",
		"peak_hz", peak,
		"peak_power", power,
		"resolution_hz", psd.Resolution(),
	)
}

func writeSamples(path string, buf synth.Buffer, format samples.Format) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("creating output: %w", err)
	}
	n, err := samples.Write(f, buf, format)
	if err != nil {
		f.Close()
		return n, err
	}
	if err := f.Close(); err != nil {
		return n, fmt.Errorf("closing output: %w", err)
	}
	return n, nil
}

// startStatusServer serves probes and metrics when an address is configured.
// The returned function shuts the server down.
func startStatusServer(env config.Config, logger *slog.Logger, status *health.Status) func() {
	if env.MetricsAddr == "" {
		return func() {}
	}

	srv := api.NewServer(api.Options{
		Addr:       env.MetricsAddr,
		Auth:       env.Auth,
		TrustProxy: env.TrustProxy,
	}, logger, status)

	go func() {
		logger.Info("starting status server", "addr", env.MetricsAddr, "auth_enabled", env.Auth.Enabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("status server listen error", "error", err)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
			logger.Error("status server shutdown error", "error", err)
			return
		}
		logger.Info("status server stopped")
	}
}
