// Command siggen synthesizes GPS L1 C/A intermediate-frequency samples for a
// receiver trajectory.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/denniszollo/peregrine/internal/samples"
	"github.com/denniszollo/peregrine/internal/synth"
	"github.com/denniszollo/peregrine/internal/visibility"
)

// options holds the command-line flags.
type options struct {
	umtFile     string
	point       string
	noRepair    bool
	start       float64
	length      float64
	step        float64
	gpsTime     string
	noise       float64
	format      string
	ifreq       float64
	rate        float64
	prns        []int
	ephemeris   string
	chunk       int
	workers     int
	mask        float64
	metricsAddr string
	pushgateway string
	verbose     bool
}

func newRootCmd() *cobra.Command {
	def := synth.DefaultConfig()
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "siggen [flags] outfile",
		Short: "Generate GPS L1 C/A baseband samples for a receiver trajectory",
		Long: `siggen propagates broadcast ephemerides along a receiver trajectory and
writes the quantized IF signal a front end would capture.

The trajectory is either a UMT motion file (-u) or a single ECEF state
given as comma-separated values (-e x,y,z[,vx,vy,vz[,ax,ay,az[,jx,jy,jz]]]).

Examples:
  siggen -e 6378137,0,0 --ephemeris eph.yaml -l 1 -p 1 out.bin
  siggen -u drive.csv --ephemeris eph.yaml -n 2 -f 1bit out.bin`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd, opts, args[0])
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.umtFile, "umt", "u", "", "UMT trajectory CSV file")
	f.StringVarP(&opts.point, "ecef", "e", "", "single ECEF state x,y,z[,vx,vy,vz[,...]]")
	f.BoolVar(&opts.noRepair, "no-repair", false, "report trajectory discontinuities without bridging them")
	f.Float64VarP(&opts.start, "start", "s", 0, "offset into the trajectory (s)")
	f.Float64VarP(&opts.length, "length", "l", 0, "duration to generate (s); default is the trajectory span, at least 60")
	f.Float64VarP(&opts.step, "step", "t", 0.004, "interval between range solves (s)")
	f.StringVarP(&opts.gpsTime, "gps-time", "g", "2015-05-25 00:00:00", "GPS time of trajectory start, YYYY-MM-DD hh:mm:ss")
	f.Float64VarP(&opts.noise, "noise", "n", 0, "noise standard deviation in output LSBs")
	f.StringVarP(&opts.format, "format", "f", string(samples.Int8), "output format (int8, 1bit, 1bitrev)")
	f.Float64VarP(&opts.ifreq, "if", "i", def.IF, "intermediate frequency (Hz)")
	f.Float64VarP(&opts.rate, "rate", "r", def.SampleRate, "sample rate (Hz)")
	f.IntSliceVarP(&opts.prns, "prns", "p", nil, "PRNs to simulate, 1-based (default: all above the elevation mask)")
	f.StringVar(&opts.ephemeris, "ephemeris", "", "YAML ephemeris file")
	f.IntVar(&opts.chunk, "chunk", 0, "epochs per worker task (default SIGGEN_CHUNK_EPOCHS or 10)")
	f.IntVar(&opts.workers, "workers", 0, "synthesis workers (default SIGGEN_WORKERS or CPU count)")
	f.Float64Var(&opts.mask, "mask", visibility.DefaultMask, "elevation mask for PRN autoselect (degrees)")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve /metrics, /status and probes on this address while generating")
	f.StringVar(&opts.pushgateway, "pushgateway", "", "push run metrics to this Pushgateway URL when done")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging and spectrum diagnostics")

	cmd.MarkFlagsMutuallyExclusive("umt", "ecef")
	cmd.MarkFlagsOneRequired("umt", "ecef")
	cmd.MarkFlagRequired("ephemeris")

	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Stderr.WriteString("siggen: " + err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}
