// Command navdump prints the navigation message siggen would broadcast for a
// satellite, word by word, with parity and decoded subframe headers.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"

	"github.com/spf13/cobra"

	"github.com/denniszollo/peregrine/internal/ephemeris"
	"github.com/denniszollo/peregrine/internal/gpstime"
	"github.com/denniszollo/peregrine/internal/navmsg"
)

type options struct {
	ephemeris string
	prn       int
	gpsTime   string
	subframes int
	verbose   bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "navdump --ephemeris eph.yaml -p prn",
		Short:         "Dump an encoded GPS LNAV message",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return dump(cmd.OutOrStdout(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.ephemeris, "ephemeris", "", "YAML ephemeris file")
	f.IntVarP(&opts.prn, "prn", "p", 1, "PRN to encode, 1-based")
	f.StringVarP(&opts.gpsTime, "gps-time", "g", "2015-05-25 00:00:00", "GPS time of the message start, YYYY-MM-DD hh:mm:ss")
	f.IntVarP(&opts.subframes, "subframes", "n", 5, "number of subframes")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "print the decoded ephemeris")
	cmd.MarkFlagRequired("ephemeris")

	return cmd
}

func dump(w io.Writer, opts *options) error {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	set, err := ephemeris.LoadFile(opts.ephemeris, logger)
	if err != nil {
		return err
	}
	eph := set.Get(opts.prn - 1)
	if eph == nil {
		return fmt.Errorf("no valid ephemeris for prn %d", opts.prn)
	}

	start, err := gpstime.Parse(opts.gpsTime)
	if err != nil {
		return err
	}
	// Messages start on a 30 s frame boundary.
	tow0 := int(math.Floor(start.TOW/30)) * 30

	bits, err := navmsg.Encode(eph, tow0, opts.subframes)
	if err != nil {
		return err
	}
	words, err := navmsg.SplitWords(bits)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "PRN %d week %d tow0 %d, %d subframes\n", opts.prn, start.Week, tow0, opts.subframes)

	var prev uint32
	bad := 0
	for i, word := range words {
		if i%navmsg.WordsPerSubframe == 0 {
			fmt.Fprintf(w, "\nsubframe %d\n", i/navmsg.WordsPerSubframe)
		}
		data, ok := navmsg.CheckParity((prev&0x3)<<30 | word)
		status := "ok"
		if !ok {
			status = "PARITY FAIL"
			bad++
		}
		fmt.Fprintf(w, "  w%-2d %08X  data %06X  %s\n", i%navmsg.WordsPerSubframe+1, word, data, status)
		prev = word
	}

	subframes, err := navmsg.Decode(bits)
	if err != nil {
		return fmt.Errorf("decoding: %w", err)
	}
	fmt.Fprintln(w)
	for i, sf := range subframes {
		fmt.Fprintf(w, "subframe %d: id %d tow %d (%d s)\n", i, sf.ID, sf.TOW, sf.TOW*navmsg.SubframeSeconds)
	}

	if opts.verbose {
		decoded, err := navmsg.DecodeEphemeris(subframes)
		if err != nil {
			return fmt.Errorf("decoding ephemeris: %w", err)
		}
		fmt.Fprintf(w, "\ndecoded ephemeris: %+v\n", *decoded)
	}

	if bad > 0 {
		return fmt.Errorf("%d words failed parity", bad)
	}
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "navdump:", err)
		os.Exit(1)
	}
}
