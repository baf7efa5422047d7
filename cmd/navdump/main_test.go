package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestDump(t *testing.T) {
	var out bytes.Buffer
	err := dump(&out, &options{
		ephemeris: "../../testdata/ephemeris.yaml",
		prn:       1,
		gpsTime:   "2015-05-25 00:00:00",
		subframes: 3,
		verbose:   true,
	})
	if err != nil {
		t.Fatalf("dump: %v", err)
	}

	text := out.String()
	for _, want := range []string{
		"PRN 1 week 1846 tow0 86400, 3 subframes",
		"w1  22C3363F",
		"subframe 0: id 1 tow 14401",
		"subframe 2: id 3 tow 14403",
		"decoded ephemeris",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q", want)
		}
	}
	if strings.Contains(text, "PARITY FAIL") {
		t.Error("encoded message failed its own parity check")
	}
}

func TestDumpMissingPRN(t *testing.T) {
	err := dump(&bytes.Buffer{}, &options{
		ephemeris: "../../testdata/ephemeris.yaml",
		prn:       17,
		gpsTime:   "2015-05-25 00:00:00",
		subframes: 1,
	})
	if err == nil {
		t.Error("expected error for prn without ephemeris")
	}
}
