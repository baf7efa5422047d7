package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func execute(t *testing.T, args ...string) error {
	t.Helper()
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(os.Stderr)
	cmd.SetErr(os.Stderr)
	return cmd.ExecuteContext(context.Background())
}

func TestRunPointOneBit(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.bin")
	err := execute(t,
		"-e", "6378137,0,0",
		"--ephemeris", "../../testdata/ephemeris.yaml",
		"-l", "0.01",
		"-t", "0.002",
		"-p", "1,2",
		"-f", "1bit",
		"-n", "2",
		out,
	)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	info, err := os.Stat(out)
	if err != nil {
		t.Fatalf("stat output: %v", err)
	}
	// 0.01 s at 16.368 MHz packed eight samples per byte.
	if info.Size() != 163680/8 {
		t.Errorf("output size = %d, want %d", info.Size(), 163680/8)
	}

	data, err := os.ReadFile(out + ".json")
	if err != nil {
		t.Fatalf("reading sidecar: %v", err)
	}
	var meta sidecar
	if err := json.Unmarshal(data, &meta); err != nil {
		t.Fatalf("decoding sidecar: %v", err)
	}
	if meta.Samples != 163680 || meta.Format != "1bit" || meta.TOW0 != 86400 || meta.GPSWeek != 1846 {
		t.Errorf("sidecar = %+v", meta)
	}
	if len(meta.PRNs) != 2 || meta.PRNs[0] != 1 || meta.PRNs[1] != 2 {
		t.Errorf("sidecar prns = %v, want [1 2]", meta.PRNs)
	}
	if meta.RunID == "" {
		t.Error("sidecar has no run id")
	}
}

func TestRunAutoselect(t *testing.T) {
	out := filepath.Join(t.TempDir(), "auto.bin")
	err := execute(t,
		"-e", "6378137,0,0",
		"--ephemeris", "../../testdata/ephemeris.yaml",
		"-l", "0.004",
		out,
	)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	data, err := os.ReadFile(out + ".json")
	if err != nil {
		t.Fatalf("reading sidecar: %v", err)
	}
	var meta sidecar
	if err := json.Unmarshal(data, &meta); err != nil {
		t.Fatalf("decoding sidecar: %v", err)
	}
	seen := make(map[int]bool)
	for _, p := range meta.PRNs {
		seen[p] = true
	}
	if !seen[2] || !seen[4] || seen[3] || seen[5] {
		t.Errorf("autoselected prns = %v", meta.PRNs)
	}
}

func TestRunRejectsBadInput(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		args []string
	}{
		{"no trajectory", []string{"--ephemeris", "../../testdata/ephemeris.yaml", filepath.Join(dir, "a")}},
		{"both trajectories", []string{"-e", "1,2,3", "-u", "x.csv", "--ephemeris", "../../testdata/ephemeris.yaml", filepath.Join(dir, "b")}},
		{"no ephemeris", []string{"-e", "6378137,0,0", filepath.Join(dir, "c")}},
		{"bad format", []string{"-e", "6378137,0,0", "--ephemeris", "../../testdata/ephemeris.yaml", "-f", "piksi", filepath.Join(dir, "d")}},
		{"bad prn", []string{"-e", "6378137,0,0", "--ephemeris", "../../testdata/ephemeris.yaml", "-p", "33", "-l", "0.004", filepath.Join(dir, "e")}},
		{"bad gps time", []string{"-e", "6378137,0,0", "--ephemeris", "../../testdata/ephemeris.yaml", "-g", "yesterday", filepath.Join(dir, "f")}},
		{"no outfile", []string{"-e", "6378137,0,0", "--ephemeris", "../../testdata/ephemeris.yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := execute(t, tt.args...); err == nil {
				t.Error("expected error")
			}
		})
	}
}
