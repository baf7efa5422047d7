package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/denniszollo/peregrine/internal/metrics"
)

// pushJob is the Pushgateway job name for generator runs.
const pushJob = "siggen"

// sidecar describes a sample file so it can be replayed without the
// original command line.
type sidecar struct {
	RunID       string    `json:"run_id"`
	PRNs        []int     `json:"prns"`
	SampleRate  float64   `json:"sample_rate"`
	IF          float64   `json:"if"`
	Format      string    `json:"format"`
	Samples     int       `json:"samples"`
	Bytes       int64     `json:"bytes"`
	GPSWeek     int       `json:"gps_week"`
	TOW0        float64   `json:"tow0"`
	Step        float64   `json:"step"`
	Noise       float64   `json:"noise"`
	NoiseSeed   uint64    `json:"noise_seed"`
	Ephemeris   string    `json:"ephemeris"`
	GeneratedAt time.Time `json:"generated_at"`
}

func writeSidecar(path string, meta sidecar) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding sidecar: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing sidecar: %w", err)
	}
	return nil
}

func metricsPush(url, runID string) error {
	return metrics.Push(url, pushJob, runID)
}
