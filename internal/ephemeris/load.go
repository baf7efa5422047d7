package ephemeris

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// fileEntry is one ephemeris record in the YAML file. SV is the broadcast
// satellite number (1..32).
type fileEntry struct {
	SV        int   `yaml:"sv"`
	Valid     *bool `yaml:"valid"`
	Ephemeris `yaml:",inline"`
}

type fileDoc struct {
	Ephemerides []fileEntry `yaml:"ephemerides"`
}

// Load reads YAML ephemerides from r. Invalid or duplicate entries are
// skipped with a warning log; Valid defaults to true when omitted.
func Load(r io.Reader, logger *slog.Logger) (*Set, error) {
	var doc fileDoc
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return &Set{}, nil
		}
		return nil, fmt.Errorf("decoding ephemeris yaml: %w", err)
	}

	var set Set
	var skipped int
	for i, entry := range doc.Ephemerides {
		eph := entry.Ephemeris
		eph.PRN = entry.SV - 1
		eph.Valid = entry.Valid == nil || *entry.Valid

		if err := eph.Validate(); err != nil {
			logger.Warn("skipping invalid ephemeris", "index", i, "sv", entry.SV, "error", err)
			skipped++
			continue
		}
		if set[eph.PRN] != nil {
			logger.Warn("skipping duplicate ephemeris", "index", i, "sv", entry.SV)
			skipped++
			continue
		}
		set[eph.PRN] = &eph
	}

	logger.Info("ephemerides loaded",
		"count", len(doc.Ephemerides)-skipped,
		"skipped", skipped,
	)
	return &set, nil
}

// LoadFile reads YAML ephemerides from path.
func LoadFile(path string, logger *slog.Logger) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening ephemeris file: %w", err)
	}
	defer f.Close()
	return Load(f, logger)
}
