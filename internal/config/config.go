// Package config reads generator settings from SIGGEN_* environment
// variables. Invalid values are logged and replaced by their defaults.
package config

import (
	"errors"
	"log/slog"
	"os"
	"runtime"
	"strconv"

	"github.com/denniszollo/peregrine/internal/auth"
	"github.com/denniszollo/peregrine/internal/noise"
	"github.com/denniszollo/peregrine/internal/rangemodel"
	"github.com/denniszollo/peregrine/internal/synth"
)

// Config holds the environment-provided defaults. Command-line flags
// override these.
type Config struct {
	Workers        int
	ChunkEpochs    int
	NoiseSeed      uint64
	RangeMaxIter   int
	MetricsAddr    string
	PushgatewayURL string
	TrustProxy     bool
	Auth           auth.Config
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Workers:      runtime.NumCPU(),
		ChunkEpochs:  synth.DefaultConfig().ChunkEpochs,
		NoiseSeed:    noise.DefaultSeed,
		RangeMaxIter: rangemodel.DefaultMaxIterations,
	}
}

// Load reads the environment. Only an inconsistent auth setup is an error.
func Load(logger *slog.Logger) (Config, error) {
	cfg := Default()

	cfg.Workers = positiveInt(logger, "SIGGEN_WORKERS", cfg.Workers)
	cfg.ChunkEpochs = positiveInt(logger, "SIGGEN_CHUNK_EPOCHS", cfg.ChunkEpochs)
	cfg.RangeMaxIter = positiveInt(logger, "SIGGEN_RANGE_MAX_ITER", cfg.RangeMaxIter)

	if v := os.Getenv("SIGGEN_NOISE_SEED"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			logger.Warn("invalid SIGGEN_NOISE_SEED value, using default", "value", v, "default", cfg.NoiseSeed)
		} else {
			cfg.NoiseSeed = n
		}
	}

	cfg.MetricsAddr = os.Getenv("SIGGEN_METRICS_ADDR")
	cfg.PushgatewayURL = os.Getenv("SIGGEN_PUSHGATEWAY_URL")

	if v := os.Getenv("SIGGEN_TRUST_PROXY"); v != "" {
		trust, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid SIGGEN_TRUST_PROXY value, defaulting to false", "value", v)
		} else {
			cfg.TrustProxy = trust
		}
	}

	authCfg, err := loadAuthConfig(logger)
	if err != nil {
		return cfg, err
	}
	cfg.Auth = authCfg

	logger.Debug("environment config",
		"workers", cfg.Workers,
		"chunk_epochs", cfg.ChunkEpochs,
		"noise_seed", cfg.NoiseSeed,
		"range_max_iter", cfg.RangeMaxIter,
		"metrics_addr", cfg.MetricsAddr,
		"pushgateway_url", cfg.PushgatewayURL,
		"auth_enabled", cfg.Auth.Enabled,
	)

	return cfg, nil
}

func positiveInt(logger *slog.Logger, key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		logger.Warn("invalid "+key+" value, using default", "value", v, "default", def)
		return def
	}
	return n
}

func loadAuthConfig(logger *slog.Logger) (auth.Config, error) {
	cfg := auth.Config{}

	enabledStr := os.Getenv("SIGGEN_STATUS_AUTH_ENABLED")
	if enabledStr != "" {
		enabled, err := strconv.ParseBool(enabledStr)
		if err != nil {
			return cfg, errors.New("SIGGEN_STATUS_AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if cfg.Enabled {
		cfg.Token = os.Getenv("SIGGEN_STATUS_TOKEN")
		if cfg.Token == "" {
			return cfg, errors.New("SIGGEN_STATUS_TOKEN is required when status auth is enabled")
		}
		logger.Info("status server auth enabled")
	}

	return cfg, nil
}
