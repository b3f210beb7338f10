// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/copyleftdev/dotbind/internal/dot"
)

// Backends accepted in DOT_BACKEND.
const (
	BackendNative   = "native"
	BackendEmulated = "emulated"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	}
	Logging struct {
		Level  string `env:"LOG_LEVEL"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}
	DOT struct {
		// LibraryPath overrides the platform artifact name passed to the loader.
		LibraryPath string `env:"DOT_LIBRARY_PATH"`
		Backend     string `env:"DOT_BACKEND" envDefault:"native"`
		Method      int32  `env:"DOT_METHOD" envDefault:"0"`
		Print       int32  `env:"DOT_PRINT" envDefault:"0"`
		MinMax      int32  `env:"DOT_MINMAX" envDefault:"0"`
		MaxInt      int32  `env:"DOT_MAX_INT" envDefault:"20000000"`
	}
	Output struct {
		TraceDir string `env:"DOT_TRACE_DIR"`
		PlotDir  string `env:"DOT_PLOT_DIR"`
		PlotDPI  int    `env:"DOT_PLOT_DPI" envDefault:"150"`
		// DataDir holds run summaries written by the server.
		DataDir string `env:"DOT_DATA_DIR" envDefault:"data"`
		// Retention caps the runs the server keeps in memory.
		Retention int `env:"DOT_RUN_RETENTION" envDefault:"256"`
	}
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Verbose logs while developing unless a level was chosen
	if cfg.Logging.Level == "" {
		if cfg.Environment == "development" {
			cfg.Logging.Level = "debug"
		} else {
			cfg.Logging.Level = "info"
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values env cannot check by type alone.
func (c *Config) Validate() error {
	switch c.DOT.Backend {
	case BackendNative, BackendEmulated:
	default:
		return fmt.Errorf("DOT_BACKEND must be %q or %q, got %q", BackendNative, BackendEmulated, c.DOT.Backend)
	}
	if c.Output.PlotDPI <= 0 {
		return fmt.Errorf("DOT_PLOT_DPI must be positive, got %d", c.Output.PlotDPI)
	}
	return c.Solver().Validate()
}

// Solver returns the solver configuration the environment describes.
func (c *Config) Solver() dot.Config {
	cfg := dot.DefaultConfig()
	cfg.Method = dot.Method(c.DOT.Method)
	cfg.Print = c.DOT.Print
	cfg.MinMax = dot.Direction(c.DOT.MinMax)
	cfg.MaxInt = c.DOT.MaxInt
	return cfg
}
