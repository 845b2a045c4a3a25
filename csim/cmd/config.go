package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/sarchlab/csim/datarecording"
	"github.com/sarchlab/csim/mem/cache"
	"github.com/sarchlab/csim/sim"
)

var (
	// ErrMissingGeometry is returned when -E is not given.
	ErrMissingGeometry = errors.New("missing required geometry")

	// ErrMissingTrace is returned when -t is not given.
	ErrMissingTrace = errors.New("missing trace file")
)

// Environment variables that provide flag defaults.
const (
	envLogLevel    = "CSIM_LOG_LEVEL"
	envRecord      = "CSIM_RECORD"
	envMonitorPort = "CSIM_MONITOR_PORT"
)

// RunConfig holds the settings shared by commands that run simulators.
type RunConfig struct {
	Record      string
	Monitor     bool
	MonitorPort int
	OpenMonitor bool
}

// Validate checks that the recording file can be created.
func (c RunConfig) Validate() error {
	if c.Record == "" {
		return nil
	}

	filename := c.Record + datarecording.FileSuffix
	if _, err := os.Stat(filename); err == nil {
		return &sim.ConfigurationError{
			Field: "record",
			Err:   fmt.Errorf("%s: %w", filename, fs.ErrExist),
		}
	}

	return nil
}

// Config holds the settings of a single simulation.
type Config struct {
	RunConfig

	SetBits   int
	NumWays   int
	BlockBits int
	TraceFile string
	Verbose   bool
}

// Geometry returns the cache geometry described by the config.
func (c Config) Geometry() cache.Geometry {
	return cache.Geometry{
		SetBits:   c.SetBits,
		NumWays:   c.NumWays,
		BlockBits: c.BlockBits,
	}
}

// Validate checks the config before any simulation state is created.
func (c Config) Validate() error {
	if c.NumWays == 0 {
		return &sim.ConfigurationError{Field: "E", Err: ErrMissingGeometry}
	}

	if c.TraceFile == "" {
		return &sim.ConfigurationError{Field: "t", Err: ErrMissingTrace}
	}

	if err := c.Geometry().Validate(); err != nil {
		return &sim.ConfigurationError{Field: "geometry", Err: err}
	}

	return c.RunConfig.Validate()
}

func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}

	return fallback
}

func envInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}

	return n
}
