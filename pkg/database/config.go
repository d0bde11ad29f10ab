package database

import (
	"runtime"

	"github.com/creasty/defaults"
)

// Config controls the engine and the workload driver. Zero values are
// replaced by defaults in Open.
type Config struct {
	// Workers is the size of the shared worker pool. Defaults to NumCPU.
	Workers int

	// BatchConcurrency bounds how many queries of a batch run at once.
	// Defaults to Workers-1, at least 1.
	BatchConcurrency int

	// MinBlockSize overrides every operator's minimum block size when set.
	MinBlockSize int

	LogLevel  string `default:"info"`
	LogFormat string `default:"text"`

	// MetricsAddr serves /metrics when not empty.
	MetricsAddr string
}

// SetDefaults fills the fields whose defaults depend on the host.
func (c *Config) SetDefaults() {
	if defaults.CanUpdate(c.Workers) {
		c.Workers = runtime.NumCPU()
	}
	if defaults.CanUpdate(c.BatchConcurrency) {
		c.BatchConcurrency = max(c.Workers-1, 1)
	}
}

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() Config {
	var c Config
	_ = defaults.Set(&c)
	return c
}
