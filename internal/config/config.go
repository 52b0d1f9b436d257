package config

import (
	"fmt"

	"github.com/23skdu/longbow-bodkin/internal/tile"
)

// Config is the runtime configuration for a device host: memory region
// sizing, kernel threading, and observability.
type Config struct {
	DeviceID int

	BulkCapacityBytes  int64
	LocalCapacityBytes int64
	BulkBanks          int
	LocalBanks         int

	NumThreads int

	LogLevel  string
	LogFormat string

	MetricsAddr string
}

// Default mirrors the capacity split of the target hardware: a large bulk
// pool striped over a dozen banks and a small per-core local pool.
func Default() Config {
	return Config{
		DeviceID:           0,
		BulkCapacityBytes:  1 << 30,
		LocalCapacityBytes: 1 << 20,
		BulkBanks:          12,
		LocalBanks:         64,
		NumThreads:         0, // 0 = one per CPU
		LogLevel:           "info",
		LogFormat:          "console",
		MetricsAddr:        ":9090",
	}
}

func (c *Config) Validate() error {
	if c.DeviceID < 0 {
		return fmt.Errorf("invalid device_id: %d (must be non-negative)", c.DeviceID)
	}
	if c.BulkCapacityBytes <= 0 {
		return fmt.Errorf("invalid bulk_capacity: %d (must be positive)", c.BulkCapacityBytes)
	}
	if c.LocalCapacityBytes <= 0 {
		return fmt.Errorf("invalid local_capacity: %d (must be positive)", c.LocalCapacityBytes)
	}
	if c.BulkBanks <= 0 {
		return fmt.Errorf("invalid bulk_banks: %d (must be positive)", c.BulkBanks)
	}
	if c.LocalBanks <= 0 {
		return fmt.Errorf("invalid local_banks: %d (must be positive)", c.LocalBanks)
	}
	if c.NumThreads < 0 {
		return fmt.Errorf("invalid num_threads: %d (must be non-negative)", c.NumThreads)
	}
	if c.BulkCapacityBytes < int64(tile.Float32.Footprint(tile.Elems)) {
		return fmt.Errorf("bulk_capacity %d too small to hold a single tile", c.BulkCapacityBytes)
	}
	switch c.LogFormat {
	case "", "console", "json":
	default:
		return fmt.Errorf("invalid log_format: %q (must be console or json)", c.LogFormat)
	}
	return nil
}
