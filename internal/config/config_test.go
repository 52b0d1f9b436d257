package config

import (
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.BulkCapacityBytes != 1<<30 {
		t.Errorf("expected BulkCapacityBytes 1GiB, got %d", cfg.BulkCapacityBytes)
	}
	if cfg.LocalCapacityBytes != 1<<20 {
		t.Errorf("expected LocalCapacityBytes 1MiB, got %d", cfg.LocalCapacityBytes)
	}
	if cfg.BulkBanks != 12 {
		t.Errorf("expected BulkBanks 12, got %d", cfg.BulkBanks)
	}
	if cfg.LocalBanks != 64 {
		t.Errorf("expected LocalBanks 64, got %d", cfg.LocalBanks)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := Default()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"json log format", func(c *Config) { c.LogFormat = "json" }, false},
		{"negative device", func(c *Config) { c.DeviceID = -1 }, true},
		{"zero bulk capacity", func(c *Config) { c.BulkCapacityBytes = 0 }, true},
		{"zero local capacity", func(c *Config) { c.LocalCapacityBytes = 0 }, true},
		{"zero bulk banks", func(c *Config) { c.BulkBanks = 0 }, true},
		{"zero local banks", func(c *Config) { c.LocalBanks = 0 }, true},
		{"negative threads", func(c *Config) { c.NumThreads = -1 }, true},
		{"bulk below one tile", func(c *Config) { c.BulkCapacityBytes = 100 }, true},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}
