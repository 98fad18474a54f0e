package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"mythkv/pkg/store"
	"mythkv/pkg/wal"
)

// DefaultPath is where the server looks for a config file
const DefaultPath = "mythkv.json"

// Config is the on-disk server configuration
type Config struct {
	DataDir        string `json:"data_dir"`
	Addr           string `json:"addr"`
	SyncMode       string `json:"sync_mode"`
	SyncIntervalMs int    `json:"sync_interval_ms"`
	IndexShards    int    `json:"index_shards"`
	ExpectedKeys   uint   `json:"expected_keys"`
	MaxKeySize     int    `json:"max_key_size"`
	MaxValueSize   int    `json:"max_value_size"`
	LogDir         string `json:"log_dir"`
	Verbose        bool   `json:"verbose"`
}

func Default() Config {
	return Config{
		DataDir:        "./store",
		Addr:           "0.0.0.0:8080",
		SyncMode:       wal.SyncNone.String(),
		SyncIntervalMs: 1000,
		IndexShards:    16,
		ExpectedKeys:   1 << 20,
		MaxKeySize:     4 * 1024,
		MaxValueSize:   16 * 1024 * 1024,
	}
}

// Normalize replaces invalid values with defaults
func (c *Config) Normalize() {
	d := Default()

	if c.DataDir == "" {
		c.DataDir = d.DataDir
	}
	if c.Addr == "" {
		c.Addr = d.Addr
	}
	// an unknown mode is left for Load to reject
	if c.SyncMode == "" {
		c.SyncMode = d.SyncMode
	}
	if c.SyncIntervalMs <= 0 {
		c.SyncIntervalMs = d.SyncIntervalMs
	}
	// 1 is valid: a single lock around the whole index
	if c.IndexShards < 1 {
		c.IndexShards = d.IndexShards
	}
	if c.ExpectedKeys == 0 {
		c.ExpectedKeys = d.ExpectedKeys
	}
	if c.MaxKeySize <= 0 {
		c.MaxKeySize = d.MaxKeySize
	}
	if c.MaxValueSize <= 0 {
		c.MaxValueSize = d.MaxValueSize
	}
}

// Load reads a JSON config from path on top of the defaults.
// A missing file is not an error, an unknown sync_mode is.
func Load(path string) (Config, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	// fields missing from the file keep their defaults
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Default(), fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if _, err := wal.ParseSyncMode(cfg.SyncMode); err != nil {
		return Default(), fmt.Errorf("invalid sync_mode in config %s: %w", path, err)
	}

	cfg.Normalize()
	return cfg, nil
}

// StoreConfig converts to the store configuration
func (c *Config) StoreConfig() *store.Config {
	mode, err := wal.ParseSyncMode(c.SyncMode)
	if err != nil {
		mode = wal.SyncNone
	}
	return &store.Config{
		DataDir:      c.DataDir,
		SyncMode:     mode,
		SyncInterval: time.Duration(c.SyncIntervalMs) * time.Millisecond,
		IndexShards:  c.IndexShards,
		ExpectedKeys: c.ExpectedKeys,
		MaxKeySize:   c.MaxKeySize,
		MaxValueSize: c.MaxValueSize,
	}
}
