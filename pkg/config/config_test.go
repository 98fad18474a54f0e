package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alecthomas/assert"

	"mythkv/pkg/wal"
)

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesAndNormalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mythkv.json")
	data := `{
		"data_dir": "/var/lib/mythkv",
		"sync_mode": "always",
		"index_shards": 1,
		"max_key_size": -5,
		"verbose": true
	}`
	assert.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := Load(path)
	assert.NoError(t, err)
	assert.Equal(t, "/var/lib/mythkv", cfg.DataDir)
	assert.Equal(t, "always", cfg.SyncMode)
	assert.Equal(t, 1, cfg.IndexShards)
	assert.Equal(t, Default().MaxKeySize, cfg.MaxKeySize)
	assert.Equal(t, Default().Addr, cfg.Addr)
	assert.True(t, cfg.Verbose)

	sc := cfg.StoreConfig()
	assert.Equal(t, wal.SyncAlways, sc.SyncMode)
	assert.Equal(t, time.Second, sc.SyncInterval)
	assert.Equal(t, "/var/lib/mythkv", sc.DataDir)
}

func TestLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mythkv.json")
	assert.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	cfg, err := Load(path)
	assert.Error(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadRejectsUnknownSyncMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mythkv.json")
	assert.NoError(t, os.WriteFile(path, []byte(`{"sync_mode": "alwayz"}`), 0644))

	cfg, err := Load(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "alwayz")
	assert.Equal(t, Default(), cfg)
}

func TestNormalizeFillsEmptySyncMode(t *testing.T) {
	cfg := Config{}
	cfg.Normalize()
	assert.Equal(t, "none", cfg.SyncMode)
	assert.Equal(t, Default().IndexShards, cfg.IndexShards)

	// typos survive Normalize so Load can report them
	cfg = Config{SyncMode: "sometimes"}
	cfg.Normalize()
	assert.Equal(t, "sometimes", cfg.SyncMode)
}
