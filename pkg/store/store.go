package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"mythkv/pkg/index"
	"mythkv/pkg/recovery"
	"mythkv/pkg/wal"
)

var (
	ErrEmptyKey      = errors.New("key must not be empty")
	ErrEmptyValue    = errors.New("value must not be empty")
	ErrKeyTooLarge   = errors.New("key exceeds maximum size")
	ErrValueTooLarge = errors.New("value exceeds maximum size")
	ErrKeyNotFound   = errors.New("key not found")
	ErrClosed        = errors.New("store is closed")
)

// Config holds store configuration
type Config struct {
	DataDir      string
	SyncMode     wal.SyncMode
	SyncInterval time.Duration
	IndexShards  int
	ExpectedKeys uint
	MaxKeySize   int
	MaxValueSize int
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		DataDir:      "./store",
		SyncMode:     wal.SyncNone,
		SyncInterval: time.Second,
		IndexShards:  16,
		ExpectedKeys: 1 << 20,
		MaxKeySize:   4 * 1024,
		MaxValueSize: 16 * 1024 * 1024,
	}
}

// Stats is a snapshot of store counters
type Stats struct {
	Keys     int            `json:"keys"`
	Version  uint64         `json:"version"`
	LogBytes int64          `json:"log_bytes"`
	Puts     uint64         `json:"puts"`
	Deletes  uint64         `json:"deletes"`
	Recovery recovery.Stats `json:"recovery"`
	SyncMode string         `json:"sync_mode"`
}

// Store is a durable key-value store: the log is the source of truth,
// the index serves reads
type Store struct {
	config *Config
	wal    *wal.Log
	index  index.Index

	// writeMu makes append+apply one step so the index sees writes in log order
	writeMu sync.Mutex
	closed  atomic.Bool

	recovered recovery.Stats
	puts      atomic.Uint64
	deletes   atomic.Uint64
}

// Open opens the log in config.DataDir and rebuilds the index from it.
// The store must not be used if Open fails.
func Open(config *Config) (*Store, error) {
	if config == nil {
		config = DefaultConfig()
	}

	log, err := wal.Open(config.DataDir, wal.Config{
		SyncMode:     config.SyncMode,
		SyncInterval: config.SyncInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}

	idx := index.New(index.Config{
		Shards:       config.IndexShards,
		ExpectedKeys: config.ExpectedKeys,
	})

	stats, err := recovery.Rebuild(idx, log)
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("failed to recover from log: %w", err)
	}

	return &Store{
		config:    config,
		wal:       log,
		index:     idx,
		recovered: stats,
	}, nil
}

func (s *Store) checkKey(key []byte) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}
	if s.config.MaxKeySize > 0 && len(key) > s.config.MaxKeySize {
		return ErrKeyTooLarge
	}
	return nil
}

func (s *Store) checkCall(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return ctx.Err()
}

// Put stores value under key and returns the previous value, if any.
// Empty values are rejected: on disk they are indistinguishable from a
// delete, so accepting one would make the key vanish after a restart.
func (s *Store) Put(ctx context.Context, key []byte, value []byte) ([]byte, error) {
	if err := s.checkCall(ctx); err != nil {
		return nil, err
	}
	if err := s.checkKey(key); err != nil {
		return nil, err
	}
	if len(value) == 0 {
		return nil, ErrEmptyValue
	}
	if s.config.MaxValueSize > 0 && len(value) > s.config.MaxValueSize {
		return nil, ErrValueTooLarge
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	// Write to log first
	if err := s.wal.AppendPut(key, value); err != nil {
		return nil, s.appendErr(err)
	}

	prev, _ := s.index.Put(key, value)
	s.puts.Add(1)
	return prev, nil
}

// Get retrieves the value of key or ErrKeyNotFound
func (s *Store) Get(ctx context.Context, key []byte) ([]byte, error) {
	if err := s.checkCall(ctx); err != nil {
		return nil, err
	}
	if err := s.checkKey(key); err != nil {
		return nil, err
	}
	v, ok := s.index.Get(key)
	if !ok {
		return nil, ErrKeyNotFound
	}
	return v, nil
}

// Delete marks key as deleted and returns the previous value, if any.
// Deleting a missing key succeeds.
func (s *Store) Delete(ctx context.Context, key []byte) ([]byte, error) {
	if err := s.checkCall(ctx); err != nil {
		return nil, err
	}
	if err := s.checkKey(key); err != nil {
		return nil, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	// Write delete marker to log first
	if err := s.wal.AppendDelete(key); err != nil {
		return nil, s.appendErr(err)
	}

	prev, _ := s.index.Delete(key)
	s.deletes.Add(1)
	return prev, nil
}

func (s *Store) appendErr(err error) error {
	if errors.Is(err, wal.ErrClosed) {
		return ErrClosed
	}
	return fmt.Errorf("failed to write to log: %w", err)
}

// Stats returns current counters
func (s *Store) Stats() Stats {
	return Stats{
		Keys:     s.index.Len(),
		Version:  s.index.Version(),
		LogBytes: s.wal.Size(),
		Puts:     s.puts.Load(),
		Deletes:  s.deletes.Load(),
		Recovery: s.recovered,
		SyncMode: s.wal.SyncMode().String(),
	}
}

// Dir returns the data directory
func (s *Store) Dir() string {
	return s.config.DataDir
}

// Close closes the store
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	// wait for an in-flight write
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.wal.Close(); err != nil {
		return fmt.Errorf("failed to close log: %w", err)
	}
	return nil
}
