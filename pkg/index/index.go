package index

import (
	"hash/maphash"
	"sync/atomic"

	"mythkv/pkg/types"
)

// Index maps each key to its latest value or tombstone.
//
// Every Put and Delete draws the next number from one counter shared by
// all keys, so entries are totally ordered by Version. Get never reports
// a tombstoned key; deleted and never-written keys look the same.
type Index interface {
	// Put stores value for key and returns the previous live value, if any
	Put(key []byte, value []byte) ([]byte, bool)
	// Get returns the live value for key
	Get(key []byte) ([]byte, bool)
	// Delete stores a tombstone for key and returns the previous live value, if any
	Delete(key []byte) ([]byte, bool)
	// Entry returns the raw entry for key, tombstones included
	Entry(key []byte) (types.VersionedEntry, bool)
	// Version returns the last version handed out
	Version() uint64
	// Len returns the number of keys, tombstones included
	Len() int
}

// Config holds index configuration
type Config struct {
	// Shards <= 1 puts the whole index behind one lock
	Shards int
	// ExpectedKeys sizes the bloom filters (per index, split across shards)
	ExpectedKeys uint
	// FalsePositiveRate of the bloom filters
	FalsePositiveRate float64
}

// DefaultConfig returns a default configuration
func DefaultConfig() Config {
	return Config{
		Shards:            16,
		ExpectedKeys:      1 << 20,
		FalsePositiveRate: 0.01,
	}
}

// New creates an empty index with version 0
func New(config Config) Index {
	def := DefaultConfig()
	if config.ExpectedKeys == 0 {
		config.ExpectedKeys = def.ExpectedKeys
	}
	if config.FalsePositiveRate <= 0 || config.FalsePositiveRate >= 1 {
		config.FalsePositiveRate = def.FalsePositiveRate
	}

	version := &atomic.Uint64{}
	if config.Shards <= 1 {
		return newTable(version, config.ExpectedKeys, config.FalsePositiveRate)
	}

	perShard := config.ExpectedKeys / uint(config.Shards)
	if perShard == 0 {
		perShard = 1
	}
	s := &sharded{
		seed:    maphash.MakeSeed(),
		shards:  make([]*table, config.Shards),
		version: version,
	}
	for i := range s.shards {
		s.shards[i] = newTable(version, perShard, config.FalsePositiveRate)
	}
	return s
}

// sharded spreads keys over independently locked tables
type sharded struct {
	seed    maphash.Seed
	shards  []*table
	version *atomic.Uint64
}

var _ Index = (*sharded)(nil)

func (s *sharded) shard(key []byte) *table {
	h := maphash.Bytes(s.seed, key)
	return s.shards[h%uint64(len(s.shards))]
}

func (s *sharded) Put(key []byte, value []byte) ([]byte, bool) {
	return s.shard(key).Put(key, value)
}

func (s *sharded) Get(key []byte) ([]byte, bool) {
	return s.shard(key).Get(key)
}

func (s *sharded) Delete(key []byte) ([]byte, bool) {
	return s.shard(key).Delete(key)
}

func (s *sharded) Entry(key []byte) (types.VersionedEntry, bool) {
	return s.shard(key).Entry(key)
}

func (s *sharded) Version() uint64 {
	return s.version.Load()
}

func (s *sharded) Len() int {
	n := 0
	for _, t := range s.shards {
		n += t.Len()
	}
	return n
}
