package index

import (
	"bytes"
	"sync"
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/huandu/skiplist"

	"mythkv/pkg/types"
)

// table is a skip list of versioned entries behind a single lock.
// The bloom filter holds every key ever stored so most misses skip the list.
type table struct {
	skiplist *skiplist.SkipList
	filter   *bloom.BloomFilter
	version  *atomic.Uint64
	mu       sync.RWMutex
}

var _ Index = (*table)(nil)

func newTable(version *atomic.Uint64, expectedKeys uint, fpRate float64) *table {
	return &table{
		skiplist: skiplist.New(skiplist.Bytes),
		filter:   bloom.NewWithEstimates(expectedKeys, fpRate),
		version:  version,
	}
}

// set replaces the entry for key. Must be called with mu held.
// The version is drawn under the lock so a key's entries only move forward.
func (t *table) set(key []byte, value []byte, tombstone bool) ([]byte, bool) {
	var prev []byte
	found := false
	if elem := t.skiplist.Get(key); elem != nil {
		old := elem.Value.(*types.VersionedEntry)
		if !old.Tombstone {
			prev, found = old.Value, true
		}
	}

	next := t.version.Add(1)
	var entry *types.VersionedEntry
	if tombstone {
		entry = types.NewTombstone(next)
	} else {
		entry = types.NewEntry(next, bytes.Clone(value))
	}
	k := bytes.Clone(key)
	t.skiplist.Set(k, entry)
	t.filter.Add(k)
	return prev, found
}

// Put inserts or updates a key-value pair
func (t *table) Put(key []byte, value []byte) ([]byte, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.set(key, value, false)
}

// Delete marks a key as deleted
func (t *table) Delete(key []byte) ([]byte, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.set(key, nil, true)
}

// Get retrieves a value by key
func (t *table) Get(key []byte) ([]byte, bool) {
	e, ok := t.Entry(key)
	if !ok || e.Tombstone {
		return nil, false
	}
	return e.Value, true
}

func (t *table) Entry(key []byte) (types.VersionedEntry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if !t.filter.Test(key) {
		return types.VersionedEntry{}, false
	}
	elem := t.skiplist.Get(key)
	if elem == nil {
		return types.VersionedEntry{}, false
	}
	e := *elem.Value.(*types.VersionedEntry)
	e.Value = bytes.Clone(e.Value)
	return e, true
}

func (t *table) Version() uint64 {
	return t.version.Load()
}

func (t *table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.skiplist.Len()
}
