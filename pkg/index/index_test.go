package index

import (
	"fmt"
	"sync"
	"testing"

	"github.com/alecthomas/assert"
)

var configs = map[string]Config{
	"single":  {Shards: 1, ExpectedKeys: 1000, FalsePositiveRate: 0.01},
	"sharded": {Shards: 8, ExpectedKeys: 1000, FalsePositiveRate: 0.01},
	"default": {},
}

func forEachConfig(t *testing.T, fn func(t *testing.T, idx Index)) {
	for name, config := range configs {
		t.Run(name, func(t *testing.T) {
			fn(t, New(config))
		})
	}
}

func TestGetNeverWritten(t *testing.T) {
	forEachConfig(t, func(t *testing.T, idx Index) {
		for i := 0; i < 100; i++ {
			_, ok := idx.Get([]byte(fmt.Sprintf("missing-%d", i)))
			assert.False(t, ok)
		}
		assert.Equal(t, uint64(0), idx.Version())
		assert.Equal(t, 0, idx.Len())
	})
}

func TestPutGet(t *testing.T) {
	forEachConfig(t, func(t *testing.T, idx Index) {
		prev, ok := idx.Put([]byte("key1"), []byte("value1"))
		assert.False(t, ok)
		assert.Nil(t, prev)

		v, ok := idx.Get([]byte("key1"))
		assert.True(t, ok)
		assert.Equal(t, "value1", string(v))

		prev, ok = idx.Put([]byte("key1"), []byte("value2"))
		assert.True(t, ok)
		assert.Equal(t, "value1", string(prev))

		v, ok = idx.Get([]byte("key1"))
		assert.True(t, ok)
		assert.Equal(t, "value2", string(v))

		_, ok = idx.Get([]byte("key2"))
		assert.False(t, ok)
	})
}

func TestDelete(t *testing.T) {
	forEachConfig(t, func(t *testing.T, idx Index) {
		// deleting an absent key still records a tombstone
		prev, ok := idx.Delete([]byte("key1"))
		assert.False(t, ok)
		assert.Nil(t, prev)
		assert.Equal(t, uint64(1), idx.Version())
		e, ok := idx.Entry([]byte("key1"))
		assert.True(t, ok)
		assert.True(t, e.Tombstone)
		assert.Equal(t, uint64(1), e.Version)
		_, ok = idx.Get([]byte("key1"))
		assert.False(t, ok)

		idx.Put([]byte("key1"), []byte("value1"))
		prev, ok = idx.Delete([]byte("key1"))
		assert.True(t, ok)
		assert.Equal(t, "value1", string(prev))
		_, ok = idx.Get([]byte("key1"))
		assert.False(t, ok)

		// already a tombstone
		prev, ok = idx.Delete([]byte("key1"))
		assert.False(t, ok)
		assert.Nil(t, prev)

		// put over a tombstone has no previous value
		prev, ok = idx.Put([]byte("key1"), []byte("value2"))
		assert.False(t, ok)
		assert.Nil(t, prev)
		assert.Equal(t, 1, idx.Len())
	})
}

func TestVersionStrictlyIncreasing(t *testing.T) {
	forEachConfig(t, func(t *testing.T, idx Index) {
		last := idx.Version()
		keys := []string{"a", "b", "a", "a", "c", "b"}
		for i, k := range keys {
			if i%3 == 2 {
				idx.Delete([]byte(k))
			} else {
				idx.Put([]byte(k), []byte("v"))
			}
			v := idx.Version()
			assert.True(t, v > last, "version %d after %d", v, last)
			e, ok := idx.Entry([]byte(k))
			assert.True(t, ok)
			assert.Equal(t, v, e.Version)
			last = v
		}
		assert.Equal(t, uint64(len(keys)), idx.Version())
	})
}

func TestCallerBuffersNotRetained(t *testing.T) {
	forEachConfig(t, func(t *testing.T, idx Index) {
		key := []byte("key")
		val := []byte("value")
		idx.Put(key, val)
		key[0] = 'X'
		val[0] = 'X'

		v, ok := idx.Get([]byte("key"))
		assert.True(t, ok)
		assert.Equal(t, "value", string(v))
		v[0] = 'Y'
		v, _ = idx.Get([]byte("key"))
		assert.Equal(t, "value", string(v))
	})
}

func TestConcurrentPutsSameKey(t *testing.T) {
	forEachConfig(t, func(t *testing.T, idx Index) {
		const workers = 8
		const perWorker = 500
		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < perWorker; i++ {
					key := []byte(fmt.Sprintf("k%d", i%10))
					if i%4 == 0 {
						idx.Delete(key)
					} else {
						idx.Put(key, []byte(fmt.Sprintf("w%d", w)))
					}
					idx.Get(key)
				}
			}(w)
		}
		wg.Wait()

		assert.Equal(t, uint64(workers*perWorker), idx.Version())
		assert.Equal(t, 10, idx.Len())
		seen := map[uint64]bool{}
		for i := 0; i < 10; i++ {
			e, ok := idx.Entry([]byte(fmt.Sprintf("k%d", i)))
			assert.True(t, ok)
			assert.False(t, seen[e.Version])
			seen[e.Version] = true
		}
	})
}
