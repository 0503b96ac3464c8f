package nodedb

import (
	"sync"
	"time"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/miguelportilla/rippled/common"
	"github.com/miguelportilla/rippled/nodeobject"
)

// MinShardCacheSize is the floor spec.md §4.3 "Cache tuning" imposes on
// a per-shard cache allotment: max(minShardCacheSize, size/(|complete|+1)).
const MinShardCacheSize = 1 << 20 // 1 MiB

const minShardCacheSize = MinShardCacheSize

// ageEntry tracks when a key was last (re)inserted, so Sweep can evict
// anything older than targetAge regardless of the byte-cache's own
// eviction policy.
type ageEntry struct {
	touched time.Time
}

// PositiveCache maps hash→NodeObject, bounded by both a target byte size
// (enforced by the fastcache.Cache doing the actual storage) and a
// target age (enforced by an auxiliary LRU of touch times, since
// fastcache itself has no notion of age-based expiry).
type PositiveCache struct {
	mu         sync.Mutex
	bytes      *fastcache.Cache
	ages       *basicLRU[common.Hash, ageEntry]
	targetSize int
	targetAge  time.Duration
}

// NewPositiveCache returns a cache targeting size bytes and age as the
// maximum entry lifetime.
func NewPositiveCache(size int, age time.Duration) *PositiveCache {
	if size < minShardCacheSize {
		size = minShardCacheSize
	}
	return &PositiveCache{
		bytes:      fastcache.New(size),
		ages:       newBasicLRU[common.Hash, ageEntry](maxEntries(size)),
		targetSize: size,
		targetAge:  age,
	}
}

func maxEntries(sizeBytes int) int {
	const avgEntry = 512
	n := sizeBytes / avgEntry
	if n < 1024 {
		n = 1024
	}
	return n
}

// Get returns the cached object for hash, or nil if absent or stale.
func (c *PositiveCache) Get(hash common.Hash) *nodeobject.NodeObject {
	c.mu.Lock()
	entry, ok := c.ages.Get(hash)
	stale := ok && c.targetAge > 0 && time.Since(entry.touched) > c.targetAge
	c.mu.Unlock()
	if !ok || stale {
		if stale {
			c.Remove(hash)
		}
		return nil
	}
	data := c.bytes.GetBig(nil, hash.Bytes())
	if data == nil {
		return nil
	}
	return nodeobject.Wrap(nodeobject.Unknown, hash, data)
}

// Add inserts obj, refreshing its age.
func (c *PositiveCache) Add(obj *nodeobject.NodeObject) {
	c.bytes.SetBig(obj.Hash.Bytes(), obj.Data)
	c.mu.Lock()
	c.ages.Add(obj.Hash, ageEntry{touched: time.Now()})
	c.mu.Unlock()
}

// Remove evicts hash from the cache.
func (c *PositiveCache) Remove(hash common.Hash) {
	c.bytes.Del(hash.Bytes())
	c.mu.Lock()
	c.ages.Remove(hash)
	c.mu.Unlock()
}

// Sweep evicts every entry older than the target age. fastcache itself
// only evicts by its own internal LRU-ish bucket policy, so this is the
// only path that actually enforces targetAge.
func (c *PositiveCache) Sweep() {
	if c.targetAge <= 0 {
		return
	}
	c.mu.Lock()
	stale := make([]common.Hash, 0)
	for _, k := range c.ages.Keys() {
		e, _ := c.ages.Peek(k)
		if time.Since(e.touched) > c.targetAge {
			stale = append(stale, k)
		}
	}
	for _, k := range stale {
		c.ages.Remove(k)
	}
	c.mu.Unlock()
	for _, k := range stale {
		c.bytes.Del(k.Bytes())
	}
}

// Tune adjusts the target age applied on the next Sweep. Byte-size
// targets can't shrink an already-allocated fastcache.Cache in place;
// resizing recreates the underlying cache, matching the fact that
// fastcache pre-allocates its full buffer up front.
func (c *PositiveCache) Tune(size int, age time.Duration) {
	if size < minShardCacheSize {
		size = minShardCacheSize
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.targetAge = age
	if size != c.targetSize {
		c.targetSize = size
		c.bytes = fastcache.New(size)
		c.ages = newBasicLRU[common.Hash, ageEntry](maxEntries(size))
	}
}

// NegativeCache remembers hashes known to be absent from a backend, so
// repeated misses don't repeat a disk read.
type NegativeCache struct {
	mu        sync.Mutex
	entries   *basicLRU[common.Hash, time.Time]
	targetAge time.Duration
}

// NewNegativeCache returns a negative cache bounded to size entries and
// age as the maximum entry lifetime.
func NewNegativeCache(size int, age time.Duration) *NegativeCache {
	if size < 1024 {
		size = 1024
	}
	return &NegativeCache{
		entries:   newBasicLRU[common.Hash, time.Time](size),
		targetAge: age,
	}
}

// Known reports whether hash is remembered as absent (and not stale).
func (c *NegativeCache) Known(hash common.Hash) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.entries.Get(hash)
	if !ok {
		return false
	}
	if c.targetAge > 0 && time.Since(t) > c.targetAge {
		c.entries.Remove(hash)
		return false
	}
	return true
}

// Add remembers hash as absent.
func (c *NegativeCache) Add(hash common.Hash) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Add(hash, time.Now())
}

// Remove forgets hash, used when a promotion (§4.4) proves it present
// after all.
func (c *NegativeCache) Remove(hash common.Hash) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Remove(hash)
}

// Sweep evicts every entry older than the target age.
func (c *NegativeCache) Sweep() {
	if c.targetAge <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range c.entries.Keys() {
		t, _ := c.entries.Peek(k)
		if time.Since(t) > c.targetAge {
			c.entries.Remove(k)
		}
	}
}

// Tune adjusts the target age and, if size shrinks, evicts down to fit.
func (c *NegativeCache) Tune(size int, age time.Duration) {
	if size < 1024 {
		size = 1024
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.targetAge = age
	for c.entries.Len() > size {
		keys := c.entries.Keys()
		if len(keys) == 0 {
			break
		}
		c.entries.Remove(keys[0])
	}
}

// Len reports the number of entries currently held (both types share
// this accessor shape for stats reporting).
func (c *NegativeCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}
