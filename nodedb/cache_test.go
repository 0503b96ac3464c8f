package nodedb

import (
	"testing"
	"time"

	"github.com/miguelportilla/rippled/nodeobject"
)

func TestPositiveCacheAddGet(t *testing.T) {
	c := NewPositiveCache(minShardCacheSize, 0)
	obj := nodeobject.New(nodeobject.Leaf, []byte("hello"))
	c.Add(obj)
	got := c.Get(obj.Hash)
	if got == nil {
		t.Fatal("Get should return the object just Added")
	}
	if string(got.Data) != "hello" {
		t.Errorf("Data = %q, want %q", got.Data, "hello")
	}
}

func TestPositiveCacheMiss(t *testing.T) {
	c := NewPositiveCache(minShardCacheSize, 0)
	if c.Get(nodeobject.Digest([]byte("nope"))) != nil {
		t.Error("Get on an unpopulated cache should return nil")
	}
}

func TestPositiveCacheAgeExpiry(t *testing.T) {
	c := NewPositiveCache(minShardCacheSize, time.Nanosecond)
	obj := nodeobject.New(nodeobject.Leaf, []byte("stale"))
	c.Add(obj)
	time.Sleep(time.Millisecond)
	if c.Get(obj.Hash) != nil {
		t.Error("Get should treat an entry older than targetAge as absent")
	}
}

func TestPositiveCacheSweepEvictsStale(t *testing.T) {
	c := NewPositiveCache(minShardCacheSize, time.Millisecond)
	obj := nodeobject.New(nodeobject.Leaf, []byte("sweep me"))
	c.Add(obj)
	time.Sleep(5 * time.Millisecond)
	c.Sweep()
	if c.ages.Contains(obj.Hash) {
		t.Error("Sweep should have evicted the stale age entry")
	}
}

func TestNegativeCacheKnownAndRemove(t *testing.T) {
	c := NewNegativeCache(1024, 0)
	h := nodeobject.Digest([]byte("absent"))
	if c.Known(h) {
		t.Error("Known should be false before Add")
	}
	c.Add(h)
	if !c.Known(h) {
		t.Error("Known should be true after Add")
	}
	c.Remove(h)
	if c.Known(h) {
		t.Error("Known should be false after Remove")
	}
}

func TestNegativeCacheAgeExpiry(t *testing.T) {
	c := NewNegativeCache(1024, time.Nanosecond)
	h := nodeobject.Digest([]byte("stale"))
	c.Add(h)
	time.Sleep(time.Millisecond)
	if c.Known(h) {
		t.Error("Known should treat a stale entry as absent")
	}
}

func TestCacheTuneEnforcesMinimum(t *testing.T) {
	c := NewPositiveCache(minShardCacheSize, 0)
	c.Tune(1, time.Second)
	if c.targetSize != minShardCacheSize {
		t.Errorf("Tune should floor targetSize to minShardCacheSize, got %d", c.targetSize)
	}
}
