// Package nodedb: pebble.go wraps cockroachdb/pebble as a second
// selectable embedded engine, grounded directly on the teacher's
// ethdb/pebble/pebble.go.
package nodedb

import (
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/bloom"
	"github.com/miguelportilla/rippled/common"
	"github.com/miguelportilla/rippled/log"
	"github.com/miguelportilla/rippled/nodeobject"
)

const (
	minPebbleCache   = 16 // MiB
	minPebbleHandles = 16
)

// Pebble is a persistent Backend backed by github.com/cockroachdb/pebble.
type Pebble struct {
	fn      string
	db      *pebble.DB
	handles int
	log     log.Logger
	m       *meters
}

// NewPebble opens (or creates) a pebble database at path.
func NewPebble(path string, cacheMB, handles int) (*Pebble, error) {
	if cacheMB < minPebbleCache {
		cacheMB = minPebbleCache
	}
	if handles < minPebbleHandles {
		handles = minPebbleHandles
	}
	logger := log.New("backend", "pebble", "path", path)
	logger.Info("Allocated cache and file handles", "cache", common.StorageSize(cacheMB*1024*1024), "handles", handles)

	cache := pebble.NewCache(int64(cacheMB * 1024 * 1024))
	defer cache.Unref()

	opts := &pebble.Options{
		Cache:                       cache,
		MaxOpenFiles:                handles,
		MemTableSize:                uint64(cacheMB * 1024 * 1024 / 4),
		MemTableStopWritesThreshold: 2,
		L0CompactionThreshold:       2,
		L0StopWritesThreshold:       1000,
	}
	for i := 0; i < len(opts.Levels); i++ {
		opts.Levels[i].FilterPolicy = bloom.FilterPolicy(10)
	}
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("nodedb: open pebble at %s: %w", path, err)
	}
	return &Pebble{fn: path, db: db, handles: handles, log: logger, m: newMeters("nodedb.pebble." + path)}, nil
}

func (b *Pebble) Fetch(hash common.Hash) (*nodeobject.NodeObject, FetchStatus, error) {
	data, closer, err := b.db.Get(hash.Bytes())
	if err == pebble.ErrNotFound {
		return nil, FetchNotFound, ErrNotFound
	}
	if err != nil {
		return nil, FetchErr, fmt.Errorf("nodedb: pebble fetch: %w", err)
	}
	defer closer.Close()
	cp := make([]byte, len(data))
	copy(cp, data)
	b.m.markRead(len(cp))
	return nodeobject.Wrap(nodeobject.Unknown, hash, cp), FetchOK, nil
}

func (b *Pebble) Store(obj *nodeobject.NodeObject) error {
	if err := b.db.Set(obj.Hash.Bytes(), obj.Data, pebble.Sync); err != nil {
		return fmt.Errorf("nodedb: pebble store: %w", err)
	}
	b.m.markWrite(len(obj.Data))
	return nil
}

func (b *Pebble) StoreBatch(objs []*nodeobject.NodeObject) error {
	batch := b.db.NewBatch()
	defer batch.Close()
	n := 0
	for _, obj := range objs {
		if err := batch.Set(obj.Hash.Bytes(), obj.Data, nil); err != nil {
			return fmt.Errorf("nodedb: pebble batch set: %w", err)
		}
		n += len(obj.Data)
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("nodedb: pebble batch commit: %w", err)
	}
	b.m.markWrite(n)
	return nil
}

func (b *Pebble) Flush() error {
	if err := b.db.Flush(); err != nil {
		return fmt.Errorf("nodedb: pebble flush: %w", err)
	}
	return nil
}

func (b *Pebble) Fdlimit() int { return b.handles }

func (b *Pebble) WriteLoad() int64 { return b.m.load() }

func (b *Pebble) Close() error {
	if err := b.db.Close(); err != nil {
		return fmt.Errorf("nodedb: close pebble: %w", err)
	}
	return nil
}

func init() {
	RegisterFactory("pebble", func(dir string, cfg BackendConfig) (Backend, error) {
		return NewPebble(dir, cfg.CacheMB, cfg.Handles)
	})
}
