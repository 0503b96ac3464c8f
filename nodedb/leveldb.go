// Package nodedb: leveldb.go wraps syndtr/goleveldb as a Backend,
// generalizing the teacher's early ethdb/database.go LDBDatabase to the
// richer §4.1 contract and the metrics-bearing shape of the teacher's
// later ethdb/pebble/pebble.go.
package nodedb

import (
	"fmt"

	"github.com/miguelportilla/rippled/common"
	"github.com/miguelportilla/rippled/log"
	"github.com/miguelportilla/rippled/nodeobject"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

const (
	minLevelDBCache   = 16 // MiB
	minLevelDBHandles = 16
)

// LevelDB is a persistent Backend backed by github.com/syndtr/goleveldb.
type LevelDB struct {
	fn      string
	db      *leveldb.DB
	handles int
	log     log.Logger
	m       *meters
}

// NewLevelDB opens (or creates) a leveldb database at path.
func NewLevelDB(path string, cacheMB, handles int) (*LevelDB, error) {
	if cacheMB < minLevelDBCache {
		cacheMB = minLevelDBCache
	}
	if handles < minLevelDBHandles {
		handles = minLevelDBHandles
	}
	logger := log.New("backend", "leveldb", "path", path)
	logger.Info("Allocated cache and file handles", "cache", common.StorageSize(cacheMB*1024*1024), "handles", handles)

	db, err := leveldb.OpenFile(path, &opt.Options{
		OpenFilesCacheCapacity: handles,
		BlockCacheCapacity:     cacheMB / 2 * opt.MiB,
		WriteBuffer:            cacheMB / 4 * opt.MiB,
		Filter:                 filter.NewBloomFilter(10),
	})
	if _, corrupted := err.(*errors.ErrCorrupted); corrupted {
		logger.Warn("Recovering leveldb from corruption")
		db, err = leveldb.RecoverFile(path, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("nodedb: open leveldb at %s: %w", path, err)
	}
	return &LevelDB{fn: path, db: db, handles: handles, log: logger, m: newMeters("nodedb.leveldb." + path)}, nil
}

func (b *LevelDB) Fetch(hash common.Hash) (*nodeobject.NodeObject, FetchStatus, error) {
	data, err := b.db.Get(hash.Bytes(), nil)
	if err == leveldb.ErrNotFound {
		return nil, FetchNotFound, ErrNotFound
	}
	if err != nil {
		return nil, FetchErr, fmt.Errorf("nodedb: leveldb fetch: %w", err)
	}
	b.m.markRead(len(data))
	return nodeobject.Wrap(nodeobject.Unknown, hash, data), FetchOK, nil
}

func (b *LevelDB) Store(obj *nodeobject.NodeObject) error {
	if err := b.db.Put(obj.Hash.Bytes(), obj.Data, nil); err != nil {
		return fmt.Errorf("nodedb: leveldb store: %w", err)
	}
	b.m.markWrite(len(obj.Data))
	return nil
}

func (b *LevelDB) StoreBatch(objs []*nodeobject.NodeObject) error {
	batch := new(leveldb.Batch)
	n := 0
	for _, obj := range objs {
		batch.Put(obj.Hash.Bytes(), obj.Data)
		n += len(obj.Data)
	}
	if err := b.db.Write(batch, nil); err != nil {
		return fmt.Errorf("nodedb: leveldb store batch: %w", err)
	}
	b.m.markWrite(n)
	return nil
}

func (b *LevelDB) Flush() error { return nil }

// Fdlimit reports the open file handle budget this instance was
// configured with; leveldb itself does not expose live fd usage.
func (b *LevelDB) Fdlimit() int { return b.handles }

func (b *LevelDB) WriteLoad() int64 { return b.m.load() }

func (b *LevelDB) Close() error {
	if err := b.db.Close(); err != nil {
		return fmt.Errorf("nodedb: close leveldb: %w", err)
	}
	return nil
}

func init() {
	RegisterFactory("leveldb", func(dir string, cfg BackendConfig) (Backend, error) {
		return NewLevelDB(dir, cfg.CacheMB, cfg.Handles)
	})
}
