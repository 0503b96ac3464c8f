package nodedb

import (
	"sync"

	"github.com/miguelportilla/rippled/common"
	"github.com/miguelportilla/rippled/nodeobject"
)

// Memory is a map-backed Backend with Fdlimit()==0: nothing it holds is
// ever written to disk. It is the backend (including the §4.3
// "Initialization" probe) of any store configured with type "memory",
// and stands in for a persistent engine in tests.
type Memory struct {
	mu sync.RWMutex
	db map[common.Hash][]byte
	m  *meters
}

// NewMemory returns an empty Memory backend.
func NewMemory() *Memory {
	return &Memory{
		db: make(map[common.Hash][]byte),
		m:  newMeters("nodedb.memory"),
	}
}

func (b *Memory) Fetch(hash common.Hash) (*nodeobject.NodeObject, FetchStatus, error) {
	b.mu.RLock()
	data, ok := b.db[hash]
	b.mu.RUnlock()
	if !ok {
		return nil, FetchNotFound, ErrNotFound
	}
	b.m.markRead(len(data))
	cp := make([]byte, len(data))
	copy(cp, data)
	return nodeobject.Wrap(nodeobject.Unknown, hash, cp), FetchOK, nil
}

func (b *Memory) Store(obj *nodeobject.NodeObject) error {
	return b.StoreBatch([]*nodeobject.NodeObject{obj})
}

func (b *Memory) StoreBatch(objs []*nodeobject.NodeObject) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, obj := range objs {
		cp := make([]byte, len(obj.Data))
		copy(cp, obj.Data)
		b.db[obj.Hash] = cp
		b.m.markWrite(len(cp))
	}
	return nil
}

func (b *Memory) Flush() error { return nil }

func (b *Memory) Fdlimit() int { return 0 }

func (b *Memory) WriteLoad() int64 { return b.m.load() }

func (b *Memory) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.db = nil
	return nil
}

// Len reports the number of objects currently stored, for tests.
func (b *Memory) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.db)
}

func init() {
	RegisterFactory("memory", func(dir string, cfg BackendConfig) (Backend, error) {
		return NewMemory(), nil
	})
}
