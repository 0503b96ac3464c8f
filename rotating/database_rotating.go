// Package rotating implements the two-generation hot/cold store façade
// of spec.md §4.4: reads promote from the archive generation into the
// writable one, and rotation atomically ages writable into archive
// while discarding the old archive.
package rotating

import (
	"sync"
	"time"

	"github.com/miguelportilla/rippled/common"
	"github.com/miguelportilla/rippled/log"
	"github.com/miguelportilla/rippled/nodedb"
	"github.com/miguelportilla/rippled/nodeobject"
)

// DatabaseRotating owns two backends wrapped in their own nodedb.Database
// (cache pair included): writable, the hot generation writes land in,
// and archive, the cold generation reads fall back to.
type DatabaseRotating struct {
	mu sync.RWMutex

	writable *nodedb.Database
	archive  *nodedb.Database
	log      log.Logger
}

// New wraps writable and archive backends into a rotating pair.
func New(writable, archive nodedb.Backend, cacheSize int) *DatabaseRotating {
	return &DatabaseRotating{
		writable: nodedb.NewDatabase(writable, cacheSize, 0),
		archive:  nodedb.NewDatabase(archive, cacheSize, 0),
		log:      log.New("component", "rotating"),
	}
}

// Fetch tries writable, then falls through to FetchFrom for the
// archive/promotion path.
func (d *DatabaseRotating) Fetch(hash common.Hash) (*nodeobject.NodeObject, error) {
	return d.FetchFrom(hash)
}

// FetchFrom implements spec.md §4.4: try writable; on miss, try
// archive; on an archive hit, promote the object into writable and
// evict it from writable's negative cache so a subsequent Fetch never
// consults the archive again for that hash.
func (d *DatabaseRotating) FetchFrom(hash common.Hash) (*nodeobject.NodeObject, error) {
	d.mu.RLock()
	writable, archive := d.writable, d.archive
	d.mu.RUnlock()

	obj, err := writable.Fetch(hash)
	if err != nil {
		return nil, err
	}
	if obj != nil {
		return obj, nil
	}

	obj, err = archive.Fetch(hash)
	if err != nil || obj == nil {
		return obj, err
	}

	if err := writable.Store(obj); err != nil {
		d.log.Warn("Failed to promote object from archive", "hash", hash, "err", err)
		return obj, nil
	}
	writable.Negative().Remove(hash)
	return obj, nil
}

// AsyncFetch behaves like FetchFrom; the underlying Database.AsyncFetch
// calls provide the in-flight de-duplication per generation.
func (d *DatabaseRotating) AsyncFetch(hash common.Hash) (*nodeobject.NodeObject, error) {
	d.mu.RLock()
	writable := d.writable
	d.mu.RUnlock()

	if obj, err := writable.AsyncFetch(hash); err != nil || obj != nil {
		return obj, err
	}
	return d.FetchFrom(hash)
}

// Store writes obj into the writable generation.
func (d *DatabaseRotating) Store(obj *nodeobject.NodeObject) error {
	d.mu.RLock()
	writable := d.writable
	d.mu.RUnlock()
	return writable.Store(obj)
}

// StoreBatch writes objs into the writable generation as one unit.
func (d *DatabaseRotating) StoreBatch(objs []*nodeobject.NodeObject) error {
	d.mu.RLock()
	writable := d.writable
	d.mu.RUnlock()
	return writable.StoreBatch(objs)
}

// Rotate atomically ages writable into archive, discards the old
// archive generation, and installs newWritable, per spec.md §4.4
// "rotate(new)". It returns the expelled backend so the caller can
// delete or rename it; in-flight readers that already captured a
// backend reference via FetchFrom keep using it safely (shared
// ownership, per spec.md §5).
func (d *DatabaseRotating) Rotate(newWritable nodedb.Backend, cacheSize int) nodedb.Backend {
	d.mu.Lock()
	defer d.mu.Unlock()

	oldArchive := d.archive.Backend()
	d.archive = d.writable
	d.writable = nodedb.NewDatabase(newWritable, cacheSize, 0)
	return oldArchive
}

// Tune resizes both generations' cache pairs uniformly.
func (d *DatabaseRotating) Tune(size int, age time.Duration) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	d.writable.Tune(size, age)
	d.archive.Tune(size, age)
}

// Sweep evicts stale cache entries from both generations.
func (d *DatabaseRotating) Sweep() {
	d.mu.RLock()
	defer d.mu.RUnlock()
	d.writable.Sweep()
	d.archive.Sweep()
}

// Close closes both backends.
func (d *DatabaseRotating) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	err := d.writable.Close()
	if archErr := d.archive.Close(); err == nil {
		err = archErr
	}
	return err
}
