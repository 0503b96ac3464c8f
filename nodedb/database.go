package nodedb

import (
	"sync"
	"time"

	"github.com/miguelportilla/rippled/common"
	"github.com/miguelportilla/rippled/log"
	"github.com/miguelportilla/rippled/nodeobject"
)

// Stats accumulates the fetch/store counters a Database reports, the
// generalized form of spec.md §2's "statistics".
type Stats struct {
	Fetches      int64
	CacheHits    int64
	NegativeHits int64
	BackendReads int64
	Stores       int64
	Corrupt      int64
}

// Database is the common fetch path shared by every façade: cache
// consult, backend fetch, negative-cache population, async dispatch.
// It owns exactly one Backend plus its own cache pair; the rotating and
// sharded façades each keep one or more of these.
type Database struct {
	backend Backend
	pos     *PositiveCache
	neg     *NegativeCache
	log     log.Logger

	mu        sync.Mutex
	stats     Stats
	inflight  map[common.Hash]*inflightFetch
	inflightM sync.Mutex
}

// inflightFetch de-duplicates concurrent AsyncFetch calls for the same
// hash, so N callers racing on one node share a single backend read —
// the behavior rippled's Database::asyncFetch documents (SPEC_FULL §4
// item 1).
type inflightFetch struct {
	done chan struct{}
	obj  *nodeobject.NodeObject
	err  error
}

// NewDatabase wraps backend with a fresh cache pair.
func NewDatabase(backend Backend, cacheSize int, cacheAge time.Duration) *Database {
	return &Database{
		backend:  backend,
		pos:      NewPositiveCache(cacheSize, cacheAge),
		neg:      NewNegativeCache(cacheSize/64+1024, cacheAge),
		log:      log.New("component", "nodedb"),
		inflight: make(map[common.Hash]*inflightFetch),
	}
}

// Backend returns the wrapped Backend, for façades that need to reach
// through for admission/rotation decisions.
func (db *Database) Backend() Backend { return db.backend }

// Positive returns the positive cache, for tuning by the owning façade.
func (db *Database) Positive() *PositiveCache { return db.pos }

// Negative returns the negative cache, for tuning by the owning façade.
func (db *Database) Negative() *NegativeCache { return db.neg }

// Fetch consults the positive cache, then the negative cache, then the
// backend, populating caches on the way. It never blocks longer than one
// backend round trip.
func (db *Database) Fetch(hash common.Hash) (*nodeobject.NodeObject, error) {
	db.mu.Lock()
	db.stats.Fetches++
	db.mu.Unlock()

	if obj := db.pos.Get(hash); obj != nil {
		db.mu.Lock()
		db.stats.CacheHits++
		db.mu.Unlock()
		return obj, nil
	}
	if db.neg.Known(hash) {
		db.mu.Lock()
		db.stats.NegativeHits++
		db.mu.Unlock()
		return nil, nil
	}
	obj, status, err := db.backend.Fetch(hash)
	db.mu.Lock()
	db.stats.BackendReads++
	db.mu.Unlock()
	switch status {
	case FetchOK:
		db.pos.Add(obj)
		return obj, nil
	case FetchNotFound:
		db.neg.Add(hash)
		return nil, nil
	case FetchCorrupt:
		db.mu.Lock()
		db.stats.Corrupt++
		db.mu.Unlock()
		db.log.Error("Corrupt node encountered", "hash", hash, "err", err)
		return nil, err
	default:
		return nil, err
	}
}

// AsyncFetch behaves like Fetch but de-duplicates concurrent lookups of
// the same hash: the first caller performs the backend read, later
// callers for the same hash block on its result instead of re-reading.
func (db *Database) AsyncFetch(hash common.Hash) (*nodeobject.NodeObject, error) {
	db.inflightM.Lock()
	if f, ok := db.inflight[hash]; ok {
		db.inflightM.Unlock()
		<-f.done
		return f.obj, f.err
	}
	f := &inflightFetch{done: make(chan struct{})}
	db.inflight[hash] = f
	db.inflightM.Unlock()

	f.obj, f.err = db.Fetch(hash)

	db.inflightM.Lock()
	delete(db.inflight, hash)
	db.inflightM.Unlock()
	close(f.done)
	return f.obj, f.err
}

// Store writes obj through to the backend and populates the positive
// cache, evicting any stale negative-cache entry for the same hash.
func (db *Database) Store(obj *nodeobject.NodeObject) error {
	if err := db.backend.Store(obj); err != nil {
		return err
	}
	db.pos.Add(obj)
	db.neg.Remove(obj.Hash)
	db.mu.Lock()
	db.stats.Stores++
	db.mu.Unlock()
	return nil
}

// StoreBatch writes every object through to the backend as one unit,
// then populates the caches. This is the path the sharded store's
// copyLedger takes (via StoreLedger): decompose a ledger into its
// NodeObjects once, store once.
func (db *Database) StoreBatch(objs []*nodeobject.NodeObject) error {
	if len(objs) == 0 {
		return nil
	}
	if err := db.backend.StoreBatch(objs); err != nil {
		return err
	}
	for _, obj := range objs {
		db.pos.Add(obj)
		db.neg.Remove(obj.Hash)
	}
	db.mu.Lock()
	db.stats.Stores += int64(len(objs))
	db.mu.Unlock()
	return nil
}

// StoreLedger decomposes a full ledger — its header object plus every
// state/tx trie node a copy walk collected for it — into a single
// StoreBatch call, matching the original's Database::storeLedger: one
// decomposition, one write.
func (db *Database) StoreLedger(header *nodeobject.NodeObject, nodes []*nodeobject.NodeObject) error {
	batch := make([]*nodeobject.NodeObject, 0, len(nodes)+1)
	batch = append(batch, header)
	batch = append(batch, nodes...)
	return db.StoreBatch(batch)
}

// Tune resizes both caches, per spec.md §4.3 "Cache tuning".
func (db *Database) Tune(size int, age time.Duration) {
	db.pos.Tune(size, age)
	db.neg.Tune(size/64+1024, age)
}

// Sweep evicts stale entries from both caches.
func (db *Database) Sweep() {
	db.pos.Sweep()
	db.neg.Sweep()
}

// Stats returns a snapshot of the fetch/store counters.
func (db *Database) Stats() Stats {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.stats
}

// Close closes the underlying backend.
func (db *Database) Close() error { return db.backend.Close() }
