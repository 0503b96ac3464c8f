// Package shardstore implements the sharded store façade of spec.md
// §4.3: inventory, admission, routing, and cross-database copy over a
// set of independently opened shard.Shard directories.
package shardstore

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/miguelportilla/rippled/common"
	"github.com/miguelportilla/rippled/ledger"
	"github.com/miguelportilla/rippled/log"
	"github.com/miguelportilla/rippled/nodedb"
	"github.com/miguelportilla/rippled/nodeobject"
	"github.com/miguelportilla/rippled/shard"
)

// Config carries the tunables spec.md §6 enumerates for the sharded
// store: backend type, root directory, and disk budget.
type Config struct {
	BackendType     string
	Path            string
	MaxSizeGB       uint64
	LedgersPerShard uint32
	GenesisSeq      uint32
	BackendConfig   nodedb.BackendConfig
}

// GenesisShardIndex is the smallest shard index a store will ever load
// or create, matching spec.md §4.3's scan rule ("every child whose name
// is a decimal integer ≥ genesisShardIndex").
func (c Config) GenesisShardIndex() uint32 {
	return shard.Index(c.GenesisSeq, c.LedgersPerShard)
}

// ErrMultipleIncomplete is returned by Open when more than one shard
// directory is found in the Acquiring state, the fatal MultipleIncomplete
// condition of spec.md §7.
var ErrMultipleIncomplete = fmt.Errorf("shardstore: more than one incomplete shard on disk")

// DatabaseShard is the sharded store façade: an inventory of complete
// shards plus at most one shard under active acquisition, admission
// bookkeeping, and cross-database copy.
type DatabaseShard struct {
	mu sync.Mutex

	cfg Config
	mgr *nodedb.Manager
	log log.Logger

	complete   map[uint32]*shard.Shard
	incomplete *shard.Shard

	fileBacked bool
	fdlimit    int

	usedDiskSpace uint64
	avgShardSize  uint64
	canAdd        bool

	cacheSize int
	cacheAge  time.Duration

	rng *rand.Rand
}

// Open probes the configured backend type, scans cfg.Path for existing
// shard directories, and loads each one, per spec.md §4.3
// "Initialization".
func Open(cfg Config, mgr *nodedb.Manager) (*DatabaseShard, error) {
	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		return nil, fmt.Errorf("shardstore: create root %s: %w", cfg.Path, err)
	}

	probeDir, err := os.MkdirTemp(cfg.Path, "TMP")
	if err != nil {
		return nil, fmt.Errorf("shardstore: create probe directory: %w", err)
	}
	probe, err := mgr.Open(cfg.BackendType, probeDir, cfg.BackendConfig)
	if err != nil {
		os.RemoveAll(probeDir)
		return nil, fmt.Errorf("shardstore: probe backend %s: %w", cfg.BackendType, err)
	}
	fdlimit := probe.Fdlimit()
	fileBacked := fdlimit > 0
	if err := probe.Close(); err != nil {
		return nil, fmt.Errorf("shardstore: close probe backend: %w", err)
	}
	os.RemoveAll(probeDir)

	ds := &DatabaseShard{
		cfg:        cfg,
		mgr:        mgr,
		log:        log.New("component", "shardstore"),
		complete:   make(map[uint32]*shard.Shard),
		fileBacked: fileBacked,
		fdlimit:    fdlimit,
		canAdd:     true,
		cacheSize:  nodedb.MinShardCacheSize,
		rng:        newProcessSeededRand(),
	}

	entries, err := os.ReadDir(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("shardstore: scan root %s: %w", cfg.Path, err)
	}
	genesisIdx := cfg.GenesisShardIndex()
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		idx, err := strconv.ParseUint(e.Name(), 10, 32)
		if err != nil || uint32(idx) < genesisIdx {
			continue
		}
		sh, err := shard.Open(filepath.Join(cfg.Path, e.Name()), uint32(idx), cfg.LedgersPerShard, cfg.GenesisSeq, mgr, cfg.BackendType, cfg.BackendConfig)
		if err != nil {
			return nil, fmt.Errorf("shardstore: open shard %d: %w", idx, err)
		}
		if sh.Complete() {
			ds.complete[uint32(idx)] = sh
			continue
		}
		if ds.incomplete != nil {
			return nil, fmt.Errorf("%w: shards %d and %d", ErrMultipleIncomplete, ds.incomplete.Index, idx)
		}
		ds.incomplete = sh
	}

	ds.updateStatsLocked()
	return ds, nil
}

// Prepare returns the next ledger sequence to acquire, per spec.md
// §4.3 "prepare(validLedgerSeq)".
func (ds *DatabaseShard) Prepare(validLedgerSeq uint32) (uint32, bool) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if ds.incomplete != nil {
		return ds.incomplete.Prepare()
	}
	if !ds.canAdd {
		return 0, false
	}
	if ds.avgShardSize > 0 {
		maxBytes := ds.cfg.MaxSizeGB * (1 << 30)
		if ds.usedDiskSpace+ds.avgShardSize > maxBytes {
			ds.canAdd = false
			return 0, false
		}
		if free, err := freeDiskSpace(ds.cfg.Path); err == nil && free < ds.avgShardSize {
			ds.canAdd = false
			return 0, false
		}
	}

	idx, ok := ds.findShardIndexToAdd(validLedgerSeq)
	if !ok {
		return 0, false
	}

	dir := filepath.Join(ds.cfg.Path, strconv.FormatUint(uint64(idx), 10))
	sh, err := shard.Open(dir, idx, ds.cfg.LedgersPerShard, ds.cfg.GenesisSeq, ds.mgr, ds.cfg.BackendType, ds.cfg.BackendConfig)
	if err != nil {
		ds.log.Warn("Failed to open new shard, removing directory", "index", idx, "err", err)
		os.RemoveAll(dir)
		return 0, false
	}
	ds.incomplete = sh
	return sh.Prepare()
}

// Fetch consults the complete shard owning seq, then the incomplete
// shard if its index matches; a miss returns (nil, nil), per spec.md
// §4.3 "Routing".
func (ds *DatabaseShard) Fetch(hash common.Hash, seq uint32) (*nodeobject.NodeObject, error) {
	sh := ds.ownerLocked(seq)
	if sh == nil {
		return nil, nil
	}
	return sh.Fetch(hash)
}

// AsyncFetch behaves like Fetch; the shard's own Database.AsyncFetch
// provides the in-flight de-duplication.
func (ds *DatabaseShard) AsyncFetch(hash common.Hash, seq uint32) (*nodeobject.NodeObject, error) {
	sh := ds.ownerLocked(seq)
	if sh == nil {
		return nil, nil
	}
	return sh.Database().AsyncFetch(hash)
}

// FetchFrom is an alias for Fetch: the sharded store has no promotion
// concept of its own (that belongs to DatabaseRotating).
func (ds *DatabaseShard) FetchFrom(hash common.Hash, seq uint32) (*nodeobject.NodeObject, error) {
	return ds.Fetch(hash, seq)
}

func (ds *DatabaseShard) ownerLocked(seq uint32) *shard.Shard {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	idx := shard.Index(seq, ds.cfg.LedgersPerShard)
	if sh, ok := ds.complete[idx]; ok {
		return sh
	}
	if ds.incomplete != nil && ds.incomplete.Index == idx {
		return ds.incomplete
	}
	return nil
}

// Store writes obj into the incomplete shard if seq falls within its
// range; otherwise the store is silently dropped with a warning, per
// spec.md §4.3 "Routing" and §7 "Misroute".
func (ds *DatabaseShard) Store(obj *nodeobject.NodeObject, seq uint32) error {
	ds.mu.Lock()
	sh := ds.incomplete
	ds.mu.Unlock()

	if sh == nil || shard.Index(seq, ds.cfg.LedgersPerShard) != sh.Index {
		ds.log.Warn("Dropping misrouted store", "seq", seq)
		return nil
	}
	return sh.Store(obj)
}

// Tune divides size into one share per complete shard plus one share for
// the shard under acquisition, per spec.md §4.3 "Cache tuning":
// max(minShardCacheSize, size/(|complete|+1)), and applies it to every
// open shard.
func (ds *DatabaseShard) Tune(size int, age time.Duration) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.cacheSize, ds.cacheAge = size, age

	per := size / (len(ds.complete) + 1)
	if per < nodedb.MinShardCacheSize {
		per = nodedb.MinShardCacheSize
	}
	for _, sh := range ds.complete {
		sh.Tune(per, age)
	}
	if ds.incomplete != nil {
		ds.incomplete.Tune(per, age)
	}
}

// Sweep evicts stale cache entries from every open shard.
func (ds *DatabaseShard) Sweep() {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	for _, sh := range ds.complete {
		sh.Sweep()
	}
	if ds.incomplete != nil {
		ds.incomplete.Sweep()
	}
}

// UpdateStats recomputes avgShardSize and canAdd, per spec.md §4.3
// "Stats".
func (ds *DatabaseShard) UpdateStats() {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.updateStatsLocked()
}

func (ds *DatabaseShard) updateStatsLocked() {
	var total uint64
	for _, sh := range ds.complete {
		size, err := sh.DiskSize()
		if err != nil {
			ds.log.Warn("Failed to compute shard disk size", "index", sh.Index, "err", err)
			continue
		}
		total += uint64(size)
	}
	ds.usedDiskSpace = total
	if len(ds.complete) > 0 {
		ds.avgShardSize = total / uint64(len(ds.complete))
	}
	maxBytes := ds.cfg.MaxSizeGB * (1 << 30)
	if maxBytes > 0 && ds.usedDiskSpace >= maxBytes {
		ds.canAdd = false
	}
}

// Status returns a comma-separated ranges string of complete shard
// indices, e.g. "0-3,5,7-9", per spec.md §4.3 "Stats".
func (ds *DatabaseShard) Status() string {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if len(ds.complete) == 0 {
		return ""
	}
	indices := make([]uint32, 0, len(ds.complete))
	for idx := range ds.complete {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	var sb []string
	start := indices[0]
	prev := indices[0]
	flush := func(end uint32) {
		if start == end {
			sb = append(sb, strconv.FormatUint(uint64(start), 10))
		} else {
			sb = append(sb, fmt.Sprintf("%d-%d", start, end))
		}
	}
	for _, idx := range indices[1:] {
		if idx == prev+1 {
			prev = idx
			continue
		}
		flush(prev)
		start, prev = idx, idx
	}
	flush(prev)

	out := sb[0]
	for _, s := range sb[1:] {
		out += "," + s
	}
	return out
}

// Progress reports the fraction, in [0,1], of the incomplete shard's
// range that has been stored, or 1.0 if there is no shard being
// acquired.
func (ds *DatabaseShard) Progress() float64 {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if ds.incomplete == nil {
		return 1.0
	}
	return float64(ds.incomplete.StoredCount()) / float64(ds.incomplete.RangeWidth())
}

// CopyLedger performs a cross-database bulk copy into the incomplete
// shard, per spec.md §4.3 "copyLedger(src)".
func (ds *DatabaseShard) CopyLedger(src Source, l *ledger.Ledger) error {
	ds.mu.Lock()
	sh := ds.incomplete
	ds.mu.Unlock()
	if sh == nil {
		return fmt.Errorf("shardstore: no incomplete shard to copy into")
	}
	completed, err := copyLedger(sh, src, l)
	if err != nil {
		return err
	}
	if completed {
		ds.mu.Lock()
		ds.complete[sh.Index] = sh
		ds.incomplete = nil
		ds.updateStatsLocked()
		ds.mu.Unlock()
	}
	return nil
}

// Fdlimit reports the process-wide file descriptor budget this store
// needs, per spec.md §5: "fdLimit = 1 + filesPerShard · (|shards| +
// (maxDiskSpace − usedDiskSpace)/avgShardSize)".
func (ds *DatabaseShard) Fdlimit() int {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if !ds.fileBacked || ds.fdlimit == 0 {
		return 0
	}
	n := len(ds.complete)
	if ds.incomplete != nil {
		n++
	}
	if ds.avgShardSize > 0 {
		maxBytes := ds.cfg.MaxSizeGB * (1 << 30)
		if maxBytes > ds.usedDiskSpace {
			n += int((maxBytes - ds.usedDiskSpace) / ds.avgShardSize)
		}
	}
	return 1 + ds.fdlimit*n
}

// Close closes every open shard.
func (ds *DatabaseShard) Close() error {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	var firstErr error
	for _, sh := range ds.complete {
		if err := sh.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if ds.incomplete != nil {
		if err := ds.incomplete.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func freeDiskSpace(path string) (uint64, error) {
	return statfsFree(path)
}
