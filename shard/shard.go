// Package shard implements the lifecycle, control-file durability, and
// self-validation of a single contiguous ledger range, spec.md §4.2.
package shard

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/miguelportilla/rippled/common"
	"github.com/miguelportilla/rippled/intervalset"
	"github.com/miguelportilla/rippled/ledger"
	"github.com/miguelportilla/rippled/log"
	"github.com/miguelportilla/rippled/nodedb"
	"github.com/miguelportilla/rippled/nodeobject"
)

// State is a Shard's position in the New → Acquiring → Complete
// lifecycle of spec.md §4.2.
type State int

const (
	StateNew State = iota
	StateAcquiring
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateAcquiring:
		return "acquiring"
	case StateComplete:
		return "complete"
	default:
		return "unknown"
	}
}

const controlFileName = "control.txt"

// Sentinel errors for the taxonomy of spec.md §7.
var (
	ErrInvalidControl = errors.New("shard: control file references sequences outside the shard range")
	ErrOutOfRange     = errors.New("shard: sequence outside shard range")
	ErrDuplicate      = errors.New("shard: sequence already stored")
	ErrComplete       = errors.New("shard: shard is already complete")
)

// Index computes the shard index owning ledger sequence seq, per
// spec.md §3 "Shard index arithmetic".
func Index(seq, ledgersPerShard uint32) uint32 {
	return (seq - 1) / ledgersPerShard
}

// FirstSeq returns the first sequence owned by shard idx, clamped up to
// genesisSeq for the genesis shard.
func FirstSeq(idx, ledgersPerShard, genesisSeq uint32) uint32 {
	first := idx*ledgersPerShard + 1
	if idx == Index(genesisSeq, ledgersPerShard) && first < genesisSeq {
		return genesisSeq
	}
	return first
}

// LastSeq returns the last sequence owned by shard idx.
func LastSeq(idx, ledgersPerShard uint32) uint32 {
	return (idx + 1) * ledgersPerShard
}

// Shard owns one contiguous ledger range backed by one nodedb.Backend, a
// durable control file recording partial-acquisition state, and its own
// cache pair.
type Shard struct {
	mu sync.RWMutex

	Index           uint32
	FirstSeq        uint32
	LastSeq         uint32
	ledgersPerShard uint32
	genesisSeq      uint32

	dir         string
	controlPath string
	fileBacked  bool

	storedSeqs *intervalset.Set
	complete   bool
	lastStored uint32
	lastCopied *ledger.Ledger

	db       *nodedb.Database
	cacheAge time.Duration
	log      log.Logger
}

// Open opens the shard directory at dir for shard index idx, creating
// (or reopening) its backend via mgr, and reconstructing its lifecycle
// state per spec.md §4.2 "Transitions: open(dir, config)".
func Open(dir string, idx, ledgersPerShard, genesisSeq uint32, mgr *nodedb.Manager, backendType string, cfg nodedb.BackendConfig) (*Shard, error) {
	first := FirstSeq(idx, ledgersPerShard, genesisSeq)
	last := LastSeq(idx, ledgersPerShard)
	rangeWidth := last - first + 1

	entries, statErr := os.ReadDir(dir)
	dirWasEmpty := statErr != nil || len(entries) == 0
	if statErr != nil {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("shard: create directory %s: %w", dir, err)
		}
	}

	controlPath := filepath.Join(dir, controlFileName)
	var hadControlBeforeOpen bool
	if _, err := os.Stat(controlPath); err == nil {
		hadControlBeforeOpen = true
	}

	backend, err := mgr.Open(backendType, dir, cfg)
	if err != nil {
		return nil, fmt.Errorf("shard: open backend for shard %d: %w", idx, err)
	}

	s := &Shard{
		Index:           idx,
		FirstSeq:        first,
		LastSeq:         last,
		ledgersPerShard: ledgersPerShard,
		genesisSeq:      genesisSeq,
		dir:             dir,
		controlPath:     controlPath,
		fileBacked:      backend.Fdlimit() > 0,
		db:              nodedb.NewDatabase(backend, nodedb.MinShardCacheSize, 0),
		log:             log.New("component", "shard", "index", idx),
		storedSeqs:      &intervalset.Set{},
	}

	switch {
	case dirWasEmpty:
		// New: nothing stored yet.
		if s.fileBacked {
			if err := intervalset.WriteFile(s.controlPath, s.storedSeqs); err != nil {
				backend.Close()
				return nil, fmt.Errorf("shard: write initial control file: %w", err)
			}
		}
		return s, nil

	case hadControlBeforeOpen:
		set, err := intervalset.ReadFile(controlPath)
		if err != nil {
			backend.Close()
			return nil, fmt.Errorf("shard: read control file: %w", err)
		}
		if lo, ok := set.First(); ok && lo < first {
			backend.Close()
			return nil, fmt.Errorf("%w: stored seq %d below firstSeq %d", ErrInvalidControl, lo, first)
		}
		if hi, ok := set.Last(); ok && hi > last {
			backend.Close()
			return nil, fmt.Errorf("%w: stored seq %d above lastSeq %d", ErrInvalidControl, hi, last)
		}
		if uint32(set.Len()) == rangeWidth {
			// Fully acquired but the completing writer crashed before
			// deleting the control file: finish the transition now.
			if err := os.Remove(controlPath); err != nil && !os.IsNotExist(err) {
				backend.Close()
				return nil, fmt.Errorf("shard: remove stale control file: %w", err)
			}
			s.complete = true
			s.storedSeqs = &intervalset.Set{}
			return s, nil
		}
		s.storedSeqs = set
		if hi, ok := set.Last(); ok {
			s.lastStored = hi
		}
		return s, nil

	default:
		// Non-empty directory, no control file: previously completed.
		s.complete = true
		s.storedSeqs = &intervalset.Set{}
		return s, nil
	}
}

// State reports the shard's current lifecycle state.
func (s *Shard) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.complete {
		return StateComplete
	}
	if s.storedSeqs.Empty() {
		return StateNew
	}
	return StateAcquiring
}

// Complete reports whether the shard holds every ledger in its range.
func (s *Shard) Complete() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.complete
}

// RangeWidth returns lastSeq-firstSeq+1.
func (s *Shard) RangeWidth() uint32 { return s.LastSeq - s.FirstSeq + 1 }

// Prepare returns the next ledger sequence the acquirer should request,
// per spec.md §4.2: descending acquisition, starting from lastSeq.
func (s *Shard) Prepare() (uint32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.complete {
		return 0, false
	}
	if s.storedSeqs.Empty() {
		return s.LastSeq, true
	}
	return s.storedSeqs.GreatestMissing(s.FirstSeq, s.LastSeq)
}

// SetStored records seq as stored, transitioning to Complete and
// removing the control file when the range becomes fully populated.
// Per spec.md §9's resolved Open Question, the sequence is inserted into
// storedSeqs first, and only then is completion checked and persisted,
// so a crash between insert and persist can only ever be recovered as
// "not yet stored" — never as more permissive than actually persisted.
func (s *Shard) SetStored(seq uint32) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.complete {
		return false, ErrComplete
	}
	if seq < s.FirstSeq || seq > s.LastSeq {
		return false, fmt.Errorf("%w: %d not in [%d,%d]", ErrOutOfRange, seq, s.FirstSeq, s.LastSeq)
	}
	if s.storedSeqs.Contains(seq) {
		return false, fmt.Errorf("%w: %d", ErrDuplicate, seq)
	}

	s.storedSeqs.Insert(seq)
	s.lastStored = seq

	if uint32(s.storedSeqs.Len()) == s.RangeWidth() {
		if s.fileBacked {
			if err := os.Remove(s.controlPath); err != nil && !os.IsNotExist(err) {
				// Roll the insert back: we must not report success while
				// the durable state still shows the shard incomplete.
				s.storedSeqs.Remove(seq)
				return false, fmt.Errorf("shard: remove control file on completion: %w", err)
			}
		}
		s.complete = true
		s.storedSeqs = &intervalset.Set{}
		return true, nil
	}

	if s.fileBacked {
		if err := intervalset.WriteFile(s.controlPath, s.storedSeqs); err != nil {
			s.storedSeqs.Remove(seq)
			return false, fmt.Errorf("shard: persist control file: %w", err)
		}
	}
	return true, nil
}

// HasLedger reports whether seq is available in this shard.
func (s *Shard) HasLedger(seq uint32) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if seq < s.FirstSeq || seq > s.LastSeq {
		return false
	}
	return s.complete || s.storedSeqs.Contains(seq)
}

// Database returns the shard's own fetch/store path.
func (s *Shard) Database() *nodedb.Database { return s.db }

// LastCopied returns the ledger most recently copied into this shard,
// or nil if none has been copied yet since it was opened. Acquisition
// proceeds in descending sequence order (Prepare), so the last-copied
// ledger is always the direct child of whichever ledger is copied next
// — exactly the "previously stored successor" spec.md §4.3 step 3 diffs
// the state trie against. Mirrors original_source's
// DatabaseShardImp::copyLedger reading incomplete_->lastStored(), except
// this holds the ledger itself rather than just its sequence, since the
// diff needs the successor's account root.
func (s *Shard) LastCopied() *ledger.Ledger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastCopied
}

// SetLastCopied records l as the most recently copied ledger.
func (s *Shard) SetLastCopied(l *ledger.Ledger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCopied = l
}

// Dir returns the shard's directory.
func (s *Shard) Dir() string { return s.dir }

// StoredCount returns |storedSeqs|, for stats and admission math.
func (s *Shard) StoredCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.storedSeqs.Len()
}

// DiskSize walks the shard directory and sums file sizes, excluding the
// control file, reproducing the disk accounting SPEC_FULL §4 item 3
// notes the distillation dropped (rippled's DatabaseShardImp walks the
// shard directory tree the same way to compute avgShardSize).
func (s *Shard) DiskSize() (int64, error) {
	var total int64
	err := filepath.WalkDir(s.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if filepath.Base(path) == controlFileName {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("shard: compute disk size: %w", err)
	}
	return total, nil
}

// Tune resizes the shard's own cache pair, per spec.md §4.3 "Cache
// tuning": DatabaseShard divides its total cache budget across the
// shards it holds open and calls this on each.
func (s *Shard) Tune(size int, age time.Duration) {
	s.mu.Lock()
	s.cacheAge = age
	s.mu.Unlock()
	s.db.Tune(size, age)
}

// Sweep evicts stale cache entries, per spec.md §4.3.
func (s *Shard) Sweep() { s.db.Sweep() }

// Close closes the shard's backend.
func (s *Shard) Close() error { return s.db.Close() }

// Fetch reads an object by hash from this shard's own cache/backend.
func (s *Shard) Fetch(hash common.Hash) (*nodeobject.NodeObject, error) {
	return s.db.Fetch(hash)
}

// Store writes a single object through to this shard's backend.
func (s *Shard) Store(obj *nodeobject.NodeObject) error {
	return s.db.Store(obj)
}

// StoreBatch writes a batch of objects through to this shard's backend.
func (s *Shard) StoreBatch(objs []*nodeobject.NodeObject) error {
	return s.db.StoreBatch(objs)
}
