package shardstore

import (
	"crypto/rand"
	"encoding/binary"
	mathrand "math/rand"
	"syscall"

	"github.com/miguelportilla/rippled/shard"
)

// newProcessSeededRand returns a *rand.Rand seeded once from a
// process-wide entropy source, per spec.md §9 "Random admission must
// use a uniform RNG seeded from a process-wide source; do not use a
// per-call seed."
func newProcessSeededRand() *mathrand.Rand {
	var seed [8]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return mathrand.New(mathrand.NewSource(1))
	}
	return mathrand.New(mathrand.NewSource(int64(binary.LittleEndian.Uint64(seed[:]))))
}

// findShardIndexToAdd picks the next shard index to begin acquiring,
// per spec.md §4.3 "findShardIndexToAdd(validSeq)". Must be called with
// ds.mu held.
func (ds *DatabaseShard) findShardIndexToAdd(validSeq uint32) (uint32, bool) {
	maxIdx := shard.Index(validSeq, ds.cfg.LedgersPerShard)
	if !isShardBoundary(validSeq, ds.cfg.LedgersPerShard) && maxIdx > 0 {
		maxIdx--
	}
	genesisIdx := ds.cfg.GenesisShardIndex()
	if maxIdx < genesisIdx {
		return 0, false
	}

	n := len(ds.complete)
	if ds.incomplete != nil {
		n++
	}
	if uint32(n) >= maxIdx+1 {
		return 0, false
	}

	owned := func(idx uint32) bool {
		if _, ok := ds.complete[idx]; ok {
			return true
		}
		return ds.incomplete != nil && ds.incomplete.Index == idx
	}

	span := maxIdx - genesisIdx + 1
	dense := maxIdx < 1024 || float64(n)/float64(maxIdx) > 0.5
	if dense {
		unowned := make([]uint32, 0, span)
		for idx := genesisIdx; idx <= maxIdx; idx++ {
			if !owned(idx) {
				unowned = append(unowned, idx)
			}
		}
		if len(unowned) == 0 {
			return 0, false
		}
		return unowned[ds.rng.Intn(len(unowned))], true
	}

	const maxSamples = 40
	for i := 0; i < maxSamples; i++ {
		idx := genesisIdx + uint32(ds.rng.Int63n(int64(span)))
		if !owned(idx) {
			return idx, true
		}
	}
	return 0, false
}

func isShardBoundary(seq, ledgersPerShard uint32) bool {
	return seq%ledgersPerShard == 0
}

// statfsFree reports free bytes on the filesystem containing path, used
// by Prepare's disk-budget check (spec.md §4.3 step 3). Backed by the
// platform statfs syscall: no example repo in this pack pulls in a
// disk-usage library, and the ecosystem's common choices
// (shirou/gopsutil) exist for far broader host-metrics surfaces than
// this single free-bytes check needs.
func statfsFree(path string) (uint64, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}
