package shardstore

import (
	"fmt"

	"github.com/miguelportilla/rippled/common"
	"github.com/miguelportilla/rippled/ledger"
	"github.com/miguelportilla/rippled/merkletrie"
	"github.com/miguelportilla/rippled/nodedb"
	"github.com/miguelportilla/rippled/nodeobject"
	"github.com/miguelportilla/rippled/shard"
	"golang.org/x/sync/errgroup"
)

// Source is the cross-database read side of a copy: another store this
// shard acquires ledger nodes from.
type Source interface {
	Fetch(hash common.Hash) (*nodeobject.NodeObject, error)
}

// TrieLoader mirrors shard.TrieLoader: it builds a merkletrie.DiffTrie
// rooted at root, reading nodes through fetch.
type TrieLoader func(root common.Hash, fetch func(common.Hash) (*nodeobject.NodeObject, error)) (merkletrie.DiffTrie, error)

var defaultTrieLoader TrieLoader

// SetTrieLoader installs the TrieLoader used by CopyLedger. A real
// deployment wires its Merkle trie implementation here at startup; it
// is a package variable rather than a DatabaseShard field because trie
// construction has no per-store state, matching spec.md §1's framing
// of the trie as a stateless external collaborator.
func SetTrieLoader(l TrieLoader) { defaultTrieLoader = l }

// copyLedger implements spec.md §4.3 "copyLedger(src)": reject checks,
// header store, state-trie diff-or-full walk, tx-trie full walk, and
// setStored on completion. Rejects a src that is dst's own database,
// mirroring DatabaseShardImp::copyLedger's "&srcDB == this" guard —
// copying a shard from itself can't make progress and only churns the
// trie walk against its own store.
func copyLedger(dst *shard.Shard, src Source, l *ledger.Ledger) (completed bool, err error) {
	if l.AccountHash.IsZero() || l.Hash.IsZero() {
		return false, fmt.Errorf("shardstore: refuse copy of ledger with zero root")
	}
	if l.Seq < dst.FirstSeq || l.Seq > dst.LastSeq {
		return false, fmt.Errorf("shardstore: ledger seq %d outside shard range [%d,%d]", l.Seq, dst.FirstSeq, dst.LastSeq)
	}
	if srcDB, ok := src.(*nodedb.Database); ok && srcDB == dst.Database() {
		return false, fmt.Errorf("shardstore: source and destination databases are the same")
	}
	if defaultTrieLoader == nil {
		return false, fmt.Errorf("shardstore: no trie loader installed")
	}

	header := l.ToNodeObject()

	// Descending acquisition (shard.Shard.Prepare) means whatever this
	// shard copied last has a higher sequence than l — its direct child
	// if the chain is unbroken — the "previously stored successor" the
	// state trie diffs against per spec.md §4.3 step 3.
	next := dst.LastCopied()

	var stateNodes, txNodes []*nodeobject.NodeObject
	var g errgroup.Group
	g.Go(func() (err error) { stateNodes, err = copyStateTrie(src, l, next); return })
	g.Go(func() (err error) { txNodes, err = copyTxTrie(src, l); return })
	if err := g.Wait(); err != nil {
		return false, err
	}

	nodes := make([]*nodeobject.NodeObject, 0, len(stateNodes)+len(txNodes))
	nodes = append(nodes, stateNodes...)
	nodes = append(nodes, txNodes...)
	if err := dst.Database().StoreLedger(header, nodes); err != nil {
		return false, fmt.Errorf("shardstore: store ledger: %w", err)
	}
	dst.SetLastCopied(l)

	if _, err := dst.SetStored(l.Seq); err != nil {
		return false, err
	}
	return dst.Complete(), nil
}

// copyStateTrie walks the state trie rooted at l.AccountHash, diffing
// against a successor snapshot when one chains directly to l, per
// spec.md §4.3 step 3, and collects the visited nodes for a single
// batched write rather than storing each one as it's found. next is the
// shard's last-copied ledger (nil on a shard's first copy, or after a
// restart); the diff optimization degrades to a full walk whenever next
// is absent or doesn't chain directly onto l, which is always correct,
// only less cheap.
func copyStateTrie(src Source, l *ledger.Ledger, next *ledger.Ledger) ([]*nodeobject.NodeObject, error) {
	if l.AccountHash.IsZero() {
		return nil, nil
	}
	trie, err := defaultTrieLoader(l.AccountHash, src.Fetch)
	if err != nil {
		return nil, fmt.Errorf("shardstore: load state trie: %w", err)
	}
	var nodes []*nodeobject.NodeObject
	visit := func(n merkletrie.Node) error {
		obj, err := src.Fetch(n.Hash)
		if err != nil {
			return err
		}
		if obj == nil {
			return fmt.Errorf("shardstore: missing state node %s during copy", n.Hash)
		}
		nodes = append(nodes, obj)
		return nil
	}
	if next != nil && !next.AccountHash.IsZero() && next.ParentHash == l.Hash {
		nextTrie, err := defaultTrieLoader(next.AccountHash, src.Fetch)
		if err != nil {
			return nil, fmt.Errorf("shardstore: load successor state trie: %w", err)
		}
		if err := trie.WalkDifference(nextTrie, visit); err != nil {
			return nil, err
		}
		return nodes, nil
	}
	if err := trie.Walk(visit); err != nil {
		return nil, err
	}
	return nodes, nil
}

// copyTxTrie always performs a full walk, never a diff, per spec.md §9's
// resolved Open Question preserving the source's conservative behavior.
// A zero TxHash is a ledger with no transactions, not a missing node —
// original_source's DatabaseShardImp::storeLedger only walks the tx map
// when "txHash.isNonZero()"; walked as zero nodes here too.
func copyTxTrie(src Source, l *ledger.Ledger) ([]*nodeobject.NodeObject, error) {
	if l.TxHash.IsZero() {
		return nil, nil
	}
	trie, err := defaultTrieLoader(l.TxHash, src.Fetch)
	if err != nil {
		return nil, fmt.Errorf("shardstore: load tx trie: %w", err)
	}
	var nodes []*nodeobject.NodeObject
	err = trie.Walk(func(n merkletrie.Node) error {
		obj, err := src.Fetch(n.Hash)
		if err != nil {
			return err
		}
		if obj == nil {
			return fmt.Errorf("shardstore: missing tx node %s during copy", n.Hash)
		}
		nodes = append(nodes, obj)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return nodes, nil
}
