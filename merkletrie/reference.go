package merkletrie

import (
	"github.com/miguelportilla/rippled/common"
	"github.com/miguelportilla/rippled/nodeobject"
)

// ReferenceTrie is a minimal, fully in-memory trie sufficient to
// exercise Walk/WalkDifference in tests. Production code plugs in a
// real authenticated Merkle trie; this module never assumes anything
// beyond the Trie/DiffTrie contracts in visitor.go.
type ReferenceTrie struct {
	root     common.Hash
	children map[common.Hash][]common.Hash
	nodes    map[common.Hash]Node
}

// NewReferenceTrie builds an empty trie.
func NewReferenceTrie() *ReferenceTrie {
	return &ReferenceTrie{
		children: make(map[common.Hash][]common.Hash),
		nodes:    make(map[common.Hash]Node),
	}
}

// AddNode inserts a node with the given parent (zero hash for the
// root) into the trie and returns its hash.
func (t *ReferenceTrie) AddNode(parent common.Hash, typ nodeobject.Type, data []byte) common.Hash {
	h := nodeobject.Digest(data)
	t.nodes[h] = Node{Hash: h, Type: typ, Data: data}
	if parent.IsZero() && t.root.IsZero() {
		t.root = h
	} else {
		t.children[parent] = append(t.children[parent], h)
	}
	return h
}

func (t *ReferenceTrie) RootHash() common.Hash { return t.root }

func (t *ReferenceTrie) Walk(visit Visitor) error {
	if t.root.IsZero() {
		return nil
	}
	return t.walk(t.root, visit)
}

func (t *ReferenceTrie) walk(h common.Hash, visit Visitor) error {
	n, ok := t.nodes[h]
	if !ok {
		return nil
	}
	if err := visit(n); err != nil {
		return err
	}
	for _, c := range t.children[h] {
		if err := t.walk(c, visit); err != nil {
			return err
		}
	}
	return nil
}

// WalkDifference visits every node reachable from t's root whose hash is
// not reachable at all from other's root, pruning whole subtrees whose
// hash matches a node in other (the shared-structure short-circuit).
func (t *ReferenceTrie) WalkDifference(other Trie, visit Visitor) error {
	seen := make(map[common.Hash]bool)
	if o, ok := other.(*ReferenceTrie); ok {
		_ = o.walk(o.root, func(n Node) error {
			seen[n.Hash] = true
			return nil
		})
	}
	if t.root.IsZero() {
		return nil
	}
	return t.walkDiff(t.root, seen, visit)
}

func (t *ReferenceTrie) walkDiff(h common.Hash, seen map[common.Hash]bool, visit Visitor) error {
	if seen[h] {
		return nil // shared subtree: prune
	}
	n, ok := t.nodes[h]
	if !ok {
		return nil
	}
	if err := visit(n); err != nil {
		return err
	}
	for _, c := range t.children[h] {
		if err := t.walkDiff(c, seen, visit); err != nil {
			return err
		}
	}
	return nil
}
