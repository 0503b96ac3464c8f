// Package merkletrie captures the external trie collaborator contract
// spec.md §1 assumes but leaves out of scope: "a trie offering
// node-visitor and structural-difference traversal". Everything here is
// an interface a real authenticated Merkle trie implementation must
// satisfy plus a small reference implementation used only by this
// module's own tests.
package merkletrie

import (
	"github.com/miguelportilla/rippled/common"
	"github.com/miguelportilla/rippled/nodeobject"
)

// Node is one visited trie node: its content hash, its NodeObject type
// classification, and its serialized bytes.
type Node struct {
	Hash common.Hash
	Type nodeobject.Type
	Data []byte
}

// AsNodeObject converts a visited Node into the NodeObject this store
// persists.
func (n Node) AsNodeObject() *nodeobject.NodeObject {
	return nodeobject.Wrap(n.Type, n.Hash, n.Data)
}

// Visitor is called once per visited node. Returning an error aborts the
// walk and propagates the error to the walk's caller.
type Visitor func(Node) error

// Trie is the node-visitor contract: something that can enumerate every
// node reachable from its root.
type Trie interface {
	// RootHash returns the content hash of the trie's root node.
	RootHash() common.Hash

	// Walk visits every node reachable from the root, in an
	// implementation-defined order. It stops and returns the first
	// error a Visitor returns.
	Walk(visit Visitor) error
}

// DiffTrie additionally offers a structural-difference walk: visiting
// only the nodes reachable from this trie's root that are NOT reachable
// from other's root, skipping any subtree whose hash is shared between
// the two (the standard trick that makes incremental Merkle-trie copies
// cheap — go-ethereum's trie.NewDifferenceIterator does the equivalent
// walk between two state tries).
type DiffTrie interface {
	Trie

	// WalkDifference visits every node in this trie not present (by
	// hash) anywhere in other, pruning shared subtrees.
	WalkDifference(other Trie, visit Visitor) error
}
