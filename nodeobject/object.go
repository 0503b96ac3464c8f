// Package nodeobject defines the immutable content-addressed value that
// every backend, cache, and shard in this store passes around: a typed
// blob keyed by the digest of its own bytes.
package nodeobject

import (
	"errors"
	"fmt"

	"github.com/miguelportilla/rippled/common"
	"golang.org/x/crypto/sha3"
)

// Type classifies what a NodeObject's bytes represent. The store itself
// never interprets the bytes; Type exists purely for logging, stats, and
// the ledger-header prefix rule in §6.
type Type byte

const (
	Unknown Type = iota
	Ledger
	Inner
	Leaf
	Account
	Tx
)

func (t Type) String() string {
	switch t {
	case Ledger:
		return "LEDGER"
	case Inner:
		return "INNER"
	case Leaf:
		return "LEAF"
	case Account:
		return "ACCOUNT"
	case Tx:
		return "TX"
	default:
		return "UNKNOWN"
	}
}

// ErrCorrupt is returned by Verify when the stored hash disagrees with
// the digest of the stored bytes. It is the CorruptNode error kind of
// spec.md §7.
var ErrCorrupt = errors.New("nodeobject: corrupt: hash does not match digest of data")

// NodeObject is an immutable (type, hash, bytes) triple. hash is always
// the content digest of data; New is the only constructor and computes
// it, so a NodeObject can never be built with a mismatched pair except
// via Wrap, which exists for reads returning both fields from a backend.
type NodeObject struct {
	Type Type
	Hash common.Hash
	Data []byte
}

// Digest returns the Keccak-256 content digest of data.
func Digest(data []byte) common.Hash {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	var out common.Hash
	h.Sum(out[:0])
	return out
}

// New builds a NodeObject, computing its hash from data.
func New(typ Type, data []byte) *NodeObject {
	return &NodeObject{Type: typ, Hash: Digest(data), Data: data}
}

// Wrap builds a NodeObject from data whose hash is already known, as
// when a backend returns a value for a key the caller already supplied.
// Call Verify to check the pairing before trusting it.
func Wrap(typ Type, hash common.Hash, data []byte) *NodeObject {
	return &NodeObject{Type: typ, Hash: hash, Data: data}
}

// Verify recomputes the digest of Data and compares it against Hash,
// returning ErrCorrupt on mismatch. Some callers skip this on the hot
// path; validation (§4.5) always calls it.
func (n *NodeObject) Verify() error {
	if got := Digest(n.Data); got != n.Hash {
		return fmt.Errorf("%w: want %s got %s", ErrCorrupt, n.Hash, got)
	}
	return nil
}

// Size reports the number of bytes this object occupies for cache and
// disk-budget accounting purposes: the payload plus a fixed per-entry
// overhead for the hash and type tag.
func (n *NodeObject) Size() int {
	return len(n.Data) + common.HashLength + 1
}
