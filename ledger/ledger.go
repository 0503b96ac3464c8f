// Package ledger defines the versioned ledger snapshot type that the
// shard and rotating façades key their node storage around, and the
// header wire codec of spec.md §6. The trie contents referenced by
// AccountHash/TxHash are the external merkletrie.Trie collaborator;
// this package only knows about the header's own fields.
package ledger

import (
	"encoding/binary"
	"fmt"

	"github.com/miguelportilla/rippled/common"
	"github.com/miguelportilla/rippled/nodeobject"
)

// HashPrefixLedgerMaster is the 32-bit magic prefixed to a serialized
// ledger header before it is hashed and stored, per spec.md §6.
const HashPrefixLedgerMaster uint32 = 0x4C575200 // "LWR\0"

// Ledger is a versioned snapshot of global state at Seq, identified by
// Hash; ParentHash chains it to its predecessor, AccountHash and TxHash
// are the roots of its state and transaction tries.
type Ledger struct {
	Seq         uint32
	Hash        common.Hash
	ParentHash  common.Hash
	AccountHash common.Hash
	TxHash      common.Hash
	CloseTime   uint64
}

// EncodeHeader serializes the ledger's header fields into a flat byte
// layout: seq, closeTime, then the three 32-byte hashes a ledger commits
// to (parent, account root, tx root) in field order. Hash itself is
// deliberately excluded: it is derived from this same encoding by
// ToNodeObject, not carried inside it, the same way a real ledger's hash
// is computed from its other fields rather than being one of them. This
// is the "pure byte round-trip" codec spec.md §1 assumes as an external
// collaborator; a real implementation would match the ledger format
// already on disk, but the round-trip contract is what this store
// depends on.
func (l *Ledger) EncodeHeader() []byte {
	buf := make([]byte, 4+8+3*common.HashLength)
	binary.BigEndian.PutUint32(buf[0:4], l.Seq)
	binary.BigEndian.PutUint64(buf[4:12], l.CloseTime)
	off := 12
	for _, h := range []common.Hash{l.ParentHash, l.AccountHash, l.TxHash} {
		copy(buf[off:off+common.HashLength], h.Bytes())
		off += common.HashLength
	}
	return buf
}

// decodeHeader parses the output of EncodeHeader, leaving Hash unset:
// callers derive it from the NodeObject the header was read from.
func decodeHeader(data []byte) (*Ledger, error) {
	want := 4 + 8 + 3*common.HashLength
	if len(data) != want {
		return nil, fmt.Errorf("ledger: bad header length %d, want %d", len(data), want)
	}
	l := &Ledger{
		Seq:       binary.BigEndian.Uint32(data[0:4]),
		CloseTime: binary.BigEndian.Uint64(data[4:12]),
	}
	off := 12
	l.ParentHash = common.BytesToHash(data[off : off+common.HashLength])
	off += common.HashLength
	l.AccountHash = common.BytesToHash(data[off : off+common.HashLength])
	off += common.HashLength
	l.TxHash = common.BytesToHash(data[off : off+common.HashLength])
	return l, nil
}

// DecodeHeader parses the output of EncodeHeader. The returned Ledger's
// Hash is left zero; use FromNodeObject to recover a Ledger with its
// Hash populated from the object it was stored under.
func DecodeHeader(data []byte) (*Ledger, error) {
	return decodeHeader(data)
}

// ToNodeObject builds the LEDGER-typed NodeObject stored for this
// header: the stored blob prefixes HashPrefixLedgerMaster ahead of the
// serialized header, and per spec.md §6 ("the key is the 256-bit content
// digest of the blob") the object's hash is the digest of that prefixed
// blob. l.Hash is ignored on input — like a real ledger hash, it is a
// function of the other fields, not an independent one, so ToNodeObject
// always recomputes it; construct a Ledger with a placeholder Hash and
// read the real value back off the returned object.
func (l *Ledger) ToNodeObject() *nodeobject.NodeObject {
	header := l.EncodeHeader()
	prefixed := make([]byte, 4+len(header))
	binary.BigEndian.PutUint32(prefixed[:4], HashPrefixLedgerMaster)
	copy(prefixed[4:], header)
	return nodeobject.New(nodeobject.Ledger, prefixed)
}

// FromNodeObject reverses ToNodeObject, stripping the magic prefix and
// setting the decoded Ledger's Hash to obj.Hash: a ledger's hash is the
// key it was stored under, not a field inside its own header.
func FromNodeObject(obj *nodeobject.NodeObject) (*Ledger, error) {
	if len(obj.Data) < 4 {
		return nil, fmt.Errorf("ledger: node object too short for header")
	}
	prefix := binary.BigEndian.Uint32(obj.Data[:4])
	if prefix != HashPrefixLedgerMaster {
		return nil, fmt.Errorf("ledger: bad header prefix %#x", prefix)
	}
	l, err := decodeHeader(obj.Data[4:])
	if err != nil {
		return nil, err
	}
	l.Hash = obj.Hash
	return l, nil
}
