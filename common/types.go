// Package common holds small value types shared by every layer of the
// node object store: the fixed-width content hash and a human-readable
// byte-count formatter.
package common

import (
	"encoding/hex"
	"fmt"
)

// HashLength is the width in bytes of a content digest.
const HashLength = 32

// Hash is the content digest of a stored blob, or of a ledger header.
type Hash [HashLength]byte

// BytesToHash sets the last HashLength bytes of b into a Hash, left-padding
// or truncating from the front as needed.
func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
	return h
}

// HexToHash sets the hash to the value of the hex-encoded (with or without
// a leading 0x) string s.
func HexToHash(s string) Hash {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	b, _ := hex.DecodeString(s)
	return BytesToHash(b)
}

// Bytes returns the byte slice representation of h.
func (h Hash) Bytes() []byte { return h[:] }

// IsZero reports whether h is the all-zero hash, which this store treats
// as "no value" (an unset accountHash/hash/parentHash).
func (h Hash) IsZero() bool { return h == Hash{} }

// String implements fmt.Stringer, returning the 0x-prefixed hex form.
func (h Hash) String() string { return "0x" + hex.EncodeToString(h[:]) }

// StorageSize is a number of bytes rendered in human-friendly units.
type StorageSize float64

// String implements fmt.Stringer.
func (s StorageSize) String() string {
	switch {
	case s >= 1099511627776:
		return fmt.Sprintf("%.2f TiB", s/1099511627776)
	case s >= 1073741824:
		return fmt.Sprintf("%.2f GiB", s/1073741824)
	case s >= 1048576:
		return fmt.Sprintf("%.2f MiB", s/1048576)
	case s >= 1024:
		return fmt.Sprintf("%.2f KiB", s/1024)
	default:
		return fmt.Sprintf("%.2f B", s)
	}
}
