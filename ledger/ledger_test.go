package ledger

import (
	"encoding/binary"
	"testing"

	"github.com/miguelportilla/rippled/common"
	"github.com/miguelportilla/rippled/nodeobject"
)

func sampleLedger() *Ledger {
	return &Ledger{
		Seq:         100,
		ParentHash:  common.HexToHash("0x02"),
		AccountHash: common.HexToHash("0x03"),
		TxHash:      common.HexToHash("0x04"),
		CloseTime:   1700000000,
	}
}

func TestEncodeDecodeHeaderRoundTrip(t *testing.T) {
	l := sampleLedger()
	buf := l.EncodeHeader()
	got, err := DecodeHeader(buf)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if !got.Hash.IsZero() {
		t.Errorf("DecodeHeader should leave Hash zero, got %s", got.Hash)
	}
	got.Hash = common.Hash{}
	if *got != *l {
		t.Errorf("DecodeHeader(EncodeHeader(l)) = %+v, want %+v", got, l)
	}
}

func TestDecodeHeaderBadLength(t *testing.T) {
	if _, err := DecodeHeader([]byte{1, 2, 3}); err == nil {
		t.Error("DecodeHeader should reject a truncated buffer")
	}
}

func TestToFromNodeObjectRoundTrip(t *testing.T) {
	l := sampleLedger()
	obj := l.ToNodeObject()
	if obj.Type != nodeobject.Ledger {
		t.Errorf("ToNodeObject Type = %v, want Ledger", obj.Type)
	}
	if err := obj.Verify(); err != nil {
		t.Errorf("Verify() on a ledger node object should succeed, got %v", err)
	}
	got, err := FromNodeObject(obj)
	if err != nil {
		t.Fatalf("FromNodeObject: %v", err)
	}
	if got.Hash != obj.Hash {
		t.Errorf("FromNodeObject should set Hash to the object's own key")
	}
	l.Hash = got.Hash
	if *got != *l {
		t.Errorf("FromNodeObject(ToNodeObject(l)) = %+v, want %+v", got, l)
	}
}

func TestToNodeObjectIgnoresInputHash(t *testing.T) {
	a := sampleLedger()
	a.Hash = common.HexToHash("0x01")
	b := sampleLedger()
	b.Hash = common.HexToHash("0xff")
	if a.ToNodeObject().Hash != b.ToNodeObject().Hash {
		t.Error("ToNodeObject should derive Hash from the other fields, ignoring the input Hash field")
	}
}

func TestFromNodeObjectBadPrefix(t *testing.T) {
	l := sampleLedger()
	obj := nodeobject.Wrap(nodeobject.Ledger, common.Hash{}, l.EncodeHeader()) // no magic prefix
	if _, err := FromNodeObject(obj); err == nil {
		t.Error("FromNodeObject should reject data missing the HashPrefixLedgerMaster prefix")
	}
}

func TestToNodeObjectKeyIsDigestOfPrefixedBlob(t *testing.T) {
	l := sampleLedger()
	obj := l.ToNodeObject()
	header := l.EncodeHeader()
	prefixed := make([]byte, 4+len(header))
	binary.BigEndian.PutUint32(prefixed[:4], HashPrefixLedgerMaster)
	copy(prefixed[4:], header)
	if obj.Hash != nodeobject.Digest(prefixed) {
		t.Error("ToNodeObject should key the object by the digest of the stored (prefixed) blob")
	}
}
