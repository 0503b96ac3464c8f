package nodedb

import (
	"errors"
	"testing"

	"github.com/miguelportilla/rippled/nodeobject"
)

func TestLevelDBStoreFetchRoundTrip(t *testing.T) {
	db, err := NewLevelDB(t.TempDir(), 0, 0)
	if err != nil {
		t.Fatalf("NewLevelDB: %v", err)
	}
	defer db.Close()

	obj := nodeobject.New(nodeobject.Leaf, []byte("leveldb payload"))
	if err := db.Store(obj); err != nil {
		t.Fatalf("Store: %v", err)
	}
	got, status, err := db.Fetch(obj.Hash)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if status != FetchOK {
		t.Errorf("status = %v, want FetchOK", status)
	}
	if string(got.Data) != "leveldb payload" {
		t.Errorf("Data = %q, want %q", got.Data, "leveldb payload")
	}
}

func TestLevelDBFetchNotFound(t *testing.T) {
	db, err := NewLevelDB(t.TempDir(), 0, 0)
	if err != nil {
		t.Fatalf("NewLevelDB: %v", err)
	}
	defer db.Close()

	_, status, err := db.Fetch(nodeobject.Digest([]byte("missing")))
	if status != FetchNotFound {
		t.Errorf("status = %v, want FetchNotFound", status)
	}
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestLevelDBFdlimitFloorsToMinimum(t *testing.T) {
	db, err := NewLevelDB(t.TempDir(), 0, 4)
	if err != nil {
		t.Fatalf("NewLevelDB: %v", err)
	}
	defer db.Close()
	if got := db.Fdlimit(); got != minLevelDBHandles {
		t.Errorf("Fdlimit() = %d, want the floored minimum %d", got, minLevelDBHandles)
	}
}

func TestLevelDBStoreBatch(t *testing.T) {
	db, err := NewLevelDB(t.TempDir(), 0, 0)
	if err != nil {
		t.Fatalf("NewLevelDB: %v", err)
	}
	defer db.Close()

	objs := []*nodeobject.NodeObject{
		nodeobject.New(nodeobject.Inner, []byte("a")),
		nodeobject.New(nodeobject.Inner, []byte("b")),
	}
	if err := db.StoreBatch(objs); err != nil {
		t.Fatalf("StoreBatch: %v", err)
	}
	for _, obj := range objs {
		if _, status, _ := db.Fetch(obj.Hash); status != FetchOK {
			t.Errorf("Fetch(%s) status = %v, want FetchOK", obj.Hash, status)
		}
	}
}
