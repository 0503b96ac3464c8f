package nodedb

import (
	"errors"
	"testing"

	"github.com/miguelportilla/rippled/nodeobject"
)

func TestMemoryFetchNotFound(t *testing.T) {
	m := NewMemory()
	obj, status, err := m.Fetch(nodeobject.Digest([]byte("missing")))
	if status != FetchNotFound {
		t.Errorf("Fetch on empty backend: status = %v, want FetchNotFound", status)
	}
	if obj != nil {
		t.Error("Fetch on miss should return a nil object")
	}
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Fetch on miss should return ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreFetchRoundTrip(t *testing.T) {
	m := NewMemory()
	obj := nodeobject.New(nodeobject.Leaf, []byte("payload"))
	if err := m.Store(obj); err != nil {
		t.Fatalf("Store: %v", err)
	}
	got, status, err := m.Fetch(obj.Hash)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if status != FetchOK {
		t.Errorf("status = %v, want FetchOK", status)
	}
	if string(got.Data) != "payload" {
		t.Errorf("Data = %q, want %q", got.Data, "payload")
	}
}

func TestMemoryStoreBatch(t *testing.T) {
	m := NewMemory()
	objs := []*nodeobject.NodeObject{
		nodeobject.New(nodeobject.Inner, []byte("a")),
		nodeobject.New(nodeobject.Inner, []byte("b")),
	}
	if err := m.StoreBatch(objs); err != nil {
		t.Fatalf("StoreBatch: %v", err)
	}
	if got, want := m.Len(), 2; got != want {
		t.Errorf("Len() = %d, want %d", got, want)
	}
}

func TestMemoryFdlimitZero(t *testing.T) {
	m := NewMemory()
	if m.Fdlimit() != 0 {
		t.Error("Memory backend should report Fdlimit() == 0")
	}
}

func TestMemoryRegisteredAsFactory(t *testing.T) {
	mgr := &Manager{factories: make(map[string]Factory)}
	mgr.Register("memory", func(dir string, cfg BackendConfig) (Backend, error) {
		return NewMemory(), nil
	})
	b, err := mgr.Open("memory", "", BackendConfig{})
	if err != nil {
		t.Fatalf("Open(memory): %v", err)
	}
	if b.Fdlimit() != 0 {
		t.Error("factory-constructed Memory backend should also report Fdlimit() == 0")
	}
}
