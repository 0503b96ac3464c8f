package nodedb

import "testing"

func TestManagerOpenUnknownType(t *testing.T) {
	mgr := &Manager{factories: make(map[string]Factory)}
	if _, err := mgr.Open("nonexistent", "", BackendConfig{}); err == nil {
		t.Error("Open of an unregistered backend type should fail")
	}
}

func TestManagerRegisterAndOpen(t *testing.T) {
	mgr := &Manager{factories: make(map[string]Factory)}
	var gotDir string
	mgr.Register("fake", func(dir string, cfg BackendConfig) (Backend, error) {
		gotDir = dir
		return NewMemory(), nil
	})
	b, err := mgr.Open("fake", "/tmp/somewhere", BackendConfig{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if b == nil {
		t.Fatal("Open should return a non-nil backend")
	}
	if gotDir != "/tmp/somewhere" {
		t.Errorf("factory received dir %q, want /tmp/somewhere", gotDir)
	}
}

func TestDefaultManagerHasMemoryBackend(t *testing.T) {
	mgr := DefaultManager()
	b, err := mgr.Open("memory", "", BackendConfig{})
	if err != nil {
		t.Fatalf("Open(memory): %v", err)
	}
	if b.Fdlimit() != 0 {
		t.Error("the default-registered memory backend should report Fdlimit() == 0")
	}
}

func TestDefaultManagerHasEmbeddedBackends(t *testing.T) {
	mgr := DefaultManager()
	for _, name := range []string{"leveldb", "pebble"} {
		dir := t.TempDir()
		b, err := mgr.Open(name, dir, BackendConfig{})
		if err != nil {
			t.Fatalf("Open(%q): %v", name, err)
		}
		b.Close()
	}
}
