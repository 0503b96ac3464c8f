package rotating

import (
	"testing"

	"github.com/miguelportilla/rippled/nodedb"
	"github.com/miguelportilla/rippled/nodeobject"
)

const testCacheSize = 1 << 16

func TestFetchMissOnBothGenerationsReturnsNil(t *testing.T) {
	d := New(nodedb.NewMemory(), nodedb.NewMemory(), testCacheSize)
	obj, err := d.Fetch(nodeobject.Digest([]byte("nope")))
	if err != nil || obj != nil {
		t.Fatalf("Fetch on empty rotating store = (%v, %v), want (nil, nil)", obj, err)
	}
}

func TestFetchFromPromotesArchiveHitIntoWritable(t *testing.T) {
	writable := nodedb.NewMemory()
	archive := nodedb.NewMemory()
	d := New(writable, archive, testCacheSize)

	obj := nodeobject.New(nodeobject.Leaf, []byte("archived"))
	archiveDB := nodedb.NewDatabase(archive, testCacheSize, 0)
	if err := archiveDB.Store(obj); err != nil {
		t.Fatalf("seed archive: %v", err)
	}
	d.archive = archiveDB

	// Miss on writable first records a negative cache entry.
	if got, err := d.writable.Fetch(obj.Hash); err != nil || got != nil {
		t.Fatalf("writable pre-fetch = (%v, %v), want a clean miss", got, err)
	}

	got, err := d.FetchFrom(obj.Hash)
	if err != nil {
		t.Fatalf("FetchFrom: %v", err)
	}
	if got == nil || string(got.Data) != "archived" {
		t.Fatalf("FetchFrom = %v, want the archived object", got)
	}

	// The object must now be readable straight off the writable backend,
	// bypassing the archive entirely: promotion must have stored it.
	promoted, status, err := writable.Fetch(obj.Hash)
	if err != nil || status != nodedb.FetchOK || promoted == nil {
		t.Fatalf("writable.Fetch after promotion = (%v, %v, %v), want a direct hit", promoted, status, err)
	}
	if again, err := d.writable.Fetch(obj.Hash); err != nil || again == nil {
		t.Errorf("writable.Fetch(promoted) = (%v, %v), want a hit with no archive fallback needed", again, err)
	}
}

func TestStoreLandsInWritableOnly(t *testing.T) {
	writable := nodedb.NewMemory()
	archive := nodedb.NewMemory()
	d := New(writable, archive, testCacheSize)

	obj := nodeobject.New(nodeobject.Leaf, []byte("fresh"))
	if err := d.Store(obj); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if raw, status, err := archive.Fetch(obj.Hash); status != nodedb.FetchNotFound || raw != nil {
		t.Errorf("Store should never touch the archive backend directly, got (%v, %v, %v)", raw, status, err)
	}
	if got, err := d.Fetch(obj.Hash); err != nil || got == nil {
		t.Errorf("Fetch after Store = (%v, %v), want a hit", got, err)
	}
}

// TestRotateTwiceExpelsObject is the spec.md §8 boundary scenario: an
// object stored into writable survives one rotation (it moves to the
// archive and a fetch promotes it back into the new writable), and is
// expelled from the store entirely once two further rotations pass with
// no fetch or re-store in between.
func TestRotateTwiceExpelsObject(t *testing.T) {
	d := New(nodedb.NewMemory(), nodedb.NewMemory(), testCacheSize)

	obj := nodeobject.New(nodeobject.Leaf, []byte("doomed"))
	if err := d.Store(obj); err != nil {
		t.Fatalf("Store: %v", err)
	}

	d.Rotate(nodedb.NewMemory(), testCacheSize)
	// After one rotation the object lives in archive; still fetchable
	// (and gets promoted back into the new writable).
	if got, err := d.Fetch(obj.Hash); err != nil || got == nil {
		t.Fatalf("Fetch after one rotation = (%v, %v), want a hit via archive", got, err)
	}

	// The fetch above promoted the object into the current writable
	// generation, so two more rotations, with no fetch in between, are
	// needed to age it into a discarded archive generation.
	d.Rotate(nodedb.NewMemory(), testCacheSize)
	d.Rotate(nodedb.NewMemory(), testCacheSize)

	got, err := d.Fetch(obj.Hash)
	if err != nil {
		t.Fatalf("Fetch after second rotation: %v", err)
	}
	if got != nil {
		t.Errorf("Fetch after two rotations = %v, want nil: object should have been expelled", got)
	}
}

func TestRotateReturnsExpelledBackend(t *testing.T) {
	d := New(nodedb.NewMemory(), nodedb.NewMemory(), testCacheSize)
	oldArchiveBackend := d.archive.Backend()

	expelled := d.Rotate(nodedb.NewMemory(), testCacheSize)
	if expelled != oldArchiveBackend {
		t.Error("Rotate should return the backend that was the archive generation before rotating")
	}
}

func TestTuneAndSweepApplyToBothGenerations(t *testing.T) {
	d := New(nodedb.NewMemory(), nodedb.NewMemory(), testCacheSize)
	d.Tune(testCacheSize*2, 0)
	d.Sweep()
}

func TestCloseClosesBothBackends(t *testing.T) {
	d := New(nodedb.NewMemory(), nodedb.NewMemory(), testCacheSize)
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
