// Package nodedb provides the pluggable key→blob Backend contract, its
// concrete implementations, the positive/negative node caches, and the
// common fetch path shared by the rotating and sharded façades.
package nodedb

import (
	"errors"

	"github.com/miguelportilla/rippled/common"
	"github.com/miguelportilla/rippled/nodeobject"
	"github.com/rcrowley/go-metrics"
)

// FetchStatus is the outcome of a Backend.Fetch call, matching the
// {Ok, NotFound, Corrupt, Err} taxonomy of spec.md §4.1.
type FetchStatus int

const (
	FetchOK FetchStatus = iota
	FetchNotFound
	FetchCorrupt
	FetchErr
)

// ErrNotFound and ErrCorrupt are the sentinel errors a Backend may wrap
// and return alongside FetchNotFound/FetchCorrupt.
var (
	ErrNotFound = errors.New("nodedb: not found")
	ErrCorrupt  = errors.New("nodedb: corrupt")
)

// Backend is the external key→blob store contract of spec.md §4.1. A
// Backend must support concurrent readers with serialized writers; the
// façades above it never call Store/StoreBatch concurrently with each
// other on the same Backend, but Fetch may race freely with either.
type Backend interface {
	// Fetch retrieves the object stored under hash. It has no side
	// effects: it must not populate any cache itself.
	Fetch(hash common.Hash) (*nodeobject.NodeObject, FetchStatus, error)

	// Store persists a single object. It is durable on return, or on
	// the next call to Flush for backends that buffer writes.
	Store(obj *nodeobject.NodeObject) error

	// StoreBatch persists every object in objs as a single durable
	// unit where the underlying engine supports it.
	StoreBatch(objs []*nodeobject.NodeObject) error

	// Flush forces any buffered writes to become durable.
	Flush() error

	// Fdlimit reports the number of file descriptors this backend
	// holds open. Zero means the backend is memory-only: no files
	// exist on disk, so a Shard must never write a control file next
	// to it (spec.md §4.2, §6).
	Fdlimit() int

	// WriteLoad reports pending write pressure (queued/in-flight bytes
	// or operations) for admission and scheduling decisions.
	WriteLoad() int64

	// Close releases every resource the backend holds.
	Close() error
}

// meters bundles the telemetry every concrete Backend reports, following
// the teacher's ethdb/pebble.Database field layout.
type meters struct {
	readMeter  metrics.Meter
	writeMeter metrics.Meter
	writeLoad  metrics.Counter
}

func newMeters(namespace string) *meters {
	r := metrics.NewRegistry()
	m := &meters{
		readMeter:  metrics.NewRegisteredMeter(namespace+".read", r),
		writeMeter: metrics.NewRegisteredMeter(namespace+".write", r),
		writeLoad:  metrics.NewRegisteredCounter(namespace+".writeload", r),
	}
	return m
}

func (m *meters) markRead(n int)  { m.readMeter.Mark(int64(n)) }
func (m *meters) markWrite(n int) { m.writeMeter.Mark(int64(n)) }
func (m *meters) load() int64     { return m.writeLoad.Count() }
func (m *meters) addLoad(n int64) { m.writeLoad.Inc(n) }
func (m *meters) subLoad(n int64) { m.writeLoad.Dec(n) }
