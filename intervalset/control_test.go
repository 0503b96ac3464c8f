package intervalset

import (
	"path/filepath"
	"testing"
)

func TestEncodeDecodeControlRoundTrip(t *testing.T) {
	s := New(Interval{Lo: 1, Hi: 200}, Interval{Lo: 300, Hi: 400}, Interval{Lo: 500, Hi: 500})
	raw := EncodeControl(s)
	got, err := DecodeControl(raw)
	if err != nil {
		t.Fatalf("DecodeControl: %v", err)
	}
	if got.Len() != s.Len() {
		t.Fatalf("round-trip Len() = %d, want %d", got.Len(), s.Len())
	}
	if !equalIntervals(got.Intervals(), s.Intervals()) {
		t.Fatalf("round-trip Intervals() = %v, want %v", got.Intervals(), s.Intervals())
	}
}

func TestEncodeDecodeControlEmpty(t *testing.T) {
	s := &Set{}
	got, err := DecodeControl(EncodeControl(s))
	if err != nil {
		t.Fatalf("DecodeControl of empty set: %v", err)
	}
	if !got.Empty() {
		t.Error("round-trip of empty set should stay empty")
	}
}

func TestDecodeControlBadMagic(t *testing.T) {
	if _, err := DecodeControl([]byte("not a control file")); err == nil {
		t.Error("DecodeControl should reject data missing the control magic")
	}
}

func TestWriteReadFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "control.txt")
	s := New(Interval{Lo: 32570, Hi: 32768})
	if err := WriteFile(path, s); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !equalIntervals(got.Intervals(), s.Intervals()) {
		t.Fatalf("ReadFile() = %v, want %v", got.Intervals(), s.Intervals())
	}
}

func TestWriteFileLeavesNoTempOnSuccess(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "control.txt")
	if err := WriteFile(path, New(Interval{Lo: 1, Hi: 1})); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := ReadFile(path + ".tmp"); err == nil {
		t.Error("WriteFile should rename the temp file away on success")
	}
}
