package intervalset

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/golang/snappy"
)

// controlMagic tags the on-disk control file so a stray text file dropped
// in a shard directory is never mistaken for one.
const controlMagic = "RCF1"

// EncodeControl serializes s as "lo-hi,lo-hi,..." (a bare "v" for a
// single-value interval), snappy-compresses it, and prefixes the magic.
// The grammar is deliberately simple text, matching spec.md §6's
// "implementation-defined but must round-trip" requirement; the bytes on
// disk are the magic plus the snappy-compressed text, not plain text.
func EncodeControl(s *Set) []byte {
	var sb strings.Builder
	for i, r := range s.Intervals() {
		if i > 0 {
			sb.WriteByte(',')
		}
		if r.Lo == r.Hi {
			sb.WriteString(strconv.FormatUint(uint64(r.Lo), 10))
		} else {
			fmt.Fprintf(&sb, "%d-%d", r.Lo, r.Hi)
		}
	}
	body := snappy.Encode(nil, []byte(sb.String()))
	out := make([]byte, 0, len(controlMagic)+len(body))
	out = append(out, controlMagic...)
	out = append(out, body...)
	return out
}

// DecodeControl parses the output of EncodeControl back into a Set.
func DecodeControl(raw []byte) (*Set, error) {
	if len(raw) < len(controlMagic) || string(raw[:len(controlMagic)]) != controlMagic {
		return nil, fmt.Errorf("intervalset: bad control file magic")
	}
	body, err := snappy.Decode(nil, raw[len(controlMagic):])
	if err != nil {
		return nil, fmt.Errorf("intervalset: decompress control file: %w", err)
	}
	s := &Set{}
	text := strings.TrimSpace(string(body))
	if text == "" {
		return s, nil
	}
	for _, tok := range strings.Split(text, ",") {
		lo, hi, err := parseToken(tok)
		if err != nil {
			return nil, err
		}
		s.InsertRange(lo, hi)
	}
	return s, nil
}

func parseToken(tok string) (lo, hi uint32, err error) {
	if i := strings.IndexByte(tok, '-'); i >= 0 {
		l, err1 := strconv.ParseUint(tok[:i], 10, 32)
		h, err2 := strconv.ParseUint(tok[i+1:], 10, 32)
		if err1 != nil || err2 != nil {
			return 0, 0, fmt.Errorf("intervalset: malformed token %q", tok)
		}
		return uint32(l), uint32(h), nil
	}
	v, err := strconv.ParseUint(tok, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("intervalset: malformed token %q", tok)
	}
	return uint32(v), uint32(v), nil
}

// WriteFile atomically writes the control file for s to path: it writes
// to a temp file in the same directory and renames over the target, so a
// crash mid-write never leaves a truncated control file (the durability
// rule of spec.md §4.2).
func WriteFile(path string, s *Set) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("intervalset: create temp control file: %w", err)
	}
	w := bufio.NewWriter(f)
	if _, err := w.Write(EncodeControl(s)); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("intervalset: write control file: %w", err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("intervalset: flush control file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("intervalset: sync control file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("intervalset: close control file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("intervalset: rename control file: %w", err)
	}
	return nil
}

// ReadFile loads and decodes the control file at path.
func ReadFile(path string) (*Set, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeControl(raw)
}
