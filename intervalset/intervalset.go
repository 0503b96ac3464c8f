// Package intervalset implements a sorted set of uint32 values stored as
// a union of closed (inclusive) [lo, hi] intervals, the representation spec.md
// §9 calls out for a shard's storedSeqs.
package intervalset

import "sort"

// Interval is an inclusive [Lo, Hi] range of sequence numbers.
type Interval struct {
	Lo, Hi uint32
}

// Set is a sorted, non-overlapping, non-adjacent union of Intervals.
// The zero value is an empty set.
type Set struct {
	ranges []Interval
}

// New builds a Set from an arbitrary list of intervals, merging overlaps
// and adjacencies.
func New(ranges ...Interval) *Set {
	s := &Set{}
	for _, r := range ranges {
		s.InsertRange(r.Lo, r.Hi)
	}
	return s
}

// Insert adds a single value to the set.
func (s *Set) Insert(v uint32) { s.InsertRange(v, v) }

// InsertRange adds every value in [lo, hi] to the set, merging with any
// overlapping or adjacent existing interval.
func (s *Set) InsertRange(lo, hi uint32) {
	if lo > hi {
		return
	}
	// Find the first interval that could overlap or be adjacent to [lo,hi].
	i := sort.Search(len(s.ranges), func(i int) bool {
		return s.ranges[i].Hi+1 >= lo || s.ranges[i].Hi == ^uint32(0)
	})
	merged := Interval{Lo: lo, Hi: hi}
	j := i
	for j < len(s.ranges) && rangeTouches(s.ranges[j], merged) {
		if s.ranges[j].Lo < merged.Lo {
			merged.Lo = s.ranges[j].Lo
		}
		if s.ranges[j].Hi > merged.Hi {
			merged.Hi = s.ranges[j].Hi
		}
		j++
	}
	out := make([]Interval, 0, len(s.ranges)-(j-i)+1)
	out = append(out, s.ranges[:i]...)
	out = append(out, merged)
	out = append(out, s.ranges[j:]...)
	s.ranges = out
}

func rangeTouches(a, b Interval) bool {
	return a.Lo <= b.Hi+1 && b.Lo <= a.Hi+1
}

// Remove deletes v from the set, splitting its containing interval if v
// falls strictly inside it. Used to roll back a speculative Insert when
// a caller cannot persist the resulting state.
func (s *Set) Remove(v uint32) {
	for i, r := range s.ranges {
		if v < r.Lo || v > r.Hi {
			continue
		}
		switch {
		case r.Lo == r.Hi:
			s.ranges = append(s.ranges[:i], s.ranges[i+1:]...)
		case v == r.Lo:
			s.ranges[i].Lo++
		case v == r.Hi:
			s.ranges[i].Hi--
		default:
			left := Interval{Lo: r.Lo, Hi: v - 1}
			right := Interval{Lo: v + 1, Hi: r.Hi}
			out := make([]Interval, 0, len(s.ranges)+1)
			out = append(out, s.ranges[:i]...)
			out = append(out, left, right)
			out = append(out, s.ranges[i+1:]...)
			s.ranges = out
		}
		return
	}
}

// Contains reports whether v is a member of the set.
func (s *Set) Contains(v uint32) bool {
	i := sort.Search(len(s.ranges), func(i int) bool { return s.ranges[i].Hi >= v })
	return i < len(s.ranges) && s.ranges[i].Lo <= v
}

// Len returns the total count of member values across every interval.
func (s *Set) Len() int {
	n := 0
	for _, r := range s.ranges {
		n += int(r.Hi-r.Lo) + 1
	}
	return n
}

// Empty reports whether the set has no members.
func (s *Set) Empty() bool { return len(s.ranges) == 0 }

// First returns the smallest member and true, or (0, false) if empty.
func (s *Set) First() (uint32, bool) {
	if s.Empty() {
		return 0, false
	}
	return s.ranges[0].Lo, true
}

// Last returns the largest member and true, or (0, false) if empty.
func (s *Set) Last() (uint32, bool) {
	if s.Empty() {
		return 0, false
	}
	return s.ranges[len(s.ranges)-1].Hi, true
}

// Intervals returns the underlying sorted, merged intervals. The caller
// must not mutate the returned slice.
func (s *Set) Intervals() []Interval { return s.ranges }

// GreatestMissing returns the largest value v in [lo, hi] such that v is
// not a member of the set, scanning from hi downward. It is used by
// Shard.Prepare to pick the next sequence to acquire (descending
// acquisition order). The second return is false if every value in
// [lo, hi] is already a member.
func (s *Set) GreatestMissing(lo, hi uint32) (uint32, bool) {
	for v := hi; v >= lo; v-- {
		if !s.Contains(v) {
			return v, true
		}
		if v == lo {
			break
		}
	}
	return 0, false
}
