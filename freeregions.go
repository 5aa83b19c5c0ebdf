package udefrag

import "sort"

// FreeRegion is one entry of the free-region list: a contiguous unallocated
// LCN range.
type FreeRegion struct {
	Lcn    Lcn
	Length Length
}

func (r FreeRegion) End() Lcn {
	return Lcn(uint64(r.Lcn) + uint64(r.Length))
}

// FreeRegionList is the ordered, non-overlapping, non-touching set of free
// regions on the volume (§3, §4.1, §8 invariant 5). It is backed by a
// sorted slice rather than the teacher's intrusive pointer lists — per §9's
// design note, the only property worth preserving from the original
// circular doubly-linked list is "first.Prev == last in O(1)", which falls
// out of plain index arithmetic on a slice.
type FreeRegionList struct {
	regions []FreeRegion
}

// NewFreeRegionList builds a list from unordered regions, coalescing any
// that touch or overlap.
func NewFreeRegionList(regions []FreeRegion) *FreeRegionList {
	l := &FreeRegionList{}
	for _, r := range regions {
		if r.Length > 0 {
			l.Add(r.Lcn, r.Length)
		}
	}
	return l
}

// Len is the number of free regions currently tracked.
func (l *FreeRegionList) Len() int {
	return len(l.regions)
}

// At returns the region at position i in ascending LCN order.
func (l *FreeRegionList) At(i int) FreeRegion {
	return l.regions[i]
}

// First returns the lowest-LCN region and true, or the zero value and
// false if the list is empty.
func (l *FreeRegionList) First() (FreeRegion, bool) {
	if len(l.regions) == 0 {
		return FreeRegion{}, false
	}
	return l.regions[0], true
}

// Last returns the highest-LCN region via the O(1) "first.Prev" property
// (§9), or false if empty.
func (l *FreeRegionList) Last() (FreeRegion, bool) {
	if len(l.regions) == 0 {
		return FreeRegion{}, false
	}
	return l.regions[len(l.regions)-1], true
}

// IterForward calls fn for every region in ascending LCN order until fn
// returns false or the regions are exhausted.
func (l *FreeRegionList) IterForward(fn func(FreeRegion) bool) {
	for _, r := range l.regions {
		if !fn(r) {
			return
		}
	}
}

// IterBackward calls fn for every region in descending LCN order, starting
// from the circular "prev of first" (i.e. the last element) — mirrors the
// original's "scan from the end in O(1)" access pattern (§3).
func (l *FreeRegionList) IterBackward(fn func(FreeRegion) bool) {
	for i := len(l.regions) - 1; i >= 0; i-- {
		if !fn(l.regions[i]) {
			return
		}
	}
}

// Add inserts (lcn,length), merging with any touching/overlapping region on
// either side (§4.1). A zero-length add is a no-op.
func (l *FreeRegionList) Add(lcn Lcn, length Length) {
	if length == 0 {
		return
	}

	newRegion := FreeRegion{Lcn: lcn, Length: length}

	idx := sort.Search(len(l.regions), func(i int) bool {
		return l.regions[i].Lcn >= lcn
	})

	merged := []FreeRegion{newRegion}

	// Absorb the region immediately before, if it touches or overlaps.
	if idx > 0 {
		prev := l.regions[idx-1]
		if prev.End() >= newRegion.Lcn {
			merged[0] = mergeRegions(prev, merged[0])
			idx--
		}
	}

	// Absorb any following regions that now touch or overlap.
	end := idx
	for end < len(l.regions) && l.regions[end].Lcn <= merged[0].End() {
		merged[0] = mergeRegions(merged[0], l.regions[end])
		end++
	}

	out := make([]FreeRegion, 0, len(l.regions)-(end-idx)+1)
	out = append(out, l.regions[:idx]...)
	out = append(out, merged[0])
	out = append(out, l.regions[end:]...)

	l.regions = out
}

func mergeRegions(a, b FreeRegion) FreeRegion {
	lo := a.Lcn
	if b.Lcn < lo {
		lo = b.Lcn
	}
	hi := a.End()
	if b.End() > hi {
		hi = b.End()
	}
	return FreeRegion{Lcn: lo, Length: Length(uint64(hi) - uint64(lo))}
}

// Sub carves [lcn, lcn+length) out of the free-region list (§4.1). It may
// split a region into two, shrink one from either end, or remove one
// entirely. Ranges that aren't (fully or partially) free are silently
// ignored for the portion that wasn't free — callers that need to know
// whether the carve fully succeeded should check with a prior query.
func (l *FreeRegionList) Sub(lcn Lcn, length Length) {
	if length == 0 {
		return
	}

	removeStart := lcn
	removeEnd := Lcn(uint64(lcn) + uint64(length))

	out := make([]FreeRegion, 0, len(l.regions)+1)
	for _, r := range l.regions {
		if removeEnd <= r.Lcn || removeStart >= r.End() {
			out = append(out, r)
			continue
		}

		if removeStart > r.Lcn {
			out = append(out, FreeRegion{Lcn: r.Lcn, Length: Length(uint64(removeStart) - uint64(r.Lcn))})
		}
		if removeEnd < r.End() {
			out = append(out, FreeRegion{Lcn: removeEnd, Length: Length(uint64(r.End()) - uint64(removeEnd))})
		}
	}

	l.regions = out
}

// TotalFree sums the length of every free region.
func (l *FreeRegionList) TotalFree() Length {
	var total Length
	for _, r := range l.regions {
		total += r.Length
	}
	return total
}
