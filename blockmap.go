package udefrag

import "sort"

// Blockmap is the ordered list of extents belonging to one file (§3). Blocks
// are always kept sorted by Vcn; Optimize recomputes the derived fragment
// count after any edit.
type Blockmap struct {
	blocks []Block
}

// NewBlockmap builds a Blockmap from an unordered slice of blocks, sorting
// and optimizing it immediately so the invariant holds from construction.
func NewBlockmap(blocks []Block) *Blockmap {
	bm := &Blockmap{blocks: append([]Block(nil), blocks...)}
	bm.sortByVcn()
	bm.Optimize()

	return bm
}

func (bm *Blockmap) sortByVcn() {
	sort.Slice(bm.blocks, func(i, j int) bool {
		return bm.blocks[i].Vcn < bm.blocks[j].Vcn
	})
}

// Blocks returns the current ordered extents. Callers must not mutate the
// returned slice.
func (bm *Blockmap) Blocks() []Block {
	return bm.blocks
}

// Clusters is the sum of non-tombstone block lengths (§3 invariant
// "Σ length == clusters").
func (bm *Blockmap) Clusters() Length {
	var total Length
	for _, b := range bm.blocks {
		total += b.Length
	}
	return total
}

// IsEmpty reports whether the file is resident (no on-disk extents at all).
func (bm *Blockmap) IsEmpty() bool {
	return len(bm.blocks) == 0
}

// Fragments counts the maximal runs of on-disk-contiguous, non-tombstone
// blocks (§3). A resident file and a single contiguous extent both count as
// zero and one fragment respectively — fragmentation only exists from two
// runs up.
func (bm *Blockmap) Fragments() int {
	fragments := 0
	var prev *Block

	for i := range bm.blocks {
		b := bm.blocks[i]
		if b.IsExcluded() {
			prev = nil
			continue
		}

		if prev == nil || !prev.AdjacentOnDisk(b) {
			fragments++
		}

		prevCopy := b
		prev = &prevCopy
	}

	return fragments
}

// IsFragmented reports WINX_FILE_DISP_FRAGMENTED (§3): more than one run.
func (bm *Blockmap) IsFragmented() bool {
	return bm.Fragments() > 1
}

// Optimize merges adjacent on-disk-contiguous blocks (§4.4
// "optimize-blockmap"). It is idempotent (§8 round-trip property).
func (bm *Blockmap) Optimize() {
	if len(bm.blocks) < 2 {
		return
	}

	bm.sortByVcn()

	merged := make([]Block, 0, len(bm.blocks))
	merged = append(merged, bm.blocks[0])

	for _, b := range bm.blocks[1:] {
		last := &merged[len(merged)-1]
		if !last.IsExcluded() && !b.IsExcluded() && last.AdjacentOnDisk(b) {
			last.Length += b.Length
			continue
		}
		merged = append(merged, b)
	}

	bm.blocks = merged
}

// SubtractRange removes [start, start+length) from the blockmap, in place,
// per §4.4's CutOffMovedClusters rule: blocks that partially overlap are
// trimmed at the head/tail, blocks fully inside become zero-length
// tombstones (never physically removed — they mark "do not retry").
func (bm *Blockmap) SubtractRange(start Vcn, length Length) {
	rangeEnd := Vcn(uint64(start) + uint64(length))

	out := make([]Block, 0, len(bm.blocks)+1)
	for _, b := range bm.blocks {
		if b.IsExcluded() || !b.OverlapsVcn(start, length) {
			out = append(out, b)
			continue
		}

		bEnd := b.VcnEnd()

		headLen := uint64(0)
		if b.Vcn < start {
			headLen = uint64(start) - uint64(b.Vcn)
		}

		tailLen := uint64(0)
		if bEnd > rangeEnd {
			tailLen = uint64(bEnd) - uint64(rangeEnd)
		}

		if headLen > 0 {
			out = append(out, Block{Vcn: b.Vcn, Lcn: b.Lcn, Length: Length(headLen)})
		}

		// The removed middle becomes a tombstone so this VCN range is
		// never retried this pass.
		midStart := b.Vcn
		if headLen > 0 {
			midStart = Vcn(uint64(b.Vcn) + headLen)
		}
		out = append(out, Block{Vcn: midStart, Lcn: 0, Length: 0})

		if tailLen > 0 {
			tailVcn := Vcn(uint64(bEnd) - tailLen)
			tailLcn := Lcn(uint64(b.Lcn) + (uint64(tailVcn) - uint64(b.Vcn)))
			out = append(out, Block{Vcn: tailVcn, Lcn: tailLcn, Length: Length(tailLen)})
		}
	}

	bm.blocks = out
	bm.sortByVcn()
}

// SynthesizeFromInput replaces [start, start+length) with one new block
// starting at targetLcn, preserving the surrounding blocks, then optimizes
// (§4.4 step 5 fallback: "Calculated success"). It is used only when the
// platform shim could not re-read the file's real new blockmap.
func (bm *Blockmap) SynthesizeFromInput(start Vcn, length Length, targetLcn Lcn) {
	bm.SubtractRange(start, length)

	rangeEnd := Vcn(uint64(start) + uint64(length))
	out := make([]Block, 0, len(bm.blocks)+1)

	for _, b := range bm.blocks {
		if b.IsExcluded() && b.Vcn >= start && b.Vcn < rangeEnd {
			// Drop every tombstone SubtractRange left inside this range;
			// the synthesized block replaces them.
			continue
		}
		out = append(out, b)
	}
	out = append(out, Block{Vcn: start, Lcn: targetLcn, Length: length})

	bm.blocks = out
	bm.sortByVcn()
	bm.Optimize()
}

// Clone returns an independent copy, used when move.go needs to compare an
// old blockmap against a re-read new one without aliasing.
func (bm *Blockmap) Clone() *Blockmap {
	return &Blockmap{blocks: append([]Block(nil), bm.blocks...)}
}

// Equal reports whether two blockmaps describe the same extents in the same
// order, ignoring tombstones (tombstones are bookkeeping, not on-disk
// state — §4.4 step 5 compares "new blockmap equals old" by disk layout).
func (bm *Blockmap) Equal(other *Blockmap) bool {
	a := bm.nonExcluded()
	b := other.nonExcluded()

	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

func (bm *Blockmap) nonExcluded() []Block {
	out := make([]Block, 0, len(bm.blocks))
	for _, b := range bm.blocks {
		if !b.IsExcluded() {
			out = append(out, b)
		}
	}
	return out
}

// IsContiguousAt reports whether [start, start+length) lives as one
// uninterrupted run at exactly targetLcn — §4.4's "Determined success"
// test.
func (bm *Blockmap) IsContiguousAt(start Vcn, length Length, targetLcn Lcn) bool {
	wantEnd := Vcn(uint64(start) + uint64(length))
	var covered Length
	nextLcn := targetLcn

	for _, b := range bm.nonExcluded() {
		if b.Vcn != start+Vcn(covered) {
			if covered == 0 {
				continue
			}
			break
		}
		if b.Lcn != nextLcn {
			return false
		}

		covered += b.Length
		nextLcn = b.LcnEnd()

		if Vcn(uint64(start)+uint64(covered)) >= wantEnd {
			return Length(covered) >= length
		}
	}

	return Length(covered) >= length
}
