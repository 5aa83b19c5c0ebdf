package udefrag

// Lcn is a logical cluster number: a position on the volume.
type Lcn uint64

// Vcn is a virtual cluster number: a position within a single file.
type Vcn uint64

// Length is a run length in clusters.
type Length uint64

// Block is a contiguous (vcn, lcn, length) run belonging to exactly one
// file (§3, GLOSSARY). A zero-length Block is a tombstone: it marks a VCN
// range that a previous move attempt gave up on and that later passes must
// not retry (§4.4).
type Block struct {
	Vcn    Vcn
	Lcn    Lcn
	Length Length
}

// IsExcluded reports whether this is a tombstone entry.
func (b Block) IsExcluded() bool {
	return b.Length == 0
}

// VcnEnd is the exclusive upper bound of the VCN range this block covers.
func (b Block) VcnEnd() Vcn {
	return Vcn(uint64(b.Vcn) + uint64(b.Length))
}

// LcnEnd is the exclusive upper bound of the LCN range this block covers.
func (b Block) LcnEnd() Lcn {
	return Lcn(uint64(b.Lcn) + uint64(b.Length))
}

// AdjacentOnDisk reports whether b immediately precedes next both on disk
// and within the file's VCN space — the condition blockmap optimization
// coalesces on (§4.4 "optimize-blockmap").
func (b Block) AdjacentOnDisk(next Block) bool {
	return b.LcnEnd() == next.Lcn && b.VcnEnd() == next.Vcn
}

// OverlapsVcn reports whether b intersects the half-open VCN range
// [start, start+length).
func (b Block) OverlapsVcn(start Vcn, length Length) bool {
	rangeEnd := Vcn(uint64(start) + uint64(length))
	return b.Vcn < rangeEnd && start < b.VcnEnd()
}
