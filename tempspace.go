package udefrag

// TemporarySpaceList holds regions the engine moved NTFS data away from,
// which the OS still reports as allocated until a short quiescence window
// passes (§3 GLOSSARY "Temporary-system space").
type TemporarySpaceList struct {
	regions []FreeRegion
}

// NewTemporarySpaceList returns an empty list.
func NewTemporarySpaceList() *TemporarySpaceList {
	return &TemporarySpaceList{}
}

// Add records a region as temporarily occupied.
func (t *TemporarySpaceList) Add(lcn Lcn, length Length) {
	if length == 0 {
		return
	}
	t.regions = append(t.regions, FreeRegion{Lcn: lcn, Length: length})
}

// Len is the number of tracked regions.
func (t *TemporarySpaceList) Len() int {
	return len(t.regions)
}

// Release moves every tracked region into free, via add, and empties the
// list (§4.5). The cluster-map recoloring the spec also calls for is the
// caller's responsibility (it has the ClusterMap handle); Release only
// owns the region bookkeeping.
func (t *TemporarySpaceList) Release(free *FreeRegionList) {
	for _, r := range t.regions {
		free.Add(r.Lcn, r.Length)
	}
	t.regions = t.regions[:0]
}

// Regions exposes the current contents for cluster-map recoloring.
func (t *TemporarySpaceList) Regions() []FreeRegion {
	return t.regions
}
