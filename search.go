package udefrag

// magicLockProbe caps the number of per-file IsFileLocked probes
// count_movable_clusters performs, per §4.3, so that a pre-optimization
// latency check never depends on volume size.
const magicLockProbe = 100

// FreePreference selects how FindMatchingFree breaks ties between regions
// that are all >= the requested length (§4.3).
type FreePreference int

const (
	PreferForward FreePreference = iota
	PreferBackward
	PreferAny
)

// ExtentFilter selects which files FindFirstBlock / CountFragmentedClusters
// consider (§4.3).
type ExtentFilter int

const (
	FilterAll ExtentFilter = iota
	FilterFragmented
	FilterNotFragmented
)

// FindFirstFree returns the first (lowest-LCN) free region with length >=
// minLength (§4.3).
func (jp *JobParams) FindFirstFree(minLength Length) (FreeRegion, bool) {
	var found FreeRegion
	ok := false

	jp.freeRegions.IterForward(func(r FreeRegion) bool {
		if jp.router.Cancelled() {
			return false
		}
		if r.Length >= minLength {
			found, ok = r, true
			return false
		}
		return true
	})

	return found, ok
}

// FindLastFree returns the last (highest-LCN) free region with length >=
// minLength, scanning backward from the circular "prev of first" (§4.3).
func (jp *JobParams) FindLastFree(minLength Length) (FreeRegion, bool) {
	var found FreeRegion
	ok := false

	jp.freeRegions.IterBackward(func(r FreeRegion) bool {
		if jp.router.Cancelled() {
			return false
		}
		if r.Length >= minLength {
			found, ok = r, true
			return false
		}
		return true
	})

	return found, ok
}

// FindLargestFree returns the single biggest free region (§4.3).
func (jp *JobParams) FindLargestFree() (FreeRegion, bool) {
	var found FreeRegion
	ok := false

	jp.freeRegions.IterForward(func(r FreeRegion) bool {
		if jp.router.Cancelled() {
			return false
		}
		if !ok || r.Length > found.Length {
			found, ok = r, true
		}
		return true
	})

	return found, ok
}

// FindMatchingFree returns the smallest region >= minLength subject to
// preference (§4.3): Forward ignores regions strictly before startLcn but
// keeps them as fallback, Backward prefers regions before startLcn, Any
// is a pure smallest-fit search. Ties are broken by first-seen.
func (jp *JobParams) FindMatchingFree(startLcn Lcn, minLength Length, preference FreePreference) (FreeRegion, bool) {
	var bestPreferred, bestFallback FreeRegion
	hasPreferred, hasFallback := false, false

	jp.freeRegions.IterForward(func(r FreeRegion) bool {
		if jp.router.Cancelled() {
			return false
		}
		if r.Length < minLength {
			return true
		}

		inPreferredZone := true
		switch preference {
		case PreferForward:
			inPreferredZone = r.Lcn >= startLcn
		case PreferBackward:
			inPreferredZone = r.Lcn < startLcn
		case PreferAny:
			inPreferredZone = true
		}

		if inPreferredZone {
			if !hasPreferred || r.Length < bestPreferred.Length {
				bestPreferred, hasPreferred = r, true
			}
		} else {
			if !hasFallback || r.Length < bestFallback.Length {
				bestFallback, hasFallback = r, true
			}
		}

		return true
	})

	if hasPreferred {
		return bestPreferred, true
	}
	if preference != PreferAny && hasFallback {
		return bestFallback, true
	}

	return FreeRegion{}, false
}

// FindFirstBlock returns the first extent with lcn >= *minLcn passing
// filter, rejecting immovable files, the MFT when skipMft is set, and
// OS-locked files. On success *minLcn is advanced past the returned
// extent so repeated calls can scan onward (§4.3).
//
// It uses the extent index when present, falling back to a linear scan of
// the file list otherwise (§4.2, §7).
func (jp *JobParams) FindFirstBlock(minLcn *Lcn, filter ExtentFilter, skipMft bool) (*FileInfo, Block, bool) {
	if jp.extentIndex.Present() {
		return jp.findFirstBlockIndexed(minLcn, filter, skipMft)
	}
	return jp.findFirstBlockLinear(minLcn, filter, skipMft)
}

func (jp *JobParams) qualifies(fi *FileInfo, b Block, filter ExtentFilter, skipMft bool) bool {
	if !fi.Flags.IsMovable() {
		return false
	}
	if skipMft && jp.isMftFile(fi) {
		return false
	}
	if fi.Flags.IsLocked() {
		return false
	}

	switch filter {
	case FilterFragmented:
		return fi.IsFragmented()
	case FilterNotFragmented:
		return !fi.IsFragmented()
	default:
		return true
	}
}

func (jp *JobParams) findFirstBlockIndexed(minLcn *Lcn, filter ExtentFilter, skipMft bool) (*FileInfo, Block, bool) {
	var foundFile *FileInfo
	var foundBlock Block
	found := false

	jp.extentIndex.TraverseFrom(*minLcn, func(fi *FileInfo, b Block) bool {
		if jp.router.Cancelled() {
			return false
		}
		if !jp.qualifies(fi, b, filter, skipMft) {
			return true
		}

		foundFile, foundBlock, found = fi, b, true
		return false
	})

	if found {
		*minLcn = foundBlock.LcnEnd()
	}

	return foundFile, foundBlock, found
}

func (jp *JobParams) findFirstBlockLinear(minLcn *Lcn, filter ExtentFilter, skipMft bool) (*FileInfo, Block, bool) {
	var bestFile *FileInfo
	var bestBlock Block
	found := false

	for _, fi := range jp.files {
		if jp.router.Cancelled() {
			break
		}

		for _, b := range fi.Blockmap().Blocks() {
			if b.IsExcluded() || b.Lcn < *minLcn {
				continue
			}
			if !jp.qualifies(fi, b, filter, skipMft) {
				continue
			}
			if !found || b.Lcn < bestBlock.Lcn {
				bestFile, bestBlock, found = fi, b, true
			}
		}
	}

	if found {
		*minLcn = bestBlock.LcnEnd()
	}

	return bestFile, bestBlock, found
}

// CountMovableClusters totals clusters in [firstLcn, lastLcn) belonging to
// a movable, non-MFT file matching filter, checking at most
// magicLockProbe files for the Locked condition (§4.3).
func (jp *JobParams) CountMovableClusters(firstLcn, lastLcn Lcn, filter ExtentFilter) Length {
	rng := LcnRange{Start: firstLcn, End: lastLcn}
	var total Length
	probed := 0

	for _, fi := range jp.files {
		if jp.router.Cancelled() {
			break
		}
		if !fi.Flags.IsMovable() || jp.isMftFile(fi) {
			continue
		}

		if probed < magicLockProbe {
			if locked, err := jp.platform.IsFileLocked(fi); err == nil && locked {
				fi.Flags = fi.Flags.Set(FlagLocked)
				probed++
				continue
			}
			probed++
		}
		if fi.Flags.IsLocked() {
			continue
		}

		switch filter {
		case FilterFragmented:
			if !fi.IsFragmented() {
				continue
			}
		case FilterNotFragmented:
			if fi.IsFragmented() {
				continue
			}
		}

		for _, b := range fi.Blockmap().Blocks() {
			if b.IsExcluded() {
				continue
			}
			total += overlapLength(LcnRange{Start: b.Lcn, End: b.LcnEnd()}, rng)
		}
	}

	return total
}

// CountFragmentedClusters is CountMovableClusters restricted to fragmented
// files (§4.3).
func (jp *JobParams) CountFragmentedClusters(firstLcn, lastLcn Lcn) Length {
	return jp.CountMovableClusters(firstLcn, lastLcn, FilterFragmented)
}

// CountFreeClusters sums free-region overlap with [firstLcn, lastLcn)
// (§4.3).
func (jp *JobParams) CountFreeClusters(firstLcn, lastLcn Lcn) Length {
	rng := LcnRange{Start: firstLcn, End: lastLcn}
	var total Length

	jp.freeRegions.IterForward(func(r FreeRegion) bool {
		total += overlapLength(LcnRange{Start: r.Lcn, End: r.End()}, rng)
		return true
	})

	return total
}

func overlapLength(a, b LcnRange) Length {
	start := a.Start
	if b.Start > start {
		start = b.Start
	}
	end := a.End
	if b.End < end {
		end = b.End
	}
	if end <= start {
		return 0
	}
	return Length(uint64(end) - uint64(start))
}

func (jp *JobParams) isMftFile(fi *FileInfo) bool {
	return jp.geometry.FsType == FsNtfs && fi.Path == mftPath
}
