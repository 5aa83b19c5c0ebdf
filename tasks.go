package udefrag

// This file is the atomic task library of §4.7–§4.9: the building blocks
// the defragment and optimize strategies repeat until a fixed point.
// Every task clears FlagCurrentlyExcluded at its own start (§4.7 step 3)
// and checks the terminator at the top of its outermost loop (§5).

// moveWholeFileTo relocates fi's entire blockmap to a single contiguous
// range starting at targetLcn — the "move the whole file there" step used
// by both fragmented-file walkers (§4.7 step 2).
func (jp *JobParams) moveWholeFileTo(fi *FileInfo, targetLcn Lcn) (*MoveResult, error) {
	return jp.MoveFile(fi, 0, fi.Clusters(), targetLcn, 0)
}

// WalkFragmentedFiles repeatedly takes the file at the head of the
// fragmented-files list (heaviest fragmentation) and relocates it whole to
// the best-fit free region found with PreferAny (§4.7 step 2, first
// branch: used when fragmented_files_count >= free_regions_count or
// PreviewMatching is set).
func (jp *JobParams) WalkFragmentedFiles() (movedClusters Length, err error) {
	jp.clearCurrentlyExcluded()

	for {
		if jp.router.Cancelled() {
			return movedClusters, nil
		}

		fi := jp.firstEligibleFragmented()
		if fi == nil {
			return movedClusters, nil
		}

		region, ok := jp.FindMatchingFree(0, fi.Clusters(), PreferAny)
		if !ok {
			fi.Flags = fi.Flags.Set(FlagCurrentlyExcluded)
			continue
		}

		res, moveErr := jp.moveWholeFileTo(fi, region.Lcn)
		if moveErr != nil || !res.Outcome.isSuccess() {
			fi.Flags = fi.Flags.Set(FlagCurrentlyExcluded)
			continue
		}

		movedClusters += res.ClustersMoved
		jp.deliverProgress(0)
	}
}

// firstEligibleFragmented returns the most-fragmented file that is still
// movable and not excluded for this pass, or nil.
func (jp *JobParams) firstEligibleFragmented() *FileInfo {
	var found *FileInfo
	jp.fragmented.Walk(func(fi *FileInfo) bool {
		if fi.Flags.IsMovable() && !fi.Flags.Has(FlagCurrentlyExcluded) {
			found = fi
			return false
		}
		return true
	})
	return found
}

// WalkFreeRegions scans free regions from the start of the volume; for
// every region with length >= 2 it picks the most-fragmented movable file
// that fits and moves it whole into the region, then re-scans from the
// first free region since the list just changed shape. Locked files are
// skipped without skipping the region itself (§4.7 step 2, second
// branch).
func (jp *JobParams) WalkFreeRegions() (movedClusters Length, err error) {
	jp.clearCurrentlyExcluded()

	from := Lcn(0)

	for {
		if jp.router.Cancelled() {
			return movedClusters, nil
		}

		region, ok := jp.firstUsableFreeRegion(from)
		if !ok {
			return movedClusters, nil
		}

		fi := jp.largestFragmentedThatFits(region.Length)
		if fi == nil {
			// nothing fits this region; move on to the next one instead of
			// giving up on the whole walk (§4.7 step 2).
			from = region.End()
			continue
		}

		res, moveErr := jp.moveWholeFileTo(fi, region.Lcn)
		if moveErr != nil || !res.Outcome.isSuccess() {
			fi.Flags = fi.Flags.Set(FlagCurrentlyExcluded)
			continue
		}

		movedClusters += res.ClustersMoved
		from = 0
		jp.deliverProgress(0)
	}
}

func (jp *JobParams) firstUsableFreeRegion(from Lcn) (FreeRegion, bool) {
	var found FreeRegion
	ok := false
	jp.freeRegions.IterForward(func(r FreeRegion) bool {
		if r.Lcn < from {
			return true
		}
		if r.Length >= 2 {
			found, ok = r, true
			return false
		}
		return true
	})
	return found, ok
}

func (jp *JobParams) largestFragmentedThatFits(maxLength Length) *FileInfo {
	var found *FileInfo
	jp.fragmented.Walk(func(fi *FileInfo) bool {
		if fi.Flags.Has(FlagCurrentlyExcluded) {
			return true
		}
		if fi.Flags.IsLocked() {
			return true // skip the file, not the region
		}
		if !fi.Flags.IsMovable() {
			return true
		}
		if fi.Clusters() > maxLength {
			return true
		}
		found = fi
		return false
	})
	return found
}

// DefragmentBigFiles is §4.7 step 4's final phase: for every file still
// fragmented after the main walk (too large to move whole), find the
// longest subsequence of its still-fragmented blocks that fits the
// largest remaining free region and move just that piece, using
// CutOffMovedClusters so each move is monotone progress even though the
// file as a whole never becomes fully contiguous in one pass. A file that
// cannot have any subsequence joined is marked TooLarge.
func (jp *JobParams) DefragmentBigFiles() (movedClusters Length, err error) {
	jp.clearCurrentlyExcluded()

	for {
		if jp.router.Cancelled() {
			return movedClusters, nil
		}

		region, ok := jp.FindLargestFree()
		if !ok || region.Length < 2 {
			return movedClusters, nil
		}

		fi := jp.mostFragmentedMovable()
		if fi == nil {
			return movedClusters, nil
		}

		start, length, ok := longestFittingRun(fi.Blockmap(), region.Length)
		if !ok {
			fi.Flags = fi.Flags.Set(FlagTooLarge)
			continue
		}

		res, moveErr := jp.MoveFile(fi, start, length, region.Lcn, CutOffMovedClusters)
		if moveErr != nil || !res.Outcome.isSuccess() {
			fi.Flags = fi.Flags.Set(FlagTooLarge)
			continue
		}

		movedClusters += res.ClustersMoved
		jp.deliverProgress(0)
	}
}

func (jp *JobParams) mostFragmentedMovable() *FileInfo {
	var found *FileInfo
	jp.fragmented.Walk(func(fi *FileInfo) bool {
		if fi.Flags.IsMovable() && !fi.Flags.Has(FlagTooLarge) {
			found = fi
			return false
		}
		return true
	})
	return found
}

// longestFittingRun finds the longest maximal run of non-tombstone blocks
// in bm whose total length is <= maxLength, returning its starting VCN and
// length. Used by DefragmentBigFiles to pick a piece that is guaranteed to
// fit the target region.
func longestFittingRun(bm *Blockmap, maxLength Length) (Vcn, Length, bool) {
	blocks := bm.Blocks()

	bestStart := Vcn(0)
	bestLen := Length(0)
	found := false

	i := 0
	for i < len(blocks) {
		if blocks[i].IsExcluded() {
			i++
			continue
		}

		runStart := blocks[i].Vcn
		var runLen Length
		j := i
		for j < len(blocks) && !blocks[j].IsExcluded() && runLen+blocks[j].Length <= maxLength {
			runLen += blocks[j].Length
			j++
		}

		if runLen > bestLen {
			bestStart, bestLen, found = runStart, runLen, true
		}

		if j == i {
			i++
		} else {
			i = j
		}
	}

	return bestStart, bestLen, found
}

// MoveFilesToBack evacuates files matching filter from [sp, end) toward
// the end of the volume (§4.8 step 2b/2c). On hosts without cluster-range
// move support (NT4/2000), wholeFileOnly forces whole-file moves even
// when only part of a file lies past sp.
func (jp *JobParams) MoveFilesToBack(sp Lcn, filter ExtentFilter, wholeFileOnly bool) (movedClusters Length, err error) {
	jp.clearCurrentlyExcluded()
	cursor := sp
	// barrier is the lowest LCN this call has moved data to; blocks at or
	// past it are already at the back and are not moved again.
	barrier := Lcn(jp.geometry.TotalClusters)

	for {
		if jp.router.Cancelled() {
			return movedClusters, nil
		}

		fi, block, found := jp.FindFirstBlock(&cursor, filter, true)
		if !found || block.Lcn >= barrier {
			return movedClusters, nil
		}
		if fi.Flags.Has(FlagCurrentlyExcluded) {
			continue
		}

		target, ok := jp.FindLastFree(fi.Clusters())
		if !ok {
			fi.Flags = fi.Flags.Set(FlagCurrentlyExcluded)
			continue
		}
		if target.Lcn <= block.Lcn {
			continue
		}

		var res *MoveResult
		var moveErr error
		if wholeFileOnly {
			res, moveErr = jp.moveWholeFileTo(fi, target.Lcn)
		} else {
			res, moveErr = jp.MoveFile(fi, block.Vcn, block.Length, target.Lcn, 0)
		}

		if moveErr != nil || !res.Outcome.isSuccess() {
			fi.Flags = fi.Flags.Set(FlagCurrentlyExcluded)
			continue
		}

		if target.Lcn < barrier {
			barrier = target.Lcn
		}
		movedClusters += res.ClustersMoved
		jp.deliverProgress(0)
	}
}

// MoveFilesToFront refills the volume from sp forward, region by region,
// preferring whole-file moves so files don't immediately re-fragment
// (§4.8 step 2d).
func (jp *JobParams) MoveFilesToFront(sp Lcn, filter ExtentFilter) (movedClusters Length, err error) {
	jp.clearCurrentlyExcluded()

	for {
		if jp.router.Cancelled() {
			return movedClusters, nil
		}

		region, ok := jp.firstFreeRegionFrom(sp)
		if !ok || region.Length < 1 {
			return movedClusters, nil
		}

		fi := jp.firstMovableMatching(filter, region.Length)
		if fi == nil {
			return movedClusters, nil
		}

		res, moveErr := jp.moveWholeFileTo(fi, region.Lcn)
		if moveErr != nil || !res.Outcome.isSuccess() {
			fi.Flags = fi.Flags.Set(FlagCurrentlyExcluded)
			continue
		}

		fi.Flags = fi.Flags.Set(FlagMovedToFront)
		movedClusters += res.ClustersMoved
		jp.deliverProgress(0)
	}
}

func (jp *JobParams) firstFreeRegionFrom(sp Lcn) (FreeRegion, bool) {
	var found FreeRegion
	ok := false
	jp.freeRegions.IterForward(func(r FreeRegion) bool {
		if r.Lcn >= sp {
			found, ok = r, true
			return false
		}
		return true
	})
	return found, ok
}

func (jp *JobParams) firstMovableMatching(filter ExtentFilter, maxLength Length) *FileInfo {
	for _, fi := range jp.files {
		if !fi.Flags.IsMovable() || fi.Flags.Has(FlagCurrentlyExcluded) || fi.Flags.Has(FlagMovedToFront) {
			continue
		}
		if jp.isMftFile(fi) {
			continue
		}
		if fi.Clusters() == 0 || fi.Clusters() > maxLength {
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
		return fi
	}
	return nil
}
