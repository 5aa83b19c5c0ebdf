package udefrag

// Optimize runs §4.8's driver. full selects between QuickOptimization
// (stage b/d only) and FullOptimization (adds stage c, evacuating
// everything above sp).
func (jp *JobParams) Optimize(full bool) error {
	if err := jp.Analyze(); err != nil {
		return err
	}

	jp.feedback("optimization started")

	if jp.allowed.AllowMftOpt {
		if err := jp.OptimizeMftHelper(); err != nil {
			return err
		}
		jp.releaseTempSpace()
	}

	sp := Lcn(0)

	for {
		if jp.router.Cancelled() {
			break
		}

		jp.resetPassCounters()

		sp = jp.calculateStartingPoint(sp)

		movedBack, err := jp.MoveFilesToBack(0, FilterFragmented, jp.needsWholeFileMoves())
		if err != nil {
			return err
		}

		var movedEvacuated Length
		if full {
			movedEvacuated, err = jp.MoveFilesToBack(sp, FilterAll, jp.needsWholeFileMoves())
			if err != nil {
				return err
			}
		}

		movedFront, err := jp.MoveFilesToFront(sp, FilterAll)
		if err != nil {
			return err
		}

		jp.releaseTempSpace()
		jp.deliverProgress(0)

		totalMoved := movedBack + movedEvacuated + movedFront
		if totalMoved == 0 {
			next, ok := jp.increaseStartingPoint(sp)
			if !ok {
				break
			}
			sp = next
		}
	}

	jp.feedback("optimization completed")
	jp.deliverProgress(1)

	return nil
}

// needsWholeFileMoves is §4.8 step 2b's NT4/W2K carve-out: hosts older
// than XP cannot move an arbitrary cluster range, only a whole file.
func (jp *JobParams) needsWholeFileMoves() bool {
	return jp.hostOsMajor < 5 || (jp.hostOsMajor == 5 && jp.hostOsMinor == 0)
}

// freeRegionSizeThreshold is §4.8 step 3.
func (jp *JobParams) freeRegionSizeThreshold() Length {
	total := jp.geometry.TotalClusters
	floor := Length(2)

	largest, _ := jp.FindLargestFree()
	free := jp.freeRegions.TotalFree()

	var threshold Length
	if total > 0 && uint64(free)*100/total >= 10 {
		byTotal := Length(total / 200)
		byLargest := largest.Length / 2
		threshold = byTotal
		if byLargest < threshold {
			threshold = byLargest
		}
	} else {
		threshold = Length(total / 200)
	}

	if threshold < floor {
		threshold = floor
	}
	return threshold
}

// calculateStartingPoint is §4.8 step 2a.
func (jp *JobParams) calculateStartingPoint(oldSp Lcn) Lcn {
	threshold := jp.freeRegionSizeThreshold()

	sp, ok := jp.firstFreeRegionAtLeast(oldSp, threshold)
	if !ok {
		return oldSp
	}

	sp = jp.absorbFragmentedNeighbor(sp)
	sp = jp.cutOffFragmentedFreeSpace(sp)
	sp = jp.snapToFragmentedExtent(sp)
	sp = jp.skipUnmovableTrailer(sp)

	return sp
}

func (jp *JobParams) firstFreeRegionAtLeast(from Lcn, minLength Length) (Lcn, bool) {
	var found Lcn
	ok := false

	jp.freeRegions.IterForward(func(r FreeRegion) bool {
		if r.Lcn < from {
			return true
		}
		if r.Length >= minLength {
			found, ok = r.Lcn, true
			return false
		}
		return true
	})

	return found, ok
}

// absorbFragmentedNeighbor binary-searches forward from sp for the
// farthest point still within a region whose fragmented-cluster ratio
// exceeds 5%, and pulls sp forward to it (§4.8 step 2a, "absorb...").
func (jp *JobParams) absorbFragmentedNeighbor(sp Lcn) Lcn {
	total := jp.geometry.TotalClusters
	if total == 0 {
		return sp
	}

	lo, hi := uint64(sp), total
	best := uint64(sp)

	for lo < hi {
		mid := lo + (hi-lo)/2
		window := jp.CountFragmentedClusters(sp, Lcn(mid))
		windowLen := mid - uint64(sp)
		if windowLen == 0 {
			lo = mid + 1
			continue
		}
		if uint64(window)*100/windowLen > 5 {
			best = mid
			lo = mid + 1
		} else {
			hi = mid
		}
	}

	return Lcn(best)
}

// cutOffFragmentedFreeSpace binary-searches forward for the point past
// which free space is more than 1/3 of the volume in that span, and cuts
// sp back before it (§4.8 step 2a, "cut off heavily-fragmented free
// space").
func (jp *JobParams) cutOffFragmentedFreeSpace(sp Lcn) Lcn {
	total := jp.geometry.TotalClusters
	if total == 0 {
		return sp
	}

	lo, hi := uint64(sp), total
	cut := uint64(sp)

	for lo < hi {
		mid := lo + (hi-lo)/2
		free := jp.CountFreeClusters(sp, Lcn(mid))
		windowLen := mid - uint64(sp)
		if windowLen == 0 {
			lo = mid + 1
			continue
		}
		if uint64(free)*3 > windowLen {
			cut = mid
			hi = mid
		} else {
			lo = mid + 1
		}
	}

	return Lcn(cut)
}

// snapToFragmentedExtent is §4.8 step 2a's "if sp falls inside a
// fragmented file's extent and that file is movable, snap sp back to the
// extent's LCN."
func (jp *JobParams) snapToFragmentedExtent(sp Lcn) Lcn {
	for _, fi := range jp.files {
		if !fi.IsFragmented() || !fi.Flags.IsMovable() {
			continue
		}
		for _, b := range fi.Blockmap().Blocks() {
			if b.IsExcluded() {
				continue
			}
			if sp > b.Lcn && sp < b.LcnEnd() {
				return b.Lcn
			}
		}
	}
	return sp
}

// skipUnmovableTrailer advances sp past any immediately-following run of
// extents belonging only to unmovable (locked/excluded) files (§4.8 step
// 2a, "then skip trailing ranges of unmovable content").
func (jp *JobParams) skipUnmovableTrailer(sp Lcn) Lcn {
	for {
		advanced := false
		for _, fi := range jp.files {
			if fi.Flags.IsMovable() {
				continue
			}
			for _, b := range fi.Blockmap().Blocks() {
				if b.IsExcluded() {
					continue
				}
				if b.Lcn == sp {
					sp = b.LcnEnd()
					advanced = true
				}
			}
		}
		if !advanced {
			return sp
		}
	}
}

// increaseStartingPoint is §4.8 step 2e: when nothing moved at the
// current sp, advance past the next large free region, or report done.
func (jp *JobParams) increaseStartingPoint(sp Lcn) (Lcn, bool) {
	threshold := jp.freeRegionSizeThreshold()
	var next FreeRegion
	ok := false
	jp.freeRegions.IterForward(func(r FreeRegion) bool {
		if r.Lcn >= sp && r.Length >= threshold {
			next, ok = r, true
			return false
		}
		return true
	})
	if !ok {
		return sp, false
	}
	return next.End(), true
}
