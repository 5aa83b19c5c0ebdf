package udefrag

// OptimizeMftHelper implements §4.9: compact $Mft at its natural location,
// evacuating whatever else currently sits in its way. A no-op whenever the
// preconditions don't hold (not NTFS, host too old, no $Mft, locked, or
// already contiguous).
func (jp *JobParams) OptimizeMftHelper() error {
	if jp.geometry.FsType != FsNtfs || !jp.allowed.AllowMftOpt {
		return nil
	}

	mft := jp.findMft()
	if mft == nil || mft.Flags.IsLocked() || !mft.IsFragmented() {
		return nil
	}

	blocks := mft.Blockmap().Blocks()
	if len(blocks) == 0 {
		return nil
	}

	startLcn := blocks[0].LcnEnd()

	for {
		if jp.router.Cancelled() {
			return nil
		}

		nextFree, ok := jp.FindFirstFree(1)
		if !ok || nextFree.Lcn <= startLcn {
			break
		}

		evacuated := jp.evacuateRange(startLcn, nextFree.Lcn)
		if !evacuated {
			break
		}

		jp.releaseTempSpace()
	}

	if err := jp.compactMftInto(mft, startLcn); err != nil {
		return err
	}

	return nil
}

func (jp *JobParams) findMft() *FileInfo {
	for _, fi := range jp.files {
		if fi.Path == mftPath {
			return fi
		}
	}
	return nil
}

// evacuateRange moves every file extent found in [start, end) out of the
// way, into the tail of the free-region list (last-free-first), marking
// each relocated file FragmentedByMftOpt so the defragment driver picks it
// back up later (§4.9). Returns whether anything was evacuated.
func (jp *JobParams) evacuateRange(start, end Lcn) bool {
	cursor := start
	evacuatedAny := false

	for {
		fi, block, found := jp.FindFirstBlock(&cursor, FilterAll, true)
		if !found || block.Lcn >= end {
			break
		}

		target, ok := jp.FindLastFree(block.Length)
		if !ok {
			break
		}

		res, err := jp.MoveFile(fi, block.Vcn, block.Length, target.Lcn, 0)
		if err != nil || !res.Outcome.isSuccess() {
			continue
		}

		fi.Flags = fi.Flags.Set(FlagFragmentedByMftOpt)
		evacuatedAny = true
	}

	return evacuatedAny
}

// compactMftInto moves $Mft's trailing fragments into the now-cleared
// region starting at targetLcn, one extent at a time. The first extent is
// the already-optimized prefix sitting at its natural location and is
// never touched (§4.9: "for each source extent that is not already an
// optimized MFT prefix").
func (jp *JobParams) compactMftInto(mft *FileInfo, targetLcn Lcn) error {
	cur := targetLcn
	skippedPrefix := false

	for _, b := range append([]Block(nil), mft.Blockmap().Blocks()...) {
		if jp.router.Cancelled() {
			return nil
		}
		if b.IsExcluded() {
			continue
		}
		if !skippedPrefix {
			skippedPrefix = true
			continue
		}

		res, err := jp.MoveFile(mft, b.Vcn, b.Length, cur, 0)
		if err != nil {
			return err
		}
		if res.Outcome.isSuccess() {
			cur = Lcn(uint64(cur) + uint64(b.Length))
		}
	}

	return nil
}
