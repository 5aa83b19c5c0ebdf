package udefrag

// MoveFlags is the flag set accepted by MoveFile (§4.4).
type MoveFlags uint32

const (
	// CutOffMovedClusters keeps the file's *old* blockmap and subtracts
	// the moved VCN range from it (preserving tombstones) instead of
	// replacing the blockmap with a freshly re-read one.
	CutOffMovedClusters MoveFlags = 1 << iota
)

// MoveResult reports what MoveFile actually did, for callers (tasks.go,
// strategies) that need to react to the outcome beyond "err == nil".
type MoveResult struct {
	Outcome        MoveOutcome
	ClustersMoved  Length
	WasFragmented  bool
	IsFragmented   bool
}

// MoveFile is the central primitive of §4.4: move [vcn, vcn+length) of fi
// to targetLcn. It always returns a non-nil *MoveResult, even on failure,
// so the caller can account for processed clusters; err is non-nil only
// for a hard precondition violation (ImproperState).
func (jp *JobParams) MoveFile(fi *FileInfo, vcn Vcn, length Length, targetLcn Lcn, flags MoveFlags) (*MoveResult, error) {
	// §8 boundary: a zero-length move (or a move of an empty file) is a
	// pure no-op success — it never reaches OS interaction or the
	// ImproperState check below.
	if length == 0 || fi.Blockmap().IsEmpty() {
		return &MoveResult{Outcome: MoveCalculatedSuccess}, nil
	}

	if err := jp.validateMove(fi, vcn, length, targetLcn); err != nil {
		fi.Flags = fi.Flags.Set(FlagImproperState)
		return &MoveResult{Outcome: MoveDeterminedFailure}, err
	}

	// §9 open question 2: a VCN range starting at or past EOF is treated
	// as "move of a non-existent part succeeded" — the lenient reading
	// the pass-termination logic in tasks.go/optimize.go depends on.
	if uint64(vcn) >= uint64(fi.Clusters()) {
		return &MoveResult{Outcome: MoveCalculatedSuccess}, nil
	}

	wasFragmented := fi.IsFragmented()
	oldBlockmap := fi.Blockmap().Clone()
	oldBlocks := append([]Block(nil), oldBlockmap.Blocks()...)

	if jp.Options.DryRun {
		return jp.applySuccess(fi, vcn, length, targetLcn, flags, oldBlockmap, oldBlocks, wasFragmented, MoveCalculatedSuccess)
	}

	handle, err := jp.platform.Open(fi, OpenForMove)
	if err != nil {
		fi.Flags = fi.Flags.Set(FlagLocked)
		jp.stats.processedClusters += uint64(length)
		jp.clusterMapPaint(targetLcn, length, CellSystem)
		return &MoveResult{Outcome: MoveFileLocked}, nil
	}
	defer jp.platform.Close(handle)

	if err := jp.executeMove(handle, fi, vcn, length, targetLcn); err != nil {
		debugPrint("MoveFile: move ioctl failed for %s: %v", fi.Path, err)
	}

	newBlockmap, err := jp.platform.DumpFile(handle)
	if err != nil {
		// Re-read failed: trust the requested move (§4.4 step 5
		// "Calculated success").
		return jp.applySuccess(fi, vcn, length, targetLcn, flags, oldBlockmap, oldBlocks, wasFragmented, MoveCalculatedSuccess)
	}

	switch {
	case newBlockmap.Equal(oldBlockmap):
		return jp.applyFailure(fi, vcn, targetLcn, length, flags), nil
	case newBlockmap.IsContiguousAt(vcn, length, targetLcn):
		fi.SetBlockmap(newBlockmap)
		return jp.applySuccess(fi, vcn, length, targetLcn, flags, oldBlockmap, oldBlocks, wasFragmented, MoveDeterminedSuccess)
	default:
		fi.SetBlockmap(newBlockmap)
		res, _ := jp.applySuccess(fi, vcn, length, targetLcn, flags, oldBlockmap, oldBlocks, wasFragmented, MoveDeterminedPartialSuccess)
		fi.Flags = fi.Flags.Set(FlagMovingFailed)
		return res, nil
	}
}

// validateMove checks that the target range [targetLcn, targetLcn+length)
// lies inside the volume. It does not check the source range against the
// file: a zero length is handled before it is called, and a range starting
// at or past EOF is accepted afterwards by MoveFile.
func (jp *JobParams) validateMove(fi *FileInfo, vcn Vcn, length Length, targetLcn Lcn) error {
	targetEnd := uint64(targetLcn) + uint64(length)
	if targetEnd > jp.geometry.TotalClusters {
		return errImproperState("move target [%d,%d) exceeds volume of %d clusters", targetLcn, targetEnd, jp.geometry.TotalClusters)
	}
	return nil
}

// executeMove issues the move ioctl(s) in the cadence of §4.4 step 4:
// clusters_per_256k chunks, a remainder, then a tail of remainder%16 — and
// never crosses an extent boundary for compressed/sparse files.
func (jp *JobParams) executeMove(h FileHandle, fi *FileInfo, vcn Vcn, length Length, targetLcn Lcn) error {
	if fi.Flags.Has(FlagCompressed) || fi.Flags.Has(FlagSparse) {
		return jp.executeMovePerExtent(h, fi, vcn, length, targetLcn)
	}
	return jp.moveChunked(h, vcn, length, targetLcn)
}

func (jp *JobParams) executeMovePerExtent(h FileHandle, fi *FileInfo, vcn Vcn, length Length, targetLcn Lcn) error {
	rangeEnd := Vcn(uint64(vcn) + uint64(length))
	cur := targetLcn

	for _, b := range fi.Blockmap().Blocks() {
		if b.IsExcluded() || !b.OverlapsVcn(vcn, length) {
			continue
		}

		segStart := b.Vcn
		if segStart < vcn {
			segStart = vcn
		}
		segEndVcn := b.VcnEnd()
		if segEndVcn > rangeEnd {
			segEndVcn = rangeEnd
		}
		segLen := Length(uint64(segEndVcn) - uint64(segStart))

		jp.router.Pause()
		if jp.router.Cancelled() {
			return nil
		}

		if err := jp.moveChunked(h, segStart, segLen, cur); err != nil {
			return err
		}
		cur = Lcn(uint64(cur) + uint64(segLen))
	}

	return nil
}

// moveChunked issues one or more MoveFileClusters calls covering
// [vcn, vcn+length) -> [targetLcn, targetLcn+length), in the legacy
// chunk cadence (§4.4 step 4).
func (jp *JobParams) moveChunked(h FileHandle, vcn Vcn, length Length, targetLcn Lcn) error {
	chunk := Length(jp.geometry.ClustersPer256K())

	remaining := length
	curVcn, curLcn := vcn, targetLcn

	issue := func(n Length) error {
		if n == 0 {
			return nil
		}
		jp.router.Pause()
		if jp.router.Cancelled() {
			return nil
		}
		err := jp.platform.MoveFileClusters(h, curVcn, curLcn, n)
		curVcn = Vcn(uint64(curVcn) + uint64(n))
		curLcn = Lcn(uint64(curLcn) + uint64(n))
		remaining -= n
		return err
	}

	for remaining > chunk {
		if err := issue(chunk); err != nil {
			return err
		}
	}

	tail := remaining % 16
	body := remaining - tail

	if body > 0 {
		if err := issue(body); err != nil {
			return err
		}
	}
	if tail > 0 {
		if err := issue(tail); err != nil {
			return err
		}
	}

	return nil
}

// applySuccess applies the state updates common to every successful
// outcome (§4.4 step 6).
func (jp *JobParams) applySuccess(
	fi *FileInfo, vcn Vcn, length Length, targetLcn Lcn, flags MoveFlags,
	oldBlockmap *Blockmap, oldBlocks []Block, wasFragmented bool, outcome MoveOutcome,
) (*MoveResult, error) {
	jp.freeRegions.Sub(targetLcn, length)
	jp.clusterMapPaint(targetLcn, length, CellUnfragmented)

	// §4.4's two splicing rules are mutually exclusive, selected by
	// CutOffMovedClusters: either keep the old blockmap and subtract the
	// moved range from it (preserving a tombstone so this VCN range is
	// never retried this pass), or — when the flag is absent — take
	// whichever "new" blockmap applies: the freshly re-read one (already
	// set on fi by the caller for Determined success/partial) or, for
	// Calculated success, one synthesized from the move request itself.
	if flags&CutOffMovedClusters != 0 {
		fi.SetBlockmap(oldBlockmap)
		fi.Blockmap().SubtractRange(vcn, length)
	} else if outcome == MoveCalculatedSuccess {
		fi.Blockmap().SynthesizeFromInput(vcn, length, targetLcn)
	}

	if length > 0 {
		jp.releaseSourceExtents(oldBlockmap, vcn, length)
	}

	if jp.extentIndex.Present() {
		jp.extentIndex.ReplaceFile(fi, oldBlocks)
	}

	jp.fragmented.Reconcile(fi)

	jp.stats.processedClusters += uint64(length)

	return &MoveResult{
		Outcome:       outcome,
		ClustersMoved: length,
		WasFragmented: wasFragmented,
		IsFragmented:  fi.IsFragmented(),
	}, nil
}

// releaseSourceSpace returns the clusters a successful move vacated: on
// NTFS they go to the temporary-space list (released only after an OS
// quiescence, §4.5); on FAT they're immediately free (§4.4 step 6).
func (jp *JobParams) releaseSourceSpace(lcn Lcn, length Length) {
	if jp.geometry.FsType == FsNtfs {
		jp.tempSpace.Add(lcn, length)
		jp.clusterMapPaint(lcn, length, CellTemporarySystem)
	} else {
		jp.freeRegions.Add(lcn, length)
		jp.clusterMapPaint(lcn, length, CellFree)
	}
}

// releaseSourceExtents frees every actual on-disk extent oldBlockmap held
// over [vcn, vcn+length) — a fragmented file's source clusters can be
// scattered across several extents, not just the one covering vcn, so each
// overlapping segment is released at its own real LCN.
func (jp *JobParams) releaseSourceExtents(oldBlockmap *Blockmap, vcn Vcn, length Length) {
	rangeEnd := Vcn(uint64(vcn) + uint64(length))

	for _, b := range oldBlockmap.Blocks() {
		if b.IsExcluded() || !b.OverlapsVcn(vcn, length) {
			continue
		}

		segStart := b.Vcn
		if segStart < vcn {
			segStart = vcn
		}
		segEndVcn := b.VcnEnd()
		if segEndVcn > rangeEnd {
			segEndVcn = rangeEnd
		}
		if segEndVcn <= segStart {
			continue
		}
		segLen := Length(uint64(segEndVcn) - uint64(segStart))

		offset := uint64(segStart) - uint64(b.Vcn)
		segLcn := Lcn(uint64(b.Lcn) + offset)

		jp.releaseSourceSpace(segLcn, segLen)
	}
}

// applyFailure applies §4.4's "Determined failure" branch: MovingFailed is
// set; if CutOffMovedClusters was requested the range is spliced out of
// the blockmap as a tombstone; and — per §9's design note — the target
// range is subtracted from free regions even though it was never actually
// occupied, so the very next search doesn't retry the same doomed target
// within this pass (load-bearing for liveness).
func (jp *JobParams) applyFailure(fi *FileInfo, vcn Vcn, targetLcn Lcn, length Length, flags MoveFlags) *MoveResult {
	fi.Flags = fi.Flags.Set(FlagMovingFailed)
	jp.freeRegions.Sub(targetLcn, length)

	if flags&CutOffMovedClusters != 0 {
		fi.Blockmap().SubtractRange(vcn, length)
	}

	jp.stats.processedClusters += uint64(length)

	return &MoveResult{Outcome: MoveDeterminedFailure}
}

func (jp *JobParams) clusterMapPaint(lcn Lcn, length Length, state CellState) {
	if jp.clusterMap != nil {
		jp.clusterMap.Paint(lcn, length, state)
	}
}

func errImproperState(format string, args ...interface{}) error {
	return log.Errorf(format, args...)
}
