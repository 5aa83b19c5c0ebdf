package udefrag

// Defragment runs §4.7's driver: analyze, walk once (or, when repeat is
// set, until a pass moves nothing), then mop up with DefragmentBigFiles.
func (jp *JobParams) Defragment(repeat bool) error {
	if err := jp.Analyze(); err != nil {
		return err
	}

	jp.feedback("defragmentation started")

	for {
		if jp.router.Cancelled() {
			break
		}

		jp.resetPassCounters()

		moved, err := jp.defragmentPass()
		if err != nil {
			return err
		}

		jp.releaseTempSpace()
		jp.deliverProgress(0)

		if moved == 0 || !repeat {
			break
		}
	}

	if _, err := jp.DefragmentBigFiles(); err != nil {
		return err
	}
	jp.releaseTempSpace()

	jp.feedback("defragmentation completed")
	jp.deliverProgress(1)

	return nil
}

// defragmentPass is one iteration of §4.7 step 2: pick the walker that
// fits the current file-to-free-region ratio (or PreviewMatching), run it
// once, and report how many clusters it moved.
func (jp *JobParams) defragmentPass() (Length, error) {
	if jp.fragmented.Len() >= jp.freeRegions.Len() || jp.Options.PreviewMatching {
		return jp.WalkFragmentedFiles()
	}
	return jp.WalkFreeRegions()
}

// releaseTempSpace implements §4.5: fold every temporary-system region
// back into the free-region list and recolor the cluster map, between
// phases.
func (jp *JobParams) releaseTempSpace() {
	for _, r := range jp.tempSpace.Regions() {
		jp.clusterMapPaint(r.Lcn, r.Length, CellFree)
	}
	jp.tempSpace.Release(jp.freeRegions)
}
