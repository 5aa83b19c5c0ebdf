package udefrag

import (
	"testing"

	"github.com/udefrag/core/internal/testvolume"
)

// The six tests below encode the concrete end-to-end scenarios used as the
// engine's seed test suite: analysis of a fresh volume, a single-file
// defrag pass, a partially-successful move, starting-point advance, one
// MFT-optimizer fixpoint pass, and cancellation mid-pass.

func TestScenarioAnalysisOfEmptyNtfsVolume(t *testing.T) {
	v := testvolume.New("C", 1000000, 4096, FsNtfs)
	v.SetNtfsData(NtfsVolumeData{
		MftStartLcn:               16,
		MftValidDataLength:        64 * 4096,
		MftZoneStart:              16,
		MftZoneEnd:                1024,
		BytesPerFileRecordSegment: 1024,
		BytesPerCluster:           4096,
	})

	mft := NewFileInfo(mftPath, "$Mft", 0)
	mft.SetBlockmap(NewBlockmap([]Block{{Vcn: 0, Lcn: 16, Length: 64}}))
	v.AddFile(mft)

	jp := NewJobParams("C", JobAnalysis, defaultOptions(), v, NullObserver{})
	defer jp.Release()

	if err := jp.Analyze(); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if jp.fragmented.Len() != 0 {
		t.Fatalf("expected zero fragmented files on a fresh volume, got %d", jp.fragmented.Len())
	}
	if jp.freeRegions.Len() == 0 {
		t.Fatalf("expected a non-empty free-region list")
	}
	if jp.freeRegions.TotalFree() == 0 {
		t.Fatalf("expected nonzero free clusters on an almost-empty volume")
	}
	if len(jp.files) == 0 {
		t.Fatalf("expected at least the $Mft system file")
	}
}

func TestScenarioDefragmentSingleFragmentedFile(t *testing.T) {
	v := testvolume.New("C", 2000, 4096, FsFat32)

	fi := NewFileInfo(`\frag.bin`, "frag.bin", 1)
	fi.SetBlockmap(NewBlockmap([]Block{
		{Vcn: 0, Lcn: 100, Length: 2},
		{Vcn: 2, Lcn: 500, Length: 3},
	}))
	v.AddFile(fi)

	// gap.bin sits between frag.bin's two fragments and is never touched by
	// the move: if the source-space release ever widens into a single
	// synthesized (100,5) block instead of the two real extents (100,2) and
	// (500,3), it would wrongly mark gap.bin's clusters free.
	gap := NewFileInfo(`\gap.bin`, "gap.bin", 2)
	gap.SetBlockmap(NewBlockmap([]Block{{Vcn: 0, Lcn: 103, Length: 2}}))
	v.AddFile(gap)

	jp := NewJobParams("C", JobDefragmentation, defaultOptions(), v, NullObserver{})
	defer jp.Release()

	if err := jp.Analyze(); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if jp.fragmented.Len() != 1 {
		t.Fatalf("expected the file to start out fragmented, got %d entries", jp.fragmented.Len())
	}

	if err := jp.Defragment(true); err != nil {
		t.Fatalf("Defragment failed: %v", err)
	}

	blocks := fi.Blockmap().Blocks()
	if len(blocks) != 1 || blocks[0].Length != 5 {
		t.Fatalf("expected the file to land in one 5-cluster run, got %+v", blocks)
	}
	if fi.Fragments() != 1 {
		t.Fatalf("expected fragments==1, got %d", fi.Fragments())
	}
	if jp.fragmented.Len() != 0 {
		t.Fatalf("expected the fragmented-files count to drop to 0, got %d", jp.fragmented.Len())
	}

	// the two vacated source extents (100,2) and (500,3) must be free, but
	// gap.bin's untouched clusters [103,105) must not be.
	var free []FreeRegion
	for i := 0; i < jp.freeRegions.Len(); i++ {
		free = append(free, jp.freeRegions.At(i))
	}
	for _, r := range free {
		if r.Lcn < 105 && r.End() > 103 {
			t.Fatalf("expected gap.bin's clusters [103,105) to stay occupied, found them free in %+v", free)
		}
	}
	var gotFree Length
	for _, r := range free {
		gotFree += r.Length
	}
	if want := Length(2000 - 5 - 2); gotFree != want {
		t.Fatalf("expected %d free clusters, got %d across %+v", want, gotFree, free)
	}
}

func TestScenarioMoveWithClassifiedPartialSuccess(t *testing.T) {
	// a cluster this small forces moveChunked to split a 10-cluster move
	// into two 5-cluster ioctls (262144 / 52428 == 5), which is what lets
	// the second chunk fail independently of the first.
	const bytesPerCluster = 52428
	v := testvolume.New("C", 1000, bytesPerCluster, FsNtfs)

	fi := NewFileInfo(`\moved.bin`, "moved.bin", 1)
	fi.SetBlockmap(NewBlockmap([]Block{{Vcn: 0, Lcn: 100, Length: 10}}))
	v.AddFile(fi)

	blocker := NewFileInfo(`\blocker.bin`, "blocker.bin", 2)
	blocker.SetBlockmap(NewBlockmap([]Block{{Vcn: 0, Lcn: 205, Length: 5}}))
	v.AddFile(blocker)

	jp := NewJobParams("C", JobDefragmentation, defaultOptions(), v, NullObserver{})
	defer jp.Release()

	if err := jp.Analyze(); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	res, err := jp.MoveFile(fi, 0, 10, 200, 0)
	if err != nil {
		t.Fatalf("MoveFile failed: %v", err)
	}
	if res.Outcome != MoveDeterminedPartialSuccess {
		t.Fatalf("expected a partial success, got %v", res.Outcome)
	}
	if !fi.Flags.Has(FlagMovingFailed) {
		t.Fatalf("expected FlagMovingFailed to be set")
	}

	blocks := fi.Blockmap().Blocks()
	if len(blocks) != 2 {
		t.Fatalf("expected two extents after a partial move, got %+v", blocks)
	}
	if blocks[0].Vcn != 0 || blocks[0].Lcn != 200 || blocks[0].Length != 5 {
		t.Fatalf("unexpected first extent: %+v", blocks[0])
	}
	if blocks[1].Vcn != 5 || blocks[1].Lcn != 105 || blocks[1].Length != 5 {
		t.Fatalf("unexpected second extent: %+v", blocks[1])
	}
	if fi.Fragments() != 2 {
		t.Fatalf("expected fragments==2, got %d", fi.Fragments())
	}
}

func TestScenarioStartingPointAdvance(t *testing.T) {
	v := testvolume.New("C", 100000, 4096, FsNtfs)

	// occupy everything except [200,210) and [5000,7000), matching the
	// free-region layout of the scenario this test encodes.
	before := NewFileInfo(`\before.bin`, "before.bin", 1)
	before.SetBlockmap(NewBlockmap([]Block{{Vcn: 0, Lcn: 0, Length: 200}}))
	v.AddFile(before)

	between := NewFileInfo(`\between.bin`, "between.bin", 2)
	between.SetBlockmap(NewBlockmap([]Block{{Vcn: 0, Lcn: 210, Length: 4790}}))
	v.AddFile(between)

	after := NewFileInfo(`\after.bin`, "after.bin", 3)
	after.SetBlockmap(NewBlockmap([]Block{{Vcn: 0, Lcn: 7000, Length: 93000}}))
	v.AddFile(after)

	jp := NewJobParams("C", JobFullOptimization, defaultOptions(), v, NullObserver{})
	defer jp.Release()

	if err := jp.Analyze(); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	sp := jp.calculateStartingPoint(0)
	if sp != 5000 {
		t.Fatalf("expected the starting point to advance to lcn 5000, got %d", sp)
	}
}

func TestScenarioMftOptimizerFixpointPass(t *testing.T) {
	v := testvolume.New("C", 100000, 4096, FsNtfs)

	mft := NewFileInfo(mftPath, "$Mft", 1)
	mft.SetBlockmap(NewBlockmap([]Block{
		{Vcn: 0, Lcn: 16, Length: 100},
		{Vcn: 100, Lcn: 50000, Length: 50},
	}))
	v.AddFile(mft)

	jp := NewJobParams("C", JobMftOptimization, defaultOptions(), v, NullObserver{})
	defer jp.Release()

	if err := jp.Analyze(); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if err := jp.OptimizeMftHelper(); err != nil {
		t.Fatalf("OptimizeMftHelper failed: %v", err)
	}

	// the first extent is already an optimized MFT prefix sitting at its
	// natural location (lcn 16) and is never touched; only the trailing
	// fragment is compacted in behind it, abutting it at lcn 116.
	blocks := mft.Blockmap().Blocks()
	if len(blocks) != 1 || blocks[0].Lcn != 16 {
		t.Fatalf("expected $Mft's prefix to stay untouched at lcn 16, got %+v", blocks)
	}

	total := Length(0)
	for _, b := range blocks {
		if !b.IsExcluded() {
			total += b.Length
		}
	}
	if total != 150 {
		t.Fatalf("expected $Mft's total length to be unchanged at 150, got %d", total)
	}

	for i := 1; i < len(blocks); i++ {
		if blocks[i].Lcn <= blocks[i-1].Lcn {
			t.Fatalf("expected strictly ascending extents after the pass, got %+v", blocks)
		}
	}
}

func TestScenarioCancellationDuringBigFilesDefrag(t *testing.T) {
	v := testvolume.New("C", 2000, 4096, FsFat32)

	a := NewFileInfo(`\a.bin`, "a.bin", 1)
	a.SetBlockmap(NewBlockmap([]Block{
		{Vcn: 0, Lcn: 100, Length: 2},
		{Vcn: 2, Lcn: 300, Length: 2},
	}))
	v.AddFile(a)

	b := NewFileInfo(`\b.bin`, "b.bin", 2)
	b.SetBlockmap(NewBlockmap([]Block{
		{Vcn: 0, Lcn: 600, Length: 2},
		{Vcn: 2, Lcn: 700, Length: 2},
	}))
	v.AddFile(b)

	jp := NewJobParams("C", JobDefragmentation, defaultOptions(), v, NullObserver{})
	defer jp.Release()

	if err := jp.Analyze(); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	moves := 0
	moved, err := jp.DefragmentBigFiles()
	if err != nil {
		t.Fatalf("DefragmentBigFiles failed: %v", err)
	}
	if moved == 0 {
		t.Fatalf("expected at least one run of clusters to move before inspecting cancellation")
	}

	// cancel the router directly after that pass and re-run: a cancelled
	// pass must return cleanly with zero additional work, never an error.
	jp.router.Cancel()
	moved2, err := jp.DefragmentBigFiles()
	if err != nil {
		t.Fatalf("DefragmentBigFiles after cancellation failed: %v", err)
	}
	if moved2 != 0 {
		t.Fatalf("expected a cancelled pass to move zero further clusters, got %d", moved2)
	}
	_ = moves

	jp.clearCurrentlyExcluded()
	for _, fi := range jp.files {
		if fi.Flags.Has(FlagCurrentlyExcluded) {
			t.Fatalf("expected FlagCurrentlyExcluded to be cleared for the next pass")
		}
	}
}
