package udefrag

import (
	"testing"

	"github.com/udefrag/core/internal/testvolume"
)

func TestOptimizeMftHelperEvacuatesBlockerAndCompacts(t *testing.T) {
	v := testvolume.New("C", 512, 4096, FsNtfs)

	mft := NewFileInfo(mftPath, "$Mft", 1)
	mft.SetBlockmap(NewBlockmap([]Block{
		{Vcn: 0, Lcn: 0, Length: 4},
		{Vcn: 4, Lcn: 100, Length: 4},
	}))
	v.AddFile(mft)

	blocker := NewFileInfo(`\blocker.bin`, "blocker.bin", 2)
	blocker.SetBlockmap(NewBlockmap([]Block{{Vcn: 0, Lcn: 4, Length: 3}}))
	v.AddFile(blocker)

	jp := NewJobParams("C", JobMftOptimization, defaultOptions(), v, NullObserver{})
	defer jp.Release()

	if err := jp.Analyze(); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if err := jp.OptimizeMftHelper(); err != nil {
		t.Fatalf("OptimizeMftHelper failed: %v", err)
	}

	if mft.Fragments() != 1 {
		t.Fatalf("expected $Mft to end up in one contiguous run, fragments=%d blocks=%+v", mft.Fragments(), mft.Blockmap().Blocks())
	}

	// the prefix (Vcn0,Lcn0,Length4) is already at its natural location and
	// is never moved; only the trailing extent is compacted in behind it,
	// abutting it at lcn4 and merging into one run starting at lcn0.
	blocks := mft.Blockmap().Blocks()
	if len(blocks) != 1 || blocks[0].Lcn != 0 || blocks[0].Length != 8 {
		t.Fatalf("unexpected compacted $Mft blockmap: %+v", blocks)
	}

	if !blocker.Flags.Has(FlagFragmentedByMftOpt) {
		t.Fatalf("expected the evacuated blocker to be flagged FragmentedByMftOpt")
	}
	for _, b := range blocker.Blockmap().Blocks() {
		if !b.IsExcluded() && b.Lcn == 4 {
			t.Fatalf("expected the blocker to have moved off its original lcn 4, got %+v", blocker.Blockmap().Blocks())
		}
	}
}

func TestOptimizeMftHelperNoOpOnAlreadyContiguousMft(t *testing.T) {
	v := testvolume.New("C", 256, 4096, FsNtfs)

	mft := NewFileInfo(mftPath, "$Mft", 1)
	mft.SetBlockmap(NewBlockmap([]Block{{Vcn: 0, Lcn: 0, Length: 8}}))
	v.AddFile(mft)

	jp := NewJobParams("C", JobMftOptimization, defaultOptions(), v, NullObserver{})
	defer jp.Release()

	if err := jp.Analyze(); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if err := jp.OptimizeMftHelper(); err != nil {
		t.Fatalf("OptimizeMftHelper failed: %v", err)
	}

	blocks := mft.Blockmap().Blocks()
	if len(blocks) != 1 || blocks[0].Lcn != 0 || blocks[0].Length != 8 {
		t.Fatalf("expected an already-contiguous $Mft to be left untouched, got %+v", blocks)
	}
}

func TestOptimizeMftHelperSkipsNonNtfsVolume(t *testing.T) {
	v := testvolume.New("C", 256, 4096, FsFat32)

	jp := NewJobParams("C", JobAnalysis, defaultOptions(), v, NullObserver{})
	defer jp.Release()

	if err := jp.Analyze(); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if err := jp.OptimizeMftHelper(); err != nil {
		t.Fatalf("OptimizeMftHelper should be a silent no-op on FAT: %v", err)
	}
}
