package udefrag

import (
	"testing"

	"github.com/udefrag/core/internal/testvolume"
)

func TestDefragmentJoinsFragmentedFile(t *testing.T) {
	v := testvolume.New("C", 1024, 4096, FsFat32)

	fi := NewFileInfo(`\fragmented.bin`, "fragmented.bin", 1)
	fi.SetBlockmap(NewBlockmap([]Block{
		{Vcn: 0, Lcn: 100, Length: 4},
		{Vcn: 4, Lcn: 200, Length: 4},
		{Vcn: 8, Lcn: 300, Length: 4},
	}))
	v.AddFile(fi)

	jp := NewJobParams("C", JobDefragmentation, defaultOptions(), v, NullObserver{})
	defer jp.Release()

	if err := jp.Defragment(true); err != nil {
		t.Fatalf("Defragment failed: %v", err)
	}

	found := jp.byBaseID[fi.BaseID]
	if found == nil {
		t.Fatalf("file not tracked by job after defragment")
	}
	if found.IsFragmented() {
		t.Fatalf("expected file to be unfragmented after defragment, fragments=%d", found.Fragments())
	}
}

func TestDefragmentIsIdempotent(t *testing.T) {
	v := testvolume.New("C", 1024, 4096, FsFat32)

	fi := NewFileInfo(`\already_contiguous.bin`, "already_contiguous.bin", 1)
	fi.SetBlockmap(NewBlockmap([]Block{{Vcn: 0, Lcn: 10, Length: 8}}))
	v.AddFile(fi)

	jp := NewJobParams("C", JobDefragmentation, defaultOptions(), v, NullObserver{})
	defer jp.Release()

	if err := jp.Defragment(true); err != nil {
		t.Fatalf("Defragment failed: %v", err)
	}
	if jp.stats.processedClusters != 0 {
		t.Fatalf("expected no clusters moved for an already-contiguous file, got %d", jp.stats.processedClusters)
	}
}

func TestOptimizeRefusesOnUnsupportedFilesystem(t *testing.T) {
	v := testvolume.New("C", 256, 4096, FsFat12)

	jp := NewJobParams("C", JobFullOptimization, defaultOptions(), v, NullObserver{})
	defer jp.Release()

	err := jp.Optimize(true)
	if err != ErrUnsupportedFs {
		t.Fatalf("expected ErrUnsupportedFs, got %v", err)
	}
}

func TestAnalyzeRejectsDirtyVolumeForNonAnalysisJobs(t *testing.T) {
	v := testvolume.New("C", 256, 4096, FsNtfs)
	v.SetDirty(true)

	jp := NewJobParams("C", JobDefragmentation, defaultOptions(), v, NullObserver{})
	defer jp.Release()

	if err := jp.Analyze(); err != ErrDirtyVolume {
		t.Fatalf("expected ErrDirtyVolume, got %v", err)
	}
}

func TestAnalyzeAllowsDirtyVolumeForAnalysisJob(t *testing.T) {
	v := testvolume.New("C", 256, 4096, FsNtfs)
	v.SetDirty(true)

	jp := NewJobParams("C", JobAnalysis, defaultOptions(), v, NullObserver{})
	defer jp.Release()

	if err := jp.Analyze(); err != nil {
		t.Fatalf("Analyze should tolerate a dirty volume for a pure analysis job: %v", err)
	}
}

func TestMftOptimizationRequiresXpOrNewerHost(t *testing.T) {
	v := testvolume.New("C", 512, 4096, FsNtfs)
	v.SetOsVersion(4, 0) // NT4

	jp := NewJobParams("C", JobMftOptimization, defaultOptions(), v, NullObserver{})
	defer jp.Release()

	err := jp.Analyze()
	if err != ErrUnsupportedHost {
		t.Fatalf("expected ErrUnsupportedHost on NT4, got %v", err)
	}
}
