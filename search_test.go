package udefrag

import (
	"testing"

	"github.com/udefrag/core/internal/testvolume"
)

func newAnalyzedJobParams(t *testing.T, v *testvolume.Volume, kind JobKind) *JobParams {
	t.Helper()
	jp := NewJobParams("C", kind, defaultOptions(), v, NullObserver{})
	if err := jp.Analyze(); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	return jp
}

func TestFindFirstAndLastFree(t *testing.T) {
	v := testvolume.New("C", 1000, 4096, FsFat32)

	fi := NewFileInfo(`\a.bin`, "a.bin", 1)
	fi.SetBlockmap(NewBlockmap([]Block{{Vcn: 0, Lcn: 100, Length: 100}}))
	v.AddFile(fi)

	jp := newAnalyzedJobParams(t, v, JobAnalysis)
	defer jp.Release()

	first, ok := jp.FindFirstFree(10)
	if !ok || first.Lcn != 0 {
		t.Fatalf("expected first free region at lcn 0, got %+v ok=%v", first, ok)
	}

	last, ok := jp.FindLastFree(10)
	if !ok || last.Lcn != 200 {
		t.Fatalf("expected last free region at lcn 200, got %+v ok=%v", last, ok)
	}
}

func TestFindLargestFree(t *testing.T) {
	v := testvolume.New("C", 1000, 4096, FsFat32)

	fi := NewFileInfo(`\a.bin`, "a.bin", 1)
	fi.SetBlockmap(NewBlockmap([]Block{
		{Vcn: 0, Lcn: 0, Length: 10},
		{Vcn: 10, Lcn: 50, Length: 10},
	}))
	v.AddFile(fi)

	jp := newAnalyzedJobParams(t, v, JobAnalysis)
	defer jp.Release()

	largest, ok := jp.FindLargestFree()
	if !ok {
		t.Fatalf("expected a largest free region")
	}
	// the tail run [60,1000) is 940 clusters, wider than the 40-cluster gap
	// [10,50) between the two extents
	if largest.Lcn != 60 || largest.Length != 940 {
		t.Fatalf("expected the 940-cluster tail run at lcn 60, got %+v", largest)
	}
}

func TestFindMatchingFreePrefersForwardZone(t *testing.T) {
	v := testvolume.New("C", 1000, 4096, FsFat32)

	fi := NewFileInfo(`\a.bin`, "a.bin", 1)
	fi.SetBlockmap(NewBlockmap([]Block{
		{Vcn: 0, Lcn: 50, Length: 10},
		{Vcn: 10, Lcn: 200, Length: 10},
	}))
	v.AddFile(fi)

	jp := newAnalyzedJobParams(t, v, JobAnalysis)
	defer jp.Release()

	r, ok := jp.FindMatchingFree(100, 5, PreferForward)
	if !ok || r.Lcn != 210 {
		t.Fatalf("expected the first free region at/after lcn 100, got %+v ok=%v", r, ok)
	}
}

func TestCountMovableAndFreeClusters(t *testing.T) {
	v := testvolume.New("C", 1000, 4096, FsFat32)

	fi := NewFileInfo(`\a.bin`, "a.bin", 1)
	fi.SetBlockmap(NewBlockmap([]Block{{Vcn: 0, Lcn: 100, Length: 50}}))
	v.AddFile(fi)

	jp := newAnalyzedJobParams(t, v, JobAnalysis)
	defer jp.Release()

	movable := jp.CountMovableClusters(0, 1000, FilterAll)
	if movable != 50 {
		t.Fatalf("expected 50 movable clusters, got %d", movable)
	}

	free := jp.CountFreeClusters(0, 1000)
	if free != 950 {
		t.Fatalf("expected 950 free clusters, got %d", free)
	}
}
