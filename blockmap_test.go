package udefrag

import "testing"

func TestBlockmapOptimizeMergesAdjacentRuns(t *testing.T) {
	bm := NewBlockmap([]Block{
		{Vcn: 4, Lcn: 104, Length: 4},
		{Vcn: 0, Lcn: 100, Length: 4},
	})

	if bm.Fragments() != 1 {
		t.Fatalf("expected adjacent runs to merge into 1 fragment, got %d", bm.Fragments())
	}
	if len(bm.Blocks()) != 1 {
		t.Fatalf("expected a single merged block, got %d", len(bm.Blocks()))
	}
}

func TestBlockmapFragmentsCountsNonAdjacentRuns(t *testing.T) {
	bm := NewBlockmap([]Block{
		{Vcn: 0, Lcn: 100, Length: 4},
		{Vcn: 4, Lcn: 200, Length: 4},
	})

	if bm.Fragments() != 2 {
		t.Fatalf("expected 2 fragments, got %d", bm.Fragments())
	}
	if !bm.IsFragmented() {
		t.Fatalf("expected IsFragmented() true for a 2-fragment file")
	}
}

func TestBlockmapSubtractRangeLeavesTombstone(t *testing.T) {
	bm := NewBlockmap([]Block{{Vcn: 0, Lcn: 100, Length: 10}})
	bm.SubtractRange(2, 4)

	var sawTombstone bool
	var clusters Length
	for _, b := range bm.Blocks() {
		if b.IsExcluded() {
			sawTombstone = true
			continue
		}
		clusters += b.Length
	}

	if !sawTombstone {
		t.Fatalf("expected a tombstone entry after SubtractRange")
	}
	if clusters != 6 {
		t.Fatalf("expected 6 surviving clusters, got %d", clusters)
	}
}

func TestBlockmapOptimizeIsIdempotent(t *testing.T) {
	bm := NewBlockmap([]Block{
		{Vcn: 0, Lcn: 100, Length: 4},
		{Vcn: 4, Lcn: 104, Length: 4},
		{Vcn: 8, Lcn: 300, Length: 2},
	})

	before := append([]Block(nil), bm.Blocks()...)
	bm.Optimize()
	after := bm.Blocks()

	if len(before) != len(after) {
		t.Fatalf("Optimize should be idempotent once merged: before=%d after=%d", len(before), len(after))
	}
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("Optimize mutated an already-optimized blockmap at index %d", i)
		}
	}
}

func TestFreeRegionListMergesTouchingRegions(t *testing.T) {
	l := NewFreeRegionList(nil)
	l.Add(100, 10)
	l.Add(110, 5)
	l.Add(50, 10)

	if l.Len() != 2 {
		t.Fatalf("expected 2 regions after merging touching ones, got %d", l.Len())
	}

	first, _ := l.First()
	if first.Lcn != 50 || first.Length != 10 {
		t.Fatalf("unexpected first region: %+v", first)
	}

	last, _ := l.Last()
	if last.Lcn != 100 || last.Length != 15 {
		t.Fatalf("unexpected merged region: %+v", last)
	}
}

func TestFreeRegionListSubSplitsRegion(t *testing.T) {
	l := NewFreeRegionList([]FreeRegion{{Lcn: 0, Length: 100}})
	l.Sub(40, 10)

	if l.Len() != 2 {
		t.Fatalf("expected Sub to split one region into two, got %d", l.Len())
	}

	first, _ := l.First()
	if first.Lcn != 0 || first.Length != 40 {
		t.Fatalf("unexpected first half: %+v", first)
	}
}
