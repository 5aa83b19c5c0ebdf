package udefrag

import (
	"testing"

	"github.com/udefrag/core/internal/testvolume"
)

func newTestJob(t *testing.T, kind JobKind, v *testvolume.Volume) *JobParams {
	t.Helper()
	jp := NewJobParams("C", kind, defaultOptions(), v, NullObserver{})
	if err := jp.Analyze(); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	return jp
}

func TestMoveFileZeroLengthIsNoOpSuccess(t *testing.T) {
	v := testvolume.New("C", 256, 4096, FsFat32)
	fi := NewFileInfo(`\a.bin`, "a.bin", 1)
	fi.SetBlockmap(NewBlockmap([]Block{{Vcn: 0, Lcn: 10, Length: 4}}))
	v.AddFile(fi)

	jp := newTestJob(t, JobDefragmentation, v)
	defer jp.Release()

	res, err := jp.MoveFile(fi, 0, 0, 50, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != MoveCalculatedSuccess {
		t.Fatalf("expected MoveCalculatedSuccess for a zero-length move, got %v", res.Outcome)
	}
}

func TestMoveFileLockedReportsMoveFileLocked(t *testing.T) {
	v := testvolume.New("C", 256, 4096, FsFat32)
	fi := NewFileInfo(`\locked.bin`, "locked.bin", 1)
	fi.SetBlockmap(NewBlockmap([]Block{{Vcn: 0, Lcn: 10, Length: 4}}))
	v.AddFile(fi)
	v.Lock(`\locked.bin`)

	jp := newTestJob(t, JobDefragmentation, v)
	defer jp.Release()

	res, err := jp.MoveFile(fi, 0, 4, 50, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != MoveFileLocked {
		t.Fatalf("expected MoveFileLocked, got %v", res.Outcome)
	}
	if !fi.Flags.IsLocked() {
		t.Fatalf("expected the file to be flagged Locked")
	}
}

func TestMoveFilePastEofIsLenientSuccess(t *testing.T) {
	v := testvolume.New("C", 256, 4096, FsFat32)
	fi := NewFileInfo(`\short.bin`, "short.bin", 1)
	fi.SetBlockmap(NewBlockmap([]Block{{Vcn: 0, Lcn: 10, Length: 2}}))
	v.AddFile(fi)

	jp := newTestJob(t, JobDefragmentation, v)
	defer jp.Release()

	res, err := jp.MoveFile(fi, 5, 3, 50, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != MoveCalculatedSuccess {
		t.Fatalf("expected a past-EOF move to report MoveCalculatedSuccess, got %v", res.Outcome)
	}
}

func TestMoveFileCutOffPreservesTombstoneOverSynthesize(t *testing.T) {
	v := testvolume.New("C", 256, 4096, FsFat32)
	fi := NewFileInfo(`\partial.bin`, "partial.bin", 1)
	fi.SetBlockmap(NewBlockmap([]Block{{Vcn: 0, Lcn: 10, Length: 8}}))
	v.AddFile(fi)

	jp := newTestJob(t, JobDefragmentation, v)
	defer jp.Release()

	res, err := jp.MoveFile(fi, 2, 2, 100, CutOffMovedClusters)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Outcome.isSuccess() {
		t.Fatalf("expected a successful outcome, got %v", res.Outcome)
	}

	var sawTombstone bool
	for _, b := range fi.Blockmap().Blocks() {
		if b.IsExcluded() {
			sawTombstone = true
		}
	}
	if !sawTombstone {
		t.Fatalf("CutOffMovedClusters should leave a tombstone for the moved range")
	}
}
