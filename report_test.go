package udefrag

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/udefrag/core/internal/testvolume"
)

func TestBuildReportListsFragmentedFiles(t *testing.T) {
	v := testvolume.New("C", 1000, 4096, FsFat32)

	fi := NewFileInfo(`\frag.bin`, "frag.bin", 1)
	fi.SetBlockmap(NewBlockmap([]Block{
		{Vcn: 0, Lcn: 100, Length: 4},
		{Vcn: 4, Lcn: 300, Length: 4},
	}))
	fi.Size = 32768
	v.AddFile(fi)

	jp := NewJobParams("C", JobAnalysis, defaultOptions(), v, NullObserver{})
	defer jp.Release()

	if err := jp.Analyze(); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	r := jp.BuildReport()
	if r.VolumeLetter != "C" {
		t.Fatalf("expected volume letter C, got %q", r.VolumeLetter)
	}
	if len(r.Entries) != 1 {
		t.Fatalf("expected one fragmented entry, got %d: %+v", len(r.Entries), r.Entries)
	}
	if r.Entries[0].Path != `\frag.bin` || r.Entries[0].Fragments != 2 {
		t.Fatalf("unexpected entry: %+v", r.Entries[0])
	}
}

func TestReportWriteTableAndJSON(t *testing.T) {
	r := Report{
		VolumeLetter: "C",
		Job:          "analysis",
		Entries: []ReportEntry{
			{Path: `\a.bin`, Size: 4096, Fragments: 3},
		},
	}

	var table bytes.Buffer
	if err := r.WriteTable(&table); err != nil {
		t.Fatalf("WriteTable failed: %v", err)
	}
	if !strings.Contains(table.String(), `\a.bin`) {
		t.Fatalf("expected table to mention the fragmented path, got:\n%s", table.String())
	}

	var buf bytes.Buffer
	if err := r.WriteJSON(&buf); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	var decoded Report
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("failed to decode JSON report: %v", err)
	}
	if len(decoded.Entries) != 1 || decoded.Entries[0].Path != `\a.bin` {
		t.Fatalf("unexpected decoded report: %+v", decoded)
	}
}

func TestEmitReportsRespectsDisableReports(t *testing.T) {
	v := testvolume.New("C", 1000, 4096, FsFat32)
	jp := NewJobParams("C", JobAnalysis, defaultOptions(), v, NullObserver{})
	defer jp.Release()

	if err := jp.Analyze(); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	jp.Options.DisableReports = true

	dir := t.TempDir()
	if err := jp.EmitReports(dir); err != nil {
		t.Fatalf("EmitReports failed: %v", err)
	}
}
