package udefrag

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
)

// ReportEntry is one row of the fragmented-files report (§12.1).
type ReportEntry struct {
	Path      string `json:"path"`
	Size      uint64 `json:"size"`
	Fragments int    `json:"fragments"`
}

// Report is the structured dump a run hands to the caller and, unless
// UD_DISABLE_REPORTS is set, writes to disk (§6.3, §12.1).
type Report struct {
	VolumeLetter string        `json:"volume_letter"`
	Job          string        `json:"job"`
	Entries      []ReportEntry `json:"fragmented_files"`
}

// BuildReport snapshots the current fragmented-files list into a Report.
func (jp *JobParams) BuildReport() Report {
	r := Report{VolumeLetter: jp.VolumeLetter, Job: jp.Kind.String()}

	for i := 0; i < jp.fragmented.Len(); i++ {
		fi := jp.fragmented.At(i)
		r.Entries = append(r.Entries, ReportEntry{
			Path:      fi.Path,
			Size:      fi.Size,
			Fragments: fi.Fragments(),
		})
	}

	return r
}

// WriteTable writes the human-readable aligned table (the fraglist.txt
// equivalent of §12.1), in the teacher's plain fmt.Printf reporting style.
func (r Report) WriteTable(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "volume\t%s\n", r.VolumeLetter)
	fmt.Fprintf(tw, "job\t%s\n", r.Job)
	fmt.Fprintln(tw, "path\tsize\tfragments")

	for _, e := range r.Entries {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", e.Path, humanize.Bytes(e.Size), e.Fragments)
	}

	return tw.Flush()
}

// WriteJSON writes the structured dump (the fraglist.json equivalent of
// §12.1, rendered as JSON per DESIGN.md's open-question resolution).
func (r Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// EmitReports writes both report artifacts at the volume root unless
// UD_DISABLE_REPORTS is set (§6.3, §12.1). The filename/extension is
// explicitly non-contractual per spec.md §6.3; these names are this
// module's own choice.
func (jp *JobParams) EmitReports(root string) error {
	if jp.Options.DisableReports {
		detailedPrint("%s: reports disabled, skipping emitter", jp.VolumeLetter)
		return nil
	}

	report := jp.BuildReport()

	if err := writeReportFile(filepath.Join(root, "fraglist.txt"), report.WriteTable); err != nil {
		return log.Wrap(err)
	}
	if err := writeReportFile(filepath.Join(root, "fraglist.json"), report.WriteJSON); err != nil {
		return log.Wrap(err)
	}

	return nil
}

func writeReportFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return write(f)
}
