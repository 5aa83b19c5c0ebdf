package udefrag

import "time"

// BaseID is a stable inode-like identifier for a file, supplied by the
// platform shim. It survives moves, unlike a path.
type BaseID uint64

// FileInfo is the in-memory model of one file or directory (§3).
type FileInfo struct {
	Path   string
	Name   string
	BaseID BaseID

	Flags FileFlag

	Size          uint64
	LastModified  time.Time
	LastAccessed  time.Time
	CreationTime  time.Time

	blockmap *Blockmap

	// fragListIndex is maintained by FragmentedFiles; -1 when not present.
	fragListIndex int
}

// NewFileInfo constructs a FileInfo with an empty blockmap (a resident
// file until SetBlockmap is called).
func NewFileInfo(path, name string, id BaseID) *FileInfo {
	return &FileInfo{
		Path:          path,
		Name:          name,
		BaseID:        id,
		blockmap:      NewBlockmap(nil),
		fragListIndex: -1,
	}
}

// Blockmap returns the file's extent list. Never nil.
func (fi *FileInfo) Blockmap() *Blockmap {
	return fi.blockmap
}

// SetBlockmap replaces the file's extent list wholesale (§4.4: "replace the
// blockmap with the new one").
func (fi *FileInfo) SetBlockmap(bm *Blockmap) {
	fi.blockmap = bm
}

// Clusters is disp.clusters (§3).
func (fi *FileInfo) Clusters() Length {
	return fi.blockmap.Clusters()
}

// Fragments is disp.fragments (§3), kept in sync with the WINX_FILE_DISP_
// FRAGMENTED flag by every mutation path (move.go, tasks.go).
func (fi *FileInfo) Fragments() int {
	return fi.blockmap.Fragments()
}

// IsFragmented mirrors disp.flags & WINX_FILE_DISP_FRAGMENTED.
func (fi *FileInfo) IsFragmented() bool {
	return fi.blockmap.IsFragmented()
}

// IsResident reports clusters == 0 && fragments == 0 (§3).
func (fi *FileInfo) IsResident() bool {
	return fi.blockmap.IsEmpty()
}

// EligibleForFragmentedList reports the membership condition of §3/§8
// invariant 3: fragments >= 2, not excluded, non-empty path.
func (fi *FileInfo) EligibleForFragmentedList() bool {
	return fi.Fragments() >= 2 && !fi.Flags.IsExcluded() && fi.Path != ""
}
