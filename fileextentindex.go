package udefrag

import "github.com/udefrag/core/internal/extentindex"

// FileBlockIndex is the root package's view of §4.2's extent tree: it adds
// the FileInfo-pointer layer on top of internal/extentindex's FileID-keyed
// storage, and implements the "absent index -> linear scan" fallback the
// rest of the engine relies on.
type FileBlockIndex struct {
	idx     *extentindex.Index
	byID    map[extentindex.FileID]*FileInfo
	nextID  extentindex.FileID
	idOf    map[*FileInfo]extentindex.FileID
}

// NewFileBlockIndex creates a fresh, empty index. A nil *FileBlockIndex (or
// one whose creation failed) is a valid zero-index: every query method on
// a nil/absent index is a documented no-op so callers can always check
// `idx.Present()` once and branch to a linear scan otherwise.
func NewFileBlockIndex() *FileBlockIndex {
	idx, err := extentindex.Create()
	if err != nil {
		debugPrint("FileBlockIndex: cannot allocate extent index: %v", err)
		return nil
	}

	return &FileBlockIndex{
		idx:  idx,
		byID: make(map[extentindex.FileID]*FileInfo),
		idOf: make(map[*FileInfo]extentindex.FileID),
	}
}

// Present reports whether the index is usable. Callers must check this
// before relying on any other method; a torn-down or nil index means "fall
// back to a linear scan over the file list" (§4.2, §7).
func (x *FileBlockIndex) Present() bool {
	return x != nil && x.idx != nil && !x.idx.Closed()
}

func (x *FileBlockIndex) idFor(fi *FileInfo) extentindex.FileID {
	if id, ok := x.idOf[fi]; ok {
		return id
	}

	x.nextID++
	id := x.nextID
	x.idOf[fi] = id
	x.byID[id] = fi

	return id
}

// InsertFile indexes every non-tombstone block currently in fi's blockmap.
// If any insert fails, the whole index is destroyed (Present becomes
// false) and the caller must fall back to linear scans for the rest of
// the run.
func (x *FileBlockIndex) InsertFile(fi *FileInfo) {
	if !x.Present() {
		return
	}

	id := x.idFor(fi)
	for _, b := range fi.Blockmap().Blocks() {
		if b.IsExcluded() {
			continue
		}

		collided, err := x.idx.Insert(extentindex.Entry{
			File: id, Vcn: uint64(b.Vcn), Lcn: uint64(b.Lcn), Length: uint64(b.Length),
		})
		if err != nil {
			debugPrint("FileBlockIndex.InsertFile: %v — tearing down index", err)
			x.idx.Destroy()
			return
		}
		if collided {
			debugPrint("FileBlockIndex.InsertFile: duplicate entry for file=%v lcn=%v vcn=%v (non-fatal)", fi.Path, b.Lcn, b.Vcn)
		}
	}
}

// RemoveFile removes every block of fi's current blockmap from the index.
func (x *FileBlockIndex) RemoveFile(fi *FileInfo) {
	if !x.Present() {
		return
	}

	id := x.idFor(fi)
	for _, b := range fi.Blockmap().Blocks() {
		if b.IsExcluded() {
			continue
		}
		if err := x.idx.Delete(extentindex.Entry{
			File: id, Vcn: uint64(b.Vcn), Lcn: uint64(b.Lcn), Length: uint64(b.Length),
		}); err != nil {
			debugPrint("FileBlockIndex.RemoveFile: %v — tearing down index", err)
			x.idx.Destroy()
			return
		}
	}
}

// ReplaceFile atomically removes oldBlocks and inserts fi's current
// blockmap — the "delete old entries, insert new" reconciliation of §4.4
// step 6.
func (x *FileBlockIndex) ReplaceFile(fi *FileInfo, oldBlocks []Block) {
	if !x.Present() {
		return
	}

	id := x.idFor(fi)
	for _, b := range oldBlocks {
		if b.IsExcluded() {
			continue
		}
		if err := x.idx.Delete(extentindex.Entry{
			File: id, Vcn: uint64(b.Vcn), Lcn: uint64(b.Lcn), Length: uint64(b.Length),
		}); err != nil {
			x.idx.Destroy()
			return
		}
	}

	x.InsertFile(fi)
}

// TraverseFrom yields every (file, block) with block.Lcn >= minLcn in
// ascending order.
func (x *FileBlockIndex) TraverseFrom(minLcn Lcn, fn func(*FileInfo, Block) bool) {
	if !x.Present() {
		return
	}

	_ = x.idx.TraverseFrom(uint64(minLcn), func(e extentindex.Entry) bool {
		fi := x.byID[extentindex.FileID(e.File)]
		if fi == nil {
			return true
		}
		return fn(fi, Block{Vcn: Vcn(e.Vcn), Lcn: Lcn(e.Lcn), Length: Length(e.Length)})
	})
}
