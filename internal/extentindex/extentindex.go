// Package extentindex is the balanced ordered tree of §4.2: one entry per
// non-tombstone block across every file, keyed by LCN, supporting
// ascending traversal from an arbitrary minimum LCN.
//
// It is backed by github.com/tidwall/buntdb, an embedded, B-tree-ordered
// key/value store. An in-memory buntdb handle gives this package its
// teardown-on-failure behavior for free: Insert/Delete failures close and
// nil out the handle, and Index.Closed reports that callers must fall back
// to a linear scan (§4.2, §7 OutOfMemory).
package extentindex

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/buntdb"
)

// FileID identifies the owning file without the index needing to hold a Go
// pointer (buntdb values are strings).
type FileID uint64

// Entry is one (file, block) pair as stored in the index.
type Entry struct {
	File   FileID
	Vcn    uint64
	Lcn    uint64
	Length uint64
}

// Index is the extent tree. The zero value is not usable; use Create.
type Index struct {
	db *buntdb.DB
}

// Create opens a fresh, empty in-memory index. Returns an error only if
// the embedded store itself could not be allocated (§7 OutOfMemory).
func Create() (*Index, error) {
	db, err := buntdb.Open(":memory:")
	if err != nil {
		return nil, err
	}

	return &Index{db: db}, nil
}

// Closed reports whether this index has been torn down (by a prior
// Insert/Delete failure, or an explicit Destroy) and callers must fall
// back to linear scans over the file list.
func (idx *Index) Closed() bool {
	return idx == nil || idx.db == nil
}

// Destroy tears the index down unconditionally.
func (idx *Index) Destroy() {
	if idx == nil || idx.db == nil {
		return
	}
	idx.db.Close()
	idx.db = nil
}

func key(e Entry) string {
	return fmt.Sprintf("%020d:%020d:%020d", e.Lcn, e.File, e.Vcn)
}

// Insert adds one (file, block) entry. A duplicate insert of the exact
// same (file, lcn, vcn) triple is a non-fatal anomaly: it is logged by the
// caller (Insert reports it via the bool return) and otherwise ignored,
// per §4.2. Any other allocation failure destroys the whole index and
// returns an error.
func (idx *Index) Insert(e Entry) (collided bool, err error) {
	if idx.Closed() {
		return false, fmt.Errorf("extentindex: index already torn down")
	}

	k := key(e)
	v, err := json.Marshal(e)
	if err != nil {
		idx.Destroy()
		return false, err
	}

	err = idx.db.Update(func(tx *buntdb.Tx) error {
		_, replaced, txErr := tx.Set(k, string(v), nil)
		collided = replaced
		return txErr
	})
	if err != nil {
		idx.Destroy()
		return false, err
	}

	return collided, nil
}

// Delete removes the entry for e, keyed by its (lcn, file, vcn) triple.
// Deleting an absent entry is not an error.
func (idx *Index) Delete(e Entry) error {
	if idx.Closed() {
		return fmt.Errorf("extentindex: index already torn down")
	}

	k := key(e)
	err := idx.db.Update(func(tx *buntdb.Tx) error {
		_, txErr := tx.Delete(k)
		if txErr == buntdb.ErrNotFound {
			return nil
		}
		return txErr
	})
	if err != nil {
		idx.Destroy()
		return err
	}

	return nil
}

// TraverseFrom yields every entry with Lcn >= minLcn in ascending order,
// stopping early if fn returns false.
func (idx *Index) TraverseFrom(minLcn uint64, fn func(Entry) bool) error {
	if idx.Closed() {
		return fmt.Errorf("extentindex: index already torn down")
	}

	pivot := fmt.Sprintf("%020d:%020d:%020d", minLcn, 0, 0)

	return idx.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendGreaterOrEqual("", pivot, func(k, v string) bool {
			var e Entry
			if err := json.Unmarshal([]byte(v), &e); err != nil {
				// A malformed record is a storage anomaly, not grounds to
				// abort the whole traversal.
				return true
			}
			return fn(e)
		})
	})
}

// Count returns the number of entries currently stored.
func (idx *Index) Count() (int, error) {
	if idx.Closed() {
		return 0, fmt.Errorf("extentindex: index already torn down")
	}

	n := 0
	err := idx.db.View(func(tx *buntdb.Tx) error {
		return tx.Ascend("", func(_, _ string) bool {
			n++
			return true
		})
	})

	return n, err
}
