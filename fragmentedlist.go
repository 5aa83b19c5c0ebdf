package udefrag

import "sort"

// FragmentedFiles is the ordered list of §3: every FileInfo with
// fragments >= 2, a non-empty path, and not Excluded — ordered descending
// by fragment count so the heaviest fragmentation is always at the head.
type FragmentedFiles struct {
	entries []*FileInfo
}

// NewFragmentedFiles returns an empty list.
func NewFragmentedFiles() *FragmentedFiles {
	return &FragmentedFiles{}
}

// Len is the number of tracked files.
func (l *FragmentedFiles) Len() int {
	return len(l.entries)
}

// At returns the file at position i (0 == most fragmented).
func (l *FragmentedFiles) At(i int) *FileInfo {
	return l.entries[i]
}

// Head returns the most-fragmented file, or nil if the list is empty.
func (l *FragmentedFiles) Head() *FileInfo {
	if len(l.entries) == 0 {
		return nil
	}
	return l.entries[0]
}

// Reconcile inserts fi if it now qualifies and isn't present, removes it if
// it no longer qualifies and is present, or repositions it if its fragment
// count changed — called after every blockmap edit (§4.4 step 7).
func (l *FragmentedFiles) Reconcile(fi *FileInfo) {
	qualifies := fi.EligibleForFragmentedList()
	present := fi.fragListIndex >= 0

	switch {
	case qualifies && !present:
		l.insertSorted(fi)
	case !qualifies && present:
		l.remove(fi)
	case qualifies && present:
		l.remove(fi)
		l.insertSorted(fi)
	}
}

func (l *FragmentedFiles) insertSorted(fi *FileInfo) {
	idx := sort.Search(len(l.entries), func(i int) bool {
		return l.entries[i].Fragments() < fi.Fragments()
	})

	l.entries = append(l.entries, nil)
	copy(l.entries[idx+1:], l.entries[idx:])
	l.entries[idx] = fi

	l.reindexFrom(idx)
}

func (l *FragmentedFiles) remove(fi *FileInfo) {
	idx := fi.fragListIndex
	if idx < 0 || idx >= len(l.entries) || l.entries[idx] != fi {
		return
	}

	l.entries = append(l.entries[:idx], l.entries[idx+1:]...)
	fi.fragListIndex = -1

	l.reindexFrom(idx)
}

func (l *FragmentedFiles) reindexFrom(start int) {
	for i := start; i < len(l.entries); i++ {
		l.entries[i].fragListIndex = i
	}
}

// Walk visits every file in order, stopping early if fn returns false.
func (l *FragmentedFiles) Walk(fn func(*FileInfo) bool) {
	for _, fi := range l.entries {
		if !fn(fi) {
			return
		}
	}
}
