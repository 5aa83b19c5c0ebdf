package udefrag

// FileFlag is a bitset of per-file states (§3). It follows the same
// "typed integer plus predicate methods" shape the teacher uses for
// EntryType.
type FileFlag uint32

const (
	FlagExcluded FileFlag = 1 << iota
	FlagOverLimit
	FlagLocked
	FlagNotLocked
	FlagTooLarge
	FlagMovingFailed
	FlagImproperState
	FlagCurrentlyExcluded
	FlagMovedToFront
	FlagFragmentedByMftOpt
	FlagExcludedByPath
	FlagReparse
	FlagSparse
	FlagCompressed
	FlagEncrypted
	FlagDirectory
	FlagTemporary
)

// Has reports whether all of want is set.
func (f FileFlag) Has(want FileFlag) bool {
	return f&want == want
}

// IsExcluded reports whether the file is excluded from every strategy,
// either outright (FlagExcluded) or by a configured §6.2 filter
// (FlagExcludedByPath) — both forbid fragmented-list membership and
// movement alike.
func (f FileFlag) IsExcluded() bool {
	return f.Has(FlagExcluded) || f.Has(FlagExcludedByPath)
}

// IsLocked reports whether the OS has refused to open/move this file.
func (f FileFlag) IsLocked() bool {
	return f.Has(FlagLocked)
}

// IsMovable reports whether nothing about this file's flags forbids moving
// it right now. Directories are movable on NTFS (dir defrag); excluded,
// locked and currently-excluded files are not.
func (f FileFlag) IsMovable() bool {
	if f.IsExcluded() || f.Has(FlagLocked) || f.Has(FlagCurrentlyExcluded) {
		return false
	}
	if f.Has(FlagTooLarge) || f.Has(FlagImproperState) {
		return false
	}
	return true
}

// Set returns f with want added.
func (f FileFlag) Set(want FileFlag) FileFlag {
	return f | want
}

// Clear returns f with want removed.
func (f FileFlag) Clear(want FileFlag) FileFlag {
	return f &^ want
}
