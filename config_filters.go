package udefrag

import "path/filepath"

// objectManagerPrefixes are the device-namespace prefixes a path may carry
// before the filename an operator actually recognizes.
var objectManagerPrefixes = []string{`\??\`, `/??/`}

// stripObjectManagerPrefix removes a leading object-manager prefix from a
// path, if present. Resolves spec §9 open question 1: exclude_by_path
// strips this prefix from the candidate path, but the configured patterns
// in UD_IN_FILTER/UD_EX_FILTER are never prefixed — this asymmetry is
// preserved exactly as the original behaves, not "fixed."
func stripObjectManagerPrefix(path string) string {
	for _, prefix := range objectManagerPrefixes {
		if len(path) >= len(prefix) && path[:len(prefix)] == prefix {
			return path[len(prefix):]
		}
	}
	return path
}

// matchesAny reports whether the (already-stripped) path matches any of
// patterns, using shell-glob semantics.
func matchesAny(path string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, err := filepath.Match(pattern, path); err == nil && ok {
			return true
		}
		// Also try matching just the final path element, since UD_*_FILTER
		// patterns are typically filenames rather than full paths.
		if ok, err := filepath.Match(pattern, filepath.Base(path)); err == nil && ok {
			return true
		}
	}
	return false
}

// ExcludeByPath implements exclude_by_path / the include-filter symmetric
// counterpart: raw is the file's path exactly as stored on FileInfo (which
// may carry the object-manager prefix); patterns are the configured
// globs, never prefixed.
func ExcludeByPath(raw string, inFilter, exFilter []string) bool {
	candidate := stripObjectManagerPrefix(raw)

	if len(inFilter) > 0 && !matchesAny(candidate, inFilter) {
		return true
	}
	if len(exFilter) > 0 && matchesAny(candidate, exFilter) {
		return true
	}

	return false
}
