package acmeutil

import "path/filepath"

// SafeName reports whether name is safe to embed as a single filesystem
// path segment: non-empty and free of path separators or ".." traversal,
// matching original_source/mod_md/md_util.c's defensive checks before any
// name is joined onto the store's base directory.
func SafeName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return filepath.Base(name) == name
}

// MatchName reports whether name matches pattern using shell-style
// globbing (path.Match semantics), mirroring md_store.c's use of
// apr_fnmatch for name_pattern iteration (spec section 4.1 "iterate").
// An empty pattern matches everything.
func MatchName(pattern, name string) bool {
	if pattern == "" {
		return true
	}
	matched, err := filepath.Match(pattern, name)
	if err != nil {
		return false
	}
	return matched
}
