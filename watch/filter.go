package watch

import "path"

// NameAllowed implements SPEC_FULL.md §4.1's filename filter: reject "",
// ".", ".."; if excludes is non-empty, reject names matching any
// shell-style glob in it; otherwise reject names ending in "~" or ".tmp".
// Grounded on original_source/watch.c's ds_filename_valid (which uses
// fnmatch(3); path.Match is the stdlib equivalent for the glob syntax this
// program's excludes use — no "**" or brace expansion, matching fnmatch's
// feature set).
func NameAllowed(name string, excludes []string) bool {
	switch name {
	case "", ".", "..":
		return false
	}
	if len(excludes) > 0 {
		for _, pattern := range excludes {
			if ok, err := path.Match(pattern, name); err == nil && ok {
				return false
			}
		}
		return true
	}
	if hasSuffix(name, "~") || hasSuffix(name, ".tmp") {
		return false
	}
	return true
}

func hasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}
