package watch

// ChangedPaths is the append-only, dedup-on-insert list of changed
// tree-relative paths described in SPEC_FULL.md §3, drained atomically on
// dump. Grounded on original_source/watch.c's mark_path_changed (a linear
// scan before append) and dump_changed_paths (atomic dump + clear).
type ChangedPaths struct {
	paths []string
	seen  map[string]bool
}

// NewChangedPaths returns an empty set.
func NewChangedPaths() *ChangedPaths {
	return &ChangedPaths{seen: make(map[string]bool)}
}

// Mark appends path if it is not already pending.
func (c *ChangedPaths) Mark(path string) {
	if c.seen[path] {
		return
	}
	c.seen[path] = true
	c.paths = append(c.paths, path)
}

// Len reports how many distinct paths are pending.
func (c *ChangedPaths) Len() int { return len(c.paths) }

// Drain returns every pending path (in insertion order) and clears the set.
func (c *ChangedPaths) Drain() []string {
	out := c.paths
	c.paths = nil
	c.seen = make(map[string]bool)
	return out
}
