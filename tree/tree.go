// Package tree implements the in-memory mirror of a watched directory tree.
//
// Nodes are held in an arena — parallel slices addressed by a stable integer
// index — rather than linked by pointer. A DirNode's children, its parent,
// and the root's WatchIndex all refer to other nodes by index. This avoids
// the raw-pointer aliasing of the original C implementation and turns
// cascade-delete into releasing a set of indices rather than a recursive
// free() walk.
package tree

import "time"

// NodeIndex addresses a DirNode within a Tree. Tree.Root is always index 0
// once New has run, so the zero value refers to the root.
type NodeIndex int

// FileIndex addresses a FileNode within a Tree.
type FileIndex int

const noIndex = -1

// FileNode represents a single regular file below the tree root.
type FileNode struct {
	Path    string // absolute path
	Leaf    string
	ModTime time.Time
	Size    int64
	Parent  NodeIndex
	seen    bool
	freed   bool
}

// DirNode represents a single directory below (or at) the tree root.
type DirNode struct {
	Path    string // absolute path
	Leaf    string
	Depth   int
	Parent  NodeIndex
	Root    NodeIndex
	Watch   int // kernel watch identifier, or -1 if unset
	Device  uint64
	Files   map[string]FileIndex
	Dirs    map[string]NodeIndex
	seen    bool
	freed   bool
}

// Tree is the arena holding every live DirNode/FileNode for one watched
// root. The root DirNode additionally carries the WatchIndex, ChangeQueue
// and ChangedPaths described in SPEC_FULL.md §3; those live in watch.Watcher
// (package watch), which holds a *Tree, keeping this package free of any
// dependency on the watcher or on inotify.
type Tree struct {
	dirs     []DirNode
	files    []FileNode
	freeDirs []NodeIndex
	freeFile []FileIndex
	Root     NodeIndex
	MaxDepth int
	Excludes []string
}

// New creates an empty arena and installs the root DirNode at the given
// absolute path. maxDepth and excludes are module-wide parameters threaded
// as fields of the tree rather than process-wide globals (spec.md §9), so a
// test may run two independent trees in one process.
func New(rootPath string, maxDepth int, excludes []string) *Tree {
	t := &Tree{MaxDepth: maxDepth, Excludes: excludes}
	t.Root = t.newDir(rootPath, leafOf(rootPath), 0, noIndex)
	d := t.Dir(t.Root)
	d.Root = t.Root
	return t
}

func leafOf(path string) string {
	pos := len(path)
	for pos > 0 && path[pos-1] != '/' {
		pos--
	}
	return path[pos:]
}

// Dir returns a pointer to the live DirNode at idx. Callers must not retain
// the pointer across a call that may grow the arena (newDir/newFile can
// reallocate the backing slice).
func (t *Tree) Dir(idx NodeIndex) *DirNode {
	return &t.dirs[idx]
}

// File returns a pointer to the live FileNode at idx.
func (t *Tree) File(idx FileIndex) *FileNode {
	return &t.files[idx]
}

func (t *Tree) newDir(path, leaf string, depth int, parent NodeIndex) NodeIndex {
	d := DirNode{
		Path:   path,
		Leaf:   leaf,
		Depth:  depth,
		Parent: parent,
		Watch:  noIndex,
		Files:  make(map[string]FileIndex),
		Dirs:   make(map[string]NodeIndex),
	}
	if n := len(t.freeDirs); n > 0 {
		idx := t.freeDirs[n-1]
		t.freeDirs = t.freeDirs[:n-1]
		t.dirs[idx] = d
		return idx
	}
	t.dirs = append(t.dirs, d)
	return NodeIndex(len(t.dirs) - 1)
}

func (t *Tree) newFile(path, leaf string, parent NodeIndex) FileIndex {
	f := FileNode{Path: path, Leaf: leaf, Parent: parent}
	if n := len(t.freeFile); n > 0 {
		idx := t.freeFile[n-1]
		t.freeFile = t.freeFile[:n-1]
		t.files[idx] = f
		return idx
	}
	t.files = append(t.files, f)
	return FileIndex(len(t.files) - 1)
}

// AddDir creates (or returns the existing) child directory named leaf under
// parent, marking it seen. The second return value is true if a new node
// was created.
func (t *Tree) AddDir(parent NodeIndex, leaf string, device uint64) (NodeIndex, bool) {
	pd := t.Dir(parent)
	if idx, ok := pd.Dirs[leaf]; ok {
		d := t.Dir(idx)
		d.seen = true
		return idx, false
	}
	path := joinPath(pd.Path, leaf)
	idx := t.newDir(path, leaf, pd.Depth+1, parent)
	d := t.Dir(idx)
	d.Device = device
	d.seen = true
	d.Root = t.Dir(parent).Root
	// re-fetch pd: newDir may have reallocated the slice.
	pd = t.Dir(parent)
	pd.Dirs[leaf] = idx
	return idx, true
}

// AddFile creates (or returns the existing) child file named leaf under
// parent, marking it seen.
func (t *Tree) AddFile(parent NodeIndex, leaf string) (FileIndex, bool) {
	pd := t.Dir(parent)
	if idx, ok := pd.Files[leaf]; ok {
		f := t.File(idx)
		f.seen = true
		return idx, false
	}
	path := joinPath(pd.Path, leaf)
	idx := t.newFile(path, leaf, parent)
	f := t.File(idx)
	f.seen = true
	pd = t.Dir(parent)
	pd.Files[leaf] = idx
	return idx, true
}

// RemoveFile deletes the file node leaf from parent, if present. It is a
// no-op if absent (idempotent, matching the original's delete-then-ignore
// pattern for already-gone entries).
func (t *Tree) RemoveFile(parent NodeIndex, leaf string) {
	pd := t.Dir(parent)
	idx, ok := pd.Files[leaf]
	if !ok {
		return
	}
	delete(pd.Files, leaf)
	f := t.File(idx)
	f.freed = true
	t.freeFile = append(t.freeFile, idx)
}

// RemoveDir cascades: removes every child file, recursively removes every
// child dir, then removes this dir from its parent's index and frees it.
// The caller is responsible for unregistering any kernel watch (this
// package has no knowledge of inotify) and for removing the WatchIndex
// entry before calling RemoveDir, or immediately after, using Dir(idx).Watch.
func (t *Tree) RemoveDir(idx NodeIndex) {
	d := t.Dir(idx)
	for leaf := range d.Files {
		t.RemoveFile(idx, leaf)
	}
	for leaf, child := range d.Dirs {
		t.RemoveDir(child)
		delete(d.Dirs, leaf)
	}
	if d.Parent != noIndex {
		parent := t.Dir(d.Parent)
		delete(parent.Dirs, d.Leaf)
	}
	d.freed = true
	t.freeDirs = append(t.freeDirs, idx)
}

// ClearSeen resets the seen flag on every direct child (file and dir) of
// parent, in preparation for a rescan (spec.md §4.1 scan step 3).
func (t *Tree) ClearSeen(parent NodeIndex) {
	d := t.Dir(parent)
	for _, idx := range d.Files {
		t.File(idx).seen = false
	}
	for _, idx := range d.Dirs {
		t.Dir(idx).seen = false
	}
}

// UnseenDirs returns the indices of direct child dirs of parent that were
// not marked seen since the last ClearSeen.
func (t *Tree) UnseenDirs(parent NodeIndex) []NodeIndex {
	d := t.Dir(parent)
	var out []NodeIndex
	for _, idx := range d.Dirs {
		if !t.Dir(idx).seen {
			out = append(out, idx)
		}
	}
	return out
}

// UnseenFiles returns the indices of direct child files of parent that were
// not marked seen since the last ClearSeen.
func (t *Tree) UnseenFiles(parent NodeIndex) []FileIndex {
	d := t.Dir(parent)
	var out []FileIndex
	for _, idx := range d.Files {
		if !t.File(idx).seen {
			out = append(out, idx)
		}
	}
	return out
}

// SeenDirs returns the indices of direct child dirs of parent that remain
// marked seen (i.e. survived the last scan pass).
func (t *Tree) SeenDirs(parent NodeIndex) []NodeIndex {
	d := t.Dir(parent)
	var out []NodeIndex
	for _, idx := range d.Dirs {
		if t.Dir(idx).seen {
			out = append(out, idx)
		}
	}
	return out
}

// RelPath returns the path of idx relative to the tree root, with a
// trailing "/" if it names a directory. Used when emitting changed-paths
// entries (spec.md §3 Changed-paths set).
func (t *Tree) RelPath(idx NodeIndex) string {
	root := t.Dir(t.Root)
	d := t.Dir(idx)
	if idx == t.Root {
		return ""
	}
	rel := d.Path[len(root.Path):]
	for len(rel) > 0 && rel[0] == '/' {
		rel = rel[1:]
	}
	return rel + "/"
}

// RelFilePath returns a file's path relative to the tree root, with no
// trailing slash.
func (t *Tree) RelFilePath(idx FileIndex) string {
	root := t.Dir(t.Root)
	f := t.File(idx)
	rel := f.Path[len(root.Path):]
	for len(rel) > 0 && rel[0] == '/' {
		rel = rel[1:]
	}
	return rel
}

func joinPath(dir, leaf string) string {
	if dir == "/" {
		return "/" + leaf
	}
	return dir + "/" + leaf
}
