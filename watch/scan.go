package watch

import (
	"os"
	"sort"
	"syscall"

	"github.com/a-j-wood/continual-sync/tree"
)

func lstatDevice(path string) (uint64, bool, error) {
	var st syscall.Stat_t
	if err := syscall.Lstat(path, &st); err != nil {
		return 0, false, err
	}
	return uint64(st.Dev), st.Mode&syscall.S_IFMT == syscall.S_IFDIR, nil
}

func lstatFile(path string) (os.FileInfo, bool, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		return nil, false, err
	}
	return fi, fi.Mode().IsRegular(), nil
}

// Scan implements SPEC_FULL.md §4.1's rescan algorithm for the DirNode at
// idx. It is grounded on original_source/watch.c's ds_dir_scan, algorithm
// step for step: depth cap, lstat, clear-seen, sorted listing with the
// filename filter applied, add-or-mark-seen, cascade-remove the unseen,
// recurse into the seen (unless noRecurse), re-stat surviving files and
// mark changed paths, then register the kernel watch if not yet held.
func (w *Watcher) Scan(idx tree.NodeIndex, noRecurse bool) error {
	dir := w.tr.Dir(idx)
	if dir.Depth > w.tr.MaxDepth {
		w.removeDirNode(idx)
		return errDepthExceeded
	}

	path := dir.Path
	dev, isDir, err := lstatDevice(path)
	if err != nil || !isDir {
		w.removeDirNode(idx)
		return err
	}
	dir.Device = dev

	w.tr.ClearSeen(idx)

	entries, err := os.ReadDir(path)
	if err != nil {
		w.removeDirNode(idx)
		return err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		if !NameAllowed(name, w.tr.Excludes) {
			continue
		}
		childPath := path + "/" + name
		childDev, childIsDir, err := lstatDevice(childPath)
		if err != nil {
			continue // vanished between readdir and lstat; next pass will drop it
		}
		if childIsDir {
			if childDev != dev {
				continue // invariant 4: never cross a device boundary
			}
			w.tr.AddDir(idx, name, childDev)
			continue
		}
		fi, isRegular, err := lstatFile(childPath)
		if err != nil || !isRegular {
			continue
		}
		fidx, created := w.tr.AddFile(idx, name)
		if created {
			f := w.tr.File(fidx)
			f.ModTime = fi.ModTime()
			f.Size = fi.Size()
		}
	}

	for _, childIdx := range w.tr.UnseenDirs(idx) {
		w.removeDirNode(childIdx)
	}
	for _, fidx := range w.tr.UnseenFiles(idx) {
		w.removeFileNode(idx, fidx)
	}

	if !noRecurse {
		for _, childIdx := range w.tr.SeenDirs(idx) {
			_ = w.Scan(childIdx, false)
		}
	}

	for leaf, fidx := range w.tr.Dir(idx).Files {
		w.recheckFile(idx, leaf, fidx)
	}

	if err := w.registerWatch(idx); err != nil {
		w.logf("watch registration failed for %s: %v", path, err)
	}

	return nil
}

// recheckFile compares a surviving file's (mtime, size) to its stored
// values (SPEC_FULL.md §4.1 step 7 / §8 "mtime/size determinism" law). If
// it changed, the stored values are updated and the path is marked
// changed; if it vanished or is no longer a regular file, it is removed.
func (w *Watcher) recheckFile(parent tree.NodeIndex, leaf string, fidx tree.FileIndex) {
	f := w.tr.File(fidx)
	fi, isRegular, err := lstatFile(f.Path)
	if err != nil || !isRegular {
		w.removeFileNode(parent, fidx)
		return
	}
	if fi.ModTime().Equal(f.ModTime) && fi.Size() == f.Size {
		return
	}
	f.ModTime = fi.ModTime()
	f.Size = fi.Size()
	w.changed.Mark(w.tr.RelFilePath(fidx))
}

func (w *Watcher) removeFileNode(parent tree.NodeIndex, fidx tree.FileIndex) {
	leaf := w.tr.File(fidx).Leaf
	w.queue.RemoveFile(fidx)
	w.tr.RemoveFile(parent, leaf)
	w.changed.Mark(w.tr.RelPath(parent))
}

// removeDirNode unregisters the kernel watch (if any) on idx and every
// descendant before cascading the tree removal, so the WatchIndex never
// retains a stale entry (invariant 3).
func (w *Watcher) removeDirNode(idx tree.NodeIndex) {
	w.unregisterWatchRecursive(idx)
	w.queue.RemoveDir(idx)
	w.tr.RemoveDir(idx)
}

func (w *Watcher) unregisterWatchRecursive(idx tree.NodeIndex) {
	dir := w.tr.Dir(idx)
	if dir.Watch >= 0 {
		_ = w.ino.RemoveWatch(dir.Watch)
		delete(w.watchIndex, dir.Watch)
		dir.Watch = -1
	}
	for _, child := range dir.Dirs {
		w.unregisterWatchRecursive(child)
	}
}

func (w *Watcher) registerWatch(idx tree.NodeIndex) error {
	dir := w.tr.Dir(idx)
	if dir.Watch >= 0 {
		return nil
	}
	wd, err := w.ino.AddWatch(dir.Path, dirWatchMask)
	if err != nil {
		return err
	}
	dir.Watch = wd
	w.watchIndex[wd] = idx
	return nil
}
