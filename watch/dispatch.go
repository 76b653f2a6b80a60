package watch

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/a-j-wood/continual-sync/inotifywatch"
	"github.com/a-j-wood/continual-sync/tree"
)

// dispatch implements SPEC_FULL.md §4.1's event dispatch table, grounded
// on original_source/watch.c's process_inotify_events /
// process_dir_change / process_file_change.
func (w *Watcher) dispatch(now time.Time, ev inotifywatch.Event) {
	idx, ok := w.watchIndex[ev.Watch]
	if !ok {
		return // watch id we no longer know about: discard
	}

	if ev.Mask&unix.IN_DELETE_SELF != 0 {
		w.removeDirNode(idx)
		return
	}

	if ev.Name == "" {
		return
	}

	createLike := ev.Mask&(unix.IN_CREATE|unix.IN_MODIFY|unix.IN_MOVED_TO) != 0
	deleteLike := ev.Mask&(unix.IN_DELETE|unix.IN_MOVED_FROM) != 0

	if ev.IsDir {
		w.dispatchDirEvent(now, idx, ev.Name, createLike, deleteLike)
		return
	}
	w.dispatchFileEvent(now, idx, ev.Name, createLike, deleteLike)
}

func (w *Watcher) dispatchFileEvent(now time.Time, parent tree.NodeIndex, name string, created, deleted bool) {
	dir := w.tr.Dir(parent)
	existing, known := dir.Files[name]

	switch {
	case created:
		if !NameAllowed(name, w.tr.Excludes) {
			return
		}
		childPath := dir.Path + "/" + name
		_, isRegular, err := lstatFile(childPath)
		if err != nil || !isRegular {
			return
		}
		// Leave a freshly added node's (ModTime, Size) at their zero
		// values rather than stat'ing them here: the queued recheck
		// below compares against stored values, and a zero baseline
		// guarantees that first recheck reports the file as changed
		// (mirroring the original's calloc'd-zero new-file struct).
		fidx, _ := w.tr.AddFile(parent, name)
		w.queue.AddFile(now, fidx)
		w.changed.Mark(w.tr.RelPath(parent))
	case deleted:
		if !known {
			return // never seen this name: not create-like, ignore
		}
		w.removeFileNode(parent, existing)
	}
}

func (w *Watcher) dispatchDirEvent(now time.Time, parent tree.NodeIndex, name string, created, deleted bool) {
	dir := w.tr.Dir(parent)
	existing, known := dir.Dirs[name]

	switch {
	case created:
		if !NameAllowed(name, w.tr.Excludes) {
			return
		}
		childPath := dir.Path + "/" + name
		dev, isDir, err := lstatDevice(childPath)
		if err != nil || !isDir {
			return
		}
		if dev != dir.Device {
			return // invariant 4: never cross a device boundary
		}
		if idx, ok := dir.Dirs[name]; ok {
			// Already known: enqueue a full rescan.
			w.queue.AddDir(now, idx)
			w.changed.Mark(w.tr.RelPath(idx))
			return
		}
		childIdx, _ := w.tr.AddDir(parent, name, dev)
		w.queue.AddDir(now, childIdx)
		w.changed.Mark(w.tr.RelPath(childIdx))
	case deleted:
		if !known {
			return
		}
		w.removeDirNode(existing)
		w.changed.Mark(w.tr.RelPath(parent))
	}
}
