// Package atomicfile implements the hidden-tempfile-then-rename write
// pattern used throughout this program for every artefact that must never
// be observed half-written: batch files, transfer lists, and status
// files (SPEC_FULL.md §6). Grounded on original_source/sync.c's
// update_status_file and original_source/watch.c's dump_changed_paths,
// both of which build a dotfile name (".leafXXXXXX") alongside the target,
// write to it, then rename(2) it over the target.
package atomicfile

import (
	"os"
	"path/filepath"
)

// Write atomically replaces path with data: it creates a hidden temp file
// in the same directory (so the final rename is same-filesystem and
// therefore atomic), writes data, syncs, and renames it into place with
// the given permission bits.
func Write(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	leaf := filepath.Base(path)
	tmp, err := os.CreateTemp(dir, "."+leaf+".tmp*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
