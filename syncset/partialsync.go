package syncset

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/a-j-wood/continual-sync/lib/lockfile"
	"github.com/a-j-wood/continual-sync/status"
)

// defaultPartialRsyncOpts matches original_source/sync.c's sync_partial
// default when the set defines none.
const defaultPartialRsyncOpts = "--delete -dlptgoDH"

// maxLogTransferLines caps how many transfer-list lines are copied into
// the log for visibility (SPEC_FULL.md §4.2 step 4).
const maxLogTransferLines = 100

// partialSync implements SPEC_FULL.md §4.2's partial sync: collate a
// transfer list from the change-queue directory, and if non-empty, run the
// transfer helper against it under the sync lock.
func (w *Worker) partialSync(ctx context.Context) error {
	n, err := w.collateTransferList()
	if err != nil {
		return err
	}
	if n == 0 {
		return nil // no-op success
	}
	defer os.Remove(w.transferList)

	if w.cfg.SyncLock != "" {
		w.setAction(status.ActionPartialAwaitingLock)
		w.writeStatus()
		lock, err := lockfile.Acquire(ctx, w.cfg.SyncLock)
		if err != nil {
			return err
		}
		defer lock.Close()
	}

	w.logTransferListPreview()

	w.setAction(status.ActionPartial)
	w.writeStatus()

	opts := w.cfg.PartialRsyncOpts
	if opts == "" {
		opts = defaultPartialRsyncOpts
	}

	exitCode, err := w.invokeTransferHelper(ctx, opts, w.transferList)
	now := time.Now()
	if err != nil || exitCode != 0 {
		w.lastFailedPartialSync = now
		w.partialSyncFailures++
		w.lastPartialSyncStatus = "FAILED"
		w.setAction(status.ActionWaiting)
		w.writeStatus()
		return errFailed
	}

	w.lastPartialSync = now
	w.partialSyncFailures = 0
	w.lastPartialSyncStatus = "OK"
	if w.cfg.PartialMarker != "" {
		touch(w.cfg.PartialMarker)
	}
	w.setAction(status.ActionWaiting)
	w.writeStatus()
	return nil
}

// collateTransferList implements SPEC_FULL.md §4.2 step 1: read every
// regular batch file in the change-queue directory in sorted order,
// dedupe lines with a map (replacing the original's tsearch binary tree),
// lstat-confirm each still exists under source, and append survivors to
// the transfer list. Every batch file is deleted once processed,
// regardless of whether its lines survived the lstat check.
func (w *Worker) collateTransferList() (int, error) {
	entries, err := os.ReadDir(w.changeQueueDir)
	if err != nil {
		return 0, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	seen := make(map[string]struct{})
	var survivors []string

	for _, name := range names {
		path := filepath.Join(w.changeQueueDir, name)
		fi, err := os.Lstat(path)
		if err != nil || !fi.Mode().IsRegular() {
			continue
		}

		func() {
			f, err := os.Open(path)
			if err != nil {
				return
			}
			defer f.Close()

			scanner := bufio.NewScanner(f)
			for scanner.Scan() {
				line := scanner.Text()
				if line == "" {
					continue
				}
				if _, dup := seen[line]; dup {
					continue
				}
				seen[line] = struct{}{}

				target := filepath.Join(w.cfg.Source, strings.TrimSuffix(line, "/"))
				if _, err := os.Lstat(target); err != nil {
					continue
				}
				survivors = append(survivors, line)
			}
		}()

		os.Remove(path) // delete the batch file regardless of outcome
	}

	if len(survivors) == 0 {
		return 0, nil
	}

	var b strings.Builder
	for _, s := range survivors {
		b.WriteString(s)
		b.WriteByte('\n')
	}
	if err := appendFile(w.transferList, b.String()); err != nil {
		return 0, err
	}
	return len(survivors), nil
}

func appendFile(path, content string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(content)
	return err
}

// logTransferListPreview copies up to maxLogTransferLines lines of the
// transfer list into the log for visibility before a partial sync runs.
func (w *Worker) logTransferListPreview() {
	if w.log == nil {
		return
	}
	f, err := os.Open(w.transferList)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	n := 0
	for n < maxLogTransferLines && scanner.Scan() {
		w.log.Info(scanner.Text())
		n++
	}
}
