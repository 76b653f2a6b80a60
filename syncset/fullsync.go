package syncset

import (
	"context"
	"time"

	"github.com/a-j-wood/continual-sync/lib/lockfile"
	"github.com/a-j-wood/continual-sync/status"
)

// defaultFullRsyncOpts matches original_source/sync.c's sync_full default
// when the set defines none.
const defaultFullRsyncOpts = "--delete -axH"

// fullSync implements SPEC_FULL.md §4.2's full sync: acquire the sync
// lock (if configured), invoke the transfer helper with no file list, and
// update the marker/failure bookkeeping on result.
func (w *Worker) fullSync(ctx context.Context) error {
	opts := w.cfg.FullRsyncOpts
	if opts == "" {
		opts = defaultFullRsyncOpts
	}

	if w.cfg.SyncLock != "" {
		w.setAction(status.ActionFullAwaitingLock)
		w.writeStatus()
		lock, err := lockfile.Acquire(ctx, w.cfg.SyncLock)
		if err != nil {
			return err
		}
		defer lock.Close()
	}

	w.setAction(status.ActionFull)
	w.writeStatus()

	exitCode, err := w.invokeTransferHelper(ctx, opts, "")
	now := time.Now()
	if err != nil || exitCode != 0 {
		w.lastFailedFullSync = now
		w.fullSyncFailures++
		w.lastFullSyncStatus = "FAILED"
		w.setAction(status.ActionWaiting)
		w.writeStatus()
		return errFailed
	}

	w.lastFullSync = now
	w.fullSyncFailures = 0
	w.lastFullSyncStatus = "OK"
	if w.cfg.FullMarker != "" {
		touch(w.cfg.FullMarker)
	}
	w.setAction(status.ActionWaiting)
	w.writeStatus()
	return nil
}
