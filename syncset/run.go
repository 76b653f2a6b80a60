package syncset

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/a-j-wood/continual-sync/status"
)

// Run implements SPEC_FULL.md §4.2's main loop: start the watcher when
// needed, run full and partial syncs on schedule, reap the watcher child,
// and exit if the working directory disappears or ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	defer w.shutdown()

	w.writeStatus()

	for {
		if ctx.Err() != nil {
			return nil
		}

		checkWorkDir := false

		if err := w.startWatcherIfNeeded(ctx); err != nil {
			if errors.Is(err, errValidationAborted) {
				return nil
			}
			time.Sleep(5 * time.Second)
		}

		now := time.Now()

		if w.cfg.FullInterval > 0 && !now.Before(w.nextFullSync) {
			checkWorkDir = true
			if err := w.runValidationPair(ctx); err != nil {
				if errors.Is(err, errValidationAborted) {
					return nil
				}
				w.nextFullSync = time.Now().Add(w.cfg.FullRetry)
			} else if err := w.fullSync(ctx); err != nil {
				w.nextFullSync = time.Now().Add(w.cfg.FullRetry)
			} else {
				w.nextFullSync = time.Now().Add(w.cfg.FullInterval)
			}
			w.setAction(status.ActionWaiting)
			w.writeStatus()
		}

		if w.watcherCmd != nil && !now.Before(w.nextPartialSync) {
			checkWorkDir = true
			if err := w.runValidationPair(ctx); err != nil {
				if errors.Is(err, errValidationAborted) {
					return nil
				}
				w.nextPartialSync = time.Now().Add(w.cfg.PartialRetry)
			} else if err := w.partialSync(ctx); err != nil {
				w.nextPartialSync = time.Now().Add(w.cfg.PartialRetry)
			} else {
				w.nextPartialSync = time.Now().Add(w.cfg.PartialInterval)
			}
			w.setAction(status.ActionWaiting)
			w.writeStatus()
		}

		if w.reapWatcher() {
			checkWorkDir = true
		}

		if checkWorkDir {
			if _, err := os.Stat(w.workDir); err != nil {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// runValidationPair runs source then destination validation, matching
// every call site in SPEC_FULL.md §4.2 that gates a sync attempt on both.
func (w *Worker) runValidationPair(ctx context.Context) error {
	if err := w.runValidation(ctx, w.cfg.SourceValidation, actionValidateSource); err != nil {
		return err
	}
	return w.runValidation(ctx, w.cfg.DestinationValidation, actionValidateDest)
}

// shutdown stops the watcher child and removes the private working
// directory (SPEC_FULL.md §4.2/§5 cleanup on exit).
func (w *Worker) shutdown() {
	w.stopWatcher()
	_ = w.Close()
}
