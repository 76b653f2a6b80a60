package syncset

import (
	"context"
	"os"
	"os/exec"
	"strconv"
)

// InternalWatcherFlag is the hidden sub-command the worker uses to
// re-invoke the daemon binary as a standalone watcher process
// (SPEC_FULL.md §5's self-exec model, replacing fork()). Never documented
// in --help. cmd/continual-sync recognises it as argv[0]'s first
// argument and dispatches straight into lib/watchcli.
const InternalWatcherFlag = "--internal-watcher"

// realStartWatcher self-execs the current binary as a standalone watcher
// over this set's source tree, dumping change batches into the worker's
// change-queue directory. It is the default for Worker.startWatcherFn;
// tests substitute a fake to avoid spawning a real child.
func realStartWatcher(ctx context.Context, w *Worker) (*exec.Cmd, error) {
	args := []string{
		InternalWatcherFlag,
		w.cfg.Source,
		w.changeQueueDir,
		"-r", strconv.Itoa(maxInt(w.cfg.RecursionDepth, 1)),
	}
	for _, e := range w.cfg.Excludes {
		args = append(args, "-e", e)
	}

	cmd := exec.Command(os.Args[0], args...)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// startWatcherIfNeeded does nothing if a watcher child is running or
// partial syncing is disabled; otherwise it runs source validation and, if
// that succeeds, starts the watcher child (SPEC_FULL.md §4.2 main loop
// step 1).
func (w *Worker) startWatcherIfNeeded(ctx context.Context) error {
	if w.watcherCmd != nil || w.cfg.PartialInterval <= 0 {
		return nil
	}
	if err := w.runValidation(ctx, w.cfg.SourceValidation, actionValidateSource); err != nil {
		return err
	}
	cmd, err := w.startWatcherFn(ctx, w)
	if err != nil {
		w.logf("%s: start watcher: %v", w.cfg.Name, err)
		return err
	}
	w.watcherCmd = cmd
	w.watcherDone = make(chan error, 1)
	go func(c *exec.Cmd, done chan<- error) { done <- c.Wait() }(cmd, w.watcherDone)
	if w.log != nil {
		w.log.Info("started new watcher")
	}
	return nil
}

// reapWatcher checks whether the watcher child has exited, without
// blocking, and clears watcherCmd if so.
func (w *Worker) reapWatcher() bool {
	if w.watcherCmd == nil || w.watcherDone == nil {
		return false
	}
	select {
	case <-w.watcherDone:
		w.watcherCmd = nil
		w.watcherDone = nil
		if w.log != nil {
			w.log.Info("watcher process ended")
		}
		return true
	default:
		return false
	}
}

// stopWatcher signals the watcher child to exit (used on worker
// shutdown).
func (w *Worker) stopWatcher() {
	if w.watcherCmd == nil || w.watcherCmd.Process == nil {
		return
	}
	_ = w.watcherCmd.Process.Signal(os.Interrupt)
}
