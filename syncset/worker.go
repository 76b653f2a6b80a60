// Package syncset implements the per-sync-set worker described in
// SPEC_FULL.md §4.2: own one configured sync set for its process lifetime,
// schedule full and partial syncs, supervise a watcher child, and keep a
// status file current. Grounded on original_source/sync.c's
// continual_sync and its helpers.
package syncset

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/a-j-wood/continual-sync/config"
	"github.com/a-j-wood/continual-sync/logx"
	"github.com/a-j-wood/continual-sync/status"
)

// defaultTransferHelper is the external program invoked to perform an
// actual file transfer; spec.md names it "an rsync-compatible helper".
const defaultTransferHelper = "rsync"

// defaultValidationShell runs source/destination validation commands,
// matching original_source/sync.c's use of /bin/sh -c.
const defaultValidationShell = "/bin/sh"

// Action names used for validation's own status-file transitions
// (SPEC_FULL.md §4.2's state machine).
const (
	actionValidateSource = status.ActionValidatingSource
	actionValidateDest   = status.ActionValidatingDest
)

// Worker owns one configured sync set. It is not safe for concurrent use:
// its main loop is single-threaded and cooperative (SPEC_FULL.md §5).
type Worker struct {
	cfg *config.Section
	log *logx.Logger

	workDir         string
	excludesFile    string
	rsyncStderrFile string
	changeQueueDir  string
	transferList    string

	transferHelper  string
	validationShell string

	// startWatcherFn is the self-exec hook launching the watcher child
	// (SPEC_FULL.md §5: self-exec rather than fork()). Overridable for
	// tests; defaults to realStartWatcher.
	startWatcherFn func(ctx context.Context, w *Worker) (*exec.Cmd, error)

	watcherCmd  *exec.Cmd
	watcherDone chan error

	action                    string
	lastFullSync              time.Time
	lastPartialSync           time.Time
	nextFullSync              time.Time
	nextPartialSync           time.Time
	lastFailedFullSync        time.Time
	lastFailedPartialSync     time.Time
	lastFullSyncStatus        string
	lastPartialSyncStatus     string
	fullSyncFailures          int
	partialSyncFailures       int
}

// New performs SPEC_FULL.md §4.2's Initialisation: a private working
// directory, a seeded excludes file, transfer-list/change-queue defaults,
// and marker-file-derived initial schedule.
func New(cfg *config.Section, log *logx.Logger) (*Worker, error) {
	tempBase := cfg.TempDir
	if tempBase == "" {
		tempBase = "/tmp"
	}
	workDir, err := os.MkdirTemp(tempBase, "sync")
	if err != nil {
		return nil, fmt.Errorf("syncset: %s: mkdtemp: %w", cfg.Name, err)
	}

	w := &Worker{
		cfg:             cfg,
		log:             log,
		workDir:         workDir,
		rsyncStderrFile: filepath.Join(workDir, "rsync-stderr"),
		transferHelper:  defaultTransferHelper,
		validationShell: defaultValidationShell,
		startWatcherFn:  realStartWatcher,
		action:          status.ActionWaiting,
		lastFullSyncStatus:    "-",
		lastPartialSyncStatus: "-",
	}

	w.excludesFile = filepath.Join(workDir, "excludes")
	if err := writeExcludesFile(w.excludesFile, cfg.Excludes); err != nil {
		os.RemoveAll(workDir)
		return nil, err
	}

	w.transferList = cfg.TransferList
	if w.transferList == "" {
		w.transferList = filepath.Join(workDir, "transfer")
	}

	w.changeQueueDir = cfg.ChangeQueue
	if w.changeQueueDir == "" {
		w.changeQueueDir = filepath.Join(workDir, "changes")
		if err := os.MkdirAll(w.changeQueueDir, 0o700); err != nil {
			os.RemoveAll(workDir)
			return nil, fmt.Errorf("syncset: %s: %w", cfg.Name, err)
		}
	}

	if cfg.FullMarker != "" {
		if fi, err := os.Stat(cfg.FullMarker); err == nil {
			w.nextFullSync = fi.ModTime().Add(cfg.FullInterval)
		}
	}
	if cfg.PartialMarker != "" {
		if fi, err := os.Stat(cfg.PartialMarker); err == nil {
			w.nextPartialSync = fi.ModTime().Add(cfg.PartialInterval)
		}
	}

	return w, nil
}

func writeExcludesFile(path string, excludes []string) error {
	lines := excludes
	if len(lines) == 0 {
		lines = []string{"*.tmp", "*~"}
	}
	var content string
	for _, l := range lines {
		content += l + "\n"
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

// Close removes the private working directory. Callers should invoke it
// only after the watcher child (if any) has been reaped.
func (w *Worker) Close() error {
	return os.RemoveAll(w.workDir)
}

func (w *Worker) logf(format string, args ...any) {
	if w.log == nil {
		return
	}
	w.log.Error(fmt.Sprintf(format, args...))
}

// WorkDir exposes the private working directory, primarily for tests.
func (w *Worker) WorkDir() string { return w.workDir }

// Action exposes the current state-machine action, primarily for tests.
func (w *Worker) Action() string { return w.action }

func (w *Worker) setAction(a string) {
	w.action = a
}

// StatusSnapshot builds a status.Snapshot reflecting the worker's current
// state, for writing to cfg.StatusFile.
func (w *Worker) StatusSnapshot() status.Snapshot {
	watcherPid := 0
	if w.watcherCmd != nil && w.watcherCmd.Process != nil {
		watcherPid = w.watcherCmd.Process.Pid
	}
	return status.Snapshot{
		Section:               w.cfg.Name,
		Action:                w.action,
		Pid:                   os.Getpid(),
		WatcherPid:            watcherPid,
		LastFullSyncStatus:    w.lastFullSyncStatus,
		LastPartialSyncStatus: w.lastPartialSyncStatus,
		LastFullSync:          w.lastFullSync,
		LastPartialSync:       w.lastPartialSync,
		NextFullSync:          w.nextFullSync,
		NextPartialSync:       w.nextPartialSync,
		LastFailedFullSync:    w.lastFailedFullSync,
		LastFailedPartialSync: w.lastFailedPartialSync,
		PartialSyncFailures:   w.partialSyncFailures,
		FullSyncFailures:      w.fullSyncFailures,
		WorkDir:               w.workDir,
	}
}

func (w *Worker) writeStatus() {
	if w.cfg.StatusFile == "" {
		return
	}
	if err := status.Write(w.cfg.StatusFile, w.StatusSnapshot()); err != nil {
		w.logf("%s: status file: %v", w.cfg.Name, err)
	}
}
