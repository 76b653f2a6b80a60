// Package status implements the per-sync-set status file: a plain-text,
// whitespace-aligned "key : value" snapshot rewritten atomically on every
// state transition, grounded on original_source/sync.c's
// update_status_file/dump_time.
package status

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/a-j-wood/continual-sync/lib/atomicfile"
)

// Snapshot is everything written to a status file at one instant.
type Snapshot struct {
	Section               string
	Action                string
	Pid                   int
	WatcherPid            int // 0 means no watcher
	LastFullSyncStatus    string
	LastPartialSyncStatus string
	LastFullSync          time.Time
	LastPartialSync       time.Time
	NextFullSync          time.Time
	NextPartialSync       time.Time
	LastFailedFullSync    time.Time
	LastFailedPartialSync time.Time
	PartialSyncFailures   int
	FullSyncFailures      int
	WorkDir               string
}

// Action string constants, matching the original's ACTION_* labels
// (spec.md §4.2's state-machine field).
const (
	ActionWaiting             = "-"
	ActionValidatingSource    = "VALIDATE-SOURCE"
	ActionValidatingDest      = "VALIDATE-DESTINATION"
	ActionFullAwaitingLock    = "SYNC-FULL-AWAITING-LOCK"
	ActionFull                = "SYNC-FULL"
	ActionPartialAwaitingLock = "SYNC-PARTIAL-AWAITING-LOCK"
	ActionPartial             = "SYNC-PARTIAL"
)

func dumpTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

// Write renders s in the fixed-width "key : value" layout (trailing blank
// line, so concatenating every status file in a directory stays tidy) and
// atomically replaces path.
func Write(path string, s Snapshot) error {
	var b strings.Builder
	field := func(label, value string) {
		fmt.Fprintf(&b, "%-24s : %s\n", label, value)
	}

	field("section", s.Section)
	field("current action", s.Action)
	field("sync process", strconv.Itoa(s.Pid))
	if s.WatcherPid == 0 {
		field("watcher process", "-")
	} else {
		field("watcher process", strconv.Itoa(s.WatcherPid))
	}
	field("last full sync status", s.LastFullSyncStatus)
	field("last partial sync status", s.LastPartialSyncStatus)
	field("last full sync", dumpTime(s.LastFullSync))
	field("last partial sync", dumpTime(s.LastPartialSync))
	field("next full sync", dumpTime(s.NextFullSync))
	field("next partial sync", dumpTime(s.NextPartialSync))
	field("failed full sync", dumpTime(s.LastFailedFullSync))
	field("failed partial sync", dumpTime(s.LastFailedPartialSync))
	field("partial sync failures", strconv.Itoa(s.PartialSyncFailures))
	field("full sync failures", strconv.Itoa(s.FullSyncFailures))
	field("working directory", s.WorkDir)
	b.WriteString("\n")

	return atomicfile.Write(path, []byte(b.String()), 0o644)
}
