package watch

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/a-j-wood/continual-sync/lib/atomicfile"
)

// Dump implements SPEC_FULL.md §4.1's changed-paths dump: if no paths are
// pending, skip entirely; otherwise build a "YYYYMMDD-HHMMSS.<pid>"
// filename inside outDir and atomically write every pending path, one per
// line, before clearing the in-memory set. Grounded on
// original_source/watch.c's dump_changed_paths.
func (w *Watcher) Dump(now time.Time) error {
	if w.changed.Len() == 0 {
		return nil
	}
	paths := w.changed.Drain()

	name := now.Format("20060102-150405") + "." + strconv.Itoa(os.Getpid())
	target := w.outDir + "/" + name

	var b strings.Builder
	for _, p := range paths {
		b.WriteString(p)
		b.WriteByte('\n')
	}
	return atomicfile.Write(target, []byte(b.String()), 0o644)
}
