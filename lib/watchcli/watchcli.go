// Package watchcli implements the standalone-watcher command line
// described in SPEC_FULL.md §6 ("CLI — standalone watcher"). It is shared
// between cmd/continual-watch (the dedicated binary) and
// cmd/continual-sync (which dispatches into it when self-exec'd with
// syncset.InternalWatcherFlag), so the two never drift apart.
package watchcli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/pflag"

	"github.com/a-j-wood/continual-sync/logx"
	"github.com/a-j-wood/continual-sync/supervisor"
	"github.com/a-j-wood/continual-sync/watch"
)

// maxExcludes bounds the repeatable -e flag (SPEC_FULL.md §6: "up to
// 1000").
const maxExcludes = 1000

// Run parses args as the standalone watcher's command line and runs it to
// completion, returning the process exit code (0 on clean signal
// shutdown, 1 on initialisation failure, per SPEC_FULL.md §6).
func Run(args []string, stderr io.Writer) int {
	fs := pflag.NewFlagSet("continual-watch", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: continual-watch [OPTIONS] DIRECTORY OUTPUTDIR")
		fs.PrintDefaults()
	}

	dumpInterval := fs.IntP("dump-interval", "i", 30, "dump interval in seconds")
	fullRescan := fs.IntP("full-rescan-interval", "f", 7200, "full rescan interval in seconds")
	depth := fs.IntP("depth", "r", 20, "directory depth cap")
	queueInterval := fs.IntP("queue-interval", "q", 2, "queue-run interval in seconds")
	queueMax := fs.IntP("queue-max", "m", 5, "queue-run max duration in seconds")
	debug := fs.BoolP("debug", "d", false, "timestamped debug output on stderr")
	version := fs.BoolP("version", "V", false, "print version and exit")
	var excludes []string
	fs.StringArrayVarP(&excludes, "exclude", "e", nil, "exclude glob (repeatable, up to 1000)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 1
	}

	if *version {
		fmt.Fprintln(stderr, "continual-watch (continual-sync project)")
		return 0
	}

	if len(excludes) > maxExcludes {
		fmt.Fprintf(stderr, "continual-watch: too many -e excludes (max %d)\n", maxExcludes)
		return 1
	}

	rest := fs.Args()
	if len(rest) != 2 {
		fs.Usage()
		return 1
	}
	directory, outputDir := rest[0], rest[1]

	log := logx.NewFileLogger(stderr, *debug)

	w, err := watch.New(directory, *depth, excludes, outputDir, log)
	if err != nil {
		fmt.Fprintf(stderr, "continual-watch: %v\n", err)
		return 1
	}

	ctx, stop := supervisor.ContextWithSignals(context.Background())
	defer stop()

	code, err := w.Run(ctx, watch.Params{
		FullScanInterval: time.Duration(*fullRescan) * time.Second,
		QueueRunInterval: time.Duration(*queueInterval) * time.Second,
		QueueRunMax:      time.Duration(*queueMax) * time.Second,
		DumpInterval:     time.Duration(*dumpInterval) * time.Second,
	})
	if err != nil {
		fmt.Fprintf(stderr, "continual-watch: %v\n", err)
		return 1
	}
	return code
}
