// Command continual-watch is the standalone directory-watcher binary
// described in SPEC_FULL.md §6: watch one directory tree and dump batches
// of changed paths into an output directory until signalled to stop.
package main

import (
	"os"

	"github.com/a-j-wood/continual-sync/lib/watchcli"
)

func main() {
	os.Exit(watchcli.Run(os.Args[1:], os.Stderr))
}
