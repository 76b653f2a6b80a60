// Command continual-sync is the directory-sync daemon described in
// SPEC_FULL.md: combine periodic full syncs with inotify-driven
// incremental syncs of a source tree onto a destination via an external
// rsync-compatible helper. This binary also backs the self-exec worker
// and watcher child processes (see --internal-worker/--internal-watcher
// in SPEC_FULL.md §6), and doubles as the standalone watcher when
// self-exec'd that way.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/a-j-wood/continual-sync/config"
	"github.com/a-j-wood/continual-sync/lib/watchcli"
	"github.com/a-j-wood/continual-sync/logx"
	"github.com/a-j-wood/continual-sync/supervisor"
	"github.com/a-j-wood/continual-sync/syncset"
)

const defaultConfigFile = "/etc/continual-sync.conf"

// defaultPath is set into the environment at start if PATH is empty or
// unset (SPEC_FULL.md §6 "Environment").
const defaultPath = "/usr/bin:/bin:/usr/local/bin:/usr/sbin:/sbin:/usr/local/sbin"

func main() {
	ensurePath()

	args := os.Args[1:]

	// Hidden watcher sub-command backing the self-exec process model
	// (SPEC_FULL.md §5/§6). Checked ahead of normal flag parsing since its
	// own argument grammar (DIRECTORY/OUTPUTDIR plus the watcher's flags)
	// doesn't fit this binary's own flag set. The hidden --internal-worker
	// flag is an ordinary flag parsed in run.
	if len(args) > 0 && args[0] == syncset.InternalWatcherFlag {
		os.Exit(watchcli.Run(args[1:], os.Stderr))
	}

	os.Exit(run(args))
}

func ensurePath() {
	if os.Getenv("PATH") == "" {
		os.Setenv("PATH", defaultPath)
	}
}

func run(args []string) int {
	fs := pflag.NewFlagSet("continual-sync", pflag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: continual-sync [OPTIONS] [SECTIONS...]")
		fs.PrintDefaults()
	}

	var configFiles []string
	fs.StringArrayVarP(&configFiles, "config", "c", nil, "config file (repeatable)")
	daemonFile := fs.StringP("daemon", "D", "", "daemonise, writing the child's pid to FILE")
	debug := fs.BoolP("debug", "d", false, "timestamped debug output on stderr")
	version := fs.BoolP("version", "V", false, "print version and exit")

	internalWorker := fs.String("internal-worker", "", "")
	_ = fs.MarkHidden("internal-worker")

	pidFile := fs.String("pid-file", "", "")
	_ = fs.MarkHidden("pid-file")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 1
	}

	if *version {
		fmt.Fprintln(os.Stderr, "continual-sync (continual-sync project)")
		return 0
	}

	if len(configFiles) == 0 {
		configFiles = []string{defaultConfigFile}
	}

	cfg, err := loadConfig(configFiles)
	if err != nil {
		fmt.Fprintf(os.Stderr, "continual-sync: %v\n", err)
		return 1
	}

	if *internalWorker != "" {
		return runWorker(cfg, *internalWorker, *debug)
	}

	if *daemonFile != "" {
		return daemonize(args, *daemonFile)
	}

	return runSupervisor(cfg, configFiles, fs.Args(), *debug, *pidFile)
}

func loadConfig(configFiles []string) (*config.Config, error) {
	merged := &config.Config{}
	for _, path := range configFiles {
		c, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		if c.Defaults != nil {
			merged.Defaults = c.Defaults
		}
		merged.Sections = append(merged.Sections, c.Sections...)
	}
	return merged, nil
}

// daemonize strips the triggering -D/--daemon flag (and its value) from
// args before self-exec'ing, so the child doesn't re-daemonise itself, and
// passes the same path on as a hidden --pid-file flag so the long-running
// child (the one that actually calls supervisor.New) knows where its own
// pid file lives and can remove it on exit (SPEC_FULL.md §4.3's "clean up
// the pid file"). The parent just writes the child's pid there and
// returns immediately (SPEC_FULL.md §6's -D/--daemon FILE).
func daemonize(args []string, pidFile string) int {
	childArgs := append(stripDaemonFlag(args), "--pid-file", pidFile)
	if _, err := supervisor.Daemonize(os.Args[0], childArgs, pidFile); err != nil {
		fmt.Fprintf(os.Stderr, "continual-sync: %v\n", err)
		return 1
	}
	return 0
}

func stripDaemonFlag(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "-D" || a == "--daemon":
			i++ // also drop its value
		case strings.HasPrefix(a, "--daemon="):
		default:
			out = append(out, a)
		}
	}
	return out
}

func runWorker(cfg *config.Config, section string, debug bool) int {
	var sec *config.Section
	for _, s := range cfg.Sections {
		if s.Name == section {
			sec = s
			break
		}
	}
	if sec == nil {
		fmt.Fprintf(os.Stderr, "continual-sync: unknown section %q\n", section)
		return 1
	}

	log := newSectionLogger(sec, debug)
	w, err := syncset.New(sec, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "continual-sync: %s: %v\n", section, err)
		return 1
	}

	ctx, stop := supervisor.ContextWithSignals(context.Background())
	defer stop()

	if err := w.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "continual-sync: %s: %v\n", section, err)
		return 1
	}
	return 0
}

func runSupervisor(cfg *config.Config, configFiles, sections []string, debug bool, pidFile string) int {
	log := logx.NewFileLogger(os.Stderr, debug)

	sup, err := supervisor.New(cfg, sections, configFiles, pidFile, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "continual-sync: %v\n", err)
		return 1
	}

	ctx, stop := supervisor.ContextWithSignals(context.Background())
	defer stop()

	if err := sup.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "continual-sync: %v\n", err)
		return 1
	}
	return 0
}

func newSectionLogger(sec *config.Section, debug bool) *logx.Logger {
	w := os.Stderr
	if sec.LogFile != "" {
		f, err := os.OpenFile(sec.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err == nil {
			return logx.NewFileLogger(f, debug).Section(sec.Name)
		}
	}
	return logx.NewFileLogger(w, debug).Section(sec.Name)
}
