// Package supervisor implements the root process described in
// SPEC_FULL.md §4.3: select sync sets, daemonise if asked, self-exec one
// worker child per selected set, reap exited children and restart the
// loop, and on exit signal every child and clean up the pid file.
// Grounded on original_source/continual-sync.c's main/daemonise and
// signal-handling functions, reimplemented around context.Context and
// self-exec rather than fork(), per SPEC_FULL.md §5's fork-safety note.
package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/a-j-wood/continual-sync/config"
	"github.com/a-j-wood/continual-sync/logx"
)

// InternalWorkerFlag is the hidden sub-command the supervisor uses to
// self-exec a worker process for one section (SPEC_FULL.md §6: "never
// documented in --help").
const InternalWorkerFlag = "--internal-worker"

// child tracks one self-exec'd worker process and its reap channel,
// mirroring syncset/watcher.go's single-Wait()-goroutine discipline:
// exec.Cmd.Wait may only be called once, so exactly one goroutine calls it
// per child, and reap() only ever reads the channel it populates.
type child struct {
	cmd  *exec.Cmd
	done chan error
}

// Supervisor owns the set of selected sync sections and their worker
// children for this process's lifetime.
type Supervisor struct {
	binary      string
	configFiles []string
	sections    []*config.Section
	pidFile     string
	log         *logx.Logger

	startWorkerFn func(section string) (*exec.Cmd, error)

	children map[string]*child
}

// New selects which sections to run: an empty names list selects every
// non-defaults section (SPEC_FULL.md §6 "empty -> all non-defaults
// sections"). configFiles is forwarded to every self-exec'd worker (as
// repeated -c flags) so it can reload the same configuration; pidFile, if
// non-empty, is removed on shutdown (SPEC_FULL.md §4.3's "clean up the pid
// file"); pass "" when not daemonised.
func New(cfg *config.Config, names []string, configFiles []string, pidFile string, log *logx.Logger) (*Supervisor, error) {
	selected, err := selectSections(cfg, names)
	if err != nil {
		return nil, err
	}
	s := &Supervisor{
		binary:      os.Args[0],
		configFiles: configFiles,
		sections:    selected,
		pidFile:     pidFile,
		log:         log,
		children:    make(map[string]*child),
	}
	s.startWorkerFn = s.realStartWorker
	return s, nil
}

func selectSections(cfg *config.Config, names []string) ([]*config.Section, error) {
	if len(names) == 0 {
		return cfg.Sections, nil
	}
	byName := make(map[string]*config.Section, len(cfg.Sections))
	for _, sec := range cfg.Sections {
		byName[sec.Name] = sec
	}
	var out []*config.Section
	for _, n := range names {
		sec, ok := byName[n]
		if !ok {
			return nil, fmt.Errorf("supervisor: unknown section %q", n)
		}
		out = append(out, sec)
	}
	return out, nil
}

// realStartWorker self-execs the current binary as a worker for one
// section (SPEC_FULL.md §5's self-exec process model).
func (s *Supervisor) realStartWorker(section string) (*exec.Cmd, error) {
	args := make([]string, 0, 2*len(s.configFiles)+2)
	for _, f := range s.configFiles {
		args = append(args, "-c", f)
	}
	args = append(args, InternalWorkerFlag, section)
	cmd := exec.Command(s.binary, args...)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd, nil
}

func (s *Supervisor) logf(format string, args ...any) {
	if s.log == nil {
		return
	}
	s.log.Warn(fmt.Sprintf(format, args...))
}

// Run is SPEC_FULL.md §4.3's main loop: start a worker for every selected
// section without a live child, reap any that have exited, sleep 100ms,
// until ctx is cancelled — then SIGTERM every remaining child and clean up
// the pid file.
func (s *Supervisor) Run(ctx context.Context) error {
	defer s.shutdown()

	for {
		if ctx.Err() != nil {
			return nil
		}

		for _, sec := range s.sections {
			if _, running := s.children[sec.Name]; running {
				continue
			}
			cmd, err := s.startWorkerFn(sec.Name)
			if err != nil {
				s.logf("%s: start worker: %v", sec.Name, err)
				continue
			}
			c := &child{cmd: cmd, done: make(chan error, 1)}
			s.children[sec.Name] = c
			go func(cc *child) { cc.done <- cc.cmd.Wait() }(c)
		}

		for name, c := range s.children {
			select {
			case <-c.done:
				delete(s.children, name)
			default:
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func (s *Supervisor) shutdown() {
	for _, c := range s.children {
		if c.cmd.Process != nil {
			_ = c.cmd.Process.Signal(syscall.SIGTERM)
		}
	}
	for _, c := range s.children {
		<-c.done
	}
	if s.pidFile != "" {
		_ = os.Remove(s.pidFile)
	}
}
