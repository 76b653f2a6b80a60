package supervisor

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// Daemonize self-execs binary with args — the original argv with the
// triggering -D/--daemon flag already stripped by the caller — detached
// into its own session via Setsid (SPEC_FULL.md §5: this replaces
// fork()+setsid(), since Go cannot safely fork a multi-threaded runtime).
// The child's pid is written to pidFile before Daemonize returns, so the
// parent can exit immediately while the child keeps running detached from
// the parent's controlling terminal.
func Daemonize(binary string, args []string, pidFile string) (int, error) {
	cmd := exec.Command(binary, args...)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("supervisor: daemonize: %w", err)
	}

	pid := cmd.Process.Pid
	if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d\n", pid)), 0o644); err != nil {
		_ = cmd.Process.Kill()
		return 0, fmt.Errorf("supervisor: daemonize: write pidfile: %w", err)
	}
	_ = cmd.Process.Release()
	return pid, nil
}
