// Package lockfile implements the cross-process advisory lock used to
// serialise transfer-helper invocations sharing a sync_lock path
// (SPEC_FULL.md §4.2, §5). Grounded on original_source/sync.c's
// sync_full/sync_partial lock acquisition via open(O_CREAT|O_WRONLY|
// O_APPEND, 0600) + lockf(F_LOCK, 0); reimplemented with flock(2) via
// golang.org/x/sys/unix, which (unlike POSIX lockf/fcntl byte-range locks)
// is automatically released if the holding process dies without closing
// the descriptor, the same liveness guarantee the original relies on for
// crash recovery.
package lockfile

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Lock holds an acquired advisory lock on one file. Close releases it.
type Lock struct {
	f *os.File
}

// Acquire opens (creating if necessary) path and blocks until an exclusive
// lock is obtained or ctx is cancelled. Cancellation is observed by racing
// the blocking flock(2) call against ctx.Done on a helper goroutine; once
// cancellation is noticed the file is closed and ctx.Err() returned without
// further waiting — flock itself has no timeout parameter (SPEC_FULL.md §5
// "Cancellation").
func Acquire(ctx context.Context, path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", path, err)
	}

	done := make(chan error, 1)
	go func() {
		done <- unix.Flock(int(f.Fd()), unix.LOCK_EX)
	}()

	select {
	case err := <-done:
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("flock %s: %w", path, err)
		}
		return &Lock{f: f}, nil
	case <-ctx.Done():
		// The goroutine above is still blocked in the kernel; it will
		// complete (and its result discarded) once the lock becomes
		// available or the process exits. We hand back the cancellation
		// immediately rather than waiting further.
		f.Close()
		return nil, ctx.Err()
	}
}

// Close releases the lock and the underlying descriptor.
func (l *Lock) Close() error {
	if err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN); err != nil {
		l.f.Close()
		return fmt.Errorf("unlock: %w", err)
	}
	return l.f.Close()
}
