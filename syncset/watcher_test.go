package syncset

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStartWatcher spawns a short-lived real child ("sleep") so Wait() has
// something genuine to block on, without self-execing the test binary.
func fakeStartWatcher(seconds string) func(ctx context.Context, w *Worker) (*exec.Cmd, error) {
	return func(ctx context.Context, w *Worker) (*exec.Cmd, error) {
		cmd := exec.Command("sleep", seconds)
		if err := cmd.Start(); err != nil {
			return nil, err
		}
		return cmd, nil
	}
}

func TestStartWatcherIfNeededNoopWhenPartialIntervalUnset(t *testing.T) {
	w := newTestWorker(t, "")
	w.startWatcherFn = fakeStartWatcher("5")

	require.NoError(t, w.startWatcherIfNeeded(context.Background()))
	assert.Nil(t, w.watcherCmd)
}

func TestStartWatcherIfNeededStartsChildWhenPartialIntervalSet(t *testing.T) {
	w := newTestWorker(t, "")
	w.cfg.PartialInterval = time.Minute
	w.startWatcherFn = fakeStartWatcher("5")

	require.NoError(t, w.startWatcherIfNeeded(context.Background()))
	require.NotNil(t, w.watcherCmd)
	assert.NotNil(t, w.watcherDone)

	w.stopWatcher()
	w.watcherCmd.Wait()
}

func TestStartWatcherIfNeededNoopWhenAlreadyRunning(t *testing.T) {
	w := newTestWorker(t, "")
	w.cfg.PartialInterval = time.Minute
	calls := 0
	w.startWatcherFn = func(ctx context.Context, w *Worker) (*exec.Cmd, error) {
		calls++
		return fakeStartWatcher("5")(ctx, w)
	}

	require.NoError(t, w.startWatcherIfNeeded(context.Background()))
	require.NoError(t, w.startWatcherIfNeeded(context.Background()))
	assert.Equal(t, 1, calls)

	w.stopWatcher()
	w.watcherCmd.Wait()
}

func TestReapWatcherDetectsExitWithoutBlocking(t *testing.T) {
	w := newTestWorker(t, "")
	w.cfg.PartialInterval = time.Minute
	w.startWatcherFn = fakeStartWatcher("0")

	require.NoError(t, w.startWatcherIfNeeded(context.Background()))

	deadline := time.Now().Add(3 * time.Second)
	for !w.reapWatcher() {
		if time.Now().After(deadline) {
			t.Fatal("reapWatcher never observed the child exit")
		}
		time.Sleep(10 * time.Millisecond)
	}
	assert.Nil(t, w.watcherCmd)
	assert.Nil(t, w.watcherDone)
}

func TestReapWatcherIsRepeatableWithoutDoubleWaitPanic(t *testing.T) {
	w := newTestWorker(t, "")
	w.cfg.PartialInterval = time.Minute
	w.startWatcherFn = fakeStartWatcher("0")
	require.NoError(t, w.startWatcherIfNeeded(context.Background()))

	for i := 0; i < 50; i++ {
		w.reapWatcher()
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStopWatcherSignalsChild(t *testing.T) {
	w := newTestWorker(t, "")
	w.cfg.PartialInterval = time.Minute
	w.startWatcherFn = fakeStartWatcher("30")
	require.NoError(t, w.startWatcherIfNeeded(context.Background()))

	w.stopWatcher()
	done := make(chan struct{})
	go func() {
		w.watcherCmd.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("watcher child did not exit after stopWatcher")
	}
}
