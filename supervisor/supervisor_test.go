package supervisor

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/a-j-wood/continual-sync/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Sections: []*config.Section{
			{Name: "home"},
			{Name: "etc"},
		},
	}
}

func TestSelectSectionsEmptyNamesSelectsAll(t *testing.T) {
	s, err := New(testConfig(), nil, nil, "", nil)
	require.NoError(t, err)
	assert.Len(t, s.sections, 2)
}

func TestSelectSectionsFiltersToNamedSections(t *testing.T) {
	s, err := New(testConfig(), []string{"etc"}, nil, "", nil)
	require.NoError(t, err)
	require.Len(t, s.sections, 1)
	assert.Equal(t, "etc", s.sections[0].Name)
}

func TestSelectSectionsRejectsUnknownName(t *testing.T) {
	_, err := New(testConfig(), []string{"nope"}, nil, "", nil)
	assert.Error(t, err)
}

// fakeStartWorker spawns a real short-lived child so Wait() has something
// genuine to block on, without self-execing the test binary.
func fakeStartWorker(calls *int, seconds string) func(section string) (*exec.Cmd, error) {
	return func(section string) (*exec.Cmd, error) {
		if calls != nil {
			*calls++
		}
		cmd := exec.Command("sleep", seconds)
		if err := cmd.Start(); err != nil {
			return nil, err
		}
		return cmd, nil
	}
}

func TestRunStartsOneWorkerPerSection(t *testing.T) {
	s, err := New(testConfig(), nil, nil, "", nil)
	require.NoError(t, err)
	calls := 0
	s.startWorkerFn = fakeStartWorker(&calls, "5")

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	_ = s.Run(ctx)

	assert.Equal(t, 2, calls)
}

func TestRunDoesNotRestartALiveChild(t *testing.T) {
	s, err := New(testConfig(), []string{"home"}, nil, "", nil)
	require.NoError(t, err)
	calls := 0
	s.startWorkerFn = fakeStartWorker(&calls, "5")

	ctx, cancel := context.WithTimeout(context.Background(), 400*time.Millisecond)
	defer cancel()
	_ = s.Run(ctx)

	assert.Equal(t, 1, calls)
}

func TestRunRestartsAChildThatExited(t *testing.T) {
	s, err := New(testConfig(), []string{"home"}, nil, "", nil)
	require.NoError(t, err)
	calls := 0
	s.startWorkerFn = fakeStartWorker(&calls, "0") // exits almost immediately

	ctx, cancel := context.WithTimeout(context.Background(), 600*time.Millisecond)
	defer cancel()
	_ = s.Run(ctx)

	assert.GreaterOrEqual(t, calls, 2, "a worker that exits should be restarted on a later loop iteration")
}

func TestRunReturnsPromptlyOnContextCancel(t *testing.T) {
	s, err := New(testConfig(), nil, nil, "", nil)
	require.NoError(t, err)
	s.startWorkerFn = fakeStartWorker(nil, "5")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after an already-cancelled context")
	}
}

func TestShutdownSignalsEveryRemainingChild(t *testing.T) {
	s, err := New(testConfig(), nil, nil, "", nil)
	require.NoError(t, err)
	s.startWorkerFn = fakeStartWorker(nil, "30")

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run/shutdown did not return after its context expired")
	}
}
