package supervisor

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// ContextWithSignals returns a context cancelled on SIGTERM or SIGINT, the
// Go equivalent of the original's signal-safe exit-flag handler
// (SPEC_FULL.md §5): os/signal's channel delivery is itself async-signal-
// safe, so the main loop's select can observe it directly without a
// separate flag needing protection. Grounded on the signal.Notify +
// select-on-channel shutdown pattern used throughout the example pack
// (e.g. a sibling service's cmd/server main). The returned stop func
// releases the underlying signal.Notify registration.
func ContextWithSignals(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	stop := func() {
		signal.Stop(sigCh)
		cancel()
	}
	return ctx, stop
}
