package monitor

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"polymm/internal/state"
)

func TestRun_ExitsPromptlyOnContextCancellation(t *testing.T) {
	t.Parallel()

	st := state.New("yes-token", "no-token", 0, 0)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	task := New(st, logger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		task.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected Run to return immediately once ctx is already cancelled")
	}
}

func TestPrint_DoesNotPanicOnEmptySnapshot(t *testing.T) {
	t.Parallel()

	st := state.New("yes-token", "no-token", 0, 0)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	task := New(st, logger)

	task.print(st.Snap())
}
