package approvalbus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/infrabay/opscore/internal/ids"
)

func TestInMemoryWaitUnblocksOnNotify(t *testing.T) {
	bus := NewInMemory()
	execID := ids.ExecutionID("exec-1")

	done := make(chan error, 1)
	go func() {
		done <- bus.Wait(context.Background(), execID)
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, bus.Notify(context.Background(), execID))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Wait did not unblock after Notify")
	}
}

func TestInMemoryWaitRespectsContextCancellation(t *testing.T) {
	bus := NewInMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := bus.Wait(ctx, ids.ExecutionID("exec-2"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestInMemoryNotifyWithNoWaitersIsNoop(t *testing.T) {
	bus := NewInMemory()
	require.NoError(t, bus.Notify(context.Background(), ids.ExecutionID("exec-3")))
}

func TestInMemoryWaitTimesOutIndependently(t *testing.T) {
	bus := NewInMemory()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := bus.Wait(ctx, ids.ExecutionID("exec-4"))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
