// Package approvalbus implements the notification bus (C14) used to wake an
// agent run suspended on a pending tool-execution approval. A run blocks on
// Wait until another replica (handling the approval HTTP mutation) calls
// Notify for the same execution id, instead of polling the execution store.
package approvalbus

import (
	"context"
	"sync"

	"github.com/infrabay/opscore/internal/ids"
)

// Bus notifies waiters when a pending ToolExecution transitions out of the
// "pending" state (approved, rejected, or expired).
type Bus interface {
	// Notify wakes every current waiter for executionID. It is safe to call
	// even when no one is waiting (the notification is simply dropped).
	Notify(ctx context.Context, executionID ids.ExecutionID) error
	// Wait blocks until Notify is called for executionID or ctx is done,
	// whichever happens first. Callers must re-check execution status after
	// Wait returns, since Notify carries no payload (it is a wakeup signal,
	// not a value channel) and ctx.Err() must be checked to distinguish a
	// real wakeup from cancellation.
	Wait(ctx context.Context, executionID ids.ExecutionID) error
}

// InMemory is a single-process Bus backed by per-execution channels. It is
// the default for the single-node deployment and for tests.
type InMemory struct {
	mu      sync.Mutex
	waiters map[ids.ExecutionID][]chan struct{}
}

// NewInMemory constructs an empty InMemory bus.
func NewInMemory() *InMemory {
	return &InMemory{waiters: make(map[ids.ExecutionID][]chan struct{})}
}

// Notify implements Bus.
func (b *InMemory) Notify(ctx context.Context, executionID ids.ExecutionID) error {
	b.mu.Lock()
	chans := b.waiters[executionID]
	delete(b.waiters, executionID)
	b.mu.Unlock()
	for _, ch := range chans {
		close(ch)
	}
	return nil
}

// Wait implements Bus.
func (b *InMemory) Wait(ctx context.Context, executionID ids.ExecutionID) error {
	ch := make(chan struct{})
	b.mu.Lock()
	b.waiters[executionID] = append(b.waiters[executionID], ch)
	b.mu.Unlock()

	select {
	case <-ctx.Done():
		b.removeWaiter(executionID, ch)
		return ctx.Err()
	case <-ch:
		return nil
	}
}

func (b *InMemory) removeWaiter(executionID ids.ExecutionID, target chan struct{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	chans := b.waiters[executionID]
	for i, ch := range chans {
		if ch == target {
			b.waiters[executionID] = append(chans[:i], chans[i+1:]...)
			break
		}
	}
	if len(b.waiters[executionID]) == 0 {
		delete(b.waiters, executionID)
	}
}
