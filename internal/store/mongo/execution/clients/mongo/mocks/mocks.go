// Package mocks provides a hand-rolled, queue-based test double for the
// execution Mongo client. Build one with NewClient(t), load it with one
// closure per expected call via AddXxx, and assert via HasMore that every
// queued closure was consumed.
package mocks

import (
	"context"

	"github.com/infrabay/opscore/internal/execstore"
	"github.com/infrabay/opscore/internal/ids"
)

// TestingT is the subset of *testing.T used by the mock, so callers can pass
// either *testing.T or *testing.B.
type TestingT interface {
	Helper()
	Fatalf(format string, args ...any)
}

// Client is a queue-based mock of the execution Mongo client.
type Client struct {
	t                    TestingT
	pingFns              []func(ctx context.Context) error
	insertExecutionFns   []func(ctx context.Context, exec execstore.ToolExecution) error
	findExecutionFns     []func(ctx context.Context, id ids.ExecutionID) (execstore.ToolExecution, error)
	replaceExecutionFns  []func(ctx context.Context, exec execstore.ToolExecution) error
	listPendingByRunFns  []func(ctx context.Context, runID ids.RunID) ([]execstore.ToolExecution, error)
}

// NewClient constructs an empty Client mock.
func NewClient(t TestingT) *Client {
	return &Client{t: t}
}

// Name implements health.Pinger.
func (c *Client) Name() string { return "execution-mongo-mock" }

// AddPing queues a response for the next Ping call.
func (c *Client) AddPing(fn func(ctx context.Context) error) {
	c.pingFns = append(c.pingFns, fn)
}

// AddInsertExecution queues a response for the next InsertExecution call.
func (c *Client) AddInsertExecution(fn func(ctx context.Context, exec execstore.ToolExecution) error) {
	c.insertExecutionFns = append(c.insertExecutionFns, fn)
}

// AddFindExecution queues a response for the next FindExecution call.
func (c *Client) AddFindExecution(fn func(ctx context.Context, id ids.ExecutionID) (execstore.ToolExecution, error)) {
	c.findExecutionFns = append(c.findExecutionFns, fn)
}

// AddReplaceExecution queues a response for the next ReplaceExecution call.
func (c *Client) AddReplaceExecution(fn func(ctx context.Context, exec execstore.ToolExecution) error) {
	c.replaceExecutionFns = append(c.replaceExecutionFns, fn)
}

// AddListPendingByRun queues a response for the next ListPendingByRun call.
func (c *Client) AddListPendingByRun(fn func(ctx context.Context, runID ids.RunID) ([]execstore.ToolExecution, error)) {
	c.listPendingByRunFns = append(c.listPendingByRunFns, fn)
}

// HasMore reports whether any queued closure remains unconsumed.
func (c *Client) HasMore() bool {
	return len(c.pingFns) > 0 || len(c.insertExecutionFns) > 0 || len(c.findExecutionFns) > 0 ||
		len(c.replaceExecutionFns) > 0 || len(c.listPendingByRunFns) > 0
}

// Ping implements health.Pinger.
func (c *Client) Ping(ctx context.Context) error {
	c.t.Helper()
	if len(c.pingFns) == 0 {
		c.t.Fatalf("unexpected Ping() call: no more responses queued")
		return nil
	}
	fn := c.pingFns[0]
	c.pingFns = c.pingFns[1:]
	return fn(ctx)
}

// InsertExecution implements the execution Mongo client.
func (c *Client) InsertExecution(ctx context.Context, exec execstore.ToolExecution) error {
	c.t.Helper()
	if len(c.insertExecutionFns) == 0 {
		c.t.Fatalf("unexpected InsertExecution(%q) call: no more responses queued", exec.ID)
		return nil
	}
	fn := c.insertExecutionFns[0]
	c.insertExecutionFns = c.insertExecutionFns[1:]
	return fn(ctx, exec)
}

// FindExecution implements the execution Mongo client.
func (c *Client) FindExecution(ctx context.Context, id ids.ExecutionID) (execstore.ToolExecution, error) {
	c.t.Helper()
	if len(c.findExecutionFns) == 0 {
		c.t.Fatalf("unexpected FindExecution(%q) call: no more responses queued", id)
		return execstore.ToolExecution{}, nil
	}
	fn := c.findExecutionFns[0]
	c.findExecutionFns = c.findExecutionFns[1:]
	return fn(ctx, id)
}

// ReplaceExecution implements the execution Mongo client.
func (c *Client) ReplaceExecution(ctx context.Context, exec execstore.ToolExecution) error {
	c.t.Helper()
	if len(c.replaceExecutionFns) == 0 {
		c.t.Fatalf("unexpected ReplaceExecution(%q) call: no more responses queued", exec.ID)
		return nil
	}
	fn := c.replaceExecutionFns[0]
	c.replaceExecutionFns = c.replaceExecutionFns[1:]
	return fn(ctx, exec)
}

// ListPendingByRun implements the execution Mongo client.
func (c *Client) ListPendingByRun(ctx context.Context, runID ids.RunID) ([]execstore.ToolExecution, error) {
	c.t.Helper()
	if len(c.listPendingByRunFns) == 0 {
		c.t.Fatalf("unexpected ListPendingByRun(%q) call: no more responses queued", runID)
		return nil, nil
	}
	fn := c.listPendingByRunFns[0]
	c.listPendingByRunFns = c.listPendingByRunFns[1:]
	return fn(ctx, runID)
}
