// Package mocks provides a hand-rolled, queue-based test double for the run
// Mongo client. Build one with NewClient(t), load it with one closure per
// expected call via AddXxx, and assert via HasMore that every queued closure
// was consumed.
package mocks

import (
	"context"

	"github.com/infrabay/opscore/internal/agentloop/run"
)

// TestingT is the subset of *testing.T used by the mock, so callers can pass
// either *testing.T or *testing.B.
type TestingT interface {
	Helper()
	Fatalf(format string, args ...any)
}

// Client is a queue-based mock of the run Mongo client.
type Client struct {
	t            TestingT
	pingFns      []func(ctx context.Context) error
	upsertRunFns []func(ctx context.Context, r run.Record) error
	loadRunFns   []func(ctx context.Context, runID string) (run.Record, error)
}

// NewClient constructs an empty Client mock.
func NewClient(t TestingT) *Client {
	return &Client{t: t}
}

// Name implements health.Pinger.
func (c *Client) Name() string { return "run-mongo-mock" }

// AddPing queues a response for the next Ping call.
func (c *Client) AddPing(fn func(ctx context.Context) error) {
	c.pingFns = append(c.pingFns, fn)
}

// AddUpsertRun queues a response for the next UpsertRun call.
func (c *Client) AddUpsertRun(fn func(ctx context.Context, r run.Record) error) {
	c.upsertRunFns = append(c.upsertRunFns, fn)
}

// AddLoadRun queues a response for the next LoadRun call.
func (c *Client) AddLoadRun(fn func(ctx context.Context, runID string) (run.Record, error)) {
	c.loadRunFns = append(c.loadRunFns, fn)
}

// HasMore reports whether any queued closure remains unconsumed.
func (c *Client) HasMore() bool {
	return len(c.pingFns) > 0 || len(c.upsertRunFns) > 0 || len(c.loadRunFns) > 0
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

// UpsertRun implements the run Mongo client.
func (c *Client) UpsertRun(ctx context.Context, r run.Record) error {
	c.t.Helper()
	if len(c.upsertRunFns) == 0 {
		c.t.Fatalf("unexpected UpsertRun(%q) call: no more responses queued", r.RunID)
		return nil
	}
	fn := c.upsertRunFns[0]
	c.upsertRunFns = c.upsertRunFns[1:]
	return fn(ctx, r)
}

// LoadRun implements the run Mongo client.
func (c *Client) LoadRun(ctx context.Context, runID string) (run.Record, error) {
	c.t.Helper()
	if len(c.loadRunFns) == 0 {
		c.t.Fatalf("unexpected LoadRun(%q) call: no more responses queued", runID)
		return run.Record{}, nil
	}
	fn := c.loadRunFns[0]
	c.loadRunFns = c.loadRunFns[1:]
	return fn(ctx, runID)
}
