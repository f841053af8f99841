// Package mocks provides a hand-rolled, queue-based test double for the
// session Mongo client. Build one with NewClient(t), load it with one
// closure per expected call via AddXxx, and assert via HasMore that every
// queued closure was consumed.
package mocks

import (
	"context"
	"time"

	"github.com/infrabay/opscore/internal/agentloop/session"
)

// TestingT is the subset of *testing.T used by the mock, so callers can pass
// either *testing.T or *testing.B.
type TestingT interface {
	Helper()
	Fatalf(format string, args ...any)
}

// Client is a queue-based mock of the session Mongo client.
type Client struct {
	t                     TestingT
	pingFns               []func(ctx context.Context) error
	createSessionFns      []func(ctx context.Context, sessionID string, createdAt time.Time) (session.Session, error)
	loadSessionFns        []func(ctx context.Context, sessionID string) (session.Session, error)
	endSessionFns         []func(ctx context.Context, sessionID string, endedAt time.Time) (session.Session, error)
	upsertRunFns          []func(ctx context.Context, r session.RunMeta) error
	loadRunFns            []func(ctx context.Context, runID string) (session.RunMeta, error)
	listRunsBySessionFns  []func(ctx context.Context, sessionID string, statuses []session.RunStatus) ([]session.RunMeta, error)
}

// NewClient constructs an empty Client mock.
func NewClient(t TestingT) *Client {
	return &Client{t: t}
}

// Name implements health.Pinger.
func (c *Client) Name() string { return "session-mongo-mock" }

// AddPing queues a response for the next Ping call.
func (c *Client) AddPing(fn func(ctx context.Context) error) {
	c.pingFns = append(c.pingFns, fn)
}

// AddCreateSession queues a response for the next CreateSession call.
func (c *Client) AddCreateSession(fn func(ctx context.Context, sessionID string, createdAt time.Time) (session.Session, error)) {
	c.createSessionFns = append(c.createSessionFns, fn)
}

// AddLoadSession queues a response for the next LoadSession call.
func (c *Client) AddLoadSession(fn func(ctx context.Context, sessionID string) (session.Session, error)) {
	c.loadSessionFns = append(c.loadSessionFns, fn)
}

// AddEndSession queues a response for the next EndSession call.
func (c *Client) AddEndSession(fn func(ctx context.Context, sessionID string, endedAt time.Time) (session.Session, error)) {
	c.endSessionFns = append(c.endSessionFns, fn)
}

// AddUpsertRun queues a response for the next UpsertRun call.
func (c *Client) AddUpsertRun(fn func(ctx context.Context, r session.RunMeta) error) {
	c.upsertRunFns = append(c.upsertRunFns, fn)
}

// AddLoadRun queues a response for the next LoadRun call.
func (c *Client) AddLoadRun(fn func(ctx context.Context, runID string) (session.RunMeta, error)) {
	c.loadRunFns = append(c.loadRunFns, fn)
}

// AddListRunsBySession queues a response for the next ListRunsBySession call.
func (c *Client) AddListRunsBySession(fn func(ctx context.Context, sessionID string, statuses []session.RunStatus) ([]session.RunMeta, error)) {
	c.listRunsBySessionFns = append(c.listRunsBySessionFns, fn)
}

// HasMore reports whether any queued closure remains unconsumed.
func (c *Client) HasMore() bool {
	return len(c.pingFns) > 0 || len(c.createSessionFns) > 0 || len(c.loadSessionFns) > 0 ||
		len(c.endSessionFns) > 0 || len(c.upsertRunFns) > 0 || len(c.loadRunFns) > 0 ||
		len(c.listRunsBySessionFns) > 0
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

// CreateSession implements the session Mongo client.
func (c *Client) CreateSession(ctx context.Context, sessionID string, createdAt time.Time) (session.Session, error) {
	c.t.Helper()
	if len(c.createSessionFns) == 0 {
		c.t.Fatalf("unexpected CreateSession(%q) call: no more responses queued", sessionID)
		return session.Session{}, nil
	}
	fn := c.createSessionFns[0]
	c.createSessionFns = c.createSessionFns[1:]
	return fn(ctx, sessionID, createdAt)
}

// LoadSession implements the session Mongo client.
func (c *Client) LoadSession(ctx context.Context, sessionID string) (session.Session, error) {
	c.t.Helper()
	if len(c.loadSessionFns) == 0 {
		c.t.Fatalf("unexpected LoadSession(%q) call: no more responses queued", sessionID)
		return session.Session{}, nil
	}
	fn := c.loadSessionFns[0]
	c.loadSessionFns = c.loadSessionFns[1:]
	return fn(ctx, sessionID)
}

// EndSession implements the session Mongo client.
func (c *Client) EndSession(ctx context.Context, sessionID string, endedAt time.Time) (session.Session, error) {
	c.t.Helper()
	if len(c.endSessionFns) == 0 {
		c.t.Fatalf("unexpected EndSession(%q) call: no more responses queued", sessionID)
		return session.Session{}, nil
	}
	fn := c.endSessionFns[0]
	c.endSessionFns = c.endSessionFns[1:]
	return fn(ctx, sessionID, endedAt)
}

// UpsertRun implements the session Mongo client.
func (c *Client) UpsertRun(ctx context.Context, r session.RunMeta) error {
	c.t.Helper()
	if len(c.upsertRunFns) == 0 {
		c.t.Fatalf("unexpected UpsertRun(%q) call: no more responses queued", r.RunID)
		return nil
	}
	fn := c.upsertRunFns[0]
	c.upsertRunFns = c.upsertRunFns[1:]
	return fn(ctx, r)
}

// LoadRun implements the session Mongo client.
func (c *Client) LoadRun(ctx context.Context, runID string) (session.RunMeta, error) {
	c.t.Helper()
	if len(c.loadRunFns) == 0 {
		c.t.Fatalf("unexpected LoadRun(%q) call: no more responses queued", runID)
		return session.RunMeta{}, nil
	}
	fn := c.loadRunFns[0]
	c.loadRunFns = c.loadRunFns[1:]
	return fn(ctx, runID)
}

// ListRunsBySession implements the session Mongo client.
func (c *Client) ListRunsBySession(ctx context.Context, sessionID string, statuses []session.RunStatus) ([]session.RunMeta, error) {
	c.t.Helper()
	if len(c.listRunsBySessionFns) == 0 {
		c.t.Fatalf("unexpected ListRunsBySession(%q) call: no more responses queued", sessionID)
		return nil, nil
	}
	fn := c.listRunsBySessionFns[0]
	c.listRunsBySessionFns = c.listRunsBySessionFns[1:]
	return fn(ctx, sessionID, statuses)
}
