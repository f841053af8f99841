// Package mocks provides hand-rolled, queue-based test doubles for the pulse
// client interfaces. Each mock is built with NewXxx(t), loaded with one
// closure per expected call via AddXxx, and asserts via HasMore that every
// queued closure was consumed.
package mocks

import (
	"context"

	"goa.design/pulse/streaming"
	streamopts "goa.design/pulse/streaming/options"

	clientspulse "github.com/infrabay/opscore/internal/eventbus/pulse/clients/pulse"
)

// TestingT is the subset of *testing.T used by the mocks, so callers can pass
// either *testing.T or *testing.B.
type TestingT interface {
	Helper()
	Fatalf(format string, args ...any)
}

// Client is a queue-based mock of clientspulse.Client.
type Client struct {
	t          TestingT
	streamFns  []func(name string, opts ...streamopts.Stream) (clientspulse.Stream, error)
	closeFns   []func(ctx context.Context) error
}

// NewClient constructs an empty Client mock.
func NewClient(t TestingT) *Client {
	return &Client{t: t}
}

// AddStream queues a response for the next Stream call.
func (c *Client) AddStream(fn func(name string, opts ...streamopts.Stream) (clientspulse.Stream, error)) {
	c.streamFns = append(c.streamFns, fn)
}

// AddClose queues a response for the next Close call.
func (c *Client) AddClose(fn func(ctx context.Context) error) {
	c.closeFns = append(c.closeFns, fn)
}

// HasMore reports whether any queued closure remains unconsumed.
func (c *Client) HasMore() bool {
	return len(c.streamFns) > 0 || len(c.closeFns) > 0
}

// Stream implements clientspulse.Client.
func (c *Client) Stream(name string, opts ...streamopts.Stream) (clientspulse.Stream, error) {
	c.t.Helper()
	if len(c.streamFns) == 0 {
		c.t.Fatalf("unexpected Stream(%q) call: no more responses queued", name)
		return nil, nil
	}
	fn := c.streamFns[0]
	c.streamFns = c.streamFns[1:]
	return fn(name, opts...)
}

// Close implements clientspulse.Client.
func (c *Client) Close(ctx context.Context) error {
	c.t.Helper()
	if len(c.closeFns) == 0 {
		c.t.Fatalf("unexpected Close() call: no more responses queued")
		return nil
	}
	fn := c.closeFns[0]
	c.closeFns = c.closeFns[1:]
	return fn(ctx)
}

// Stream is a queue-based mock of clientspulse.Stream.
type Stream struct {
	t          TestingT
	addFns     []func(ctx context.Context, event string, payload []byte) (string, error)
	newSinkFns []func(ctx context.Context, name string, opts ...streamopts.Sink) (clientspulse.Sink, error)
	destroyFns []func(ctx context.Context) error
}

// NewStream constructs an empty Stream mock.
func NewStream(t TestingT) *Stream {
	return &Stream{t: t}
}

// AddAdd queues a response for the next Add call.
func (s *Stream) AddAdd(fn func(ctx context.Context, event string, payload []byte) (string, error)) {
	s.addFns = append(s.addFns, fn)
}

// AddNewSink queues a response for the next NewSink call.
func (s *Stream) AddNewSink(fn func(ctx context.Context, name string, opts ...streamopts.Sink) (clientspulse.Sink, error)) {
	s.newSinkFns = append(s.newSinkFns, fn)
}

// AddDestroy queues a response for the next Destroy call.
func (s *Stream) AddDestroy(fn func(ctx context.Context) error) {
	s.destroyFns = append(s.destroyFns, fn)
}

// HasMore reports whether any queued closure remains unconsumed.
func (s *Stream) HasMore() bool {
	return len(s.addFns) > 0 || len(s.newSinkFns) > 0 || len(s.destroyFns) > 0
}

// Add implements clientspulse.Stream.
func (s *Stream) Add(ctx context.Context, event string, payload []byte) (string, error) {
	s.t.Helper()
	if len(s.addFns) == 0 {
		s.t.Fatalf("unexpected Add(%q) call: no more responses queued", event)
		return "", nil
	}
	fn := s.addFns[0]
	s.addFns = s.addFns[1:]
	return fn(ctx, event, payload)
}

// NewSink implements clientspulse.Stream.
func (s *Stream) NewSink(ctx context.Context, name string, opts ...streamopts.Sink) (clientspulse.Sink, error) {
	s.t.Helper()
	if len(s.newSinkFns) == 0 {
		s.t.Fatalf("unexpected NewSink(%q) call: no more responses queued", name)
		return nil, nil
	}
	fn := s.newSinkFns[0]
	s.newSinkFns = s.newSinkFns[1:]
	return fn(ctx, name, opts...)
}

// Destroy implements clientspulse.Stream.
func (s *Stream) Destroy(ctx context.Context) error {
	s.t.Helper()
	if len(s.destroyFns) == 0 {
		s.t.Fatalf("unexpected Destroy() call: no more responses queued")
		return nil
	}
	fn := s.destroyFns[0]
	s.destroyFns = s.destroyFns[1:]
	return fn(ctx)
}

// Sink is a queue-based mock of clientspulse.Sink.
type Sink struct {
	t            TestingT
	subscribeFns []func() <-chan *streaming.Event
	ackFns       []func(ctx context.Context, evt *streaming.Event) error
	closeFns     []func(ctx context.Context)
}

// NewSink constructs an empty Sink mock.
func NewSink(t TestingT) *Sink {
	return &Sink{t: t}
}

// AddSubscribe queues a response for the next Subscribe call.
func (s *Sink) AddSubscribe(fn func() <-chan *streaming.Event) {
	s.subscribeFns = append(s.subscribeFns, fn)
}

// AddAck queues a response for the next Ack call.
func (s *Sink) AddAck(fn func(ctx context.Context, evt *streaming.Event) error) {
	s.ackFns = append(s.ackFns, fn)
}

// AddClose queues a response for the next Close call.
func (s *Sink) AddClose(fn func(ctx context.Context)) {
	s.closeFns = append(s.closeFns, fn)
}

// HasMore reports whether any queued closure remains unconsumed.
func (s *Sink) HasMore() bool {
	return len(s.subscribeFns) > 0 || len(s.ackFns) > 0 || len(s.closeFns) > 0
}

// Subscribe implements clientspulse.Sink.
func (s *Sink) Subscribe() <-chan *streaming.Event {
	if len(s.subscribeFns) == 0 {
		s.t.Fatalf("unexpected Subscribe() call: no more responses queued")
		return nil
	}
	fn := s.subscribeFns[0]
	s.subscribeFns = s.subscribeFns[1:]
	return fn()
}

// Ack implements clientspulse.Sink.
func (s *Sink) Ack(ctx context.Context, evt *streaming.Event) error {
	s.t.Helper()
	if len(s.ackFns) == 0 {
		s.t.Fatalf("unexpected Ack() call: no more responses queued")
		return nil
	}
	fn := s.ackFns[0]
	s.ackFns = s.ackFns[1:]
	return fn(ctx, evt)
}

// Close implements clientspulse.Sink.
func (s *Sink) Close(ctx context.Context) {
	if len(s.closeFns) == 0 {
		s.t.Fatalf("unexpected Close() call: no more responses queued")
		return
	}
	fn := s.closeFns[0]
	s.closeFns = s.closeFns[1:]
	fn(ctx)
}
