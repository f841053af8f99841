package approvalbus

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/infrabay/opscore/internal/ids"
)

// Redis is a multi-replica Bus backed by Redis Pub/Sub, so an agent run
// suspended on one replica can be woken by an approval mutation handled by
// another. Notify publishes a single empty message to the execution's
// channel; Wait subscribes and blocks for the first message or ctx
// cancellation.
type Redis struct {
	client *redis.Client
	prefix string
}

// Options configures a Redis-backed Bus.
type Options struct {
	// Client is the Redis connection used for Pub/Sub. Required.
	Client *redis.Client
	// ChannelPrefix namespaces Pub/Sub channel names. Defaults to "approvalbus:".
	ChannelPrefix string
}

// NewRedis constructs a Redis-backed Bus. Returns an error if opts.Client is
// nil.
func NewRedis(opts Options) (*Redis, error) {
	if opts.Client == nil {
		return nil, errors.New("approvalbus: redis client is required")
	}
	prefix := opts.ChannelPrefix
	if prefix == "" {
		prefix = "approvalbus:"
	}
	return &Redis{client: opts.Client, prefix: prefix}, nil
}

func (r *Redis) channel(executionID ids.ExecutionID) string {
	return r.prefix + string(executionID)
}

// Notify implements Bus.
func (r *Redis) Notify(ctx context.Context, executionID ids.ExecutionID) error {
	if err := r.client.Publish(ctx, r.channel(executionID), "1").Err(); err != nil {
		return fmt.Errorf("approvalbus: publish: %w", err)
	}
	return nil
}

// Wait implements Bus.
func (r *Redis) Wait(ctx context.Context, executionID ids.ExecutionID) error {
	sub := r.client.Subscribe(ctx, r.channel(executionID))
	defer sub.Close()

	// Block until the subscription is confirmed so a Notify racing with
	// Wait's setup is never missed.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("approvalbus: subscribe: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case _, ok := <-sub.Channel():
		if !ok {
			return fmt.Errorf("approvalbus: subscription closed for %q", executionID)
		}
		return nil
	}
}
