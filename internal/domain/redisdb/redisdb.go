// Package redisdb implements redis_info (read-only) and redis_flush_db
// (destructive, confirm-gated) over redis/go-redis/v9.
package redisdb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/infrabay/opscore/internal/domain"
	"github.com/infrabay/opscore/internal/safety"
	"github.com/infrabay/opscore/internal/toolregistry"
	"github.com/infrabay/opscore/internal/tools"
)

const confirmFlushDB = "CONFIRM_REDIS_FLUSH_DB"

// Client mirrors the subset of *redis.Client this package needs, so tests
// can substitute a stub that returns canned command results instead of
// dialing a real server.
type Client interface {
	Info(ctx context.Context, section ...string) *redis.StringCmd
	FlushDB(ctx context.Context) *redis.StatusCmd
}

// Deps holds the dependencies Register closes over. OrgID is the
// organization this client belongs to; every call is checked against it with
// safety.RequireResourceOrg since a single Client here targets one
// deployment instance rather than a multi-tenant pool.
type Deps struct {
	Client  Client
	Timeout time.Duration
	OrgID   string
}

// Register adds redis_info and redis_flush_db to r.
func Register(r *toolregistry.Registry, deps Deps) error {
	if deps.Timeout <= 0 {
		deps.Timeout = 10 * time.Second
	}

	infoSpec := domain.Spec("redisdb.redis_info", "redisdb.redisdb", "Report INFO server/stats sections for the target Redis instance",
		`{"type":"object","properties":{"section":{"type":"string"}}}`, domain.ReadOnly)
	if err := r.Register(infoSpec, deps.info); err != nil {
		return err
	}

	flushSpec := domain.Spec("redisdb.redis_flush_db", "redisdb.redisdb", "Flush every key in the currently selected Redis database",
		fmt.Sprintf(`{"type":"object","required":["confirm"],"properties":{"confirm":{"type":"string","const":%q}}}`, confirmFlushDB),
		domain.RequiresConfirm(tools.RiskHigh, confirmFlushDB))
	return r.Register(flushSpec, deps.flushDB)
}

type infoPayload struct {
	Section string `json:"section"`
}

func (d Deps) info(ctx context.Context, tc toolregistry.ToolContext, payload json.RawMessage) (json.RawMessage, []*toolregistry.ServerDataItem, error) {
	if err := safety.RequireResourceOrg(string(tc.OrgID), d.OrgID); err != nil {
		return nil, nil, err
	}
	var p infoPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()

	raw, err := d.Client.Info(ctx, p.Section).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("redis info: %w", err)
	}
	truncated, wasTruncated := safety.TruncateOutput(raw, safety.DefaultMaxOutputChars)
	b, err := json.Marshal(struct {
		Info      string `json:"info"`
		Truncated bool   `json:"truncated"`
	}{Info: truncated, Truncated: wasTruncated})
	return b, nil, err
}

type flushPayload struct {
	Confirm string `json:"confirm"`
}

func (d Deps) flushDB(ctx context.Context, tc toolregistry.ToolContext, payload json.RawMessage) (json.RawMessage, []*toolregistry.ServerDataItem, error) {
	if err := safety.RequireResourceOrg(string(tc.OrgID), d.OrgID); err != nil {
		return nil, nil, err
	}
	var p flushPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, nil, err
	}
	if err := safety.RequireConfirmLiteral(confirmFlushDB, p.Confirm); err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()

	if err := d.Client.FlushDB(ctx).Err(); err != nil {
		return nil, nil, fmt.Errorf("redis flushdb: %w", err)
	}
	b, err := json.Marshal(struct {
		Flushed bool `json:"flushed"`
	}{Flushed: true})
	return b, nil, err
}
