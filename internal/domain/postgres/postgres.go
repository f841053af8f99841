// Package postgres implements the postgres_sql_query,
// postgres_sql_execute_dml, and postgres_sql_execute_admin tools over
// database/sql with the lib/pq driver, gated by the read/write/meta-command
// SQL classifier (safety.IsReadOnly/IsDML/CheckNoMetaCommand).
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/infrabay/opscore/internal/domain"
	"github.com/infrabay/opscore/internal/domain/sqltool"
	"github.com/infrabay/opscore/internal/safety"
	"github.com/infrabay/opscore/internal/toolregistry"
	"github.com/infrabay/opscore/internal/tools"
)

// Config tunes the connection pool. Zero values fall back to conservative
// defaults so a deployment that forgets to set them still gets bounded
// connection growth.
type Config struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	QueryTimeout    time.Duration
	DefaultRowLimit int
}

func (c Config) withDefaults() Config {
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 10
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = 5
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = 5 * time.Minute
	}
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = 30 * time.Second
	}
	if c.DefaultRowLimit <= 0 {
		c.DefaultRowLimit = 500
	}
	return c
}

// Deps holds the dependencies Register closes over. DB is opened by the
// caller (sql.Open("postgres", dsn)) so connection lifecycle and secret
// handling for the DSN stay outside this package. OrgID is the organization
// this connection belongs to: every call is checked against it with
// safety.RequireResourceOrg, since a single *sql.DB here targets exactly one
// deployment database rather than a multi-tenant pool keyed per call.
type Deps struct {
	DB     *sql.DB
	Config Config
	OrgID  string
}

// Register adds postgres_sql_query, postgres_sql_execute_dml, and
// postgres_sql_execute_admin to r.
func Register(r *toolregistry.Registry, deps Deps) error {
	deps.Config = deps.Config.withDefaults()
	if deps.DB != nil {
		deps.DB.SetMaxOpenConns(deps.Config.MaxOpenConns)
		deps.DB.SetMaxIdleConns(deps.Config.MaxIdleConns)
		deps.DB.SetConnMaxLifetime(deps.Config.ConnMaxLifetime)
	}

	schema := `{"type":"object","required":["sql"],"properties":{"sql":{"type":"string"},"limit":{"type":"integer"}}}`
	querySpec := domain.Spec("postgres.postgres_sql_query", "postgres.postgres", "Run a read-only SQL query against the target Postgres database",
		schema, domain.ReadOnly)
	if err := r.Register(querySpec, deps.query); err != nil {
		return err
	}

	dmlSpec := domain.Spec("postgres.postgres_sql_execute_dml", "postgres.postgres", "Run an INSERT/UPDATE/DELETE statement against the target Postgres database",
		`{"type":"object","required":["sql"],"properties":{"sql":{"type":"string"}}}`, domain.RequiresApproval(tools.RiskMedium))
	if err := r.Register(dmlSpec, deps.executeDML); err != nil {
		return err
	}

	adminSpec := domain.Spec("postgres.postgres_sql_execute_admin", "postgres.postgres", "Run an administrative (DDL or superuser) statement against the target Postgres database",
		`{"type":"object","required":["sql","confirm"],"properties":{"sql":{"type":"string"},"confirm":{"type":"string","const":"CONFIRM_POSTGRES_ADMIN_STATEMENT"}}}`,
		domain.RequiresConfirm(tools.RiskHigh, "CONFIRM_POSTGRES_ADMIN_STATEMENT"))
	return r.Register(adminSpec, deps.executeAdmin)
}

type queryPayload struct {
	SQL   string `json:"sql"`
	Limit int    `json:"limit"`
}

func (d Deps) query(ctx context.Context, tc toolregistry.ToolContext, payload json.RawMessage) (json.RawMessage, []*toolregistry.ServerDataItem, error) {
	if err := safety.RequireResourceOrg(string(tc.OrgID), d.OrgID); err != nil {
		return nil, nil, err
	}
	var p queryPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, nil, err
	}
	if err := safety.CheckNoMetaCommand(p.SQL); err != nil {
		return nil, nil, err
	}
	if !safety.IsReadOnly(p.SQL) {
		return nil, nil, fmt.Errorf("postgres_sql_query only accepts read-only statements (SELECT/WITH/EXPLAIN/SHOW)")
	}
	stmt := safety.EnsureLimit(p.SQL, d.Config.DefaultRowLimit)

	ctx, cancel := context.WithTimeout(ctx, d.Config.QueryTimeout)
	defer cancel()

	timeoutStmt := fmt.Sprintf("SET LOCAL statement_timeout='%dms'", d.Config.QueryTimeout.Milliseconds())
	out, truncated, err := sqltool.RunReadOnlyQuery(ctx, d.DB, timeoutStmt, stmt, d.Config.DefaultRowLimit)
	if err != nil {
		return nil, nil, err
	}
	b, err := json.Marshal(struct {
		Rows      []map[string]any `json:"rows"`
		Truncated bool              `json:"truncated"`
	}{Rows: out, Truncated: truncated})
	return b, nil, err
}

type dmlPayload struct {
	SQL string `json:"sql"`
}

func (d Deps) executeDML(ctx context.Context, tc toolregistry.ToolContext, payload json.RawMessage) (json.RawMessage, []*toolregistry.ServerDataItem, error) {
	if err := safety.RequireResourceOrg(string(tc.OrgID), d.OrgID); err != nil {
		return nil, nil, err
	}
	var p dmlPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, nil, err
	}
	if err := safety.CheckNoMetaCommand(p.SQL); err != nil {
		return nil, nil, err
	}
	if !safety.IsDML(p.SQL) {
		return nil, nil, fmt.Errorf("postgres_sql_execute_dml only accepts INSERT/UPDATE/DELETE statements")
	}

	ctx, cancel := context.WithTimeout(ctx, d.Config.QueryTimeout)
	defer cancel()

	timeoutStmt := fmt.Sprintf("SET LOCAL statement_timeout='%dms'", d.Config.QueryTimeout.Milliseconds())
	res, err := sqltool.RunInTx(ctx, d.DB, timeoutStmt, p.SQL)
	if err != nil {
		return nil, nil, err
	}
	affected, _ := res.RowsAffected()
	b, err := json.Marshal(struct {
		RowsAffected int64 `json:"rowsAffected"`
	}{RowsAffected: affected})
	return b, nil, err
}

type adminPayload struct {
	SQL     string `json:"sql"`
	Confirm string `json:"confirm"`
}

func (d Deps) executeAdmin(ctx context.Context, tc toolregistry.ToolContext, payload json.RawMessage) (json.RawMessage, []*toolregistry.ServerDataItem, error) {
	if err := safety.RequireResourceOrg(string(tc.OrgID), d.OrgID); err != nil {
		return nil, nil, err
	}
	var p adminPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, nil, err
	}
	if err := safety.RequireConfirmLiteral("CONFIRM_POSTGRES_ADMIN_STATEMENT", p.Confirm); err != nil {
		return nil, nil, err
	}
	if err := safety.CheckNoMetaCommand(p.SQL); err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, d.Config.QueryTimeout)
	defer cancel()

	timeoutStmt := fmt.Sprintf("SET LOCAL statement_timeout='%dms'", d.Config.QueryTimeout.Milliseconds())
	if _, err := sqltool.RunInTx(ctx, d.DB, timeoutStmt, p.SQL); err != nil {
		return nil, nil, fmt.Errorf("execute admin statement: %w", err)
	}
	b, err := json.Marshal(struct {
		Executed bool `json:"executed"`
	}{Executed: true})
	return b, nil, err
}
