// Package mysql implements the mysql_sql_query tool over database/sql with
// the go-sql-driver/mysql driver, reusing the same read/write classifier as
// postgres to demonstrate it is driver-agnostic.
package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/infrabay/opscore/internal/domain"
	"github.com/infrabay/opscore/internal/domain/sqltool"
	"github.com/infrabay/opscore/internal/safety"
	"github.com/infrabay/opscore/internal/toolregistry"
)

// Config tunes the query path. A zero value falls back to a 30s timeout and
// a 500-row default page.
type Config struct {
	QueryTimeout    time.Duration
	DefaultRowLimit int
}

func (c Config) withDefaults() Config {
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = 30 * time.Second
	}
	if c.DefaultRowLimit <= 0 {
		c.DefaultRowLimit = 500
	}
	return c
}

// Deps holds the dependencies Register closes over. OrgID is the
// organization this connection belongs to; every call is checked against it
// with safety.RequireResourceOrg since a single *sql.DB here targets one
// deployment database rather than a multi-tenant pool.
type Deps struct {
	DB     *sql.DB
	Config Config
	OrgID  string
}

// Register adds mysql_sql_query to r.
func Register(r *toolregistry.Registry, deps Deps) error {
	deps.Config = deps.Config.withDefaults()
	spec := domain.Spec("mysql.mysql_sql_query", "mysql.mysql", "Run a read-only SQL query against the target MySQL database",
		`{"type":"object","required":["sql"],"properties":{"sql":{"type":"string"},"limit":{"type":"integer"}}}`, domain.ReadOnly)
	return r.Register(spec, deps.query)
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
		return nil, nil, fmt.Errorf("mysql_sql_query only accepts read-only statements (SELECT/WITH/EXPLAIN/SHOW)")
	}
	stmt := safety.EnsureLimit(p.SQL, d.Config.DefaultRowLimit)

	ctx, cancel := context.WithTimeout(ctx, d.Config.QueryTimeout)
	defer cancel()

	timeoutStmt := fmt.Sprintf("SET SESSION MAX_EXECUTION_TIME=%d", d.Config.QueryTimeout.Milliseconds())
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
