// Package mariadb implements mariadb_sql_query. MariaDB speaks the MySQL
// wire protocol, so this reuses go-sql-driver/mysql and the same
// read-only classifier as the mysql package.
package mariadb

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

// Deps holds the dependencies Register closes over. OrgID is the
// organization this connection belongs to; every call is checked against it
// with safety.RequireResourceOrg since a single *sql.DB here targets one
// deployment database rather than a multi-tenant pool.
type Deps struct {
	DB              *sql.DB
	QueryTimeout    time.Duration
	DefaultRowLimit int
	OrgID           string
}

// Register adds mariadb_sql_query to r.
func Register(r *toolregistry.Registry, deps Deps) error {
	if deps.QueryTimeout <= 0 {
		deps.QueryTimeout = 30 * time.Second
	}
	if deps.DefaultRowLimit <= 0 {
		deps.DefaultRowLimit = 500
	}
	spec := domain.Spec("mariadb.mariadb_sql_query", "mariadb.mariadb", "Run a read-only SQL query against the target MariaDB database",
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
		return nil, nil, fmt.Errorf("mariadb_sql_query only accepts read-only statements (SELECT/WITH/EXPLAIN/SHOW)")
	}
	stmt := safety.EnsureLimit(p.SQL, d.DefaultRowLimit)

	ctx, cancel := context.WithTimeout(ctx, d.QueryTimeout)
	defer cancel()

	timeoutStmt := fmt.Sprintf("SET SESSION max_statement_time=%g", d.QueryTimeout.Seconds())
	out, truncated, err := sqltool.RunReadOnlyQuery(ctx, d.DB, timeoutStmt, stmt, d.DefaultRowLimit)
	if err != nil {
		return nil, nil, err
	}
	b, err := json.Marshal(struct {
		Rows      []map[string]any `json:"rows"`
		Truncated bool              `json:"truncated"`
	}{Rows: out, Truncated: truncated})
	return b, nil, err
}
