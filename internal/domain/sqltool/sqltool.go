// Package sqltool holds the database/sql helpers shared by the postgres,
// mysql, and mariadb tool packages: bounded row scanning, and the
// transaction-wrapped read/write execution shape every SQL engine tool uses
// so a query never runs directly against the bare *sql.DB.
package sqltool

import (
	"context"
	"database/sql"
	"fmt"
)

// ScanRows materializes rows into a bounded slice of column->value maps,
// reporting whether the result was truncated at limit rows. Shared across
// drivers because database/sql's Rows/Scan surface is already
// driver-agnostic.
func ScanRows(rows *sql.Rows, limit int) ([]map[string]any, bool, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, false, err
	}
	out := make([]map[string]any, 0, limit)
	for rows.Next() {
		if len(out) >= limit {
			return out, true, rows.Err()
		}
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, false, err
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	return out, false, rows.Err()
}

// RunReadOnlyQuery runs stmt inside a read-only transaction, optionally
// issuing timeoutStmt (an engine-specific session/statement timeout
// setting, e.g. Postgres's "SET LOCAL statement_timeout=…") before it, and
// always ends the transaction with ROLLBACK — a read-only query never has
// anything to commit, and rolling back is cheaper than committing on every
// engine this is used against.
func RunReadOnlyQuery(ctx context.Context, db *sql.DB, timeoutStmt, stmt string, limit int) ([]map[string]any, bool, error) {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, false, fmt.Errorf("begin read-only transaction: %w", err)
	}

	if timeoutStmt != "" {
		if _, err := tx.ExecContext(ctx, timeoutStmt); err != nil {
			tx.Rollback()
			return nil, false, fmt.Errorf("set statement timeout: %w", err)
		}
	}

	rows, err := tx.QueryContext(ctx, stmt)
	if err != nil {
		tx.Rollback()
		return nil, false, fmt.Errorf("query: %w", err)
	}
	out, truncated, err := ScanRows(rows, limit)
	rows.Close()
	if err != nil {
		tx.Rollback()
		return nil, false, err
	}
	return out, truncated, tx.Rollback()
}

// RunInTx runs stmt inside a read-write transaction, optionally issuing
// timeoutStmt first, and commits on success or rolls back on any error.
func RunInTx(ctx context.Context, db *sql.DB, timeoutStmt, stmt string) (sql.Result, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if timeoutStmt != "" {
		if _, err := tx.ExecContext(ctx, timeoutStmt); err != nil {
			return nil, fmt.Errorf("set statement timeout: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return res, nil
}
