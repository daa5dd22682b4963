// Package sqlbase implements storage.Backend on top of database/sql.
//
// The SQLite, PostgreSQL and OceanBase providers share this implementation and
// only differ in their Dialect: bind-parameter syntax, DDL and upsert clause.
// Timestamps are stored as unix nanoseconds in a BIGINT column so ordering and
// range scans behave identically on every engine.
package sqlbase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/oceanbase/finmem-go/pkg/storage"
)

// Dialect describes the SQL differences between engines.
type Dialect struct {
	// Name is the engine name used in error messages.
	Name string

	// Bind returns the placeholder for the i-th (1-based) argument.
	Bind func(i int) string

	// Schema returns the statements creating the table and its indexes.
	Schema func(table string) []string

	// Upsert returns an insert-or-replace statement taking
	// (id, symbol, action, ts, payload) in that order.
	Upsert func(table string) string
}

// QuestionBind is the "?" placeholder style used by SQLite and MySQL.
func QuestionBind(int) string { return "?" }

// DollarBind is the "$n" placeholder style used by PostgreSQL.
func DollarBind(i int) string { return fmt.Sprintf("$%d", i) }

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// ValidTableName reports whether name is safe to interpolate into SQL.
func ValidTableName(name string) bool {
	return tableNameRe.MatchString(name)
}

// Table implements storage.Backend for one table.
type Table struct {
	// db is the shared database connection.
	db *sql.DB

	// name is the table name.
	name string

	// dialect is the SQL dialect of the engine.
	dialect Dialect
}

// OpenTable creates the table if needed and returns a backend for it.
func OpenTable(ctx context.Context, db *sql.DB, dialect Dialect, name string) (*Table, error) {
	if !ValidTableName(name) {
		return nil, fmt.Errorf("OpenTable: invalid table name %q", name)
	}
	for _, stmt := range dialect.Schema(name) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("OpenTable: %s: %w", name, err)
		}
	}
	return &Table{db: db, name: name, dialect: dialect}, nil
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Get retrieves a row by id.
func (t *Table) Get(ctx context.Context, id string) (*storage.Row, error) {
	query := fmt.Sprintf(`
		SELECT id, symbol, action, ts, payload
		FROM %s
		WHERE id = %s
	`, t.name, t.dialect.Bind(1))

	row, err := scanRow(t.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return row, nil
}

// Upsert inserts or replaces a row.
func (t *Table) Upsert(ctx context.Context, row *storage.Row) error {
	_, err := t.db.ExecContext(ctx, t.dialect.Upsert(t.name),
		row.ID,
		row.Symbol,
		row.Action,
		row.Timestamp.UnixNano(),
		string(row.Payload),
	)
	if err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}
	return nil
}

// Delete removes a row by id.
func (t *Table) Delete(ctx context.Context, id string) (bool, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = %s", t.name, t.dialect.Bind(1))

	result, err := t.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("Delete: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("Delete: %w", err)
	}
	return rowsAffected > 0, nil
}

// Scan returns rows matching opts, newest first.
func (t *Table) Scan(ctx context.Context, opts *storage.ScanOptions) ([]*storage.Row, error) {
	if opts == nil {
		opts = &storage.ScanOptions{}
	}
	whereClause, args := buildWhereClause(t.dialect, opts)

	query := fmt.Sprintf(`
		SELECT id, symbol, action, ts, payload
		FROM %s
		%s
		ORDER BY ts DESC, id
	`, t.name, whereClause)
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("Scan: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*storage.Row
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("Scan: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Scan: %w", err)
	}
	return out, nil
}

// DeleteBefore removes rows older than cutoff inside one transaction.
func (t *Table) DeleteBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("DeleteBefore: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	selectQuery := fmt.Sprintf("SELECT id FROM %s WHERE ts < %s", t.name, t.dialect.Bind(1))
	rows, err := tx.QueryContext(ctx, selectQuery, cutoff.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("DeleteBefore: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("DeleteBefore: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("DeleteBefore: %w", err)
	}
	_ = rows.Close()

	if len(ids) == 0 {
		return nil, nil
	}

	deleteQuery := fmt.Sprintf("DELETE FROM %s WHERE ts < %s", t.name, t.dialect.Bind(1))
	if _, err := tx.ExecContext(ctx, deleteQuery, cutoff.UnixNano()); err != nil {
		return nil, fmt.Errorf("DeleteBefore: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("DeleteBefore: %w", err)
	}
	return ids, nil
}

// Count returns the number of rows in the table.
func (t *Table) Count(ctx context.Context) (int, error) {
	var n int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", t.name)
	if err := t.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("Count: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRow(s scanner) (*storage.Row, error) {
	var (
		row     storage.Row
		ts      int64
		payload string
	)
	if err := s.Scan(&row.ID, &row.Symbol, &row.Action, &ts, &payload); err != nil {
		return nil, err
	}
	row.Timestamp = time.Unix(0, ts).UTC()
	row.Payload = []byte(payload)
	return &row, nil
}

// buildWhereClause builds the WHERE clause for a scan.
func buildWhereClause(d Dialect, opts *storage.ScanOptions) (string, []interface{}) {
	conditions := []string{}
	args := []interface{}{}

	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, d.Bind(len(args))))
	}

	if opts.Symbol != "" {
		add("symbol = %s", opts.Symbol)
	}
	if opts.Action != "" {
		add("action = %s", opts.Action)
	}
	if !opts.Start.IsZero() {
		add("ts >= %s", opts.Start.UnixNano())
	}
	if !opts.End.IsZero() {
		add("ts <= %s", opts.End.UnixNano())
	}

	if len(conditions) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}
