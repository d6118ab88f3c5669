package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver
)

// MemoryPath selects an in-memory database.
const MemoryPath = ":memory:"

// SQLiteStore is the local relational store that tabular datasets are
// materialised into. It keeps exactly one connection open, so an in-memory
// database lives as long as the store.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// OpenSQLite opens the database at path, creating parent directories as
// needed. An empty path or MemoryPath opens an in-memory database.
func OpenSQLite(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		path = MemoryPath
	}

	dsn := path
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
		dsn = path + "?_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening database: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		path:   path,
		logger: logger.With("component", "sqlite"),
	}, nil
}

// Path returns the database location, MemoryPath for in-memory stores.
func (s *SQLiteStore) Path() string {
	return s.path
}

// DB exposes the underlying handle.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Close closes the database. An in-memory database is discarded.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks that the database is still usable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ReplaceTable writes t, dropping any existing table of the same name.
func (s *SQLiteStore) ReplaceTable(ctx context.Context, t Table) error {
	return s.WriteTable(ctx, t, Replace)
}

// WriteTable creates t and inserts its rows in one transaction.
func (s *SQLiteStore) WriteTable(ctx context.Context, t Table, mode IfExists) error {
	if len(t.Columns) == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyTable, t.Name)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin write %s: %w", t.Name, err)
	}
	defer tx.Rollback()

	exists, err := tableExists(ctx, tx, t.Name)
	if err != nil {
		return err
	}
	switch {
	case exists && mode == Fail:
		return fmt.Errorf("%w: %s", ErrTableExists, t.Name)
	case exists && mode == Replace:
		if _, err := tx.ExecContext(ctx, "DROP TABLE "+quoteIdent(t.Name)); err != nil {
			return fmt.Errorf("drop table %s: %w", t.Name, err)
		}
		exists = false
	}

	if !exists {
		defs := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			defs[i] = quoteIdent(c.Name) + " " + string(c.Type)
		}
		stmt := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(t.Name), strings.Join(defs, ", "))
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create table %s: %w", t.Name, err)
		}
	}

	if len(t.Rows) > 0 {
		names := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			names[i] = quoteIdent(c.Name)
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(t.Columns)), ", ")
		insert, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			quoteIdent(t.Name), strings.Join(names, ", "), placeholders))
		if err != nil {
			return fmt.Errorf("prepare insert %s: %w", t.Name, err)
		}
		defer insert.Close()

		for i, row := range t.Rows {
			if len(row) != len(t.Columns) {
				return fmt.Errorf("insert %s row %d: %d values for %d columns", t.Name, i, len(row), len(t.Columns))
			}
			if _, err := insert.ExecContext(ctx, row...); err != nil {
				return fmt.Errorf("insert %s row %d: %w", t.Name, i, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", t.Name, err)
	}
	s.logger.Debug("Wrote table", "table", t.Name, "rows", len(t.Rows), "mode", mode.String())
	return nil
}

// WriteManifest writes rows to ManifestTable with the given mode.
func (s *SQLiteStore) WriteManifest(ctx context.Context, rows []ManifestRow, mode IfExists) error {
	t := Table{
		Name: ManifestTable,
		Columns: []Column{
			{Name: "file_title", Type: AffinityText},
			{Name: "url", Type: AffinityText},
			{Name: "table_name", Type: AffinityText},
			{Name: "description", Type: AffinityText},
		},
		Rows: make([][]any, len(rows)),
	}
	for i, r := range rows {
		t.Rows[i] = []any{r.FileTitle, r.URL, r.TableName, r.Description}
	}
	return s.WriteTable(ctx, t, mode)
}

// Manifest reads ManifestTable in insertion order. A missing manifest
// yields no rows.
func (s *SQLiteStore) Manifest(ctx context.Context) ([]ManifestRow, error) {
	exists, err := tableExists(ctx, s.db, ManifestTable)
	if err != nil || !exists {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		"SELECT file_title, url, table_name, description FROM %s ORDER BY rowid", quoteIdent(ManifestTable)))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	defer rows.Close()

	var out []ManifestRow
	for rows.Next() {
		var r ManifestRow
		var desc sql.NullString
		if err := rows.Scan(&r.FileTitle, &r.URL, &r.TableName, &desc); err != nil {
			return nil, fmt.Errorf("scan manifest: %w", err)
		}
		r.Description = desc.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// Tables lists user tables in name order.
func (s *SQLiteStore) Tables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Query runs a single read-only statement and materialises the result.
// Anything other than SELECT, WITH or PRAGMA is rejected with
// ErrReadOnlyQuery, and the connection is held in query_only mode while
// the statement runs.
func (s *SQLiteStore) Query(ctx context.Context, stmt string, args ...any) (*ResultSet, error) {
	stmt, err := readOnlyStatement(stmt)
	if err != nil {
		return nil, err
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
		return nil, fmt.Errorf("enable query_only: %w", err)
	}
	defer func() {
		if _, err := conn.ExecContext(context.Background(), "PRAGMA query_only = OFF"); err != nil {
			s.logger.Warn("Failed to reset query_only", "error", err)
		}
	}()

	rows, err := conn.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	result := &ResultSet{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return result, nil
}

// readOnlyStatement trims stmt and checks it is one read statement.
func readOnlyStatement(stmt string) (string, error) {
	stmt = strings.TrimSpace(stmt)
	stmt = strings.TrimSpace(strings.TrimRight(stmt, ";"))
	if stmt == "" {
		return "", fmt.Errorf("%w: empty statement", ErrReadOnlyQuery)
	}
	if strings.Contains(stmt, ";") {
		return "", fmt.Errorf("%w: multiple statements", ErrReadOnlyQuery)
	}
	keyword := strings.ToUpper(strings.Fields(stmt)[0])
	switch keyword {
	case "SELECT", "WITH", "PRAGMA":
		return stmt, nil
	}
	return "", fmt.Errorf("%w: %s", ErrReadOnlyQuery, keyword)
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func tableExists(ctx context.Context, q rowQuerier, name string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		"SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check table %s: %w", name, err)
	}
	return true, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
