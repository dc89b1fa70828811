// Package storage reads and writes the branch table in a SQLite file using
// database/sql and the pure-Go modernc.org/sqlite driver.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/KaramelBytes/filialcluster/internal/frame"

	_ "modernc.org/sqlite"
)

const pingTimeout = 5 * time.Second

// Store is an open SQLite database. Close it when done.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens an existing SQLite file. A missing file, a directory, or a file
// that is not a database yields a *ConnectionError.
func Open(ctx context.Context, path string) (*Store, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &ConnectionError{Path: path, Err: err}
	}
	if info.IsDir() {
		return nil, &ConnectionError{Path: path, Err: errors.New("is a directory")}
	}
	return open(ctx, path)
}

// OpenWritable opens the SQLite file at path, creating it if necessary.
func OpenWritable(ctx context.Context, path string) (*Store, error) {
	return open(ctx, path)
}

func open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, &ConnectionError{Path: path, Err: errors.New("empty path")}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &ConnectionError{Path: path, Err: err}
	}
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, &ConnectionError{Path: path, Err: err}
	}
	// The driver opens lazily; touching the schema catches non-database files.
	var n int
	if err := db.QueryRowContext(pingCtx, "SELECT count(*) FROM sqlite_master").Scan(&n); err != nil {
		db.Close()
		return nil, &ConnectionError{Path: path, Err: err}
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the file the store was opened from.
func (s *Store) Path() string { return s.path }

// Close releases the underlying connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Tables lists the user tables of the database in name order.
func (s *Store) Tables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("sqlite: list tables: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("sqlite: list tables: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// LoadTable reads every row of table into a frame, preserving column order
// and names. Columns whose non-null values are all numeric become numeric
// series; NULL becomes a missing value.
func (s *Store) LoadTable(ctx context.Context, table string) (*frame.Frame, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT * FROM "+quoteIdent(table))
	if err != nil {
		return nil, &QueryError{Table: table, Err: err}
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, &QueryError{Table: table, Err: err}
	}
	cells := make([][]any, len(names))
	dest := make([]any, len(names))
	ptrs := make([]any, len(names))
	for i := range dest {
		ptrs[i] = &dest[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &QueryError{Table: table, Err: fmt.Errorf("scan row %d: %w", len(cells[0])+1, err)}
		}
		for i, v := range dest {
			cells[i] = append(cells[i], normalizeCell(v))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, &QueryError{Table: table, Err: err}
	}

	series := make([]*frame.Series, len(names))
	for i, name := range names {
		series[i] = toSeries(name, cells[i])
	}
	f, err := frame.New(series...)
	if err != nil {
		return nil, &QueryError{Table: table, Err: err}
	}
	return f, nil
}

// ReplaceTable drops table if it exists, recreates it with column types
// inferred from rows, and inserts all rows in a single transaction. Values
// must be nil, int64, float64 or string.
func (s *Store) ReplaceTable(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("sqlite: replace %s: columns must not be empty", table)
	}
	defs := make([]string, len(columns))
	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quoteIdent(c)
		defs[i] = quoted[i] + " " + columnType(rows, i)
		placeholders[i] = "?"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(table)); err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("sqlite: drop %s: %w", table, err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(table), strings.Join(defs, ", "))); err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("sqlite: create %s: %w", table, err)
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table),
		strings.Join(quoted, ", "),
		strings.Join(placeholders, ", "),
	))
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("sqlite: prepare insert: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for _, row := range rows {
		if len(row) != len(columns) {
			_ = tx.Rollback()
			return inserted, fmt.Errorf("sqlite: row length %d != columns length %d", len(row), len(columns))
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			_ = tx.Rollback()
			return inserted, fmt.Errorf("sqlite: insert: %w", err)
		}
		inserted++
	}
	if err := tx.Commit(); err != nil {
		return inserted, fmt.Errorf("sqlite: commit: %w", err)
	}
	return inserted, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// normalizeCell maps driver values onto nil, int64, float64 or string.
func normalizeCell(v any) any {
	switch x := v.(type) {
	case nil, int64, float64, string:
		return x
	case []byte:
		return string(x)
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}

func toSeries(name string, cells []any) *frame.Series {
	nums := make([]float64, len(cells))
	numeric := true
	for i, c := range cells {
		switch x := c.(type) {
		case nil:
			nums[i] = math.NaN()
		case int64:
			nums[i] = float64(x)
		case float64:
			nums[i] = x
		case string:
			if strings.TrimSpace(x) == "" {
				nums[i] = math.NaN()
				continue
			}
			f, ok := frame.ParseNumber(x)
			if !ok {
				numeric = false
			}
			nums[i] = f
		}
		if !numeric {
			break
		}
	}
	if numeric {
		return frame.NewNumeric(name, nums)
	}
	strs := make([]string, len(cells))
	null := make([]bool, len(cells))
	for i, c := range cells {
		switch x := c.(type) {
		case nil:
			null[i] = true
		case string:
			strs[i] = x
		case int64:
			strs[i] = fmt.Sprint(x)
		case float64:
			strs[i] = fmt.Sprint(x)
		}
	}
	return frame.NewText(name, strs, null)
}

// columnType picks the SQLite affinity for column i: INTEGER if every
// non-null value is an int64, REAL if all are numbers, TEXT otherwise.
func columnType(rows [][]any, i int) string {
	typ := "INTEGER"
	for _, row := range rows {
		if i >= len(row) {
			continue
		}
		switch row[i].(type) {
		case nil, int64:
		case float64:
			typ = "REAL"
		default:
			return "TEXT"
		}
	}
	return typ
}
