// Package sqldata provides the structured data source for generated queries.
package sqldata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// ErrNotReadOnly is returned when a generated statement is anything
// other than a single SELECT (or WITH) query. Generated SQL crosses a
// trust boundary: the executor refuses statements that could mutate
// the database.
var ErrNotReadOnly = errors.New("statement is not a read-only query")

// SQLite is a SQLite-backed data source for the question-answering
// pipeline. It exposes a schema description for prompt construction and
// read-only query execution with results rendered as text.
//
// Safe for concurrent use across batch workers; all access is
// read-only.
type SQLite struct {
	db *sql.DB
}

// Open opens the database at path.
func Open(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	return &SQLite{db: db}, nil
}

// Close releases the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// SchemaDescription returns a textual description of every user table
// and its columns, for embedding in query-generation prompts.
//
// Output format, one table per line:
//
//	Table Products (ProductID INTEGER, ProductName TEXT, UnitPrice REAL)
func (s *SQLite) SchemaDescription(ctx context.Context) (string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`)
	if err != nil {
		return "", fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return "", fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("failed to iterate tables: %w", err)
	}

	var sb strings.Builder
	for _, table := range tables {
		cols, err := s.tableColumns(ctx, table)
		if err != nil {
			return "", err
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "Table %s (%s)", table, strings.Join(cols, ", "))
	}

	return sb.String(), nil
}

func (s *SQLite) tableColumns(ctx context.Context, table string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table))
	if err != nil {
		return nil, fmt.Errorf("failed to describe table %s: %w", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan column of %s: %w", table, err)
		}
		if colType == "" {
			cols = append(cols, name)
		} else {
			cols = append(cols, name+" "+colType)
		}
	}
	return cols, rows.Err()
}

// Run executes a read-only query and renders the result as text: a
// header line of column names, then one line per row with values
// separated by " | ". Execution errors are returned to the caller and
// drive the repair loop; they are never fatal to a question.
func (s *SQLite) Run(ctx context.Context, query string) (string, error) {
	if err := checkReadOnly(query); err != nil {
		return "", err
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(strings.Join(cols, " | "))

	values := make([]interface{}, len(cols))
	scanArgs := make([]interface{}, len(cols))
	for i := range values {
		scanArgs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(scanArgs...); err != nil {
			return "", err
		}
		fields := make([]string, len(cols))
		for i, v := range values {
			fields[i] = renderValue(v)
		}
		sb.WriteString("\n")
		sb.WriteString(strings.Join(fields, " | "))
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	return sb.String(), nil
}

// checkReadOnly accepts a single SELECT or WITH statement and rejects
// everything else, including multi-statement input.
func checkReadOnly(query string) error {
	trimmed := strings.TrimSpace(query)
	trimmed = strings.TrimSuffix(trimmed, ";")
	if strings.Contains(trimmed, ";") {
		return ErrNotReadOnly
	}

	upper := strings.ToUpper(trimmed)
	if strings.HasPrefix(upper, "SELECT") || strings.HasPrefix(upper, "WITH") {
		return nil
	}
	return ErrNotReadOnly
}

func renderValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
