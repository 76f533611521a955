// ABOUTME: SQLite implementation of SQLStore for the generic database tools.
// ABOUTME: Lists tables, describes columns and runs parameterized statements.

package store

import (
	"context"
	"database/sql"
	"fmt"
)

// ListTables returns user table names, sorted.
func (s *SQLiteStore) ListTables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning table name: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// DescribeTable returns the columns and primary keys of table.
// Returns ErrUnknownTable if table is not one of ListTables.
func (s *SQLiteStore) DescribeTable(ctx context.Context, table string) (*TableInfo, error) {
	tables, err := s.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	found := false
	for _, t := range tables {
		if t == table {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, type, "notnull", dflt_value, pk
		FROM pragma_table_info(?)
		ORDER BY cid
	`, table)
	if err != nil {
		return nil, fmt.Errorf("describing table %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	info := &TableInfo{Name: table, PrimaryKeys: []string{}}
	for rows.Next() {
		var c Column
		var notNull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&c.Name, &c.Type, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scanning column: %w", err)
		}
		c.NotNull = notNull != 0
		c.PrimaryKey = pk > 0
		if dflt.Valid {
			v := dflt.String
			c.Default = &v
		}
		if c.PrimaryKey {
			info.PrimaryKeys = append(info.PrimaryKeys, c.Name)
		}
		info.Columns = append(info.Columns, c)
	}
	return info, rows.Err()
}

// QueryRows runs a read query with bind parameters and collects at most
// maxRows rows. Truncated is set when more rows were available.
func (s *SQLiteStore) QueryRows(ctx context.Context, query string, maxRows int, args ...any) (*RowSet, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}

	result := &RowSet{Columns: cols, Rows: []map[string]any{}}
	for rows.Next() {
		if maxRows > 0 && len(result.Rows) >= maxRows {
			result.Truncated = true
			break
		}

		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		row := make(map[string]any, len(cols))
		for i, col := range cols {
			// TEXT and BLOB come back as []byte from some drivers
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		result.Rows = append(result.Rows, row)
	}
	return result, rows.Err()
}

// Exec runs a write statement with bind parameters.
func (s *SQLiteStore) Exec(ctx context.Context, query string, args ...any) (*ExecResult, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("reading rows affected: %w", err)
	}
	// Not every statement yields an insert id
	lastID, _ := res.LastInsertId()

	return &ExecResult{RowsAffected: affected, LastInsertID: lastID}, nil
}
