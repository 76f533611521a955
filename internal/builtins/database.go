// ABOUTME: Database pack provides read-only SQL, schema introspection and row mutation tools.
// ABOUTME: Identifiers are validated against introspection; values are always bound.

package builtins

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/2389/folio-gateway/internal/store"
	"github.com/2389/folio-gateway/internal/tools"
)

// DefaultMaxRows caps rows returned by the query tool.
const DefaultMaxRows = 500

// DatabaseOptions configures the database pack.
type DatabaseOptions struct {
	AllowWrites bool // registers insert_row, update_rows and delete_rows
	MaxRows     int
}

// DatabasePack creates the database pack over s.
func DatabasePack(s store.SQLStore, opts DatabaseOptions) *tools.Group {
	if opts.MaxRows <= 0 {
		opts.MaxRows = DefaultMaxRows
	}
	d := &databaseHandlers{store: s, maxRows: opts.MaxRows}

	group := &tools.Group{
		Category: "database",
		Tools: []tools.Definition{
			{
				Name:        "query",
				Description: "Run a read-only SELECT statement. Use ? placeholders with params for values.",
				Schema:      json.RawMessage(`{"type":"object","properties":{"sql":{"type":"string","description":"A single SELECT statement"},"params":{"type":"array","description":"Values bound to ? placeholders"}},"required":["sql"]}`),
				Handler:     d.Query,
			},
			{
				Name:        "get_tables",
				Description: "List tables",
				Schema:      json.RawMessage(`{"type":"object","properties":{}}`),
				Handler:     d.GetTables,
			},
			{
				Name:        "describe_table",
				Description: "Describe the columns and primary keys of a table",
				Schema:      json.RawMessage(`{"type":"object","properties":{"table":{"type":"string"}},"required":["table"]}`),
				Handler:     d.DescribeTable,
			},
			{
				Name:        "count_rows",
				Description: "Count rows in a table, optionally matching column equality conditions",
				Schema:      json.RawMessage(`{"type":"object","properties":{"table":{"type":"string"},"where":{"type":"object","description":"Column to value equality conditions"}},"required":["table"]}`),
				Handler:     d.CountRows,
			},
		},
	}

	if opts.AllowWrites {
		group.Tools = append(group.Tools,
			tools.Definition{
				Name:        "insert_row",
				Description: "Insert one row. data maps column names to values.",
				Schema:      json.RawMessage(`{"type":"object","properties":{"table":{"type":"string"},"data":{"type":"object"}},"required":["table","data"]}`),
				Handler:     d.InsertRow,
			},
			tools.Definition{
				Name:        "update_rows",
				Description: "Update rows matching where with the values in data",
				Schema:      json.RawMessage(`{"type":"object","properties":{"table":{"type":"string"},"data":{"type":"object"},"where":{"type":"object"}},"required":["table","data","where"]}`),
				Handler:     d.UpdateRows,
			},
			tools.Definition{
				Name:        "delete_rows",
				Description: "Delete rows matching where",
				Schema:      json.RawMessage(`{"type":"object","properties":{"table":{"type":"string"},"where":{"type":"object"}},"required":["table","where"]}`),
				Handler:     d.DeleteRows,
			},
		)
	}

	return group
}

type databaseHandlers struct {
	store   store.SQLStore
	maxRows int
}

type queryInput struct {
	SQL    string `json:"sql"`
	Params []any  `json:"params"`
}

func (d *databaseHandlers) Query(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var in queryInput
	if err := json.Unmarshal(input, &in); err != nil {
		return tools.ErrorResult("invalid input: %v", err)
	}

	stmt, problem := readOnlyStatement(in.SQL)
	if problem != "" {
		return tools.ErrorResult("%s", problem)
	}

	rs, err := d.store.QueryRows(ctx, stmt, d.maxRows, in.Params...)
	if err != nil {
		return statementFailure("query", err)
	}

	return json.Marshal(map[string]any{
		"columns":   rs.Columns,
		"rows":      rs.Rows,
		"rowCount":  len(rs.Rows),
		"truncated": rs.Truncated,
	})
}

func (d *databaseHandlers) GetTables(ctx context.Context, _ json.RawMessage) (json.RawMessage, error) {
	tables, err := d.store.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	if tables == nil {
		tables = []string{}
	}
	return json.Marshal(map[string]any{"tables": tables, "count": len(tables)})
}

type tableInput struct {
	Table string         `json:"table"`
	Data  map[string]any `json:"data"`
	Where map[string]any `json:"where"`
}

func (d *databaseHandlers) DescribeTable(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var in tableInput
	if err := json.Unmarshal(input, &in); err != nil {
		return tools.ErrorResult("invalid input: %v", err)
	}
	info, problem, err := d.table(ctx, in.Table)
	if err != nil {
		return nil, err
	}
	if problem != "" {
		return tools.ErrorResult("%s", problem)
	}
	return json.Marshal(info)
}

func (d *databaseHandlers) CountRows(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var in tableInput
	if err := json.Unmarshal(input, &in); err != nil {
		return tools.ErrorResult("invalid input: %v", err)
	}
	info, problem, err := d.table(ctx, in.Table)
	if err != nil {
		return nil, err
	}
	if problem != "" {
		return tools.ErrorResult("%s", problem)
	}

	where, args, problem := whereClause(info, in.Where)
	if problem != "" {
		return tools.ErrorResult("%s", problem)
	}

	rs, err := d.store.QueryRows(ctx, "SELECT COUNT(*) AS count FROM "+quoteIdent(info.Name)+where, 1, args...)
	if err != nil {
		return statementFailure("count", err)
	}

	var count any = 0
	if len(rs.Rows) == 1 {
		count = rs.Rows[0]["count"]
	}
	return json.Marshal(map[string]any{"table": info.Name, "count": count})
}

func (d *databaseHandlers) InsertRow(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var in tableInput
	if err := json.Unmarshal(input, &in); err != nil {
		return tools.ErrorResult("invalid input: %v", err)
	}
	if len(in.Data) == 0 {
		return tools.ErrorResult("missing required argument: data")
	}
	info, problem, err := d.table(ctx, in.Table)
	if err != nil {
		return nil, err
	}
	if problem != "" {
		return tools.ErrorResult("%s", problem)
	}

	// Single TEXT primary keys get a generated id when omitted
	var generatedID string
	if len(info.PrimaryKeys) == 1 {
		pk := info.PrimaryKeys[0]
		if _, ok := in.Data[pk]; !ok && columnType(info, pk) == "TEXT" {
			generatedID = uuid.New().String()
			in.Data[pk] = generatedID
		}
	}

	cols := sortedKeys(in.Data)
	if problem := checkColumns(info, cols); problem != "" {
		return tools.ErrorResult("%s", problem)
	}

	quoted := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
		placeholders[i] = "?"
		args[i] = in.Data[c]
	}

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(info.Name), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))
	res, err := d.store.Exec(ctx, stmt, args...)
	if err != nil {
		return statementFailure("insert", err)
	}

	out := map[string]any{"status": "inserted", "rowsAffected": res.RowsAffected}
	if generatedID != "" {
		out["id"] = generatedID
	}
	return json.Marshal(out)
}

func (d *databaseHandlers) UpdateRows(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var in tableInput
	if err := json.Unmarshal(input, &in); err != nil {
		return tools.ErrorResult("invalid input: %v", err)
	}
	if len(in.Data) == 0 {
		return tools.ErrorResult("missing required argument: data")
	}
	if len(in.Where) == 0 {
		return tools.ErrorResult("missing required argument: where (refusing to update every row)")
	}
	info, problem, err := d.table(ctx, in.Table)
	if err != nil {
		return nil, err
	}
	if problem != "" {
		return tools.ErrorResult("%s", problem)
	}

	cols := sortedKeys(in.Data)
	if problem := checkColumns(info, cols); problem != "" {
		return tools.ErrorResult("%s", problem)
	}
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+len(in.Where))
	for i, c := range cols {
		sets[i] = quoteIdent(c) + " = ?"
		args = append(args, in.Data[c])
	}

	where, whereArgs, problem := whereClause(info, in.Where)
	if problem != "" {
		return tools.ErrorResult("%s", problem)
	}
	args = append(args, whereArgs...)

	stmt := "UPDATE " + quoteIdent(info.Name) + " SET " + strings.Join(sets, ", ") + where
	res, err := d.store.Exec(ctx, stmt, args...)
	if err != nil {
		return statementFailure("update", err)
	}
	return json.Marshal(map[string]any{"status": "updated", "rowsAffected": res.RowsAffected})
}

func (d *databaseHandlers) DeleteRows(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var in tableInput
	if err := json.Unmarshal(input, &in); err != nil {
		return tools.ErrorResult("invalid input: %v", err)
	}
	if len(in.Where) == 0 {
		return tools.ErrorResult("missing required argument: where (refusing to delete every row)")
	}
	info, problem, err := d.table(ctx, in.Table)
	if err != nil {
		return nil, err
	}
	if problem != "" {
		return tools.ErrorResult("%s", problem)
	}

	where, args, problem := whereClause(info, in.Where)
	if problem != "" {
		return tools.ErrorResult("%s", problem)
	}

	res, err := d.store.Exec(ctx, "DELETE FROM "+quoteIdent(info.Name)+where, args...)
	if err != nil {
		return statementFailure("delete", err)
	}
	return json.Marshal(map[string]any{"status": "deleted", "rowsAffected": res.RowsAffected})
}

// table resolves a table name through introspection. A non-empty problem is a
// caller mistake; err is an internal failure.
func (d *databaseHandlers) table(ctx context.Context, name string) (*store.TableInfo, string, error) {
	if name == "" {
		return nil, "missing required argument: table", nil
	}
	info, err := d.store.DescribeTable(ctx, name)
	if errors.Is(err, store.ErrUnknownTable) {
		return nil, fmt.Sprintf("unknown table %q", name), nil
	}
	if err != nil {
		return nil, "", err
	}
	return info, "", nil
}

// readOnlyStatement returns the statement to run, or a problem if it is not a
// single SELECT. Semicolons inside literals, quoted identifiers and comments
// do not end the statement.
func readOnlyStatement(raw string) (string, string) {
	end := statementEnd(raw)
	stmt := strings.TrimSpace(raw[:end])
	if rest := skipTrivia(raw[end:]); rest != "" {
		return "", "only a single statement is allowed"
	}
	body := skipTrivia(stmt)
	if body == "" {
		return "", "missing required argument: sql"
	}
	verb := strings.ToUpper(strings.Fields(body)[0])
	if verb != "SELECT" {
		return "", fmt.Sprintf("only SELECT statements are allowed (got %s)", verb)
	}
	return stmt, ""
}

// statementEnd returns the offset of the first semicolon outside quotes and
// comments, or len(sql).
func statementEnd(sql string) int {
	for i := 0; i < len(sql); i++ {
		switch c := sql[i]; c {
		case ';':
			return i
		case '\'', '"', '`':
			i = closingIndex(sql, i+1, c)
		case '[':
			i = closingIndex(sql, i+1, ']')
		case '-':
			if strings.HasPrefix(sql[i:], "--") {
				if nl := strings.IndexByte(sql[i:], '\n'); nl >= 0 {
					i += nl
				} else {
					i = len(sql)
				}
			}
		case '/':
			if strings.HasPrefix(sql[i:], "/*") {
				if close := strings.Index(sql[i+2:], "*/"); close >= 0 {
					i += close + 3
				} else {
					i = len(sql)
				}
			}
		}
	}
	return len(sql)
}

// closingIndex returns the index of the quote closing a literal that starts at
// from. A doubled quote is an escape.
func closingIndex(sql string, from int, quote byte) int {
	for i := from; i < len(sql); i++ {
		if sql[i] != quote {
			continue
		}
		if i+1 < len(sql) && sql[i+1] == quote && quote != ']' {
			i++
			continue
		}
		return i
	}
	return len(sql)
}

// skipTrivia drops leading whitespace, semicolons and comments.
func skipTrivia(sql string) string {
	for {
		sql = strings.TrimLeft(sql, "; \t\r\n")
		switch {
		case strings.HasPrefix(sql, "--"):
			nl := strings.IndexByte(sql, '\n')
			if nl < 0 {
				return ""
			}
			sql = sql[nl:]
		case strings.HasPrefix(sql, "/*"):
			close := strings.Index(sql[2:], "*/")
			if close < 0 {
				return ""
			}
			sql = sql[close+4:]
		default:
			return sql
		}
	}
}

func whereClause(info *store.TableInfo, where map[string]any) (string, []any, string) {
	if len(where) == 0 {
		return "", nil, ""
	}
	cols := sortedKeys(where)
	if problem := checkColumns(info, cols); problem != "" {
		return "", nil, problem
	}

	conds := make([]string, len(cols))
	var args []any
	for i, c := range cols {
		if where[c] == nil {
			conds[i] = quoteIdent(c) + " IS NULL"
			continue
		}
		conds[i] = quoteIdent(c) + " = ?"
		args = append(args, where[c])
	}
	return " WHERE " + strings.Join(conds, " AND "), args, ""
}

func checkColumns(info *store.TableInfo, cols []string) string {
	for _, c := range cols {
		if !info.HasColumn(c) {
			return fmt.Sprintf("unknown column %q in table %q", c, info.Name)
		}
	}
	return ""
}

func columnType(info *store.TableInfo, name string) string {
	for _, c := range info.Columns {
		if c.Name == name {
			return strings.ToUpper(c.Type)
		}
	}
	return ""
}

// quoteIdent quotes a validated identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// statementFailure reports a failed statement to the caller so it can fix the
// SQL, unless the failure is a cancelled context or a dead connection.
func statementFailure(op string, err error) (json.RawMessage, error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, sql.ErrConnDone) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return tools.ErrorResult("%s failed: %v", op, err)
}
