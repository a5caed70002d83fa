package ansisql

import (
	"fmt"
	"strings"
	"time"

	"github.com/bruin-data/session-summary/pkg/pipeline"
)

// Column is a column of a table written by the job.
type Column struct {
	Name string
	Type string
}

// TableWrite describes a full replacement of a table. Every select produces rows with exactly the given columns,
// in order; a single select is a pushdown rebuild, multiple selects are batches of literal rows.
type TableWrite struct {
	Table      pipeline.TableName
	Columns    []Column
	PrimaryKey string
	Selects    []string
}

// Dialect holds the warehouse specific parts of the rendered SQL.
type Dialect interface {
	Name() string
	TableReference(t pipeline.TableName) string
	SchemaReference(t pipeline.TableName) string
	StringType() string
	TimestampType() string
	TimestampLiteral(t time.Time) string
	ValuesSelect(columns []Column, rows [][]string) string
	ReplaceTable(w TableWrite) []string
	// OrderKey makes an ORDER BY expression compare strings byte by byte, the way Go orders them.
	OrderKey(expr string) string
}

// StandardDialect renders plain ANSI SQL. Warehouses embed it and override what differs. Tables are referenced
// without their database since neither DuckDB nor Postgres resolve a database other than the current one.
type StandardDialect struct{}

func (StandardDialect) Name() string {
	return "ansi"
}

func (StandardDialect) TableReference(t pipeline.TableName) string {
	return pipeline.TableName{Schema: t.Schema, Name: t.Name}.String()
}

func (StandardDialect) SchemaReference(t pipeline.TableName) string {
	return t.Schema
}

func (StandardDialect) StringType() string {
	return "VARCHAR"
}

func (StandardDialect) TimestampType() string {
	return "TIMESTAMP"
}

func (StandardDialect) TimestampLiteral(t time.Time) string {
	return fmt.Sprintf("TIMESTAMP '%s'", t.UTC().Format(timestampLiteralLayout))
}

func (StandardDialect) ValuesSelect(columns []Column, rows [][]string) string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name
	}

	return fmt.Sprintf("SELECT %s FROM (VALUES\n%s\n) AS v (%s)", strings.Join(names, ", "), ValuesList(rows), strings.Join(names, ", "))
}

// OrderKey returns the expression as is, DuckDB and Snowflake compare strings by their bytes by default.
func (StandardDialect) OrderKey(expr string) string {
	return expr
}

// ReplaceTable drops and recreates the table. The clients run every write in a transaction, so readers see either
// the old or the new content and a failed statement leaves the previous table in place.
func (d StandardDialect) ReplaceTable(w TableWrite) []string {
	table := d.TableReference(w.Table)
	statements := []string{
		"DROP TABLE IF EXISTS " + table,
		CreateTableStatement(table, w.Columns, w.PrimaryKey),
	}
	for _, s := range w.Selects {
		statements = append(statements, InsertStatement(table, w.Columns, s))
	}

	return statements
}

const timestampLiteralLayout = "2006-01-02 15:04:05.000000"

// CreateTableStatement renders a CREATE TABLE with an inline primary key, if one is given.
func CreateTableStatement(table string, columns []Column, primaryKey string) string {
	definitions := make([]string, 0, len(columns)+1)
	for _, c := range columns {
		definitions = append(definitions, fmt.Sprintf("    %s %s", c.Name, c.Type))
	}
	if primaryKey != "" {
		definitions = append(definitions, fmt.Sprintf("    PRIMARY KEY (%s)", primaryKey))
	}

	return fmt.Sprintf("CREATE TABLE %s (\n%s\n)", table, strings.Join(definitions, ",\n"))
}

func InsertStatement(table string, columns []Column, selectQuery string) string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name
	}

	return fmt.Sprintf("INSERT INTO %s (%s)\n%s", table, strings.Join(names, ", "), selectQuery)
}

// EmptySelect returns a select with the given columns and no rows.
func EmptySelect(columns []Column) string {
	casts := make([]string, len(columns))
	for i, c := range columns {
		casts[i] = fmt.Sprintf("CAST(NULL AS %s) AS %s", c.Type, c.Name)
	}

	return fmt.Sprintf("SELECT %s WHERE 1 = 0", strings.Join(casts, ", "))
}

// QuoteString renders a SQL string literal.
func QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// ValuesList renders literal rows for a VALUES clause, one row per line.
func ValuesList(rows [][]string) string {
	lines := make([]string, len(rows))
	for i, row := range rows {
		lines[i] = "    (" + strings.Join(row, ", ") + ")"
	}

	return strings.Join(lines, ",\n")
}
