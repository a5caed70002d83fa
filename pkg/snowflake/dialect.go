package snowflake

import (
	"fmt"
	"strings"
	"time"

	"github.com/bruin-data/session-summary/pkg/ansisql"
	"github.com/bruin-data/session-summary/pkg/pipeline"
)

const stagingSuffix = "__staging"

// Dialect references every object with its database, Snowflake resolves them across databases.
type Dialect struct {
	ansisql.StandardDialect
}

func (Dialect) Name() string {
	return "snowflake"
}

func (Dialect) TableReference(t pipeline.TableName) string {
	return t.String()
}

func (Dialect) SchemaReference(t pipeline.TableName) string {
	return t.QualifiedSchema()
}

func (Dialect) TimestampType() string {
	return "TIMESTAMP_NTZ"
}

func (Dialect) TimestampLiteral(t time.Time) string {
	return fmt.Sprintf("'%s'::TIMESTAMP_NTZ", t.UTC().Format("2006-01-02 15:04:05.000000"))
}

// ValuesSelect names the positional columnN columns of a Snowflake VALUES clause.
func (Dialect) ValuesSelect(columns []ansisql.Column, rows [][]string) string {
	aliases := make([]string, len(columns))
	for i, c := range columns {
		aliases[i] = fmt.Sprintf("column%d AS %s", i+1, c.Name)
	}

	return fmt.Sprintf("SELECT %s FROM VALUES\n%s", strings.Join(aliases, ", "), ansisql.ValuesList(rows))
}

// ReplaceTable rebuilds a table from a single select with CREATE OR REPLACE TABLE ... AS. Batched writes go to a
// staging table first, which is swapped with the target once every batch landed.
func (d Dialect) ReplaceTable(w ansisql.TableWrite) []string {
	table := d.TableReference(w.Table)

	if len(w.Selects) == 1 {
		statements := []string{fmt.Sprintf("CREATE OR REPLACE TABLE %s AS\n%s", table, w.Selects[0])}
		if w.PrimaryKey != "" {
			statements = append(statements, fmt.Sprintf("ALTER TABLE %s ADD PRIMARY KEY (%s)", table, w.PrimaryKey))
		}
		return statements
	}

	staging := d.TableReference(pipeline.TableName{Database: w.Table.Database, Schema: w.Table.Schema, Name: w.Table.Name + stagingSuffix})
	statements := []string{
		strings.Replace(ansisql.CreateTableStatement(staging, w.Columns, w.PrimaryKey), "CREATE TABLE", "CREATE OR REPLACE TABLE", 1),
	}
	for _, s := range w.Selects {
		statements = append(statements, ansisql.InsertStatement(staging, w.Columns, s))
	}

	return append(statements,
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s LIKE %s", table, staging),
		fmt.Sprintf("ALTER TABLE %s SWAP WITH %s", table, staging),
		"DROP TABLE IF EXISTS "+staging,
	)
}
