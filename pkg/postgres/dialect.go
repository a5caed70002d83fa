package postgres

import "github.com/bruin-data/session-summary/pkg/ansisql"

// Dialect is plain ANSI SQL. Unquoted identifiers are folded to lower case by Postgres, the queries never quote
// them so reads and writes agree.
type Dialect struct {
	ansisql.StandardDialect
}

func (Dialect) Name() string {
	return "postgres"
}

// OrderKey pins the "C" collation, the database default may be a locale that sorts 'a' before 'B'.
func (Dialect) OrderKey(expr string) string {
	return expr + ` COLLATE "C"`
}
