package duck

import "github.com/bruin-data/session-summary/pkg/ansisql"

// Dialect is plain ANSI SQL; the client runs the drop, create and insert in a single transactional call.
type Dialect struct {
	ansisql.StandardDialect
}

func (Dialect) Name() string {
	return "duckdb"
}
