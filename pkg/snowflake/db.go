package snowflake

import (
	"context"
	"io"
	"strings"

	"github.com/bruin-data/session-summary/pkg/ansisql"
	"github.com/bruin-data/session-summary/pkg/query"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/snowflakedb/gosnowflake"
)

type DB struct {
	conn   *sqlx.DB
	config *Config
}

func NewDB(c *Config) (*DB, error) {
	if !c.IsValid() {
		return nil, errors.New("snowflake connection requires an account, a username and either a password or a private key")
	}

	dsn, err := c.DSN()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create DSN")
	}

	gosnowflake.GetLogger().SetOutput(io.Discard)

	db, err := sqlx.Open("snowflake", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to snowflake")
	}

	return &DB{conn: db, config: c}, nil
}

func (db *DB) Dialect() ansisql.Dialect {
	return Dialect{}
}

// RunQueryWithoutResult sends the whole query as a single multi-statement request.
func (db *DB) RunQueryWithoutResult(ctx context.Context, query *query.Query) error {
	ctx, err := gosnowflake.WithMultiStatement(ctx, 0)
	if err != nil {
		return errors.Wrap(err, "failed to create snowflake context")
	}

	_, err = db.conn.ExecContext(ctx, query.ToMultiStatement())
	return cleanError(err)
}

func (db *DB) Select(ctx context.Context, query *query.Query) ([][]interface{}, error) {
	ctx, err := gosnowflake.WithMultiStatement(ctx, 0)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create snowflake context")
	}

	rows, err := db.conn.QueryContext(ctx, query.ToMultiStatement())
	if err == nil {
		err = rows.Err()
	}

	if rows != nil {
		defer rows.Close()
	}

	if err != nil {
		return nil, cleanError(err)
	}

	var result [][]interface{}

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	for rows.Next() {
		columns := make([]interface{}, len(cols))
		columnPointers := make([]interface{}, len(cols))
		for i := range columns {
			columnPointers[i] = &columns[i]
		}

		if err := rows.Scan(columnPointers...); err != nil {
			return nil, err
		}

		result = append(result, columns)
	}

	return result, rows.Err()
}

// Ping runs a trivial query to validate the connection and the credentials.
func (db *DB) Ping(ctx context.Context) error {
	_, err := db.Select(ctx, &query.Query{Query: "SELECT 1"})
	if err != nil {
		return errors.Wrap(err, "failed to run test query on Snowflake connection")
	}

	return nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

// Snowflake errors span multiple lines, they are flattened to keep the run output readable.
func cleanError(err error) error {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	return errors.New(strings.ReplaceAll(err.Error(), "\n", "  -  "))
}
