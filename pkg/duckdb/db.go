//go:build !no_duckdb

package duck

import (
	"context"
	"database/sql"

	"github.com/bruin-data/session-summary/pkg/ansisql"
	"github.com/bruin-data/session-summary/pkg/query"
	"github.com/jmoiron/sqlx"
	"github.com/marcboeker/go-duckdb"
	"github.com/pkg/errors"
)

type Client struct {
	connection connection
	config     Config
}

type connection interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PingContext(ctx context.Context) error
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
	Close() error
}

func NewClient(c Config) (*Client, error) {
	conn, err := sqlx.Open("duckdb", c.ToDBConnectionURI())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open duckdb database '%s'", c.Path)
	}

	// an in-memory database lives as long as its connection, every statement has to share it
	if c.IsInMemory() {
		conn.SetMaxOpenConns(1)
	}

	return &Client{connection: conn, config: c}, nil
}

func (c *Client) Dialect() ansisql.Dialect {
	return Dialect{}
}

// RunQueryWithoutResult executes the query, multiple statements included, as a single call inside a transaction.
// A failing statement rolls the whole call back and the connection is left clean for the next one.
func (c *Client) RunQueryWithoutResult(ctx context.Context, query *query.Query) error {
	LockDatabase(c.config.ToDBConnectionURI())
	defer UnlockDatabase(c.config.ToDBConnectionURI())

	tx, err := c.connection.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to start a transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, query.ToMultiStatement()); err != nil {
		return err
	}

	return errors.Wrap(tx.Commit(), "failed to commit the transaction")
}

// Select runs a query and returns the results.
func (c *Client) Select(ctx context.Context, query *query.Query) ([][]interface{}, error) {
	LockDatabase(c.config.ToDBConnectionURI())
	defer UnlockDatabase(c.config.ToDBConnectionURI())

	rows, err := c.connection.QueryContext(ctx, query.ToMultiStatement())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([][]interface{}, 0)

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

		for i, val := range columns {
			columns[i] = convertValue(val)
		}

		result = append(result, columns)
	}

	return result, rows.Err()
}

func (c *Client) Ping(ctx context.Context) error {
	if err := c.connection.PingContext(ctx); err != nil {
		return errors.Wrapf(err, "failed to open duckdb database '%s'", c.config.Path)
	}

	return nil
}

func (c *Client) Close() error {
	return c.connection.Close()
}

func convertValue(val interface{}) interface{} {
	if decimal, ok := val.(duckdb.Decimal); ok {
		return decimal.Float64()
	}

	return val
}
