package postgres

import (
	"context"

	"github.com/bruin-data/session-summary/pkg/ansisql"
	"github.com/bruin-data/session-summary/pkg/query"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

type Client struct {
	connection connection
	config     Config
}

type connection interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

func NewClient(ctx context.Context, c Config) (*Client, error) {
	conn, err := pgxpool.New(ctx, c.ToDBConnectionURI())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create a connection pool for postgres database '%s'", c.Database)
	}

	return &Client{connection: conn, config: c}, nil
}

func (c *Client) Dialect() ansisql.Dialect {
	return Dialect{}
}

// RunQueryWithoutResult executes the query without arguments inside a transaction, pgx then uses the simple
// protocol and the statements of a multi-statement query run in a single round trip. Any failure rolls back.
func (c *Client) RunQueryWithoutResult(ctx context.Context, query *query.Query) error {
	tx, err := c.connection.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to start a transaction")
	}

	if _, err := tx.Exec(ctx, query.ToMultiStatement()); err != nil {
		// the run context may already be cancelled, the rollback still has to reach the server
		_ = tx.Rollback(context.WithoutCancel(ctx))
		return err
	}

	return errors.Wrap(tx.Commit(ctx), "failed to commit the transaction")
}

// Select runs a query and returns the results.
func (c *Client) Select(ctx context.Context, query *query.Query) ([][]interface{}, error) {
	rows, err := c.connection.Query(ctx, query.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	collectedRows, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) ([]interface{}, error) {
		return row.Values()
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to collect row values")
	}

	if len(collectedRows) == 0 {
		return make([][]interface{}, 0), nil
	}

	return collectedRows, nil
}

// Ping runs a simple query (SELECT 1) to validate the connection.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.connection.Exec(ctx, "SELECT 1")
	if err != nil {
		return errors.Wrap(err, "failed to run test query on Postgres connection")
	}

	return nil
}

func (c *Client) Close() error {
	c.connection.Close()
	return nil
}
