//go:build no_duckdb

package duck

import (
	"context"
	"errors"

	"github.com/bruin-data/session-summary/pkg/ansisql"
	"github.com/bruin-data/session-summary/pkg/query"
)

var errDuckDBNotSupported = errors.New("DuckDB support not available in this build")

type Client struct{}

func NewClient(c Config) (*Client, error) {
	return nil, errDuckDBNotSupported
}

func (c *Client) Dialect() ansisql.Dialect {
	return Dialect{}
}

func (c *Client) RunQueryWithoutResult(ctx context.Context, query *query.Query) error {
	return errDuckDBNotSupported
}

func (c *Client) Select(ctx context.Context, query *query.Query) ([][]interface{}, error) {
	return nil, errDuckDBNotSupported
}

func (c *Client) Ping(ctx context.Context) error {
	return errDuckDBNotSupported
}

func (c *Client) Close() error {
	return nil
}
