package sensor

import (
	"context"

	"github.com/bruin-data/session-summary/pkg/config"
	"github.com/bruin-data/session-summary/pkg/helpers"
	"github.com/bruin-data/session-summary/pkg/query"
	"github.com/pkg/errors"
)

type selector interface {
	Select(ctx context.Context, q *query.Query) ([][]interface{}, error)
}

// QuerySensor runs a templated query on a warehouse connection and is ready once it returns a positive number.
type QuerySensor struct {
	conn           config.ConnectionGetter
	connectionName string
	query          *query.Query
}

func NewQuerySensor(conn config.ConnectionGetter, connectionName, rawQuery string, extractor query.Extractor) (*QuerySensor, error) {
	queries, err := extractor.ExtractQueriesFromString(rawQuery)
	if err != nil {
		return nil, errors.Wrap(err, "failed to render the sensor query")
	}
	if len(queries) != 1 {
		return nil, errors.Errorf("the sensor query must be a single statement, found %d", len(queries))
	}

	return &QuerySensor{
		conn:           conn,
		connectionName: connectionName,
		query:          queries[0],
	}, nil
}

func (s *QuerySensor) Query() *query.Query {
	return s.query
}

func (s *QuerySensor) Poke(ctx context.Context) (bool, error) {
	c, err := config.GetRequiredConnection(ctx, s.conn, "sensor", s.connectionName)
	if err != nil {
		return false, err
	}

	querier, ok := c.(selector)
	if !ok {
		return false, errors.Errorf("connection '%s' cannot run sensor queries", s.connectionName)
	}

	res, err := querier.Select(ctx, s.query)
	if err != nil {
		return false, errors.Wrap(err, "failed to run the sensor query")
	}

	count, err := helpers.CastResultToInteger(res)
	if err != nil {
		return false, errors.Wrap(err, "failed to parse the sensor query result")
	}

	return count > 0, nil
}
