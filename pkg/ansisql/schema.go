package ansisql

import (
	"context"
	"strings"
	"sync"

	"github.com/bruin-data/session-summary/pkg/pipeline"
	"github.com/bruin-data/session-summary/pkg/query"
	"github.com/bruin-data/session-summary/pkg/session"
)

type SchemaCreator struct {
	schemaNameCache *sync.Map
}

func NewSchemaCreator() *SchemaCreator {
	return &SchemaCreator{
		schemaNameCache: &sync.Map{},
	}
}

type queryRunner interface {
	RunQueryWithoutResult(ctx context.Context, query *query.Query) error
}

// CreateSchemaIfNotExist creates the schema of the given table once per creator; later calls for the same schema
// are served from the cache.
func (sc *SchemaCreator) CreateSchemaIfNotExist(ctx context.Context, qr queryRunner, dialect Dialect, table pipeline.TableName) error {
	schemaName := dialect.SchemaReference(table)
	if schemaName == "" {
		return nil
	}

	cacheKey := strings.ToUpper(schemaName)
	if _, exists := sc.schemaNameCache.Load(cacheKey); exists {
		return nil
	}

	createQuery := query.Query{
		Query: "CREATE SCHEMA IF NOT EXISTS " + schemaName,
	}
	if err := qr.RunQueryWithoutResult(ctx, &createQuery); err != nil {
		return &session.SchemaError{Schema: schemaName, Err: err}
	}
	sc.schemaNameCache.Store(cacheKey, true)

	return nil
}
