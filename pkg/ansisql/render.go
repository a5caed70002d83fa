package ansisql

import (
	"fmt"

	"github.com/bruin-data/session-summary/pkg/pipeline"
	"github.com/bruin-data/session-summary/pkg/query"
	"github.com/bruin-data/session-summary/pkg/session"
	"github.com/samber/lo"
)

const (
	ColumnUserID           = "userId"
	ColumnSessionID        = "sessionId"
	ColumnChannel          = "channel"
	ColumnTimestamp        = "ts"
	ColumnSessionTimestamp = "session_timestamp"
	ColumnOccurrenceCount  = "occurrence_count"
)

// Renderer produces the statements of a run for a single warehouse.
type Renderer struct {
	def     *pipeline.Definition
	dialect Dialect
}

func NewRenderer(def *pipeline.Definition, dialect Dialect) *Renderer {
	return &Renderer{def: def, dialect: dialect}
}

func (r *Renderer) SummaryColumns() []Column {
	return []Column{
		{Name: ColumnUserID, Type: r.dialect.StringType()},
		{Name: ColumnSessionID, Type: r.dialect.StringType()},
		{Name: ColumnChannel, Type: r.dialect.StringType()},
		{Name: ColumnSessionTimestamp, Type: r.dialect.TimestampType()},
	}
}

func (r *Renderer) CreateSchema() *query.Query {
	return &query.Query{Query: "CREATE SCHEMA IF NOT EXISTS " + r.dialect.SchemaReference(r.def.SummaryTable())}
}

// SummarySelect keeps one channel assignment per session, the one with the lowest (userId, channel) pair, and the
// latest non-null timestamp per session, then inner joins the two on sessionId.
func (r *Renderer) SummarySelect() string {
	return fmt.Sprintf(`WITH channels AS (
    SELECT
        userId,
        sessionId,
        channel,
        ROW_NUMBER() OVER (
            PARTITION BY sessionId
            ORDER BY %s ASC, %s ASC
        ) AS row_num
    FROM %s
    WHERE sessionId IS NOT NULL AND sessionId <> ''
),
timestamps AS (
    SELECT
        sessionId,
        ts,
        ROW_NUMBER() OVER (
            PARTITION BY sessionId
            ORDER BY ts DESC
        ) AS row_num
    FROM %s
    WHERE sessionId IS NOT NULL AND sessionId <> '' AND ts IS NOT NULL
)
SELECT
    c.userId,
    c.sessionId,
    c.channel,
    t.ts AS session_timestamp
FROM channels c
JOIN timestamps t ON c.sessionId = t.sessionId
WHERE c.row_num = 1 AND t.row_num = 1`,
		r.dialect.OrderKey("COALESCE(userId, '')"),
		r.dialect.OrderKey("COALESCE(channel, '')"),
		r.dialect.TableReference(r.def.ChannelTable()),
		r.dialect.TableReference(r.def.TimestampTable()),
	)
}

// RebuildSummary replaces the summary table with the result of SummarySelect, computed inside the warehouse.
func (r *Renderer) RebuildSummary() *query.Query {
	return query.Join(r.dialect.ReplaceTable(TableWrite{
		Table:      r.def.SummaryTable(),
		Columns:    r.SummaryColumns(),
		PrimaryKey: ColumnSessionID,
		Selects:    []string{r.SummarySelect()},
	}))
}

// WriteSummaries replaces the summary table with rows computed outside the warehouse, sent as literal batches.
func (r *Renderer) WriteSummaries(rows []session.Summary, batchSize int) *query.Query {
	columns := r.SummaryColumns()
	if batchSize < 1 {
		batchSize = 1
	}

	selects := make([]string, 0, len(rows)/batchSize+1)
	for _, batch := range lo.Chunk(rows, batchSize) {
		literals := lo.Map(batch, func(s session.Summary, _ int) []string {
			return []string{
				QuoteString(s.UserID),
				QuoteString(s.SessionID),
				QuoteString(s.Channel),
				r.dialect.TimestampLiteral(s.SessionTimestamp),
			}
		})
		selects = append(selects, r.dialect.ValuesSelect(columns, literals))
	}

	if len(selects) == 0 {
		selects = append(selects, EmptySelect(columns))
	}

	return query.Join(r.dialect.ReplaceTable(TableWrite{
		Table:      r.def.SummaryTable(),
		Columns:    columns,
		PrimaryKey: ColumnSessionID,
		Selects:    selects,
	}))
}

// DuplicatesView counts every sessionId over the union of both raw tables, keeping the ones seen more than once.
func (r *Renderer) DuplicatesView() *query.Query {
	return &query.Query{Query: fmt.Sprintf(`CREATE OR REPLACE VIEW %s AS
SELECT
    sessionId,
    COUNT(*) AS occurrence_count
FROM (
    SELECT sessionId FROM %s
    UNION ALL
    SELECT sessionId FROM %s
) AS all_sessions
WHERE sessionId IS NOT NULL AND sessionId <> ''
GROUP BY sessionId
HAVING COUNT(*) > 1`,
		r.dialect.TableReference(r.def.DuplicatesView()),
		r.dialect.TableReference(r.def.ChannelTable()),
		r.dialect.TableReference(r.def.TimestampTable()),
	)}
}

// UniqueCheck returns the number of rows of the summary table that share their sessionId with another row.
func (r *Renderer) UniqueCheck(column string) *query.Query {
	return &query.Query{Query: fmt.Sprintf(
		"SELECT COUNT(%s) - COUNT(DISTINCT %s) FROM %s",
		column, column, r.dialect.TableReference(r.def.SummaryTable()),
	)}
}

func (r *Renderer) SelectChannels() *query.Query {
	return &query.Query{Query: fmt.Sprintf(
		"SELECT %s, %s, %s FROM %s",
		ColumnUserID, ColumnSessionID, ColumnChannel, r.dialect.TableReference(r.def.ChannelTable()),
	)}
}

func (r *Renderer) SelectTimestamps() *query.Query {
	return &query.Query{Query: fmt.Sprintf(
		"SELECT %s, %s FROM %s",
		ColumnSessionID, ColumnTimestamp, r.dialect.TableReference(r.def.TimestampTable()),
	)}
}

// SelectDuplicates reads the diagnostic view back, ordered by sessionId.
func (r *Renderer) SelectDuplicates() *query.Query {
	return &query.Query{Query: fmt.Sprintf(
		"SELECT %s, %s FROM %s ORDER BY %s",
		ColumnSessionID, ColumnOccurrenceCount, r.dialect.TableReference(r.def.DuplicatesView()), ColumnSessionID,
	)}
}

// CountSummaries returns the number of rows in the summary table.
func (r *Renderer) CountSummaries() *query.Query {
	return &query.Query{Query: "SELECT COUNT(*) FROM " + r.dialect.TableReference(r.def.SummaryTable())}
}
