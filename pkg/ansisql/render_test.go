package ansisql

import (
	"testing"
	"time"

	"github.com/bruin-data/session-summary/pkg/pipeline"
	"github.com/bruin-data/session-summary/pkg/session"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
)

func newGoldie(t *testing.T) *goldie.Goldie {
	t.Helper()

	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func scenarioSummaries() []session.Summary {
	return []session.Summary{
		{UserID: "u1", SessionID: "s1", Channel: "facebook", SessionTimestamp: time.Unix(150, 0).UTC()},
		{UserID: "u2", SessionID: "s2", Channel: "google", SessionTimestamp: time.Unix(200, 0).UTC()},
	}
}

func TestRenderer_Golden(t *testing.T) {
	t.Parallel()

	r := NewRenderer(pipeline.Default(), StandardDialect{})

	tests := []struct {
		name   string
		render func() string
	}{
		{
			name:   "summary_select",
			render: r.SummarySelect,
		},
		{
			name:   "rebuild_summary",
			render: func() string { return r.RebuildSummary().Query },
		},
		{
			name:   "write_summaries_batched",
			render: func() string { return r.WriteSummaries(scenarioSummaries(), 1).Query },
		},
		{
			name:   "write_summaries_single_batch",
			render: func() string { return r.WriteSummaries(scenarioSummaries(), 1000).Query },
		},
		{
			name:   "write_summaries_empty",
			render: func() string { return r.WriteSummaries(nil, 1000).Query },
		},
		{
			name:   "duplicates_view",
			render: func() string { return r.DuplicatesView().Query },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			newGoldie(t).Assert(t, tt.name, []byte(tt.render()+"\n"))
		})
	}
}

func TestRenderer_SimpleQueries(t *testing.T) {
	t.Parallel()

	r := NewRenderer(pipeline.Default(), StandardDialect{})

	assert.Equal(t, "CREATE SCHEMA IF NOT EXISTS ANALYTICS", r.CreateSchema().Query)
	assert.Equal(t, "SELECT COUNT(sessionId) - COUNT(DISTINCT sessionId) FROM ANALYTICS.session_summary", r.UniqueCheck("sessionId").Query)
	assert.Equal(t, "SELECT userId, sessionId, channel FROM RAW_DATA.user_session_channel", r.SelectChannels().Query)
	assert.Equal(t, "SELECT sessionId, ts FROM RAW_DATA.session_timestamp", r.SelectTimestamps().Query)
	assert.Equal(t, "SELECT sessionId, occurrence_count FROM ANALYTICS.session_duplicates ORDER BY sessionId", r.SelectDuplicates().Query)
	assert.Equal(t, "SELECT COUNT(*) FROM ANALYTICS.session_summary", r.CountSummaries().Query)
}

func TestRenderer_WriteSummariesEscapesLiterals(t *testing.T) {
	t.Parallel()

	r := NewRenderer(pipeline.Default(), StandardDialect{})
	q := r.WriteSummaries([]session.Summary{
		{UserID: "o'brien", SessionID: "s1", Channel: "news'letter", SessionTimestamp: time.Unix(0, 0)},
	}, 10)

	assert.Contains(t, q.Query, "('o''brien', 's1', 'news''letter', TIMESTAMP '1970-01-01 00:00:00.000000')")
}

func TestStandardDialect(t *testing.T) {
	t.Parallel()

	d := StandardDialect{}
	table := pipeline.TableName{Database: "DEV", Schema: "ANALYTICS", Name: "session_summary"}

	assert.Equal(t, "ANALYTICS.session_summary", d.TableReference(table))
	assert.Equal(t, "ANALYTICS", d.SchemaReference(table))
	assert.Equal(t, "session_summary", d.TableReference(pipeline.TableName{Name: "session_summary"}))
	assert.Equal(t, "TIMESTAMP '2024-03-01 10:11:12.123456'", d.TimestampLiteral(time.Date(2024, 3, 1, 10, 11, 12, 123456789, time.UTC)))
	assert.Equal(t, "'it''s'", QuoteString("it's"))
}
