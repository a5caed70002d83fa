package snowflake

import (
	"testing"
	"time"

	"github.com/bruin-data/session-summary/pkg/ansisql"
	"github.com/bruin-data/session-summary/pkg/pipeline"
	"github.com/bruin-data/session-summary/pkg/session"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
)

func TestDialect_Golden(t *testing.T) {
	t.Parallel()

	r := ansisql.NewRenderer(pipeline.Default(), Dialect{})
	summaries := []session.Summary{
		{UserID: "u1", SessionID: "s1", Channel: "facebook", SessionTimestamp: time.Unix(150, 0).UTC()},
		{UserID: "u2", SessionID: "s2", Channel: "google", SessionTimestamp: time.Unix(200, 0).UTC()},
	}

	tests := []struct {
		name  string
		query string
	}{
		{name: "rebuild_summary", query: r.RebuildSummary().Query},
		{name: "write_summaries_single_batch", query: r.WriteSummaries(summaries, 1000).Query},
		{name: "write_summaries_batched", query: r.WriteSummaries(summaries, 1).Query},
		{name: "duplicates_view", query: r.DuplicatesView().Query},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
			g.Assert(t, tt.name, []byte(tt.query+"\n"))
		})
	}
}

func TestDialect_References(t *testing.T) {
	t.Parallel()

	def := pipeline.Default()
	d := Dialect{}

	assert.Equal(t, "DEV.ANALYTICS.session_summary", d.TableReference(def.SummaryTable()))
	assert.Equal(t, "DEV.ANALYTICS", d.SchemaReference(def.SummaryTable()))
	assert.Equal(t, "CREATE SCHEMA IF NOT EXISTS DEV.ANALYTICS", ansisql.NewRenderer(def, d).CreateSchema().Query)
	assert.Equal(t, "'2024-03-01 10:00:00.000000'::TIMESTAMP_NTZ", d.TimestampLiteral(time.Date(2024, 3, 1, 11, 0, 0, 0, time.FixedZone("CET", 3600))))
}
