package cmd

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	duck "github.com/bruin-data/session-summary/pkg/duckdb"
	"github.com/bruin-data/session-summary/pkg/jinja"
	"github.com/bruin-data/session-summary/pkg/pipeline"
	"github.com/bruin-data/session-summary/pkg/snowflake"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) Write(p []byte) (int, error) {
	res := m.Called(p)
	return res.Int(0), res.Error(1)
}

func newRenderCommand(def *pipeline.Definition, writer *bytes.Buffer) *RenderCommand {
	return &RenderCommand{
		definition: def,
		dialect:    snowflake.Dialect{},
		run: jinja.RunContext{
			StartDate:        time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			EndDate:          time.Date(2024, 3, 1, 23, 59, 59, 0, time.UTC),
			Pipeline:         def.Name,
			RunID:            "run",
			UpstreamWorkflow: def.Upstream.Workflow,
			UpstreamTask:     def.Upstream.Task,
		},
		sampleRows: 2,
		writer:     writer,
	}
}

func TestRenderCommand_Queries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		setup     func(def *pipeline.Definition)
		wantTasks []string
		contains  map[string]string
	}{
		{
			name:      "pushdown on snowflake",
			wantTasks: []string{pipeline.TaskCreateSchema, pipeline.TaskCreateSummary, "create_summary:sessionId:unique", pipeline.TaskCreateDuplicatesView},
			contains: map[string]string{
				pipeline.TaskCreateSchema:         "CREATE SCHEMA IF NOT EXISTS DEV.ANALYTICS",
				pipeline.TaskCreateSummary:        "CREATE OR REPLACE TABLE DEV.ANALYTICS.session_summary AS",
				pipeline.TaskCreateDuplicatesView: "CREATE OR REPLACE VIEW DEV.ANALYTICS.session_duplicates AS",
			},
		},
		{
			name: "in memory renders literal batches",
			setup: func(def *pipeline.Definition) {
				def.Strategy = pipeline.StrategyInMemory
				def.BatchSize = 1
			},
			wantTasks: []string{pipeline.TaskCreateSchema, pipeline.TaskCreateSummary, "create_summary:sessionId:unique", pipeline.TaskCreateDuplicatesView},
			contains: map[string]string{
				pipeline.TaskCreateSummary: "ALTER TABLE DEV.ANALYTICS.session_summary SWAP WITH DEV.ANALYTICS.session_summary__staging",
			},
		},
		{
			name: "query sensor is rendered with the run dates",
			setup: func(def *pipeline.Definition) {
				def.Upstream.Sensor = pipeline.Sensor{
					Type:  pipeline.SensorTypeQuery,
					Query: "SELECT COUNT(*) FROM RAW_DATA.session_timestamp WHERE ts >= '{{ start_date }}'",
				}
			},
			wantTasks: []string{pipeline.TaskWaitForImport, pipeline.TaskCreateSchema, pipeline.TaskCreateSummary, "create_summary:sessionId:unique", pipeline.TaskCreateDuplicatesView},
			contains: map[string]string{
				pipeline.TaskWaitForImport: "ts >= '2024-03-01'",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			def := pipeline.Default()
			if tt.setup != nil {
				tt.setup(def)
			}

			queries, err := newRenderCommand(def, &bytes.Buffer{}).Queries()
			require.NoError(t, err)

			tasks := lo.Map(queries, func(q renderedQuery, _ int) string { return q.Task })
			assert.ElementsMatch(t, tt.wantTasks, tasks)
			assert.Equal(t, tt.wantTasks[0], tasks[0])

			byTask := lo.SliceToMap(queries, func(q renderedQuery) (string, string) { return q.Task, q.Query })
			for task, want := range tt.contains {
				assert.Contains(t, byTask[task], want)
			}
		})
	}
}

func TestRenderCommand_Queries_DuckDB(t *testing.T) {
	t.Parallel()

	r := newRenderCommand(pipeline.Default(), &bytes.Buffer{})
	r.dialect = duck.Dialect{}

	queries, err := r.Queries()
	require.NoError(t, err)

	byTask := lo.SliceToMap(queries, func(q renderedQuery) (string, string) { return q.Task, q.Query })
	assert.Contains(t, byTask[pipeline.TaskCreateSummary], "DROP TABLE IF EXISTS ANALYTICS.session_summary;\nCREATE TABLE ANALYTICS.session_summary (")
	assert.NotContains(t, byTask[pipeline.TaskCreateSummary], "DEV.")
}

func TestRenderCommand_Run(t *testing.T) {
	t.Parallel()

	t.Run("plain output lists every task", func(t *testing.T) {
		t.Parallel()

		buf := &bytes.Buffer{}
		require.NoError(t, newRenderCommand(pipeline.Default(), buf).Run())

		assert.Contains(t, buf.String(), "-- create_schema\nCREATE SCHEMA IF NOT EXISTS DEV.ANALYTICS")
		assert.Contains(t, buf.String(), "-- create_summary:sessionId:unique\nSELECT COUNT(sessionId) - COUNT(DISTINCT sessionId) FROM DEV.ANALYTICS.session_summary")
	})

	t.Run("json output", func(t *testing.T) {
		t.Parallel()

		buf := &bytes.Buffer{}
		r := newRenderCommand(pipeline.Default(), buf)
		r.output = "json"
		require.NoError(t, r.Run())

		var got []renderedQuery
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Len(t, got, 4)
		assert.Equal(t, pipeline.TaskCreateSchema, got[0].Task)
	})

	t.Run("write errors are returned", func(t *testing.T) {
		t.Parallel()

		w := new(mockWriter)
		w.On("Write", mock.Anything).Return(0, assert.AnError)

		r := newRenderCommand(pipeline.Default(), &bytes.Buffer{})
		r.writer = w
		require.ErrorIs(t, r.Run(), assert.AnError)
		w.AssertExpectations(t)
	})
}

func TestRenderCommand_RunGraph(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	require.NoError(t, newRenderCommand(pipeline.Default(), buf).RunGraph())

	out := buf.String()
	assert.Contains(t, out, "snowflake_session_summary")
	for _, task := range []string{pipeline.TaskWaitForImport, pipeline.TaskCreateSchema, pipeline.TaskCreateSummary, pipeline.TaskCreateDuplicatesView, "unique(sessionId)"} {
		assert.Contains(t, out, task)
	}
}
