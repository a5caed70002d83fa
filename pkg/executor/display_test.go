package executor

import (
	"testing"
	"time"

	"github.com/bruin-data/session-summary/pkg/pipeline"
	"github.com/bruin-data/session-summary/pkg/scheduler"
	"github.com/bruin-data/session-summary/pkg/state"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSummary_Render(t *testing.T) {
	t.Parallel()

	def := pipeline.Default()
	s, err := scheduler.NewScheduler(zap.NewNop().Sugar(), def, state.NewState(def.Name, "run", nil))
	require.NoError(t, err)

	start := time.Date(2024, 3, 2, 1, 0, 0, 0, time.UTC)
	results := make([]*scheduler.TaskExecutionResult, 0)
	for _, ti := range s.GetTaskInstances() {
		r := &scheduler.TaskExecutionResult{Instance: ti, StartedAt: start, FinishedAt: start.Add(1500 * time.Millisecond)}
		switch {
		case ti.GetType() == scheduler.TaskInstanceTypeCheck:
			ti.MarkAs(scheduler.Failed)
			r.Error = errors.New("table 'session_summary' has 1 non-unique values\nin primary key column 'sessionId'")
		case ti.GetHumanID() == pipeline.TaskCreateSummary:
			ti.MarkAs(scheduler.Succeeded)
			ti.SetOutput("rows", "2")
			ti.SetOutput("attempts", "1")
		default:
			ti.MarkAs(scheduler.Succeeded)
		}
		results = append(results, r)
	}

	out := Summary{Instances: s.GetTaskInstances(), Results: results, NoColor: true}.Render()
	assert.Contains(t, out, "create_summary:sessionId:unique")
	assert.Contains(t, out, "✗")
	assert.Contains(t, out, "table 'session_summary' has 1 non-unique values")
	assert.NotContains(t, out, "in primary key column")
	assert.Contains(t, out, "rows=2")
	assert.NotContains(t, out, "attempts=1")
	assert.Contains(t, out, "1.5s")

	tree := FailureTree(results)
	require.NotNil(t, tree)
	assert.Contains(t, tree.String(), "1 task failed")
	assert.Contains(t, tree.String(), "in primary key column 'sessionId'")
}

func TestFailureTree_NoFailures(t *testing.T) {
	t.Parallel()

	assert.Nil(t, FailureTree([]*scheduler.TaskExecutionResult{}))
}

func TestFormatDuration(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "250ms", formatDuration(250*time.Millisecond))
	assert.Equal(t, "2.5s", formatDuration(2500*time.Millisecond))
	assert.Equal(t, "2m5s", formatDuration(125*time.Second))
}

func TestFirstLine(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "first", firstLine("first\nsecond"))

	long := firstLine(string(make([]byte, 100)))
	assert.Len(t, long, maxMessageLength)
}
