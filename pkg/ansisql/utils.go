package ansisql

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/bruin-data/session-summary/pkg/executor"
	"github.com/bruin-data/session-summary/pkg/pipeline"
	"github.com/bruin-data/session-summary/pkg/query"
	"github.com/pkg/errors"
)

const (
	DefaultQueryAnnotations = "default"
	QueryLogCharacterLimit  = 10000
)

// AddAnnotationComment prepends a JSON comment describing the task to the query, so the statements can be found in
// the warehouse query history. Annotations are off unless enabled in the run config; a value other than "default"
// is parsed as a JSON object and merged into the comment.
func AddAnnotationComment(ctx context.Context, q *query.Query, taskName string, taskType pipeline.TaskType, pipelineName string) (*query.Query, error) {
	annotations, ok := ctx.Value(pipeline.RunConfigQueryAnnotations).(string)
	if !ok || annotations == "" {
		return q, nil
	}

	userAnnotations := make(map[string]any)
	if annotations != DefaultQueryAnnotations {
		if err := json.Unmarshal([]byte(annotations), &userAnnotations); err != nil {
			return nil, errors.Wrapf(err, "invalid JSON in annotations: %s", annotations)
		}
	}

	finalAnnotations := map[string]any{
		"task":     taskName,
		"type":     string(taskType),
		"pipeline": pipelineName,
	}
	if runID, ok := ctx.Value(pipeline.RunConfigRunID).(string); ok && runID != "" {
		finalAnnotations["run_id"] = runID
	}

	for k, v := range userAnnotations {
		finalAnnotations[k] = v
	}

	finalJSON, err := json.Marshal(finalAnnotations)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal final annotations")
	}

	return &query.Query{
		VariableDefinitions: q.VariableDefinitions,
		Query:               fmt.Sprintf("-- @session-summary.config: %s\n%s", string(finalJSON), q.Query),
	}, nil
}

// LogQueryIfVerbose writes the query to the writer when the run is verbose, truncated to QueryLogCharacterLimit.
func LogQueryIfVerbose(ctx context.Context, writer io.Writer, queryString string) {
	verbose, ok := ctx.Value(executor.KeyVerbose).(bool)
	if !ok || !verbose || writer == nil {
		return
	}

	queryPreview := strings.TrimSpace(queryString)
	if len(queryPreview) > QueryLogCharacterLimit {
		queryPreview = queryPreview[:QueryLogCharacterLimit] + "\n... (truncated)"
	}
	fmt.Fprintf(writer, "Executing SQL query:\n%s\n\n", queryPreview)
}
