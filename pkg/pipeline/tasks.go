package pipeline

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/yourbasic/graph"
)

type TaskType string

const (
	TaskTypeUpstreamSensor = TaskType("sensor.upstream")
	TaskTypeSchema         = TaskType("sql.schema")
	TaskTypeSummary        = TaskType("sql.summary")
	TaskTypeDuplicatesView = TaskType("sql.duplicates_view")

	TaskWaitForImport        = "wait_for_import"
	TaskCreateSchema         = "create_schema"
	TaskCreateSummary        = "create_summary"
	TaskCreateDuplicatesView = "create_duplicates_view"

	CheckUnique = "unique"
)

// Check is a quality check that runs right after its task succeeded.
type Check struct {
	Name   string
	Column string
}

type Task struct {
	Name      string
	Type      TaskType
	Upstreams []string
	Checks    []Check
}

// Tasks returns the task graph of a run. The duplicates view does not gate the summary table, both only depend on
// the schema being there.
func (d *Definition) Tasks() []*Task {
	return []*Task{
		{
			Name: TaskWaitForImport,
			Type: TaskTypeUpstreamSensor,
		},
		{
			Name:      TaskCreateSchema,
			Type:      TaskTypeSchema,
			Upstreams: []string{TaskWaitForImport},
		},
		{
			Name:      TaskCreateSummary,
			Type:      TaskTypeSummary,
			Upstreams: []string{TaskCreateSchema},
			Checks: []Check{
				{Name: CheckUnique, Column: "sessionId"},
			},
		},
		{
			Name:      TaskCreateDuplicatesView,
			Type:      TaskTypeDuplicatesView,
			Upstreams: []string{TaskCreateSchema},
		},
	}
}

// TopologicalOrder orders the tasks so that every task comes after its upstreams.
func TopologicalOrder(tasks []*Task) ([]*Task, error) {
	index := make(map[string]int, len(tasks))
	for i, t := range tasks {
		if _, ok := index[t.Name]; ok {
			return nil, fmt.Errorf("duplicate task name '%s'", t.Name)
		}
		index[t.Name] = i
	}

	g := graph.New(len(tasks))
	for i, t := range tasks {
		for _, up := range t.Upstreams {
			upIndex, ok := index[up]
			if !ok {
				return nil, fmt.Errorf("task '%s' depends on unknown task '%s'", t.Name, up)
			}
			g.Add(upIndex, i)
		}
	}

	order, ok := graph.TopSort(g)
	if !ok {
		return nil, errors.New("the task graph contains a cycle")
	}

	sorted := make([]*Task, 0, len(order))
	for _, i := range order {
		sorted = append(sorted, tasks[i])
	}

	return sorted, nil
}
