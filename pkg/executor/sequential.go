package executor

import (
	"context"

	"github.com/bruin-data/session-summary/pkg/pipeline"
	"github.com/bruin-data/session-summary/pkg/scheduler"
	"github.com/pkg/errors"
)

type Operator interface {
	Run(ctx context.Context, ti scheduler.TaskInstance) error
}

// Config maps the instance types of a single task type to the operators that run them.
type Config map[scheduler.TaskInstanceType]Operator

type Sequential struct {
	TaskTypeMap map[pipeline.TaskType]Config
}

func (s Sequential) RunSingleTask(ctx context.Context, instance scheduler.TaskInstance) error {
	task := instance.GetTask()

	executors, ok := s.TaskTypeMap[task.Type]
	if !ok {
		return errors.New("there is no executor configured for the task type, task cannot be run: " + string(task.Type))
	}

	executor, ok := executors[instance.GetType()]
	if !ok {
		return errors.New("there is no executor configured for the instance type: " + instance.GetType().String())
	}

	return executor.Run(ctx, instance)
}
