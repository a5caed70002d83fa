package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bruin-data/session-summary/pkg/logger"
	"github.com/bruin-data/session-summary/pkg/pipeline"
	"github.com/bruin-data/session-summary/pkg/state"
	"github.com/google/uuid"
)

type TaskInstanceStatus int

func (s TaskInstanceStatus) String() string {
	switch s {
	case Pending:
		return "pending"
	case Queued:
		return "queued"
	case Running:
		return "running"
	case Failed:
		return "failed"
	case UpstreamFailed:
		return "upstream_failed"
	case Succeeded:
		return "succeeded"
	case Skipped:
		return "skipped"
	}
	return "unknown"
}

type TaskInstanceType int

func (s TaskInstanceType) String() string {
	switch s {
	case TaskInstanceTypeMain:
		return "main"
	case TaskInstanceTypeCheck:
		return "check"
	}
	return "unknown"
}

const (
	Pending TaskInstanceStatus = iota
	Queued
	Running
	Failed
	UpstreamFailed
	Succeeded
	Skipped
)

const (
	TaskInstanceTypeMain TaskInstanceType = iota
	TaskInstanceTypeCheck
)

type TaskInstance interface {
	GetID() string
	GetDefinition() *pipeline.Definition
	GetTask() *pipeline.Task
	GetType() TaskInstanceType
	GetHumanID() string
	GetHumanReadableDescription() string

	GetStatus() TaskInstanceStatus
	MarkAs(status TaskInstanceStatus)
	Completed() bool

	GetUpstream() []TaskInstance
	GetDownstream() []TaskInstance
	AddUpstream(t TaskInstance)
	AddDownstream(t TaskInstance)

	SetOutput(key, value string)
	GetOutputs() map[string]string
}

type TaskRunInstance struct {
	ID         string
	HumanID    string
	Definition *pipeline.Definition
	Task       *pipeline.Task

	status     TaskInstanceStatus
	upstream   []TaskInstance
	downstream []TaskInstance

	outputLock sync.Mutex
	outputs    map[string]string
}

func (t *TaskRunInstance) GetID() string {
	return t.ID
}

func (t *TaskRunInstance) GetHumanID() string {
	return t.HumanID
}

func (t *TaskRunInstance) GetHumanReadableDescription() string {
	return t.Task.Name
}

func (t *TaskRunInstance) GetStatus() TaskInstanceStatus {
	return t.status
}

func (t *TaskRunInstance) Completed() bool {
	return t.status == Failed || t.status == Succeeded || t.status == UpstreamFailed || t.status == Skipped
}

func (t *TaskRunInstance) MarkAs(status TaskInstanceStatus) {
	t.status = status
}

func (t *TaskRunInstance) GetDefinition() *pipeline.Definition {
	return t.Definition
}

func (t *TaskRunInstance) GetTask() *pipeline.Task {
	return t.Task
}

func (t *TaskRunInstance) GetType() TaskInstanceType {
	return TaskInstanceTypeMain
}

func (t *TaskRunInstance) GetUpstream() []TaskInstance {
	return t.upstream
}

func (t *TaskRunInstance) GetDownstream() []TaskInstance {
	return t.downstream
}

func (t *TaskRunInstance) AddUpstream(task TaskInstance) {
	t.upstream = append(t.upstream, task)
}

func (t *TaskRunInstance) AddDownstream(task TaskInstance) {
	t.downstream = append(t.downstream, task)
}

// SetOutput records a value produced by the task, e.g. the number of rows written. Outputs end up in the run state.
func (t *TaskRunInstance) SetOutput(key, value string) {
	t.outputLock.Lock()
	defer t.outputLock.Unlock()

	if t.outputs == nil {
		t.outputs = make(map[string]string)
	}
	t.outputs[key] = value
}

func (t *TaskRunInstance) GetOutputs() map[string]string {
	t.outputLock.Lock()
	defer t.outputLock.Unlock()

	copied := make(map[string]string, len(t.outputs))
	for k, v := range t.outputs {
		copied[k] = v
	}

	return copied
}

// CheckInstance is a quality check that runs after its task succeeded.
type CheckInstance struct {
	*TaskRunInstance

	Check *pipeline.Check
}

func (t *CheckInstance) GetType() TaskInstanceType {
	return TaskInstanceTypeCheck
}

func (t *CheckInstance) GetHumanReadableDescription() string {
	return fmt.Sprintf("%s - Column '%s' / Check '%s'", t.Task.Name, t.Check.Column, t.Check.Name)
}

type TaskExecutionResult struct {
	Instance   TaskInstance
	Error      error
	StartedAt  time.Time
	FinishedAt time.Time
}

type Scheduler struct {
	logger           logger.Logger
	taskScheduleLock sync.Mutex
	definition       *pipeline.Definition
	state            *state.State

	taskInstances []TaskInstance
	taskNameMap   map[string][]TaskInstance

	// guarded by taskScheduleLock, nothing is queued once the work queue is closed
	workQueueClosed bool

	WorkQueue chan TaskInstance
	Results   chan *TaskExecutionResult
}

func NewScheduler(logger logger.Logger, def *pipeline.Definition, st *state.State) (*Scheduler, error) {
	tasks, err := pipeline.TopologicalOrder(def.Tasks())
	if err != nil {
		return nil, err
	}

	instances := make([]TaskInstance, 0, len(tasks))
	for _, task := range tasks {
		instances = append(instances, &TaskRunInstance{
			ID:         uuid.New().String(),
			HumanID:    task.Name,
			Definition: def,
			Task:       task,
			status:     Pending,
			upstream:   make([]TaskInstance, 0),
			downstream: make([]TaskInstance, 0),
		})

		for _, c := range task.Checks {
			instances = append(instances, &CheckInstance{
				TaskRunInstance: &TaskRunInstance{
					ID:         uuid.New().String(),
					HumanID:    fmt.Sprintf("%s:%s:%s", task.Name, c.Column, c.Name),
					Definition: def,
					Task:       task,
					status:     Pending,
					upstream:   make([]TaskInstance, 0),
					downstream: make([]TaskInstance, 0),
				},
				Check: &c,
			})
		}
	}

	s := &Scheduler{
		logger:        logger,
		definition:    def,
		state:         st,
		taskInstances: instances,
		WorkQueue:     make(chan TaskInstance, 100),
		Results:       make(chan *TaskExecutionResult),
	}
	s.constructInstanceRelationships()

	return s, nil
}

// constructInstanceRelationships wires every instance to the instances of its upstream tasks. Checks depend on
// their own task and block the downstream of that task.
func (s *Scheduler) constructInstanceRelationships() {
	s.taskNameMap = make(map[string][]TaskInstance)
	for _, ti := range s.taskInstances {
		name := ti.GetTask().Name
		s.taskNameMap[name] = append(s.taskNameMap[name], ti)
	}

	for _, ti := range s.taskInstances {
		if ti.GetType() == TaskInstanceTypeCheck {
			for _, sibling := range s.taskNameMap[ti.GetTask().Name] {
				if sibling.GetType() == TaskInstanceTypeMain {
					ti.AddUpstream(sibling)
					sibling.AddDownstream(ti)
				}
			}
			continue
		}

		for _, dep := range ti.GetTask().Upstreams {
			for _, upstream := range s.taskNameMap[dep] {
				ti.AddUpstream(upstream)
				upstream.AddDownstream(ti)
			}
		}
	}
}

func (s *Scheduler) InstanceCount() int {
	return len(s.taskInstances)
}

func (s *Scheduler) InstanceCountByStatus(status TaskInstanceStatus) int {
	return len(s.GetTaskInstancesByStatus(status))
}

func (s *Scheduler) GetTaskInstancesByStatus(status TaskInstanceStatus) []TaskInstance {
	instances := make([]TaskInstance, 0)
	for _, i := range s.taskInstances {
		if i.GetStatus() != status {
			continue
		}

		instances = append(instances, i)
	}

	return instances
}

func (s *Scheduler) GetTaskInstances() []TaskInstance {
	return s.taskInstances
}

func (s *Scheduler) MarkAll(status TaskInstanceStatus) {
	for _, instance := range s.taskInstances {
		instance.MarkAs(status)
	}
}

// MarkTask marks every instance of the named task, optionally together with everything downstream of it.
func (s *Scheduler) MarkTask(name string, status TaskInstanceStatus, downstream bool) error {
	instances, ok := s.taskNameMap[name]
	if !ok {
		return fmt.Errorf("task '%s' does not exist in the pipeline", name)
	}

	for _, i := range instances {
		s.MarkTaskInstance(i, status, downstream)
	}

	return nil
}

func (s *Scheduler) MarkTaskInstance(instance TaskInstance, status TaskInstanceStatus, downstream bool) {
	instance.MarkAs(status)
	if !downstream {
		return
	}

	for _, d := range instance.GetDownstream() {
		s.MarkTaskInstance(d, status, downstream)
	}
}

func (s *Scheduler) markTaskInstanceIfNotSkipped(instance TaskInstance, status TaskInstanceStatus, markDownstream bool) {
	if instance.GetStatus() == Skipped {
		return
	}
	instance.MarkAs(status)
	if !markDownstream {
		return
	}

	for _, d := range instance.GetDownstream() {
		s.markTaskInstanceIfNotSkipped(d, status, markDownstream)
	}
}

func (s *Scheduler) markTaskInstanceFailedWithDownstream(instance TaskInstance) {
	s.markTaskInstanceIfNotSkipped(instance, UpstreamFailed, true)
	s.markTaskInstanceIfNotSkipped(instance, Failed, false)
}

// Run feeds the work queue and consumes the results until every instance completed or the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) []*TaskExecutionResult {
	results := make([]*TaskExecutionResult, 0)
	if len(s.GetTaskInstancesByStatus(Pending)) == 0 {
		s.logger.Debug("no tasks to run, finishing the scheduler loop")
		s.closeWorkQueue()
		return results
	}

	go s.Kickstart()

	s.logger.Debug("started the scheduler loop")
	for {
		select {
		case <-ctx.Done():
			s.closeWorkQueue()
			s.saveState(results)
			return results
		case result := <-s.Results:
			s.logger.Debugf("received task result: %s", result.Instance.GetHumanID())
			results = append(results, result)
			finished := s.Tick(result)
			if finished {
				s.logger.Debug("pipeline has completed, finishing the scheduler loop")
				s.saveState(results)
				return results
			}
		}
	}
}

func (s *Scheduler) closeWorkQueue() {
	s.taskScheduleLock.Lock()
	defer s.taskScheduleLock.Unlock()

	s.closeWorkQueueLocked()
}

func (s *Scheduler) closeWorkQueueLocked() {
	if s.workQueueClosed {
		return
	}

	s.workQueueClosed = true
	close(s.WorkQueue)
}

func (s *Scheduler) saveState(results []*TaskExecutionResult) {
	if s.state == nil {
		return
	}

	byInstance := make(map[TaskInstance]*TaskExecutionResult, len(results))
	for _, r := range results {
		byInstance[r.Instance] = r
	}

	states := make([]*state.TaskState, 0, len(s.taskInstances))
	for _, instance := range s.taskInstances {
		upstream := make([]string, 0, len(instance.GetUpstream()))
		for _, u := range instance.GetUpstream() {
			upstream = append(upstream, u.GetHumanID())
		}

		ts := &state.TaskState{
			ID:       instance.GetID(),
			HumanID:  instance.GetHumanID(),
			Name:     instance.GetTask().Name,
			Status:   instance.GetStatus().String(),
			Upstream: upstream,
			Outputs:  instance.GetOutputs(),
		}
		if r, ok := byInstance[instance]; ok {
			ts.StartedAt = r.StartedAt
			ts.FinishedAt = r.FinishedAt
			if r.Error != nil {
				ts.Error = r.Error.Error()
			}
		}

		states = append(states, ts)
	}

	s.state.SetState(states)
}

// Tick marks an iteration of the scheduler loop. It is called when a result is received.
// The results are mainly fed from a channel, but Tick allows passing results directly, which is useful for
// testing purposes.
func (s *Scheduler) Tick(result *TaskExecutionResult) bool {
	s.taskScheduleLock.Lock()
	defer s.taskScheduleLock.Unlock()

	// the run was cancelled before this result arrived
	if s.workQueueClosed {
		return true
	}

	if result.Instance.GetStatus() != Skipped {
		s.MarkTaskInstance(result.Instance, Succeeded, false)
	}
	if result.Error != nil {
		s.markTaskInstanceFailedWithDownstream(result.Instance)
	}

	if s.hasPipelineFinished() {
		s.closeWorkQueueLocked()
		return true
	}

	for _, task := range s.getScheduleableTasks() {
		task.MarkAs(Queued)
		s.WorkQueue <- task
	}

	return false
}

// Kickstart initiates the scheduler process by sending a "start" task for the processing.
func (s *Scheduler) Kickstart() {
	s.Tick(&TaskExecutionResult{
		Instance: &TaskRunInstance{
			Task:   &pipeline.Task{Name: "start"},
			status: Succeeded,
		},
	})
}

func (s *Scheduler) getScheduleableTasks() []TaskInstance {
	tasks := make([]TaskInstance, 0)
	for _, task := range s.taskInstances {
		if task.GetStatus() != Pending {
			continue
		}

		if !s.allDependenciesCompletedForTask(task) {
			continue
		}

		tasks = append(tasks, task)
	}

	return tasks
}

func (s *Scheduler) allDependenciesCompletedForTask(t TaskInstance) bool {
	for _, upstream := range t.GetUpstream() {
		status := upstream.GetStatus()
		if status == Pending || status == Queued || status == Running {
			return false
		}
	}

	return true
}

func (s *Scheduler) hasPipelineFinished() bool {
	for _, task := range s.taskInstances {
		if !task.Completed() {
			return false
		}
	}

	return true
}

// Failed reports whether any instance of the run failed.
func (s *Scheduler) Failed() bool {
	return s.InstanceCountByStatus(Failed)+s.InstanceCountByStatus(UpstreamFailed) > 0
}
