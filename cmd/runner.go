package cmd

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/bruin-data/session-summary/pkg/ansisql"
	"github.com/bruin-data/session-summary/pkg/config"
	"github.com/bruin-data/session-summary/pkg/executor"
	"github.com/bruin-data/session-summary/pkg/jinja"
	"github.com/bruin-data/session-summary/pkg/logger"
	"github.com/bruin-data/session-summary/pkg/pipeline"
	"github.com/bruin-data/session-summary/pkg/scheduler"
	"github.com/bruin-data/session-summary/pkg/sensor"
	"github.com/bruin-data/session-summary/pkg/state"
	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// ErrRunInProgress is returned when another run is writing the same summary table.
var ErrRunInProgress = errors.New("another run is already writing to the summary table")

// Runner executes a single run of the pipeline.
type Runner struct {
	Fs          afero.Fs
	Definition  *pipeline.Definition
	Connections config.ConnectionGetter
	Logger      logger.Logger
	Output      io.Writer

	// LockDir and StateDir live on the OS file system, the lock has to be visible to other processes.
	LockDir  string
	StateDir string

	ConfigFilePath  string
	EnvironmentName string

	Workers          int
	SensorMode       sensor.Mode
	Verbose          bool
	QueryAnnotations string
}

type RunResult struct {
	RunID     string
	Interval  pipeline.Interval
	Scheduler *scheduler.Scheduler
	Results   []*scheduler.TaskExecutionResult
	State     *state.State
	Duration  time.Duration
}

func (r *RunResult) Failed() bool {
	return r.Scheduler.Failed()
}

// Summary returns the end-of-run table of the run.
func (r *RunResult) Summary(noColor bool) executor.Summary {
	return executor.Summary{
		Instances: r.Scheduler.GetTaskInstances(),
		Results:   r.Results,
		NoColor:   noColor,
	}
}

// Execute runs the pipeline for the given data interval and persists the run state. Task failures are reported
// through the result, the error is only returned when the run could not be carried out.
func (r *Runner) Execute(ctx context.Context, interval pipeline.Interval) (*RunResult, error) {
	def := r.Definition

	if err := os.MkdirAll(r.LockDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create the lock directory '%s'", r.LockDir)
	}

	lock := flock.New(filepath.Join(r.LockDir, def.SummaryTable().String()+".lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, errors.Wrap(err, "failed to acquire the run lock")
	}
	if !locked {
		return nil, errors.Wrapf(ErrRunInProgress, "'%s'", def.SummaryTable())
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			r.Logger.Warnf("failed to release the run lock: %v", err)
		}
	}()

	runID := NewRunID()
	st := state.NewState(def.Name, runID, map[string]string{
		"strategy":    string(def.Strategy),
		"sensor_mode": string(r.SensorMode),
		"start_date":  interval.Start.Format(time.RFC3339Nano),
		"end_date":    interval.End.Format(time.RFC3339Nano),
	})
	st.DataIntervalStart = interval.Start
	st.DataIntervalEnd = interval.End

	s, err := scheduler.NewScheduler(r.Logger, def, st)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build the task graph")
	}

	if r.SensorMode == sensor.ModeSkip {
		if err := s.MarkTask(pipeline.TaskWaitForImport, scheduler.Skipped, false); err != nil {
			return nil, err
		}
	}

	runCtx := context.WithValue(ctx, pipeline.RunConfigStartDate, interval.Start)
	runCtx = context.WithValue(runCtx, pipeline.RunConfigEndDate, interval.End)
	runCtx = context.WithValue(runCtx, pipeline.RunConfigRunID, runID)
	runCtx = context.WithValue(runCtx, pipeline.RunConfigQueryAnnotations, r.QueryAnnotations)
	runCtx = context.WithValue(runCtx, executor.KeyVerbose, r.Verbose)
	runCtx = context.WithValue(runCtx, config.ConfigFilePathContextKey, r.ConfigFilePath)
	runCtx = context.WithValue(runCtx, config.EnvironmentNameContextKey, r.EnvironmentName)

	run := jinja.RunContext{
		StartDate:        interval.Start,
		EndDate:          interval.End,
		Pipeline:         def.Name,
		RunID:            runID,
		UpstreamWorkflow: def.Upstream.Workflow,
		UpstreamTask:     def.Upstream.Task,
	}

	ex := executor.NewConcurrent(r.Logger, r.setupExecutors(run), r.Workers, r.Output)
	ex.Start(runCtx, s.WorkQueue, s.Results)

	start := time.Now()
	results := s.Run(runCtx)
	duration := time.Since(start)

	// a cancelled run stops reading results, the workers still have to hand over the tasks in flight
	drainUntilDone(ex, s.Results)

	if err := st.Save(r.Fs, r.StateDir); err != nil {
		r.Logger.Error("failed to save the run state: ", err)
	}

	return &RunResult{
		RunID:     runID,
		Interval:  interval,
		Scheduler: s,
		Results:   results,
		State:     st,
		Duration:  duration,
	}, nil
}

func (r *Runner) setupExecutors(run jinja.RunContext) map[pipeline.TaskType]executor.Config {
	args := r.Definition.DefaultArgs
	withRetries := func(op executor.Operator) executor.Operator {
		return executor.WithRetries(op, args.Retries, args.RetryDelay, r.Logger)
	}

	return map[pipeline.TaskType]executor.Config{
		pipeline.TaskTypeUpstreamSensor: {
			scheduler.TaskInstanceTypeMain: withRetries(sensor.NewOperator(r.Connections, r.Fs, run, r.SensorMode)),
		},
		pipeline.TaskTypeSchema: {
			scheduler.TaskInstanceTypeMain: withRetries(ansisql.NewSchemaOperator(r.Connections)),
		},
		pipeline.TaskTypeSummary: {
			scheduler.TaskInstanceTypeMain:  withRetries(ansisql.NewSummaryOperator(r.Connections)),
			scheduler.TaskInstanceTypeCheck: ansisql.NewUniqueCheckOperator(r.Connections),
		},
		pipeline.TaskTypeDuplicatesView: {
			scheduler.TaskInstanceTypeMain: withRetries(ansisql.NewDuplicatesViewOperator(r.Connections)),
		},
	}
}

func drainUntilDone(ex *executor.Concurrent, results <-chan *scheduler.TaskExecutionResult) {
	done := make(chan struct{})
	go func() {
		ex.Wait()
		close(done)
	}()

	for {
		select {
		case <-results:
		case <-done:
			return
		}
	}
}
