package executor

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/bruin-data/session-summary/pkg/logger"
	"github.com/bruin-data/session-summary/pkg/pipeline"
	"github.com/bruin-data/session-summary/pkg/scheduler"
	"github.com/fatih/color"
	"github.com/sourcegraph/conc"
)

var (
	colors = []color.Attribute{
		color.FgBlue,
		color.FgMagenta,
		color.FgCyan,
		color.FgWhite,
		color.FgHiMagenta,
		color.FgHiBlue,
		color.FgHiCyan,
	}
	faint = color.New(color.Faint).SprintFunc()
)

type contextKey int

const (
	KeyPrinter contextKey = iota
	ContextLogger
	KeyVerbose

	timeFormat = "2006-01-02 15:04:05"
)

type Concurrent struct {
	workers []*worker
	wg      conc.WaitGroup
}

func NewConcurrent(
	logger logger.Logger,
	taskTypeMap map[pipeline.TaskType]Config,
	workerCount int,
	out io.Writer,
) *Concurrent {
	if workerCount < 1 {
		workerCount = 1
	}
	if out == nil {
		out = os.Stdout
	}

	executor := &Sequential{
		TaskTypeMap: taskTypeMap,
	}

	var printLock sync.Mutex

	workers := make([]*worker, workerCount)
	for i := range workerCount {
		workers[i] = &worker{
			id:        fmt.Sprintf("worker-%d", i),
			executor:  executor,
			logger:    logger,
			out:       out,
			printer:   color.New(colors[i%len(colors)]),
			printLock: &printLock,
		}
	}

	return &Concurrent{
		workers: workers,
	}
}

// Start launches the workers. They consume the input until it is closed.
func (c *Concurrent) Start(ctx context.Context, input <-chan scheduler.TaskInstance, result chan<- *scheduler.TaskExecutionResult) {
	for _, w := range c.workers {
		c.wg.Go(func() {
			w.run(ctx, input, result)
		})
	}
}

// Wait blocks until every worker returned. A panic in a worker is re-raised here.
func (c *Concurrent) Wait() {
	c.wg.Wait()
}

type worker struct {
	id        string
	executor  *Sequential
	logger    logger.Logger
	out       io.Writer
	printer   *color.Color
	printLock *sync.Mutex
}

func (w *worker) println(format string, a ...any) {
	w.printLock.Lock()
	defer w.printLock.Unlock()

	_, _ = w.printer.Fprintf(w.out, format+"\n", a...)
}

func (w *worker) run(ctx context.Context, taskChannel <-chan scheduler.TaskInstance, results chan<- *scheduler.TaskExecutionResult) {
	for task := range taskChannel {
		w.println("[%s] Starting: %s", time.Now().Format(timeFormat), task.GetHumanID())

		start := time.Now()

		printer := &workerWriter{
			w:           w.out,
			task:        task.GetHumanID(),
			sprintfFunc: w.printer.SprintfFunc(),
			lock:        w.printLock,
		}

		executionCtx := context.WithValue(ctx, KeyPrinter, io.Writer(printer))
		executionCtx = context.WithValue(executionCtx, ContextLogger, w.logger)
		err := w.executor.RunSingleTask(executionCtx, task)

		finished := time.Now()
		durationString := fmt.Sprintf("(%s)", finished.Sub(start).Truncate(time.Millisecond).String())

		res := "Finished"
		if err != nil {
			res = "Failed"
		}
		w.println("[%s] %s: %s %s", finished.Format(timeFormat), res, task.GetHumanID(), faint(durationString))

		results <- &scheduler.TaskExecutionResult{
			Instance:   task,
			Error:      err,
			StartedAt:  start,
			FinishedAt: finished,
		}
	}
}

type workerWriter struct {
	w           io.Writer
	task        string
	sprintfFunc func(format string, a ...interface{}) string
	lock        *sync.Mutex
}

func (w *workerWriter) Write(p []byte) (int, error) {
	formatted := w.sprintfFunc("[%s] [%s] %s", time.Now().Format(timeFormat), w.task, string(p))

	w.lock.Lock()
	defer w.lock.Unlock()

	n, err := w.w.Write([]byte(formatted))
	if err != nil {
		return n, err
	}
	if n != len(formatted) {
		return n, io.ErrShortWrite
	}
	return len(p), nil
}

// PrinterFromContext returns the task-scoped writer placed by the workers, or stdout when running outside of them.
func PrinterFromContext(ctx context.Context) io.Writer {
	if w, ok := ctx.Value(KeyPrinter).(io.Writer); ok && w != nil {
		return w
	}

	return os.Stdout
}
