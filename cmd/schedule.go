package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bruin-data/session-summary/pkg/logger"
	"github.com/bruin-data/session-summary/pkg/pipeline"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
)

func Schedule(isDebug *bool) *cli.Command {
	return &cli.Command{
		Name:  "schedule",
		Usage: "keep running and trigger a run on every tick of the pipeline schedule",
		Flags: runFlags,
		Action: func(c *cli.Context) error {
			defer RecoverFromPanic()

			l := makeLogger(*isDebug)
			runner, closeConnections, err := newRunner(c, afero.NewOsFs(), l)
			if err != nil {
				return err
			}
			defer closeConnections()

			ctx, cancel := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			scheduler, err := newCronScheduler(ctx, runner, l, c.Bool("no-color"), c.Duration("timeout"))
			if err != nil {
				errorPrinter.Printf("Invalid schedule '%s': %v\n", runner.Definition.Schedule, err)
				return cli.Exit("", 1)
			}

			infoPrinter.Printf("Scheduling '%s' with '%s', press Ctrl+C to stop\n", runner.Definition.Name, runner.Definition.Schedule)
			scheduler.Start()
			<-ctx.Done()

			infoPrinter.Println("Stopping the scheduler, waiting for the running jobs to finish")
			<-scheduler.Stop().Done()

			return nil
		},
	}
}

// newCronScheduler registers the run of the definition on its schedule. Ticks overlapping a run in progress are
// skipped, ticks before the start date of the definition do nothing. Runs are cancelled together with ctx.
func newCronScheduler(ctx context.Context, runner *Runner, l logger.Logger, noColor bool, timeout time.Duration) (*cron.Cron, error) {
	cronLog := cronLogger{l}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)

	_, err := c.AddFunc(runner.Definition.Schedule, func() {
		triggerRun(ctx, runner, time.Now(), noColor, timeout)
	})
	if err != nil {
		return nil, err
	}

	return c, nil
}

// triggerRun runs the pipeline for the interval of a run triggered at the given time. It reports whether a run was
// carried out.
func triggerRun(ctx context.Context, runner *Runner, at time.Time, noColor bool, timeout time.Duration) bool {
	if !runner.Definition.ShouldTrigger(at) {
		runner.Logger.Infof("skipping the tick at %s, the pipeline starts at %s", at.UTC().Format(time.RFC3339), runner.Definition.StartDate.Format(time.RFC3339))
		return false
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	interval := pipeline.IntervalFor(at)
	result, err := runner.Execute(ctx, interval)
	if errors.Is(err, ErrRunInProgress) {
		warningPrinter.Printf("Skipping the run for %s: %v\n", interval.Start.Format(time.DateOnly), err)
		return false
	}
	if err != nil {
		errorPrinter.Fprintf(os.Stderr, "Failed to run the pipeline: %v\n", err)
		return false
	}

	printRunResult(result, noColor)
	return true
}

// cronLogger makes the scheduler log through the application logger.
type cronLogger struct {
	logger logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	msg = fmt.Sprintf("%s: %v", msg, err)
	if len(keysAndValues) > 0 {
		msg += fmt.Sprint(" ", keysAndValues)
	}

	l.logger.Error(msg)
}
