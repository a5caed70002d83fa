package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bruin-data/session-summary/pkg/ansisql"
	"github.com/bruin-data/session-summary/pkg/connection"
	"github.com/bruin-data/session-summary/pkg/executor"
	"github.com/bruin-data/session-summary/pkg/logger"
	"github.com/bruin-data/session-summary/pkg/pipeline"
	"github.com/bruin-data/session-summary/pkg/sensor"
	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"
)

var runFlags = []cli.Flag{
	configFileFlag,
	environmentFlag,
	pipelineFlag,
	forceFlag,
	strategyFlag,
	&cli.StringFlag{
		Name:        "sensor-mode",
		DefaultText: "'wait'",
		Usage:       "set the sensor mode: 'skip' to bypass, 'once' to check once, or 'wait' to poll until the upstream is ready",
	},
	&cli.IntFlag{
		Name:  "workers",
		Usage: "number of workers to run the tasks in parallel",
		Value: 4,
	},
	&cli.BoolFlag{
		Name:  "verbose",
		Usage: "print the queries before they are executed",
	},
	&cli.StringFlag{
		Name:  "query-annotations",
		Usage: "annotate the queries with a JSON comment: 'default' or a JSON object merged into the comment",
	},
	&cli.BoolFlag{
		Name:  "no-color",
		Usage: "plain output for this run",
	},
	&cli.DurationFlag{
		Name:  "timeout",
		Usage: "timeout for the entire run",
		Value: 24 * time.Hour,
	},
}

func Run(isDebug *bool) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "build the session summary table and the duplicates view once",
		Flags: append([]cli.Flag{startDateFlag, endDateFlag}, runFlags...),
		Action: func(c *cli.Context) error {
			defer RecoverFromPanic()

			fs := afero.NewOsFs()
			l := makeLogger(*isDebug)

			interval, err := pipeline.ParseInterval(c.String(startDateFlag.Name), c.String(endDateFlag.Name), time.Now())
			if err != nil {
				errorPrinter.Printf("Invalid data interval: %v\n", err)
				return cli.Exit("", 1)
			}

			runner, closeConnections, err := newRunner(c, fs, l)
			if err != nil {
				return err
			}
			defer closeConnections()

			timeoutCtx, timeoutCancel := context.WithTimeout(c.Context, c.Duration("timeout"))
			defer timeoutCancel()
			ctx, cancel := signal.NotifyContext(timeoutCtx, syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			infoPrinter.Printf("Running '%s' (%s) against '%s'\n", runner.Definition.Name, runner.Definition.Strategy, runner.Definition.DefaultConnection)
			infoPrinter.Printf("Interval: %s - %s\n\n", interval.Start.Format(time.RFC3339), interval.End.Format(time.RFC3339))

			result, err := runner.Execute(ctx, interval)
			if err != nil {
				errorPrinter.Printf("Failed to run the pipeline: %v\n", err)
				return cli.Exit("", 1)
			}

			if !printRunResult(result, c.Bool("no-color")) {
				return cli.Exit("", 1)
			}

			return nil
		},
	}
}

// newRunner builds a runner out of the run flags. The returned function closes the connections.
func newRunner(c *cli.Context, fs afero.Fs, l logger.Logger) (*Runner, func(), error) {
	j, err := loadJob(fs, c, os.Stdin)
	if err != nil {
		return nil, nil, err
	}

	mode, err := sensor.ParseMode(c.String("sensor-mode"))
	if err != nil {
		errorPrinter.Printf("%v\n", err)
		return nil, nil, cli.Exit("", 1)
	}

	annotations := c.String("query-annotations")
	if annotations != "" && annotations != ansisql.DefaultQueryAnnotations && annotations[0] != '{' {
		errorPrinter.Printf("Invalid value for '--query-annotations': expected 'default' or a JSON object\n")
		return nil, nil, cli.Exit("", 1)
	}

	manager, errs := connection.NewManagerFromConfig(c.Context, fs, j.config)
	if len(errs) > 0 {
		printErrors(errs, "", "Errors occurred while initializing the connections")
		if manager != nil {
			_ = manager.Close()
		}
		return nil, nil, cli.Exit("", 1)
	}

	if c.Bool("no-color") {
		color.NoColor = true
	}

	runner := &Runner{
		Fs:               fs,
		Definition:       j.definition,
		Connections:      manager,
		Logger:           l,
		Output:           os.Stdout,
		LockDir:          LogsFolder,
		StateDir:         StateFolder,
		ConfigFilePath:   j.configFilePath,
		EnvironmentName:  j.config.SelectedEnvironmentName,
		Workers:          c.Int("workers"),
		SensorMode:       mode,
		Verbose:          c.Bool("verbose"),
		QueryAnnotations: annotations,
	}

	return runner, func() {
		if err := manager.Close(); err != nil {
			l.Warnf("failed to close the connections: %v", err)
		}
	}, nil
}

// printRunResult prints the summary of the run and reports whether it succeeded.
func printRunResult(result *RunResult, noColor bool) bool {
	noColor = noColor || color.NoColor || !term.IsTerminal(int(os.Stdout.Fd()))

	fmt.Println()
	fmt.Println(result.Summary(noColor).Render())

	if !result.Failed() {
		successPrinter.Printf("\nRun %s finished in %s\n", result.RunID, result.Duration.Truncate(time.Millisecond))
		return true
	}

	if tree := executor.FailureTree(result.Results); tree != nil {
		errorPrinter.Printf("\n%s", tree.String())
	}
	errorPrinter.Printf("\nRun %s failed after %s\n", result.RunID, result.Duration.Truncate(time.Millisecond))

	return false
}
