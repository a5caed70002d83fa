package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/bruin-data/session-summary/pkg/ansisql"
	"github.com/bruin-data/session-summary/pkg/config"
	"github.com/bruin-data/session-summary/pkg/connection"
	"github.com/bruin-data/session-summary/pkg/pipeline"
	"github.com/bruin-data/session-summary/pkg/query"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
)

type pinger interface {
	Ping(ctx context.Context, name string) error
}

func Validate() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "validate the pipeline definition and test the connections it uses",
		Flags: []cli.Flag{
			configFileFlag,
			environmentFlag,
			pipelineFlag,
			forceFlag,
			strategyFlag,
			outputFlag,
			&cli.BoolFlag{
				Name:  "skip-connections",
				Usage: "only validate the definition, do not connect to the warehouses",
			},
			&cli.BoolFlag{
				Name:  "explain",
				Usage: "ask the warehouse to plan the summary query, which fails if the raw tables cannot be read",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "timeout for testing each connection",
				Value: 30 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			defer RecoverFromPanic()

			output := c.String(outputFlag.Name)
			fs := afero.NewOsFs()
			j, err := loadJob(fs, c, os.Stdin)
			if err != nil {
				return err
			}

			if c.Bool("skip-connections") {
				printSuccessForOutput(output, fmt.Sprintf("The pipeline '%s' is valid.", j.definition.Name))
				return nil
			}

			manager, errs := connection.NewManagerFromConfig(c.Context, fs, j.config)
			if manager != nil {
				defer manager.Close()
			}
			if len(errs) > 0 {
				printErrors(errs, output, "Errors occurred while initializing the connections")
				return cli.Exit("", 1)
			}

			if errs := pingConnections(c.Context, manager, j.definition, c.Duration("timeout")); len(errs) > 0 {
				printErrors(errs, output, "The pipeline cannot run")
				return cli.Exit("", 1)
			}

			if c.Bool("explain") {
				ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
				defer cancel()

				if err := explainSummary(ctx, manager, j.definition); err != nil {
					printError(err, output, "The summary query cannot be planned")
					return cli.Exit("", 1)
				}
			}

			printSuccessForOutput(output, fmt.Sprintf("The pipeline '%s' is valid and its connections are reachable.", j.definition.Name))
			return nil
		},
	}
}

// usedConnections returns the names of the connections a run of the definition talks to.
func usedConnections(def *pipeline.Definition) []string {
	names := []string{def.DefaultConnection}
	if def.Upstream.Sensor.Type == pipeline.SensorTypeQuery && def.Upstream.Sensor.Connection != "" {
		names = append(names, def.Upstream.Sensor.Connection)
	}

	return lo.Uniq(names)
}

func pingConnections(ctx context.Context, p pinger, def *pipeline.Definition, timeout time.Duration) []error {
	var errs []error
	for _, name := range usedConnections(def) {
		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		err := p.Ping(pingCtx, name)
		cancel()

		if err != nil {
			errs = append(errs, errors.Wrapf(err, "connection '%s'", name))
		}
	}

	return errs
}

// explainSummary runs EXPLAIN for the summary select on the default connection.
func explainSummary(ctx context.Context, conn config.ConnectionGetter, def *pipeline.Definition) error {
	c, err := config.GetRequiredConnection(ctx, conn, "warehouse", def.DefaultConnection)
	if err != nil {
		return err
	}

	wh, ok := c.(ansisql.Warehouse)
	if !ok {
		return errors.Errorf("connection '%s' is not a supported warehouse", def.DefaultConnection)
	}

	summary := query.Query{Query: ansisql.NewRenderer(def, wh.Dialect()).SummarySelect()}
	_, err = wh.Select(ctx, &query.Query{Query: summary.ToExplainQuery()})
	return err
}
