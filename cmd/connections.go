package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/bruin-data/session-summary/pkg/config"
	"github.com/bruin-data/session-summary/pkg/connection"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/lo"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
)

func Connections() *cli.Command {
	return &cli.Command{
		Name:  "connections",
		Usage: "manage the connections defined in the config file",
		Subcommands: []*cli.Command{
			ListConnections(),
			PingConnection(),
		},
	}
}

func ListConnections() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "list the connections of every environment",
		Flags: []cli.Flag{
			configFileFlag,
			outputFlag,
			&cli.StringFlag{
				Name:    "environment",
				Aliases: []string{"e", "env"},
				Usage:   "only list the connections of the given environment",
			},
		},
		Action: func(c *cli.Context) error {
			defer RecoverFromPanic()

			cm, err := config.LoadOrCreate(afero.NewOsFs(), c.String(configFileFlag.Name))
			if err != nil {
				printError(err, c.String(outputFlag.Name), "Failed to load the config file")
				return cli.Exit("", 1)
			}

			r := ConnectionsCommand{writer: os.Stdout}
			return r.ListConnections(cm, c.String(outputFlag.Name), c.String("environment"))
		},
	}
}

func PingConnection() *cli.Command {
	return &cli.Command{
		Name:      "test",
		Usage:     "test a connection of the selected environment",
		ArgsUsage: "[connection name]",
		Flags: []cli.Flag{
			configFileFlag,
			environmentFlag,
			forceFlag,
			outputFlag,
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "timeout for the test",
				Value: 30 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			defer RecoverFromPanic()

			output := c.String(outputFlag.Name)
			name := c.Args().Get(0)
			if name == "" {
				printErrorForOutput(output, fmt.Errorf("please give the name of the connection to test"))
				return cli.Exit("", 1)
			}

			fs := afero.NewOsFs()
			cm, err := config.LoadOrCreate(fs, c.String(configFileFlag.Name))
			if err != nil {
				printErrorForOutput(output, err)
				return cli.Exit("", 1)
			}
			if err := switchEnvironment(c.String(environmentFlag.Name), c.Bool(forceFlag.Name), cm, os.Stdin); err != nil {
				return err
			}

			manager, errs := connection.NewManagerFromConfig(c.Context, fs, cm)
			if manager != nil {
				defer manager.Close()
			}
			if len(errs) > 0 {
				printErrors(errs, output, "Errors occurred while initializing the connections")
				return cli.Exit("", 1)
			}

			ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
			defer cancel()

			if err := manager.Ping(ctx, name); err != nil {
				printErrorForOutput(output, fmt.Errorf("failed to test the connection '%s': %w", name, err))
				return cli.Exit("", 1)
			}

			printSuccessForOutput(output, fmt.Sprintf("Successfully tested the connection '%s'.", name))
			return nil
		},
	}
}

type ConnectionsCommand struct {
	writer io.Writer
}

func (r *ConnectionsCommand) ListConnections(cm *config.Config, output, environment string) error {
	environments := cm.Environments
	if environment != "" {
		env, ok := cm.Environments[environment]
		if !ok {
			printErrorForOutput(output, fmt.Errorf("environment '%s' not found", environment))
			return cli.Exit("", 1)
		}
		environments = map[string]config.Environment{environment: env}
	}

	if output == "json" {
		js, err := json.Marshal(environments)
		if err != nil {
			printErrorJSON(err)
			return cli.Exit("", 1)
		}

		_, err = fmt.Fprintln(r.writer, string(js))
		return err
	}

	names := lo.Keys(environments)
	sort.Strings(names)
	for _, envName := range names {
		fmt.Fprintln(r.writer)
		infoPrinter.Fprintf(r.writer, "Environment: %s\n", envName)

		t := table.NewWriter()
		t.SetOutputMirror(r.writer)
		t.AppendHeader(table.Row{"Type", "Name"})
		for _, row := range connectionRows(environments[envName].Connections) {
			t.AppendRow(row)
		}
		t.Render()
	}

	return nil
}

func connectionRows(c config.Connections) []table.Row {
	rows := make([]table.Row, 0, len(c.Names()))
	for _, conn := range c.Snowflake {
		rows = append(rows, table.Row{"snowflake", conn.Name})
	}
	for _, conn := range c.DuckDB {
		rows = append(rows, table.Row{"duckdb", conn.Name})
	}
	for _, conn := range c.Postgres {
		rows = append(rows, table.Row{"postgres", conn.Name})
	}

	return rows
}

func printErrorForOutput(output string, err error) {
	if output == "json" {
		printErrorJSON(err)
		return
	}

	errorPrinter.Printf("%v\n", err)
}
