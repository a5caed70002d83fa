package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/bruin-data/session-summary/pkg/ansisql"
	duck "github.com/bruin-data/session-summary/pkg/duckdb"
	"github.com/bruin-data/session-summary/pkg/jinja"
	"github.com/bruin-data/session-summary/pkg/pipeline"
	"github.com/bruin-data/session-summary/pkg/postgres"
	"github.com/bruin-data/session-summary/pkg/query"
	"github.com/bruin-data/session-summary/pkg/session"
	"github.com/bruin-data/session-summary/pkg/snowflake"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
	"github.com/xlab/treeprint"
)

var dialects = map[string]ansisql.Dialect{
	"snowflake": snowflake.Dialect{},
	"duckdb":    duck.Dialect{},
	"postgres":  postgres.Dialect{},
}

func Render() *cli.Command {
	return &cli.Command{
		Name:  "render",
		Usage: "print the SQL every task of the pipeline would run",
		Flags: []cli.Flag{
			pipelineFlag,
			strategyFlag,
			startDateFlag,
			endDateFlag,
			outputFlag,
			&cli.StringFlag{
				Name:  "dialect",
				Usage: "the warehouse to render the SQL for: snowflake, duckdb or postgres",
				Value: "snowflake",
			},
			&cli.IntFlag{
				Name:  "sample-rows",
				Usage: "number of placeholder rows to render the in_memory batches with",
				Value: 2,
			},
			&cli.BoolFlag{
				Name:  "graph",
				Usage: "print the task graph instead of the SQL",
			},
		},
		Action: func(c *cli.Context) error {
			defer RecoverFromPanic()

			output := c.String(outputFlag.Name)
			def, err := loadDefinition(afero.NewOsFs(), c)
			if err != nil {
				printError(err, output, "Failed to load the pipeline")
				return cli.Exit("", 1)
			}

			dialect, ok := dialects[c.String("dialect")]
			if !ok {
				printError(errors.Errorf("unknown dialect '%s'", c.String("dialect")), output, "Invalid dialect")
				return cli.Exit("", 1)
			}

			interval, err := pipeline.ParseInterval(c.String(startDateFlag.Name), c.String(endDateFlag.Name), time.Now())
			if err != nil {
				printError(err, output, "Invalid data interval")
				return cli.Exit("", 1)
			}

			r := RenderCommand{
				definition: def,
				dialect:    dialect,
				run: jinja.RunContext{
					StartDate:        interval.Start,
					EndDate:          interval.End,
					Pipeline:         def.Name,
					RunID:            "your-run-id",
					UpstreamWorkflow: def.Upstream.Workflow,
					UpstreamTask:     def.Upstream.Task,
				},
				sampleRows: c.Int("sample-rows"),
				writer:     os.Stdout,
				output:     output,
				highlight:  isTerminal(os.Stdout),
			}

			if c.Bool("graph") {
				return r.RunGraph()
			}

			return r.Run()
		},
	}
}

type renderedQuery struct {
	Task  string `json:"task"`
	Query string `json:"query"`
}

type RenderCommand struct {
	definition *pipeline.Definition
	dialect    ansisql.Dialect
	run        jinja.RunContext
	sampleRows int

	output    string
	highlight bool
	writer    io.Writer
}

// Queries returns the statements of every task in the order they run.
func (r *RenderCommand) Queries() ([]renderedQuery, error) {
	def := r.definition
	renderer := ansisql.NewRenderer(def, r.dialect)

	tasks, err := pipeline.TopologicalOrder(def.Tasks())
	if err != nil {
		return nil, err
	}

	result := make([]renderedQuery, 0, len(tasks)+1)
	for _, t := range tasks {
		var q *query.Query
		switch t.Type {
		case pipeline.TaskTypeUpstreamSensor:
			if def.Upstream.Sensor.Type != pipeline.SensorTypeQuery {
				continue
			}
			extractor := query.Extractor{Renderer: jinja.NewRendererForRun(r.run)}
			queries, err := extractor.ExtractQueriesFromString(def.Upstream.Sensor.Query)
			if err != nil {
				return nil, errors.Wrap(err, "failed to render the sensor query")
			}
			q = query.Join(lo.Map(queries, func(q *query.Query, _ int) string {
				return q.ToMultiStatement()
			}))
		case pipeline.TaskTypeSchema:
			q = renderer.CreateSchema()
		case pipeline.TaskTypeSummary:
			q = renderer.RebuildSummary()
			if def.Strategy == pipeline.StrategyInMemory {
				q = renderer.WriteSummaries(sampleSummaries(r.sampleRows), def.BatchSize)
			}
		case pipeline.TaskTypeDuplicatesView:
			q = renderer.DuplicatesView()
		default:
			return nil, errors.Errorf("no renderer for task type '%s'", t.Type)
		}

		result = append(result, renderedQuery{Task: t.Name, Query: q.String()})

		for _, check := range t.Checks {
			result = append(result, renderedQuery{
				Task:  fmt.Sprintf("%s:%s:%s", t.Name, check.Column, check.Name),
				Query: renderer.UniqueCheck(check.Column).String(),
			})
		}
	}

	return result, nil
}

func (r *RenderCommand) Run() error {
	queries, err := r.Queries()
	if err != nil {
		printError(err, r.output, "Failed to render the queries")
		return cli.Exit("", 1)
	}

	if r.output == "json" {
		js, err := json.Marshal(queries)
		if err != nil {
			printError(err, r.output, "Failed to render the queries")
			return cli.Exit("", 1)
		}
		_, err = r.writer.Write(js)
		return err
	}

	for _, q := range queries {
		sql := q.Query
		if r.highlight {
			sql = highlightCode(sql, "sql")
		}
		if _, err := fmt.Fprintf(r.writer, "-- %s\n%s\n\n", q.Task, sql); err != nil {
			return err
		}
	}

	return nil
}

// RunGraph prints the tasks as a tree, each task under its upstream.
func (r *RenderCommand) RunGraph() error {
	tasks, err := pipeline.TopologicalOrder(r.definition.Tasks())
	if err != nil {
		printError(err, r.output, "Failed to build the task graph")
		return cli.Exit("", 1)
	}

	tree := treeprint.NewWithRoot(r.definition.Name)
	branches := make(map[string]treeprint.Tree, len(tasks))
	for _, t := range tasks {
		parent := tree
		if len(t.Upstreams) > 0 {
			parent = branches[t.Upstreams[0]]
		}

		branch := parent.AddMetaBranch(string(t.Type), t.Name)
		for _, check := range t.Checks {
			branch.AddMetaNode("check", fmt.Sprintf("%s(%s)", check.Name, check.Column))
		}
		branches[t.Name] = branch
	}

	_, err = fmt.Fprint(r.writer, tree.String())
	return err
}

// sampleSummaries are placeholder rows that show the shape of the in_memory batches.
func sampleSummaries(n int) []session.Summary {
	rows := make([]session.Summary, 0, n)
	for i := range n {
		rows = append(rows, session.Summary{
			UserID:           fmt.Sprintf("user_%d", i+1),
			SessionID:        fmt.Sprintf("session_%d", i+1),
			Channel:          "channel",
			SessionTimestamp: time.Date(2024, 1, 1, 0, 0, i, 0, time.UTC),
		})
	}

	return rows
}

func isTerminal(f *os.File) bool {
	o, err := f.Stat()
	if err != nil {
		return false
	}

	return (o.Mode() & os.ModeCharDevice) == os.ModeCharDevice
}

func highlightCode(code string, language string) string {
	b := new(strings.Builder)
	err := quick.Highlight(b, code, language, "terminal16m", "monokai")
	if err != nil {
		errorPrinter.Printf("Failed to highlight the query: %v\n", err.Error())
		return code
	}

	return b.String()
}
