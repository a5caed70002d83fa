package sensor

import (
	"context"
	"fmt"

	"github.com/bruin-data/session-summary/pkg/config"
	"github.com/bruin-data/session-summary/pkg/executor"
	"github.com/bruin-data/session-summary/pkg/helpers"
	"github.com/bruin-data/session-summary/pkg/jinja"
	"github.com/bruin-data/session-summary/pkg/pipeline"
	"github.com/bruin-data/session-summary/pkg/query"
	"github.com/bruin-data/session-summary/pkg/scheduler"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// Operator runs the upstream sensor of the pipeline as the wait_for_import task.
type Operator struct {
	conn config.ConnectionGetter
	fs   afero.Fs
	run  jinja.RunContext
	mode Mode
}

func NewOperator(conn config.ConnectionGetter, fs afero.Fs, run jinja.RunContext, mode Mode) *Operator {
	return &Operator{conn: conn, fs: fs, run: run, mode: mode}
}

// PokerFor builds the sensor configured for the upstream of the definition.
func (o *Operator) PokerFor(def *pipeline.Definition) (Poker, string, error) {
	renderer := jinja.NewRendererForRun(o.run)
	sensor := def.Upstream.Sensor

	switch sensor.Type {
	case pipeline.SensorTypeQuery:
		connectionName := sensor.Connection
		if connectionName == "" {
			connectionName = def.DefaultConnection
		}

		qs, err := NewQuerySensor(o.conn, connectionName, sensor.Query, query.Extractor{Renderer: renderer})
		if err != nil {
			return nil, "", err
		}

		return qs, helpers.TrimToLength(qs.Query().Query, 50), nil
	case pipeline.SensorTypeStateFile:
		path, err := renderer.Render(sensor.Path)
		if err != nil {
			return nil, "", errors.Wrap(err, "failed to render the state file path")
		}

		return &StateFileSensor{
			Fs:        o.fs,
			Path:      path,
			Task:      def.Upstream.Task,
			NotBefore: o.run.StartDate,
		}, path, nil
	case pipeline.SensorTypeNone, "":
		return Always{}, "always ready", nil
	}

	return nil, "", errors.Errorf("unknown sensor type '%s'", sensor.Type)
}

func (o *Operator) Run(ctx context.Context, ti scheduler.TaskInstance) error {
	def := ti.GetDefinition()
	printer := executor.PrinterFromContext(ctx)

	if o.mode == ModeSkip {
		fmt.Fprintln(printer, "Sensor skipped")
		ti.SetOutput("sensor", string(ModeSkip))
		return nil
	}

	poker, description, err := o.PokerFor(def)
	if err != nil {
		return err
	}

	fmt.Fprintln(printer, "Poking:", description)
	err = Wait(ctx, poker, Options{
		Workflow:           def.Upstream.Workflow,
		Task:               def.Upstream.Task,
		Timeout:            def.Upstream.Timeout,
		PokeInterval:       def.Upstream.PokeInterval,
		ExponentialBackoff: def.Upstream.ExponentialBackoff,
		Mode:               o.mode,
		Output:             printer,
	})
	if err != nil {
		return err
	}

	ti.SetOutput("sensor", string(def.Upstream.Sensor.Type))
	return nil
}
