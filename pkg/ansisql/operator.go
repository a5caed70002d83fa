package ansisql

import (
	"context"
	"strconv"

	"github.com/bruin-data/session-summary/pkg/config"
	"github.com/bruin-data/session-summary/pkg/executor"
	"github.com/bruin-data/session-summary/pkg/helpers"
	"github.com/bruin-data/session-summary/pkg/logger"
	"github.com/bruin-data/session-summary/pkg/pipeline"
	"github.com/bruin-data/session-summary/pkg/query"
	"github.com/bruin-data/session-summary/pkg/scheduler"
	"github.com/bruin-data/session-summary/pkg/session"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Warehouse is a connection the operators can run the job against.
type Warehouse interface {
	RunQueryWithoutResult(ctx context.Context, q *query.Query) error
	Select(ctx context.Context, q *query.Query) ([][]interface{}, error)
	Dialect() Dialect
}

func warehouseFor(ctx context.Context, conn config.ConnectionGetter, def *pipeline.Definition) (Warehouse, error) {
	c, err := config.GetRequiredConnection(ctx, conn, "warehouse", def.DefaultConnection)
	if err != nil {
		return nil, err
	}

	wh, ok := c.(Warehouse)
	if !ok {
		return nil, errors.Errorf("connection '%s' is not a supported warehouse", def.DefaultConnection)
	}

	return wh, nil
}

func run(ctx context.Context, wh Warehouse, ti scheduler.TaskInstance, q *query.Query) error {
	annotated, err := AddAnnotationComment(ctx, q, ti.GetHumanID(), ti.GetTask().Type, ti.GetDefinition().Name)
	if err != nil {
		return err
	}

	LogQueryIfVerbose(ctx, executor.PrinterFromContext(ctx), annotated.Query)
	return wh.RunQueryWithoutResult(ctx, annotated)
}

func count(ctx context.Context, wh Warehouse, q *query.Query) (int64, error) {
	res, err := wh.Select(ctx, q)
	if err != nil {
		return 0, err
	}

	return helpers.CastResultToInteger(res)
}

type SchemaOperator struct {
	conn    config.ConnectionGetter
	creator *SchemaCreator
}

func NewSchemaOperator(conn config.ConnectionGetter) *SchemaOperator {
	return &SchemaOperator{conn: conn, creator: NewSchemaCreator()}
}

func (o *SchemaOperator) Run(ctx context.Context, ti scheduler.TaskInstance) error {
	def := ti.GetDefinition()
	wh, err := warehouseFor(ctx, o.conn, def)
	if err != nil {
		return err
	}

	return o.creator.CreateSchemaIfNotExist(ctx, wh, wh.Dialect(), def.SummaryTable())
}

// SummaryOperator rebuilds the summary table. With the pushdown strategy the warehouse does the work in a single
// statement; with the in-memory strategy both raw tables are read, the summaries are built locally and written back
// in literal batches.
type SummaryOperator struct {
	conn config.ConnectionGetter
}

func NewSummaryOperator(conn config.ConnectionGetter) *SummaryOperator {
	return &SummaryOperator{conn: conn}
}

func (o *SummaryOperator) Run(ctx context.Context, ti scheduler.TaskInstance) error {
	def := ti.GetDefinition()
	wh, err := warehouseFor(ctx, o.conn, def)
	if err != nil {
		return err
	}

	r := NewRenderer(def, wh.Dialect())
	switch def.Strategy {
	case pipeline.StrategyInMemory:
		err = o.runInMemory(ctx, wh, r, ti)
	case pipeline.StrategyPushdown, "":
		err = run(ctx, wh, ti, r.RebuildSummary())
	default:
		return errors.Errorf("unknown strategy '%s'", def.Strategy)
	}
	if err != nil {
		return errors.Wrapf(err, "failed to rebuild '%s'", def.SummaryTable())
	}

	rows, err := count(ctx, wh, r.CountSummaries())
	if err != nil {
		return errors.Wrapf(err, "failed to count the rows of '%s'", def.SummaryTable())
	}
	ti.SetOutput("rows", strconv.FormatInt(rows, 10))

	return nil
}

func (o *SummaryOperator) runInMemory(ctx context.Context, wh Warehouse, r *Renderer, ti scheduler.TaskInstance) error {
	var channels []session.ChannelAssignment
	var timestamps []session.SessionTimestamp

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := wh.Select(gctx, r.SelectChannels())
		if err != nil {
			return errors.Wrap(err, "failed to read the channel assignments")
		}
		channels, err = parseChannels(res)
		return err
	})
	g.Go(func() error {
		res, err := wh.Select(gctx, r.SelectTimestamps())
		if err != nil {
			return errors.Wrap(err, "failed to read the session timestamps")
		}
		timestamps, err = parseTimestamps(res)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	result, err := session.Build(channels, timestamps)
	if err != nil {
		return err
	}

	fingerprint, err := session.Fingerprint(result.Summaries)
	if err != nil {
		return err
	}

	if err := run(ctx, wh, ti, r.WriteSummaries(result.Summaries, ti.GetDefinition().BatchSize)); err != nil {
		return err
	}

	ti.SetOutput("duplicates", strconv.Itoa(len(result.Duplicates)))
	ti.SetOutput("fingerprint", fingerprint)
	if l, ok := ctx.Value(executor.ContextLogger).(logger.Logger); ok && l != nil {
		l.Infow("built session summaries in memory",
			"channels", len(channels), "timestamps", len(timestamps),
			"summaries", len(result.Summaries), "duplicates", len(result.Duplicates),
			"fingerprint", fingerprint)
	}

	return nil
}

func parseChannels(res [][]interface{}) ([]session.ChannelAssignment, error) {
	rows := make([]session.ChannelAssignment, 0, len(res))
	for i, row := range res {
		if len(row) != 3 {
			return nil, errors.Errorf("channel row %d has %d columns, expected 3", i, len(row))
		}

		values := make([]string, 3)
		for j, v := range row {
			s, err := helpers.CastToString(v)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to read channel row %d", i)
			}
			values[j] = s
		}

		rows = append(rows, session.ChannelAssignment{UserID: values[0], SessionID: values[1], Channel: values[2]})
	}

	return rows, nil
}

func parseTimestamps(res [][]interface{}) ([]session.SessionTimestamp, error) {
	rows := make([]session.SessionTimestamp, 0, len(res))
	for i, row := range res {
		if len(row) != 2 {
			return nil, errors.Errorf("timestamp row %d has %d columns, expected 2", i, len(row))
		}

		sessionID, err := helpers.CastToString(row[0])
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read timestamp row %d", i)
		}
		ts, err := helpers.CastToTimestamp(row[1])
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read timestamp row %d", i)
		}

		rows = append(rows, session.SessionTimestamp{SessionID: sessionID, Timestamp: ts})
	}

	return rows, nil
}

type DuplicatesViewOperator struct {
	conn config.ConnectionGetter
}

func NewDuplicatesViewOperator(conn config.ConnectionGetter) *DuplicatesViewOperator {
	return &DuplicatesViewOperator{conn: conn}
}

func (o *DuplicatesViewOperator) Run(ctx context.Context, ti scheduler.TaskInstance) error {
	def := ti.GetDefinition()
	wh, err := warehouseFor(ctx, o.conn, def)
	if err != nil {
		return err
	}

	r := NewRenderer(def, wh.Dialect())
	if err := run(ctx, wh, ti, r.DuplicatesView()); err != nil {
		return errors.Wrapf(err, "failed to create the view '%s'", def.DuplicatesView())
	}

	duplicates, err := wh.Select(ctx, r.SelectDuplicates())
	if err != nil {
		return errors.Wrapf(err, "failed to read the view '%s'", def.DuplicatesView())
	}
	ti.SetOutput("duplicates", strconv.Itoa(len(duplicates)))

	return nil
}
