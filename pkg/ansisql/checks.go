package ansisql

import (
	"context"

	"github.com/bruin-data/session-summary/pkg/config"
	"github.com/bruin-data/session-summary/pkg/pipeline"
	"github.com/bruin-data/session-summary/pkg/scheduler"
	"github.com/bruin-data/session-summary/pkg/session"
	"github.com/pkg/errors"
)

// UniqueCheckOperator verifies that no value of the checked column appears twice in the summary table.
type UniqueCheckOperator struct {
	conn config.ConnectionGetter
}

func NewUniqueCheckOperator(conn config.ConnectionGetter) *UniqueCheckOperator {
	return &UniqueCheckOperator{conn: conn}
}

func (c *UniqueCheckOperator) Run(ctx context.Context, ti scheduler.TaskInstance) error {
	checkInstance, ok := ti.(*scheduler.CheckInstance)
	if !ok {
		return errors.New("the unique check can only run as a check instance")
	}
	if checkInstance.Check.Name != pipeline.CheckUnique {
		return errors.Errorf("unsupported check '%s'", checkInstance.Check.Name)
	}

	def := ti.GetDefinition()
	wh, err := warehouseFor(ctx, c.conn, def)
	if err != nil {
		return err
	}

	q, err := AddAnnotationComment(ctx, NewRenderer(def, wh.Dialect()).UniqueCheck(checkInstance.Check.Column), ti.GetHumanID(), ti.GetTask().Type, def.Name)
	if err != nil {
		return errors.Wrap(err, "failed to add annotation comment")
	}

	violations, err := count(ctx, wh, q)
	if err != nil {
		return errors.Wrapf(err, "failed '%s' check", checkInstance.Check.Name)
	}

	if violations != 0 {
		return &session.ConstraintViolationError{
			Table:      def.SummaryTable().String(),
			Column:     checkInstance.Check.Column,
			Violations: violations,
		}
	}

	return nil
}
