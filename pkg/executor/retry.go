package executor

import (
	"context"
	"strconv"
	"time"

	"github.com/bruin-data/session-summary/pkg/logger"
	"github.com/bruin-data/session-summary/pkg/scheduler"
	"github.com/bruin-data/session-summary/pkg/session"
)

// Retrying re-runs the wrapped operator when it fails with a retryable error. Retries is the number of extra
// attempts after the first one.
type Retrying struct {
	Operator Operator
	Retries  int
	Delay    time.Duration
	Logger   logger.Logger
}

func WithRetries(op Operator, retries int, delay time.Duration, l logger.Logger) Operator {
	if retries <= 0 {
		return op
	}

	return &Retrying{Operator: op, Retries: retries, Delay: delay, Logger: l}
}

func (r *Retrying) Run(ctx context.Context, ti scheduler.TaskInstance) error {
	var err error
	attempt := 0
	for {
		attempt++
		err = r.Operator.Run(ctx, ti)
		ti.SetOutput("attempts", strconv.Itoa(attempt))
		if err == nil {
			return nil
		}

		if attempt > r.Retries || !session.IsRetryable(err) {
			return err
		}

		if r.Logger != nil {
			r.Logger.Warnf("task '%s' failed on attempt %d, retrying in %s: %v", ti.GetHumanID(), attempt, r.Delay, err)
		}

		select {
		case <-ctx.Done():
			return err
		case <-time.After(r.Delay):
		}
	}
}
