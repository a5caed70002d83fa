// Package sensor holds the precondition checks that gate a run on an upstream workflow.
package sensor

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/bruin-data/session-summary/pkg/poll"
	"github.com/bruin-data/session-summary/pkg/session"
	"github.com/pkg/errors"
)

type Mode string

const (
	ModeWait Mode = "wait"
	ModeOnce Mode = "once"
	ModeSkip Mode = "skip"

	maxBackoffSteps = 10
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "":
		return ModeWait, nil
	case ModeWait, ModeOnce, ModeSkip:
		return Mode(s), nil
	}

	return "", errors.Errorf("invalid sensor mode '%s', expected one of 'wait', 'once' or 'skip'", s)
}

// Poker reports whether the precondition holds at the moment of the call.
type Poker interface {
	Poke(ctx context.Context) (bool, error)
}

type PokerFunc func(ctx context.Context) (bool, error)

func (f PokerFunc) Poke(ctx context.Context) (bool, error) {
	return f(ctx)
}

// Always is ready on the first poke.
type Always struct{}

func (Always) Poke(context.Context) (bool, error) {
	return true, nil
}

type Options struct {
	Workflow           string
	Task               string
	Timeout            time.Duration
	PokeInterval       time.Duration
	ExponentialBackoff bool
	Mode               Mode

	// Output receives a line per unsuccessful poke, it may be nil.
	Output io.Writer
}

// Wait pokes until the precondition holds. In wait mode it gives up after the timeout with a
// PreconditionTimeoutError; in once mode a single negative poke is a failure; skip mode never pokes.
func Wait(ctx context.Context, poker Poker, opts Options) error {
	switch opts.Mode {
	case ModeSkip:
		return nil
	case ModeOnce:
		ready, err := poker.Poke(ctx)
		if err != nil {
			return err
		}
		if !ready {
			return errors.Wrapf(session.ErrUpstreamNotReady, "upstream task '%s.%s' has not succeeded yet", opts.Workflow, opts.Task)
		}
		return nil
	}

	timer := &poll.Timer{BaseDuration: opts.PokeInterval, MaxDuration: opts.Timeout}
	if opts.ExponentialBackoff {
		timer.MaxRetry = maxBackoffSteps
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	timedOut := func() error {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		return &session.PreconditionTimeoutError{Workflow: opts.Workflow, Task: opts.Task, Timeout: opts.Timeout}
	}

	for {
		ready, err := poker.Poke(timeoutCtx)
		if err != nil {
			if timeoutCtx.Err() != nil {
				return timedOut()
			}
			return err
		}
		if ready {
			return nil
		}

		wait := timer.Duration()
		if opts.Output != nil {
			fmt.Fprintf(opts.Output, "Upstream task '%s.%s' is not ready yet, poking again in %s\n", opts.Workflow, opts.Task, wait)
		}

		select {
		case <-timeoutCtx.Done():
			return timedOut()
		case <-time.After(wait):
			timer.Increase()
		}
	}
}
