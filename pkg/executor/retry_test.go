package executor

import (
	"context"
	"testing"
	"time"

	"github.com/bruin-data/session-summary/pkg/pipeline"
	"github.com/bruin-data/session-summary/pkg/scheduler"
	"github.com/bruin-data/session-summary/pkg/session"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newSummaryInstance() *scheduler.TaskRunInstance {
	return &scheduler.TaskRunInstance{
		HumanID: pipeline.TaskCreateSummary,
		Task:    &pipeline.Task{Name: pipeline.TaskCreateSummary, Type: pipeline.TaskTypeSummary},
	}
}

func TestRetrying_Run(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		errs         []error
		retries      int
		wantErr      bool
		wantAttempts string
	}{
		{
			name:         "first attempt succeeds",
			errs:         []error{nil},
			retries:      2,
			wantAttempts: "1",
		},
		{
			name:         "transient failure is retried",
			errs:         []error{errors.New("connection reset"), nil},
			retries:      2,
			wantAttempts: "2",
		},
		{
			name:         "retries are exhausted",
			errs:         []error{errors.New("connection reset"), errors.New("connection reset")},
			retries:      1,
			wantErr:      true,
			wantAttempts: "2",
		},
		{
			name:         "constraint violations are never retried",
			errs:         []error{&session.ConstraintViolationError{Table: "session_summary", Column: "sessionId", Violations: 1}},
			retries:      3,
			wantErr:      true,
			wantAttempts: "1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			instance := newSummaryInstance()
			op := new(mockOperator)
			for _, err := range tt.errs {
				op.On("Run", mock.Anything, instance).Return(err).Once()
			}

			r := WithRetries(op, tt.retries, time.Millisecond, zap.NewNop().Sugar())
			err := r.Run(context.Background(), instance)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}

			assert.Equal(t, tt.wantAttempts, instance.GetOutputs()["attempts"])
			op.AssertExpectations(t)
		})
	}
}

func TestRetrying_StopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	instance := newSummaryInstance()
	op := new(mockOperator)
	op.On("Run", mock.Anything, instance).Return(errors.New("timeout")).Once()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithRetries(op, 5, time.Hour, nil).Run(ctx, instance)
	require.EqualError(t, err, "timeout")
	op.AssertExpectations(t)
}

func TestWithRetries_NoRetriesReturnsOperator(t *testing.T) {
	t.Parallel()

	op := new(mockOperator)
	assert.Same(t, op, WithRetries(op, 0, time.Second, nil))
}
