package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"

	"github.com/glasswing-ai/tracelens/internal/domain"
	"github.com/glasswing-ai/tracelens/internal/metrics"
	"github.com/glasswing-ai/tracelens/internal/queue"
)

// retryBaseDelay is the first retry delay; each further attempt doubles it.
const retryBaseDelay = 1 * time.Second

// Evaluator runs one job execution.
type Evaluator interface {
	Evaluate(ctx context.Context, projectID, jobExecutionID string) error
}

// Requeuer re-publishes a failed execution for a later attempt.
type Requeuer interface {
	Requeue(ctx context.Context, event queue.EvalExecutionEvent, attempt int, delay time.Duration) error
}

// ExecutionHandler runs eval executions with a bounded retry budget.
// Transient failures are re-enqueued with exponential backoff; validation
// failures and exhausted budgets are terminal.
type ExecutionHandler struct {
	executor    Evaluator
	requeue     Requeuer
	maxAttempts int
	log         *zap.Logger
}

func NewExecutionHandler(executor Evaluator, requeue Requeuer, maxAttempts int, log *zap.Logger) *ExecutionHandler {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &ExecutionHandler{
		executor:    executor,
		requeue:     requeue,
		maxAttempts: maxAttempts,
		log:         log,
	}
}

func (h *ExecutionHandler) Handle(ctx context.Context, msg types.Message) Disposition {
	var event queue.EvalExecutionEvent
	if err := json.Unmarshal([]byte(aws.ToString(msg.Body)), &event); err != nil {
		h.log.Warn("Dropping malformed eval execution message",
			zap.String("message_id", aws.ToString(msg.MessageId)),
			zap.Error(err))
		metrics.IncMessagesDropped("eval_execution")
		return Drop
	}
	if event.ProjectID == "" || event.JobExecutionID == "" {
		h.log.Warn("Dropping incomplete eval execution message",
			zap.String("message_id", aws.ToString(msg.MessageId)))
		metrics.IncMessagesDropped("eval_execution")
		return Drop
	}

	err := h.executor.Evaluate(ctx, event.ProjectID, event.JobExecutionID)
	if err == nil {
		metrics.IncEvalExecution("completed")
		return Ack
	}

	if errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrNotFound) {
		h.log.Error("Eval execution failed terminally",
			zap.String("job_execution_id", event.JobExecutionID),
			zap.Error(err))
		metrics.IncEvalExecution("failed")
		return Drop
	}

	attempt := messageAttempt(msg) + 1
	if attempt >= h.maxAttempts {
		h.log.Error("Eval execution failed after final attempt",
			zap.String("job_execution_id", event.JobExecutionID),
			zap.Int("attempts", attempt),
			zap.Error(err))
		metrics.IncEvalExecution("failed")
		return Drop
	}

	delay := retryBaseDelay << (attempt - 1)
	h.log.Warn("Eval execution failed, re-enqueueing",
		zap.String("job_execution_id", event.JobExecutionID),
		zap.Int("attempt", attempt),
		zap.Duration("delay", delay),
		zap.Error(err))
	if err := h.requeue.Requeue(ctx, event, attempt, delay); err != nil {
		h.log.Error("Failed to re-enqueue eval execution, leaving message in flight",
			zap.String("job_execution_id", event.JobExecutionID),
			zap.Error(err))
		return Retry
	}
	metrics.IncEvalRetries()
	return Drop
}
