package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// TraceUpsertPublisher fans out one notification per written trace.
type TraceUpsertPublisher struct {
	sender Sender
	log    *zap.Logger
}

func NewTraceUpsertPublisher(sender Sender, log *zap.Logger) *TraceUpsertPublisher {
	return &TraceUpsertPublisher{sender: sender, log: log}
}

func (p *TraceUpsertPublisher) PublishTraceUpserts(ctx context.Context, projectID string, traceIDs []string) error {
	for _, traceID := range traceIDs {
		body, err := json.Marshal(TraceUpsertEvent{ProjectID: projectID, TraceID: traceID})
		if err != nil {
			return fmt.Errorf("failed to marshal trace upsert event: %w", err)
		}
		if err := p.sender.Send(ctx, body, 0, nil); err != nil {
			return fmt.Errorf("failed to publish trace upsert for %s: %w", traceID, err)
		}
	}
	if len(traceIDs) > 0 {
		p.log.Debug("Published trace upserts",
			zap.String("project_id", projectID),
			zap.Int("count", len(traceIDs)))
	}
	return nil
}

// EvalExecutionPublisher schedules job executions, carrying the delivery
// attempt as a message attribute so consumers can bound retries.
type EvalExecutionPublisher struct {
	sender Sender
	log    *zap.Logger
}

func NewEvalExecutionPublisher(sender Sender, log *zap.Logger) *EvalExecutionPublisher {
	return &EvalExecutionPublisher{sender: sender, log: log}
}

// EnqueueEvaluation publishes a first-attempt execution message after the
// configured delay.
func (p *EvalExecutionPublisher) EnqueueEvaluation(ctx context.Context, projectID, jobExecutionID string, delay time.Duration) error {
	return p.publish(ctx, EvalExecutionEvent{ProjectID: projectID, JobExecutionID: jobExecutionID}, delay, 0)
}

// Requeue re-publishes a failed execution message for the given attempt.
func (p *EvalExecutionPublisher) Requeue(ctx context.Context, event EvalExecutionEvent, attempt int, delay time.Duration) error {
	return p.publish(ctx, event, delay, attempt)
}

func (p *EvalExecutionPublisher) publish(ctx context.Context, event EvalExecutionEvent, delay time.Duration, attempt int) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal eval execution event: %w", err)
	}
	var attributes map[string]string
	if attempt > 0 {
		attributes = map[string]string{AttemptAttribute: strconv.Itoa(attempt)}
	}
	if err := p.sender.Send(ctx, body, delay, attributes); err != nil {
		return fmt.Errorf("failed to publish eval execution %s: %w", event.JobExecutionID, err)
	}
	p.log.Debug("Published eval execution",
		zap.String("job_execution_id", event.JobExecutionID),
		zap.Int("attempt", attempt),
		zap.Duration("delay", delay))
	return nil
}
