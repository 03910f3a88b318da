package eval

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/glasswing-ai/tracelens/internal/domain"
	"github.com/glasswing-ai/tracelens/internal/repository"
)

// ExecutionQueue enqueues an execution for later processing, honoring the
// configured start delay.
type ExecutionQueue interface {
	EnqueueEvaluation(ctx context.Context, projectID, jobExecutionID string, delay time.Duration) error
}

// Trigger decides, on every trace upsert, which evaluation jobs to create or
// cancel for that trace.
type Trigger struct {
	catalog repository.Catalog
	store   repository.TelemetryStore
	queue   ExecutionQueue
	log     *zap.Logger
	newID   func() string
	sample  func() float64
}

func NewTrigger(catalog repository.Catalog, store repository.TelemetryStore, queue ExecutionQueue, log *zap.Logger) *Trigger {
	return &Trigger{
		catalog: catalog,
		store:   store,
		queue:   queue,
		log:     log,
		newID:   uuid.NewString,
		sample:  rand.Float64,
	}
}

// HandleTraceUpsert evaluates every eval configuration of the project against
// the upserted trace. A matching trace gets at most one execution per
// configuration; a trace that stops matching gets its pending execution
// cancelled.
func (t *Trigger) HandleTraceUpsert(ctx context.Context, projectID, traceID string) error {
	configs, err := t.catalog.JobConfigurations(ctx, projectID, domain.JobTypeEval)
	if err != nil {
		return fmt.Errorf("failed to load job configurations: %w", err)
	}
	if len(configs) == 0 {
		t.log.Debug("No eval configurations for project", zap.String("project_id", projectID))
		return nil
	}

	for _, config := range configs {
		if err := t.applyConfiguration(ctx, config, projectID, traceID); err != nil {
			return err
		}
	}
	return nil
}

func (t *Trigger) applyConfiguration(ctx context.Context, config *domain.JobConfiguration, projectID, traceID string) error {
	matched, err := t.store.TraceMatchesFilter(ctx, projectID, traceID, config.Filter)
	if err != nil {
		return fmt.Errorf("failed to match trace against filter of configuration %s: %w", config.ID, err)
	}

	existing, err := t.catalog.FindJobExecution(ctx, projectID, config.ID, traceID)
	if err != nil {
		return fmt.Errorf("failed to look up job execution: %w", err)
	}

	if !matched {
		if existing != nil && existing.Status == domain.JobExecutionPending {
			t.log.Info("Trace no longer matches eval filter, cancelling execution",
				zap.String("project_id", projectID),
				zap.String("trace_id", traceID),
				zap.String("job_execution_id", existing.ID))
			if err := t.catalog.UpdateJobExecutionStatus(ctx, projectID, existing.ID, domain.JobExecutionCancelled); err != nil {
				return fmt.Errorf("failed to cancel job execution %s: %w", existing.ID, err)
			}
		}
		return nil
	}

	if existing != nil {
		// Exactly-once per (configuration, trace): reprocessing the same
		// trace must not fan out duplicate evaluations.
		t.log.Debug("Execution already exists for trace, skipping",
			zap.String("trace_id", traceID),
			zap.String("job_configuration_id", config.ID))
		return nil
	}

	if config.Sampling < 1 && t.sample() > config.Sampling {
		t.log.Debug("Trace matched but was not sampled",
			zap.String("trace_id", traceID),
			zap.Float64("sampling", config.Sampling))
		return nil
	}

	execution := &domain.JobExecution{
		ID:                 t.newID(),
		ProjectID:          projectID,
		JobConfigurationID: config.ID,
		JobInputTraceID:    traceID,
		Status:             domain.JobExecutionPending,
	}
	if err := t.catalog.InsertJobExecution(ctx, execution); err != nil {
		return fmt.Errorf("failed to create job execution: %w", err)
	}

	t.log.Info("Created eval job execution",
		zap.String("project_id", projectID),
		zap.String("trace_id", traceID),
		zap.String("job_execution_id", execution.ID),
		zap.Duration("delay", config.Delay))

	if err := t.queue.EnqueueEvaluation(ctx, projectID, execution.ID, config.Delay); err != nil {
		return fmt.Errorf("failed to enqueue job execution %s: %w", execution.ID, err)
	}
	return nil
}
