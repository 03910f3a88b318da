package eval

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/glasswing-ai/tracelens/internal/domain"
	"github.com/glasswing-ai/tracelens/internal/ingestion"
	"github.com/glasswing-ai/tracelens/internal/repository"
)

// Executor runs one pending job execution end to end: render the prompt from
// stored trace data, obtain a structured completion, persist the score, and
// close the execution.
type Executor struct {
	catalog   repository.Catalog
	store     repository.TelemetryStore
	cache     repository.RecordCache
	completer Completer
	log       *zap.Logger
	newID     func() string
	now       func() time.Time
}

func NewExecutor(catalog repository.Catalog, store repository.TelemetryStore, cache repository.RecordCache, completer Completer, log *zap.Logger) *Executor {
	return &Executor{
		catalog:   catalog,
		store:     store,
		cache:     cache,
		completer: completer,
		log:       log,
		newID:     uuid.NewString,
		now:       time.Now,
	}
}

// Evaluate processes one job execution. An execution cancelled between
// enqueue and pickup is deleted and skipped without error; everything else
// runs the full evaluation and transitions the execution to COMPLETED.
func (e *Executor) Evaluate(ctx context.Context, projectID, jobExecutionID string) error {
	execution, err := e.catalog.JobExecution(ctx, projectID, jobExecutionID)
	if err != nil {
		return fmt.Errorf("failed to load job execution %s: %w", jobExecutionID, err)
	}

	if execution.Status == domain.JobExecutionCancelled {
		e.log.Info("Execution was cancelled before pickup, deleting",
			zap.String("project_id", projectID),
			zap.String("job_execution_id", jobExecutionID))
		return e.catalog.DeleteJobExecution(ctx, projectID, jobExecutionID)
	}

	if execution.JobInputTraceID == "" {
		return fmt.Errorf("%w: job execution %s has no input trace", domain.ErrValidation, jobExecutionID)
	}

	config, err := e.catalog.JobConfiguration(ctx, projectID, execution.JobConfigurationID)
	if err != nil {
		return fmt.Errorf("failed to load job configuration %s: %w", execution.JobConfigurationID, err)
	}
	template, err := e.catalog.EvalTemplate(ctx, projectID, config.EvalTemplateID)
	if err != nil {
		return fmt.Errorf("failed to load eval template %s: %w", config.EvalTemplateID, err)
	}

	values, err := e.extractVariables(ctx, projectID, execution.JobInputTraceID, template.Vars, config.VariableMapping)
	if err != nil {
		return fmt.Errorf("failed to extract template variables: %w", err)
	}

	prompt, err := RenderPrompt(template.Prompt, values)
	if err != nil {
		return err
	}

	schema, err := evaluationSchema(template.OutputSchema)
	if err != nil {
		return fmt.Errorf("failed to build evaluation schema: %w", err)
	}

	raw, err := e.completer.Complete(ctx, CompletionRequest{
		Messages:    []ChatMessage{{Role: RoleSystem, Content: prompt}},
		Provider:    template.Provider,
		Model:       template.Model,
		ModelParams: template.ModelParams,
		Tool: ToolSchema{
			Name:        "evaluate",
			Description: "Score the observed behavior and explain the verdict.",
			Parameters:  schema,
		},
	})
	if err != nil {
		return fmt.Errorf("completion failed for execution %s: %w", jobExecutionID, err)
	}

	evaluation, err := parseEvaluation(raw, schema)
	if err != nil {
		return err
	}

	scoreID, err := e.persistScore(ctx, projectID, execution.JobInputTraceID, config.ScoreName, evaluation)
	if err != nil {
		return fmt.Errorf("failed to persist eval score: %w", err)
	}

	if err := e.catalog.CompleteJobExecution(ctx, projectID, jobExecutionID, scoreID); err != nil {
		return fmt.Errorf("failed to complete job execution %s: %w", jobExecutionID, err)
	}

	e.log.Info("Completed eval job execution",
		zap.String("project_id", projectID),
		zap.String("job_execution_id", jobExecutionID),
		zap.String("score_id", scoreID),
		zap.Float64("score", evaluation.Score))
	return nil
}

// persistScore writes the produced score through the same cache-then-store
// path ingestion uses, so follow-up reads observe it immediately.
func (e *Executor) persistScore(ctx context.Context, projectID, traceID, name string, evaluation *Evaluation) (string, error) {
	nowMicros := e.now().UnixMicro()
	score := &domain.ScoreRecord{
		ID:        e.newID(),
		ProjectID: projectID,
		TraceID:   traceID,
		Name:      &name,
		Value:     &evaluation.Score,
		Source:    domain.ScoreSourceEval,
		Comment:   &evaluation.Reasoning,
		Timestamp: nowMicros,
		CreatedAt: nowMicros,
	}
	if err := ingestion.WriteRecords(ctx, e.cache, domain.TableScores, projectID, []*domain.ScoreRecord{score}, e.store.InsertScores, e.log); err != nil {
		return "", err
	}
	return score.ID, nil
}
