package repository

import (
	"context"
	"time"

	"github.com/glasswing-ai/tracelens/internal/domain"
)

// CacheEntry is one record in its cached JSON form.
type CacheEntry struct {
	ID    string
	Value []byte
}

// RecordCache is the fast key-value tier in front of the columnar store.
// It is best-effort: a cache failure must never block a store write.
// Keys are table-scoped: "{table}:{id}-{projectId}".
type RecordCache interface {
	// GetMany returns the cached JSON for each id, nil for misses, in the
	// order of ids.
	GetMany(ctx context.Context, table domain.Table, projectID string, ids []string) ([][]byte, error)

	// SetMany writes every entry with the given TTL, replacing prior values.
	SetMany(ctx context.Context, table domain.Table, projectID string, entries []CacheEntry, ttl time.Duration) error

	Close() error
}

// TelemetryStore is the columnar store holding traces, observations and
// scores. Inserts are append-only; reads collapse duplicates to the latest
// version of each (id, project_id).
type TelemetryStore interface {
	InitSchema(ctx context.Context) error

	InsertTraces(ctx context.Context, records []*domain.TraceRecord) error
	InsertObservations(ctx context.Context, records []*domain.ObservationRecord) error
	InsertScores(ctx context.Context, records []*domain.ScoreRecord) error

	SelectLatestTraces(ctx context.Context, projectID string, ids []string) ([]*domain.TraceRecord, error)
	SelectLatestObservations(ctx context.Context, projectID string, ids []string) ([]*domain.ObservationRecord, error)
	SelectLatestScores(ctx context.Context, projectID string, ids []string) ([]*domain.ScoreRecord, error)

	// TraceMatchesFilter runs the zero-or-one-row existence check used by
	// the eval trigger engine.
	TraceMatchesFilter(ctx context.Context, projectID, traceID string, filter []domain.FilterCondition) (bool, error)

	// SelectTraceColumn returns the stringified value of one whitelisted
	// trace column for a single trace.
	SelectTraceColumn(ctx context.Context, projectID, traceID string, column domain.ColumnDef) (string, error)

	// SelectObservationColumn returns the stringified value of one
	// whitelisted observation column, selected by trace, name and type.
	SelectObservationColumn(ctx context.Context, projectID, traceID, name string, obsType domain.ObservationType, column domain.ColumnDef) (string, error)

	Ping(ctx context.Context) error
	Close() error
}

// Catalog is the relational side: pricing/token-model definitions, prompts
// and eval templates are read-only; job executions are owned by the eval
// engine.
type Catalog interface {
	// FindModel resolves a pricing definition by (project, model, unit).
	// Returns (nil, nil) when no definition matches.
	FindModel(ctx context.Context, projectID, model, unit string) (*domain.ModelDefinition, error)

	// FindPrompt resolves a prompt by (project, name, version).
	// Returns (nil, nil) when none matches.
	FindPrompt(ctx context.Context, projectID, name string, version int) (*domain.Prompt, error)

	JobConfigurations(ctx context.Context, projectID string, jobType domain.JobType) ([]*domain.JobConfiguration, error)
	JobConfiguration(ctx context.Context, projectID, id string) (*domain.JobConfiguration, error)
	EvalTemplate(ctx context.Context, projectID, id string) (*domain.EvalTemplate, error)

	// FindJobExecution returns the execution for (configuration, trace),
	// or (nil, nil) when none exists.
	FindJobExecution(ctx context.Context, projectID, configID, traceID string) (*domain.JobExecution, error)
	JobExecution(ctx context.Context, projectID, id string) (*domain.JobExecution, error)
	InsertJobExecution(ctx context.Context, execution *domain.JobExecution) error
	UpdateJobExecutionStatus(ctx context.Context, projectID, id string, status domain.JobExecutionStatus) error
	CompleteJobExecution(ctx context.Context, projectID, id, scoreID string) error
	DeleteJobExecution(ctx context.Context, projectID, id string) error

	Close()
}
