package domain

import (
	"encoding/json"
	"time"
)

// JobType is the target object kind of a job configuration.
type JobType string

const JobTypeEval JobType = "EVAL"

// JobExecutionStatus is the state of one job execution.
//
// PENDING -> COMPLETED  (score produced)
// PENDING -> CANCELLED  (trace no longer matches the filter, or the job was
//                        cancelled before execution)
type JobExecutionStatus string

const (
	JobExecutionPending   JobExecutionStatus = "PENDING"
	JobExecutionCompleted JobExecutionStatus = "COMPLETED"
	JobExecutionCancelled JobExecutionStatus = "CANCELLED"
)

// FilterCondition is one structured predicate over trace columns. Columns
// are matched against a whitelist before any SQL is built from them.
type FilterCondition struct {
	Column   string `json:"column"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

// VariableMapping binds one template variable to a column of a trace or of
// a named observation within the trace.
type VariableMapping struct {
	TemplateVariable string  `json:"templateVariable"`
	ObjectKind       string  `json:"objectKind"` // trace | generation | span | event
	ObjectName       *string `json:"objectName"`
	ColumnID         string  `json:"columnId"`
}

// JobConfiguration is a stored evaluation rule. Created and edited by
// operators elsewhere; read-only to this worker.
type JobConfiguration struct {
	ID              string
	ProjectID       string
	JobType         JobType
	EvalTemplateID  string
	ScoreName       string
	Filter          []FilterCondition
	VariableMapping []VariableMapping
	Delay           time.Duration
	Sampling        float64
}

// JobExecution is one instance of applying a configuration to one trace.
// At most one non-deleted execution exists per (configuration, trace).
type JobExecution struct {
	ID                 string
	ProjectID          string
	JobConfigurationID string
	JobInputTraceID    string
	Status             JobExecutionStatus
	JobOutputScoreID   *string
	StartTime          *time.Time
	EndTime            *time.Time
}

// EvalTemplate is a prompt template with declared variables and the output
// schema the completion must satisfy.
type EvalTemplate struct {
	ID           string
	ProjectID    string
	Name         string
	Version      int
	Prompt       string
	Vars         []string
	OutputSchema OutputSchema
	Provider     string
	Model        string
	ModelParams  json.RawMessage
}

// OutputSchema describes the required completion fields. The descriptions
// are surfaced to the model through the tool schema.
type OutputSchema struct {
	Score     string `json:"score"`
	Reasoning string `json:"reasoning"`
}

// ModelDefinition is a pricing/token-model definition resolved by
// (project, model, unit). Prices may be independently undefined.
type ModelDefinition struct {
	ID          string
	ProjectID   *string
	ModelName   string
	Unit        string
	TokenizerID *string
	InputPrice  *float64
	OutputPrice *float64
	TotalPrice  *float64
}

// Prompt is a stored prompt identified by (project, name, version),
// consulted read-only to link observations to the prompt they used.
type Prompt struct {
	ID        string
	ProjectID string
	Name      string
	Version   int
}
