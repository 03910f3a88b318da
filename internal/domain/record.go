package domain

import "fmt"

// ObservationType distinguishes the three observation kinds.
type ObservationType string

const (
	ObservationEvent      ObservationType = "EVENT"
	ObservationSpan       ObservationType = "SPAN"
	ObservationGeneration ObservationType = "GENERATION"
)

// ScoreSource tags where a score came from.
type ScoreSource string

const (
	ScoreSourceAPI  ScoreSource = "API"
	ScoreSourceEval ScoreSource = "EVAL"
)

// Table identifies one of the columnar store tables.
type Table string

const (
	TableTraces       Table = "traces"
	TableObservations Table = "observations"
	TableScores       Table = "scores"
)

// ProtectedFields lists the identity/origin fields that must never be
// overwritten once first written, per table. The earliest-seen value wins
// for these in every merge, intra-batch and cross-state alike.
func (t Table) ProtectedFields() []string {
	switch t {
	case TableTraces:
		return []string{"id", "project_id", "name", "timestamp", "created_at"}
	case TableObservations:
		return []string{"id", "project_id", "trace_id", "start_time", "created_at"}
	case TableScores:
		return []string{"id", "project_id", "trace_id", "timestamp", "created_at"}
	}
	return nil
}

// Record is implemented by the three canonical record shapes. Identity is
// (id, project_id); records are logically mutable via repeated upserts even
// though the store itself is append-only.
type Record interface {
	RecordID() string
	RecordProject() string
	RecordTable() Table
	Validate() error
}

// TraceRecord is the canonical trace shape in insert form. Optional fields
// are pointers so that absent fields never erase prior data on merge; all
// epoch fields are microseconds.
type TraceRecord struct {
	ID         string            `json:"id"`
	Timestamp  int64             `json:"timestamp,omitempty"`
	Name       *string           `json:"name,omitempty"`
	UserID     *string           `json:"user_id,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Release    *string           `json:"release,omitempty"`
	Version    *string           `json:"version,omitempty"`
	ProjectID  string            `json:"project_id"`
	Public     *bool             `json:"public,omitempty"`
	Bookmarked *bool             `json:"bookmarked,omitempty"`
	Tags       []string          `json:"tags,omitempty"`
	Input      *string           `json:"input,omitempty"`
	Output     *string           `json:"output,omitempty"`
	SessionID  *string           `json:"session_id,omitempty"`
	CreatedAt  int64             `json:"created_at,omitempty"`
	UpdatedAt  int64             `json:"updated_at,omitempty"`
}

func (r *TraceRecord) RecordID() string      { return r.ID }
func (r *TraceRecord) RecordProject() string { return r.ProjectID }
func (r *TraceRecord) RecordTable() Table    { return TableTraces }

func (r *TraceRecord) Validate() error {
	if r.ID == "" || r.ProjectID == "" {
		return fmt.Errorf("%w: trace record requires id and project_id", ErrValidation)
	}
	if r.Timestamp <= 0 {
		return fmt.Errorf("%w: trace %s has no timestamp", ErrValidation, r.ID)
	}
	return nil
}

// ObservationRecord is the canonical observation shape in insert form.
type ObservationRecord struct {
	ID                  string            `json:"id"`
	TraceID             *string           `json:"trace_id,omitempty"`
	ProjectID           string            `json:"project_id"`
	Type                ObservationType   `json:"type,omitempty"`
	ParentObservationID *string           `json:"parent_observation_id,omitempty"`
	StartTime           int64             `json:"start_time,omitempty"`
	EndTime             *int64            `json:"end_time,omitempty"`
	CompletionStartTime *int64            `json:"completion_start_time,omitempty"`
	Name                *string           `json:"name,omitempty"`
	Metadata            map[string]string `json:"metadata,omitempty"`
	Level               *string           `json:"level,omitempty"`
	StatusMessage       *string           `json:"status_message,omitempty"`
	Version             *string           `json:"version,omitempty"`
	Input               *string           `json:"input,omitempty"`
	Output              *string           `json:"output,omitempty"`
	Model               *string           `json:"model,omitempty"`
	InternalModelID     *string           `json:"internal_model_id,omitempty"`
	ModelParameters     *string           `json:"model_parameters,omitempty"`
	InputUsage          *int64            `json:"input_usage,omitempty"`
	OutputUsage         *int64            `json:"output_usage,omitempty"`
	TotalUsage          *int64            `json:"total_usage,omitempty"`
	Unit                *string           `json:"unit,omitempty"`
	InputCost           *float64          `json:"input_cost,omitempty"`
	OutputCost          *float64          `json:"output_cost,omitempty"`
	TotalCost           *float64          `json:"total_cost,omitempty"`
	PromptID            *string           `json:"prompt_id,omitempty"`
	CreatedAt           int64             `json:"created_at,omitempty"`
}

func (r *ObservationRecord) RecordID() string      { return r.ID }
func (r *ObservationRecord) RecordProject() string { return r.ProjectID }
func (r *ObservationRecord) RecordTable() Table    { return TableObservations }

func (r *ObservationRecord) Validate() error {
	if r.ID == "" || r.ProjectID == "" {
		return fmt.Errorf("%w: observation record requires id and project_id", ErrValidation)
	}
	if r.StartTime <= 0 {
		return fmt.Errorf("%w: observation %s has no start_time", ErrValidation, r.ID)
	}
	switch r.Type {
	case ObservationEvent, ObservationSpan, ObservationGeneration:
	default:
		return fmt.Errorf("%w: observation %s has invalid type %q", ErrValidation, r.ID, r.Type)
	}
	return nil
}

// ScoreRecord is the canonical score shape in insert form.
type ScoreRecord struct {
	ID            string      `json:"id"`
	Timestamp     int64       `json:"timestamp,omitempty"`
	ProjectID     string      `json:"project_id"`
	Name          *string     `json:"name,omitempty"`
	Value         *float64    `json:"value,omitempty"`
	Source        ScoreSource `json:"source,omitempty"`
	Comment       *string     `json:"comment,omitempty"`
	TraceID       string      `json:"trace_id,omitempty"`
	ObservationID *string     `json:"observation_id,omitempty"`
	CreatedAt     int64       `json:"created_at,omitempty"`
}

func (r *ScoreRecord) RecordID() string      { return r.ID }
func (r *ScoreRecord) RecordProject() string { return r.ProjectID }
func (r *ScoreRecord) RecordTable() Table    { return TableScores }

func (r *ScoreRecord) Validate() error {
	if r.ID == "" || r.ProjectID == "" {
		return fmt.Errorf("%w: score record requires id and project_id", ErrValidation)
	}
	if r.TraceID == "" {
		return fmt.Errorf("%w: score %s has no trace_id", ErrValidation, r.ID)
	}
	if r.Timestamp <= 0 {
		return fmt.Errorf("%w: score %s has no timestamp", ErrValidation, r.ID)
	}
	return nil
}
