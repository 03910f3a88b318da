package queue

import (
	"github.com/glasswing-ai/tracelens/internal/domain"
)

// AttemptAttribute carries the zero-based delivery attempt of a message that
// was re-enqueued after a failure. Absent on first delivery.
const AttemptAttribute = "Attempt"

// IngestionBatchMessage is one SDK batch scoped to a single project.
type IngestionBatchMessage struct {
	ProjectID string                  `json:"project_id"`
	Batch     []domain.IngestionEvent `json:"batch"`
}

// TraceUpsertEvent signals that a trace row was created or updated.
type TraceUpsertEvent struct {
	ProjectID string `json:"project_id"`
	TraceID   string `json:"trace_id"`
}

// EvalExecutionEvent schedules one pending job execution.
type EvalExecutionEvent struct {
	ProjectID      string `json:"project_id"`
	JobExecutionID string `json:"job_execution_id"`
}
