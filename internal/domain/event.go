package domain

import (
	"encoding/json"
	"time"
)

// EventType tags an ingestion event with the SDK operation that produced it.
type EventType string

const (
	TraceCreate       EventType = "trace-create"
	ObservationCreate EventType = "observation-create"
	ObservationUpdate EventType = "observation-update"
	EventCreate       EventType = "event-create"
	SpanCreate        EventType = "span-create"
	SpanUpdate        EventType = "span-update"
	GenerationCreate  EventType = "generation-create"
	GenerationUpdate  EventType = "generation-update"
	ScoreCreate       EventType = "score-create"
	SDKLog            EventType = "sdk-log"
)

// IngestionEvent is one element of an ingestion batch message. The body is
// decoded lazily per event type; SDKs send partial bodies, so every body
// field is optional.
type IngestionEvent struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Body      json.RawMessage `json:"body"`
}

// TraceBody is the body of a trace-create event.
type TraceBody struct {
	ID        *string         `json:"id"`
	Timestamp *time.Time      `json:"timestamp"`
	Name      *string         `json:"name"`
	UserID    *string         `json:"userId"`
	Input     json.RawMessage `json:"input"`
	Output    json.RawMessage `json:"output"`
	SessionID *string         `json:"sessionId"`
	Release   *string         `json:"release"`
	Version   *string         `json:"version"`
	Metadata  json.RawMessage `json:"metadata"`
	Tags      []string        `json:"tags"`
	Public    *bool           `json:"public"`
}

// Usage carries token counts and costs reported by the SDK. All fields are
// independently optional and may be filled in later by the cost matcher.
type Usage struct {
	Input      *int64   `json:"input"`
	Output     *int64   `json:"output"`
	Total      *int64   `json:"total"`
	Unit       *string  `json:"unit"`
	InputCost  *float64 `json:"inputCost"`
	OutputCost *float64 `json:"outputCost"`
	TotalCost  *float64 `json:"totalCost"`
}

// ObservationBody is the body of all observation-kind events
// (observation/event/span/generation create and update).
type ObservationBody struct {
	ID                  *string         `json:"id"`
	TraceID             *string         `json:"traceId"`
	Type                ObservationType `json:"type"`
	Name                *string         `json:"name"`
	StartTime           *time.Time      `json:"startTime"`
	EndTime             *time.Time      `json:"endTime"`
	CompletionStartTime *time.Time      `json:"completionStartTime"`
	Metadata            json.RawMessage `json:"metadata"`
	Input               json.RawMessage `json:"input"`
	Output              json.RawMessage `json:"output"`
	Level               *string         `json:"level"`
	StatusMessage       *string         `json:"statusMessage"`
	ParentObservationID *string         `json:"parentObservationId"`
	Version             *string         `json:"version"`
	Model               *string         `json:"model"`
	ModelParameters     json.RawMessage `json:"modelParameters"`
	PromptName          *string         `json:"promptName"`
	PromptVersion       *int            `json:"promptVersion"`
	Usage               *Usage          `json:"usage"`
}

// ScoreBody is the body of a score-create event.
type ScoreBody struct {
	ID            *string  `json:"id"`
	TraceID       *string  `json:"traceId"`
	ObservationID *string  `json:"observationId"`
	Name          *string  `json:"name"`
	Value         *float64 `json:"value"`
	Comment       *string  `json:"comment"`
}
