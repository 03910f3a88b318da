package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/glasswing-ai/tracelens/internal/domain"
	"github.com/glasswing-ai/tracelens/internal/flatjson"
	"github.com/glasswing-ai/tracelens/internal/repository"
)

// Converter maps raw ingestion events into canonical insert-shaped records:
// stable ids, timestamps normalized to microsecond epoch, metadata flattened
// to a string map.
type Converter struct {
	catalog repository.Catalog
	log     *zap.Logger

	now   func() time.Time
	newID func() string
}

// NewConverter creates a converter backed by the catalog for prompt lookups
func NewConverter(catalog repository.Catalog, log *zap.Logger) *Converter {
	return &Converter{
		catalog: catalog,
		log:     log,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// ConvertTrace builds a trace record from a trace-create event
func (c *Converter) ConvertTrace(event domain.IngestionEvent, projectID string) (*domain.TraceRecord, error) {
	var body domain.TraceBody
	if err := json.Unmarshal(event.Body, &body); err != nil {
		return nil, fmt.Errorf("%w: malformed trace body: %v", domain.ErrValidation, err)
	}

	now := c.now()
	metadata, err := flatjson.Flatten(body.Metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed trace metadata: %v", domain.ErrValidation, err)
	}

	record := &domain.TraceRecord{
		ID:         orNewID(body.ID, c.newID),
		Timestamp:  epochMicros(body.Timestamp, now),
		Name:       body.Name,
		UserID:     body.UserID,
		Metadata:   metadata,
		Release:    body.Release,
		Version:    body.Version,
		ProjectID:  projectID,
		Public:     orBool(body.Public, false),
		Bookmarked: boolPtr(false),
		Tags:       body.Tags,
		Input:      stringifyRaw(body.Input),
		Output:     stringifyRaw(body.Output),
		SessionID:  body.SessionID,
		CreatedAt:  now.UnixMicro(),
		UpdatedAt:  now.UnixMicro(),
	}

	if err := record.Validate(); err != nil {
		return nil, err
	}
	return record, nil
}

// ConvertObservation builds an observation record from any observation-kind
// event. The observation type comes from the event kind except for explicit
// observation-create/update events. promptIDs maps observation body ids to
// resolved prompt ids (see ResolvePrompts).
func (c *Converter) ConvertObservation(event domain.IngestionEvent, projectID string, promptIDs map[string]string) (*domain.ObservationRecord, error) {
	var body domain.ObservationBody
	if err := json.Unmarshal(event.Body, &body); err != nil {
		return nil, fmt.Errorf("%w: malformed observation body: %v", domain.ErrValidation, err)
	}

	var obsType domain.ObservationType
	switch event.Type {
	case domain.ObservationCreate, domain.ObservationUpdate:
		obsType = body.Type
	case domain.EventCreate:
		obsType = domain.ObservationEvent
	case domain.SpanCreate, domain.SpanUpdate:
		obsType = domain.ObservationSpan
	case domain.GenerationCreate, domain.GenerationUpdate:
		obsType = domain.ObservationGeneration
	default:
		return nil, fmt.Errorf("%w: event type %q is not an observation", domain.ErrValidation, event.Type)
	}

	now := c.now()
	metadata, err := flatjson.Flatten(body.Metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed observation metadata: %v", domain.ErrValidation, err)
	}

	record := &domain.ObservationRecord{
		ID:                  orNewID(body.ID, c.newID),
		TraceID:             body.TraceID,
		ProjectID:           projectID,
		Type:                obsType,
		ParentObservationID: body.ParentObservationID,
		StartTime:           epochMicros(body.StartTime, now),
		EndTime:             optionalMicros(body.EndTime),
		CompletionStartTime: optionalMicros(body.CompletionStartTime),
		Name:                body.Name,
		Metadata:            metadata,
		Level:               orString(body.Level, "DEFAULT"),
		StatusMessage:       body.StatusMessage,
		Version:             body.Version,
		Input:               stringifyRaw(body.Input),
		Output:              stringifyRaw(body.Output),
		Model:               body.Model,
		ModelParameters:     stringifyRaw(body.ModelParameters),
		CreatedAt:           now.UnixMicro(),
	}

	if body.Usage != nil {
		record.InputUsage = body.Usage.Input
		record.OutputUsage = body.Usage.Output
		record.TotalUsage = totalUsage(body.Usage.Input, body.Usage.Output)
		record.Unit = body.Usage.Unit
		record.InputCost = body.Usage.InputCost
		record.OutputCost = body.Usage.OutputCost
		record.TotalCost = body.Usage.TotalCost
	}

	if body.ID != nil {
		if promptID, ok := promptIDs[*body.ID]; ok {
			record.PromptID = &promptID
		}
	}

	if err := record.Validate(); err != nil {
		return nil, err
	}
	return record, nil
}

// ConvertScore builds a score record from a score-create event
func (c *Converter) ConvertScore(event domain.IngestionEvent, projectID string) (*domain.ScoreRecord, error) {
	var body domain.ScoreBody
	if err := json.Unmarshal(event.Body, &body); err != nil {
		return nil, fmt.Errorf("%w: malformed score body: %v", domain.ErrValidation, err)
	}
	if body.TraceID == nil || body.Name == nil || body.Value == nil {
		return nil, fmt.Errorf("%w: score requires traceId, name and value", domain.ErrValidation)
	}

	now := c.now()
	timestamp := event.Timestamp
	if timestamp.IsZero() {
		timestamp = now
	}

	record := &domain.ScoreRecord{
		ID:            orNewID(body.ID, c.newID),
		Timestamp:     timestamp.UnixMicro(),
		ProjectID:     projectID,
		Name:          body.Name,
		Value:         body.Value,
		Source:        domain.ScoreSourceAPI,
		Comment:       body.Comment,
		TraceID:       *body.TraceID,
		ObservationID: body.ObservationID,
		CreatedAt:     now.UnixMicro(),
	}

	if err := record.Validate(); err != nil {
		return nil, err
	}
	return record, nil
}

// ResolvePrompts finds the prompt id for every observation event carrying a
// promptName/promptVersion pair. Lookups are grouped so each distinct pair
// hits the catalog once; missing prompts are skipped silently.
func (c *Converter) ResolvePrompts(ctx context.Context, projectID string, events []domain.IngestionEvent) (map[string]string, error) {
	type promptKey struct {
		name    string
		version int
	}

	grouped := make(map[promptKey][]string) // prompt -> observation body ids
	for _, event := range events {
		var body domain.ObservationBody
		if err := json.Unmarshal(event.Body, &body); err != nil {
			continue // malformed bodies fail later, in conversion
		}
		if body.ID == nil || body.PromptName == nil || body.PromptVersion == nil {
			continue
		}
		key := promptKey{name: *body.PromptName, version: *body.PromptVersion}
		grouped[key] = append(grouped[key], *body.ID)
	}

	promptIDs := make(map[string]string)
	for key, observationIDs := range grouped {
		prompt, err := c.catalog.FindPrompt(ctx, projectID, key.name, key.version)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve prompt %s v%d: %w", key.name, key.version, err)
		}
		if prompt == nil {
			c.log.Debug("No prompt found for observation",
				zap.String("prompt_name", key.name),
				zap.Int("prompt_version", key.version))
			continue
		}
		for _, id := range observationIDs {
			promptIDs[id] = prompt.ID
		}
	}
	return promptIDs, nil
}

// totalUsage derives the total count: input+output when both are present,
// else whichever one is present, else absent.
func totalUsage(input, output *int64) *int64 {
	switch {
	case input != nil && output != nil:
		total := *input + *output
		return &total
	case input != nil:
		return input
	default:
		return output
	}
}

// stringifyRaw renders a raw JSON value as a string column value: plain
// JSON strings are unquoted, everything else keeps its JSON text.
func stringifyRaw(raw json.RawMessage) *string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return &s
	}
	text := string(raw)
	return &text
}

func epochMicros(t *time.Time, fallback time.Time) int64 {
	if t != nil {
		return t.UnixMicro()
	}
	return fallback.UnixMicro()
}

func optionalMicros(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	micros := t.UnixMicro()
	return &micros
}

func orNewID(id *string, newID func() string) string {
	if id != nil && *id != "" {
		return *id
	}
	return newID()
}

func orString(s *string, fallback string) *string {
	if s != nil {
		return s
	}
	return &fallback
}

func orBool(b *bool, fallback bool) *bool {
	if b != nil {
		return b
	}
	return &fallback
}

func boolPtr(b bool) *bool { return &b }
