package ingestion

import "github.com/glasswing-ai/tracelens/internal/domain"

// Partition splits a heterogeneous batch into trace, observation and score
// sub-batches, preserving arrival order within each. SDK log events are
// dropped, as are events with unknown types.
func Partition(events []domain.IngestionEvent) (traces, observations, scores []domain.IngestionEvent) {
	for _, event := range events {
		switch event.Type {
		case domain.TraceCreate:
			traces = append(traces, event)
		case domain.ObservationCreate, domain.ObservationUpdate,
			domain.EventCreate,
			domain.SpanCreate, domain.SpanUpdate,
			domain.GenerationCreate, domain.GenerationUpdate:
			observations = append(observations, event)
		case domain.ScoreCreate:
			scores = append(scores, event)
		case domain.SDKLog:
			// client-side diagnostics, not persisted
		}
	}
	return traces, observations, scores
}
