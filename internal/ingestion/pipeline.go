// Package ingestion implements the event ingestion pipeline: classify,
// convert, dedupe, resolve prior state, merge, match costs and persist.
// Repeated delivery of the same events is safe — the merge semantics make
// every stage idempotent.
package ingestion

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/glasswing-ai/tracelens/internal/domain"
	"github.com/glasswing-ai/tracelens/internal/repository"
)

// Result summarizes one processed batch.
type Result struct {
	TraceIDs     []string
	Traces       int
	Observations int
	Scores       int
}

// Pipeline processes ingestion batches against the cache and the columnar
// store. The three record kinds of a batch are independent and run
// concurrently; events for the same id are folded sequentially in arrival
// order.
type Pipeline struct {
	cache     repository.RecordCache
	store     repository.TelemetryStore
	converter *Converter
	costs     *CostMatcher
	log       *zap.Logger
}

// NewPipeline wires the pipeline stages together
func NewPipeline(cache repository.RecordCache, store repository.TelemetryStore, catalog repository.Catalog, tokenizer Tokenizer, log *zap.Logger) *Pipeline {
	return &Pipeline{
		cache:     cache,
		store:     store,
		converter: NewConverter(catalog, log),
		costs:     NewCostMatcher(catalog, tokenizer, log),
		log:       log,
	}
}

// ProcessBatch ingests one batch of events for a project. A validation
// error on any event aborts the whole batch before anything is written for
// that record kind; I/O errors propagate to the caller, which owns
// retry/backoff.
func (p *Pipeline) ProcessBatch(ctx context.Context, projectID string, events []domain.IngestionEvent) (*Result, error) {
	traceEvents, observationEvents, scoreEvents := Partition(events)

	result := &Result{}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		traceIDs, err := p.processTraces(ctx, projectID, traceEvents)
		if err != nil {
			return err
		}
		result.TraceIDs = traceIDs
		result.Traces = len(traceIDs)
		return nil
	})

	g.Go(func() error {
		count, err := p.processObservations(ctx, projectID, observationEvents)
		if err != nil {
			return err
		}
		result.Observations = count
		return nil
	})

	g.Go(func() error {
		count, err := p.processScores(ctx, projectID, scoreEvents)
		if err != nil {
			return err
		}
		result.Scores = count
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	p.log.Info("Processed ingestion batch",
		zap.String("project_id", projectID),
		zap.Int("traces", result.Traces),
		zap.Int("observations", result.Observations),
		zap.Int("scores", result.Scores))

	return result, nil
}

func (p *Pipeline) processTraces(ctx context.Context, projectID string, events []domain.IngestionEvent) ([]string, error) {
	if len(events) == 0 {
		return nil, nil
	}

	records := make([]*domain.TraceRecord, 0, len(events))
	for _, event := range events {
		record, err := p.converter.ConvertTrace(event, projectID)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	merged, err := mergeWithState[domain.TraceRecord](ctx, p.cache, domain.TableTraces, projectID, records, p.store.SelectLatestTraces, p.log)
	if err != nil {
		return nil, err
	}

	if err := WriteRecords(ctx, p.cache, domain.TableTraces, projectID, merged, p.store.InsertTraces, p.log); err != nil {
		return nil, err
	}

	traceIDs := make([]string, len(merged))
	for i, record := range merged {
		traceIDs[i] = record.ID
	}
	return traceIDs, nil
}

func (p *Pipeline) processObservations(ctx context.Context, projectID string, events []domain.IngestionEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	promptIDs, err := p.converter.ResolvePrompts(ctx, projectID, events)
	if err != nil {
		return 0, err
	}

	records := make([]*domain.ObservationRecord, 0, len(events))
	for _, event := range events {
		record, err := p.converter.ConvertObservation(event, projectID, promptIDs)
		if err != nil {
			return 0, err
		}
		records = append(records, record)
	}

	merged, err := mergeWithState[domain.ObservationRecord](ctx, p.cache, domain.TableObservations, projectID, records, p.store.SelectLatestObservations, p.log)
	if err != nil {
		return 0, err
	}

	matched, err := p.costs.Match(ctx, merged)
	if err != nil {
		return 0, err
	}

	if err := WriteRecords(ctx, p.cache, domain.TableObservations, projectID, matched, p.store.InsertObservations, p.log); err != nil {
		return 0, err
	}
	return len(matched), nil
}

func (p *Pipeline) processScores(ctx context.Context, projectID string, events []domain.IngestionEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	records := make([]*domain.ScoreRecord, 0, len(events))
	for _, event := range events {
		record, err := p.converter.ConvertScore(event, projectID)
		if err != nil {
			return 0, err
		}
		records = append(records, record)
	}

	merged, err := mergeWithState[domain.ScoreRecord](ctx, p.cache, domain.TableScores, projectID, records, p.store.SelectLatestScores, p.log)
	if err != nil {
		return 0, err
	}

	if err := WriteRecords(ctx, p.cache, domain.TableScores, projectID, merged, p.store.InsertScores, p.log); err != nil {
		return 0, err
	}
	return len(merged), nil
}

// mergeWithState runs dedup, prior-state resolution and the cross-state
// merge for one table. New ids pass through untouched.
func mergeWithState[T any, PT interface {
	*T
	domain.Record
}](
	ctx context.Context,
	cache repository.RecordCache,
	table domain.Table,
	projectID string,
	records []PT,
	fetch storeFetch[PT],
	log *zap.Logger,
) ([]PT, error) {
	protected := table.ProtectedFields()

	deduped, err := Dedupe(records, protected)
	if err != nil {
		return nil, err
	}

	existing, err := resolveExisting[T, PT](ctx, cache, table, projectID, deduped, fetch, log)
	if err != nil {
		return nil, err
	}

	merged := make([]PT, len(deduped))
	for i, record := range deduped {
		prior, found := existing[record.RecordID()]
		if !found {
			merged[i] = record
			continue
		}
		combined, err := Overwrite(prior, record, protected)
		if err != nil {
			return nil, err
		}
		merged[i] = combined
	}
	return merged, nil
}
