package ingestion

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/glasswing-ai/tracelens/internal/domain"
	"github.com/glasswing-ai/tracelens/internal/repository"
)

// storeFetch is one batched latest-value point lookup against the columnar
// store for the ids the cache missed.
type storeFetch[PT domain.Record] func(ctx context.Context, projectID string, ids []string) ([]PT, error)

// resolveExisting returns the currently-persisted version of each deduped
// record, keyed by id. The cache is consulted first; only cache misses go
// to the store, so a cached value always shadows an older stored row.
func resolveExisting[T any, PT interface {
	*T
	domain.Record
}](
	ctx context.Context,
	cache repository.RecordCache,
	table domain.Table,
	projectID string,
	deduped []PT,
	fetch storeFetch[PT],
	log *zap.Logger,
) (map[string]PT, error) {
	if len(deduped) == 0 {
		return nil, nil
	}

	ids := make([]string, len(deduped))
	for i, record := range deduped {
		ids[i] = record.RecordID()
	}

	existing := make(map[string]PT, len(ids))

	cached, err := cache.GetMany(ctx, table, projectID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s from cache: %w", table, err)
	}

	var missing []string
	for i, raw := range cached {
		if raw == nil {
			missing = append(missing, ids[i])
			continue
		}
		record := PT(new(T))
		if err := json.Unmarshal(raw, record); err != nil {
			// a corrupt cache entry falls back to the store
			log.Warn("Dropping unparseable cached record",
				zap.String("table", string(table)),
				zap.String("id", ids[i]),
				zap.Error(err))
			missing = append(missing, ids[i])
			continue
		}
		existing[record.RecordID()] = record
	}

	if len(missing) > 0 {
		stored, err := fetch(ctx, projectID, missing)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s from store: %w", table, err)
		}
		for _, record := range stored {
			existing[record.RecordID()] = record
		}
	}

	return existing, nil
}
