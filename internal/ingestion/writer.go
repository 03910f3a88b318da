package ingestion

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/glasswing-ai/tracelens/internal/domain"
	"github.com/glasswing-ai/tracelens/internal/repository"
)

// CacheTTL bounds how long a written record shadows the columnar store.
const CacheTTL = 120 * time.Second

// WriteRecords persists the final merged record set: every record goes to
// the cache with a fixed TTL, and the whole set is appended to the columnar
// store in one batch. The cache is a best-effort acceleration layer — a
// cache failure is logged and never blocks the store write, which is the
// batch's authoritative outcome.
func WriteRecords[PT domain.Record](
	ctx context.Context,
	cache repository.RecordCache,
	table domain.Table,
	projectID string,
	records []PT,
	insert func(ctx context.Context, records []PT) error,
	log *zap.Logger,
) error {
	if len(records) == 0 {
		return nil
	}

	entries := make([]repository.CacheEntry, 0, len(records))
	for _, record := range records {
		raw, err := json.Marshal(record)
		if err != nil {
			return err
		}
		entries = append(entries, repository.CacheEntry{ID: record.RecordID(), Value: raw})
	}

	if err := cache.SetMany(ctx, table, projectID, entries, CacheTTL); err != nil {
		log.Warn("Failed to write records to cache",
			zap.String("table", string(table)),
			zap.Int("count", len(entries)),
			zap.Error(err))
	}

	return insert(ctx, records)
}
