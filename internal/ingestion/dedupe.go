package ingestion

import "github.com/glasswing-ai/tracelens/internal/domain"

// Dedupe folds multiple records for the same (id, project_id) within one
// batch into a single record, left to right in arrival order, using the
// same overwrite semantics as the cross-state merge.
func Dedupe[T domain.Record](records []T, protected []string) ([]T, error) {
	type identity struct {
		id      string
		project string
	}

	index := make(map[identity]int, len(records))
	deduped := make([]T, 0, len(records))

	for _, record := range records {
		key := identity{id: record.RecordID(), project: record.RecordProject()}
		pos, seen := index[key]
		if !seen {
			index[key] = len(deduped)
			deduped = append(deduped, record)
			continue
		}
		merged, err := Overwrite(deduped[pos], record, protected)
		if err != nil {
			return nil, err
		}
		deduped[pos] = merged
	}
	return deduped, nil
}
