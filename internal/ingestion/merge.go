package ingestion

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/glasswing-ai/tracelens/internal/flatjson"
)

// Overwrite merges an incoming record into an existing one:
//
//  1. fields in the protected list keep the existing value when one is set;
//  2. for all other fields the incoming value wins when defined, otherwise
//     the existing value is kept (absent fields never erase prior data);
//  3. metadata is deep-merged as nested JSON.
//
// The same algorithm serves intra-batch dedup and the merge against
// resolved prior state. Records go through their JSON shape so that only
// fields actually present on either side take part.
func Overwrite[T any](existing, incoming T, protected []string) (T, error) {
	var out T

	existingMap, err := recordMap(existing)
	if err != nil {
		return out, err
	}
	incomingMap, err := recordMap(incoming)
	if err != nil {
		return out, err
	}

	merged := make(map[string]any, len(existingMap)+len(incomingMap))
	maps.Copy(merged, existingMap)
	for key, value := range incomingMap {
		if key == "metadata" || value == nil {
			continue
		}
		if _, set := existingMap[key]; set && slices.Contains(protected, key) {
			continue
		}
		merged[key] = value
	}

	metadata, err := flatjson.MergeRecords(stringMap(existingMap["metadata"]), stringMap(incomingMap["metadata"]))
	if err != nil {
		return out, fmt.Errorf("failed to merge metadata: %w", err)
	}
	if metadata != nil {
		merged["metadata"] = metadata
	} else {
		delete(merged, "metadata")
	}

	raw, err := json.Marshal(merged)
	if err != nil {
		return out, fmt.Errorf("failed to encode merged record: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("failed to decode merged record: %w", err)
	}
	return out, nil
}

func recordMap(record any) (map[string]any, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	return m, nil
}

func stringMap(value any) map[string]string {
	obj, ok := value.(map[string]any)
	if !ok {
		return nil
	}
	record := make(map[string]string, len(obj))
	for key, val := range obj {
		if s, ok := val.(string); ok {
			record[key] = s
		}
	}
	return record
}
