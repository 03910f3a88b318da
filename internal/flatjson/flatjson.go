// Package flatjson converts arbitrary JSON metadata documents to and from
// the flat string-to-string representation stored in the columnar tables,
// and deep-merges two such documents key by key.
package flatjson

import "encoding/json"

// BlobKey is the synthetic key holding the whole metadata document when it
// is not a JSON object.
const BlobKey = "metadata"

// Flatten converts a raw JSON document into a flat string map. Each
// top-level key of an object maps to its JSON-encoded value; a scalar or
// array document is stored whole under BlobKey. A nil or empty document
// flattens to nil.
func Flatten(raw json.RawMessage) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, err
	}
	if value == nil {
		return nil, nil
	}
	return flattenValue(value)
}

func flattenValue(value any) (map[string]string, error) {
	obj, ok := value.(map[string]any)
	if !ok {
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		return map[string]string{BlobKey: string(encoded)}, nil
	}
	record := make(map[string]string, len(obj))
	for key, val := range obj {
		encoded, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}
		record[key] = string(encoded)
	}
	return record, nil
}

// Expand reconstitutes a flat record into a nested document. Values that do
// not parse as JSON are kept as plain strings.
func Expand(record map[string]string) map[string]any {
	if record == nil {
		return nil
	}
	doc := make(map[string]any, len(record))
	for key, encoded := range record {
		var val any
		if err := json.Unmarshal([]byte(encoded), &val); err != nil {
			doc[key] = encoded
			continue
		}
		doc[key] = val
	}
	return doc
}

// DeepMerge combines two JSON values. Objects merge recursively; on
// conflicting leaf keys the incoming value wins, except that an incoming
// null never erases an existing value.
func DeepMerge(existing, incoming any) any {
	existingObj, existingIsObj := existing.(map[string]any)
	incomingObj, incomingIsObj := incoming.(map[string]any)
	if existingIsObj && incomingIsObj {
		merged := make(map[string]any, len(existingObj)+len(incomingObj))
		for k, v := range existingObj {
			merged[k] = v
		}
		for k, v := range incomingObj {
			if prev, ok := merged[k]; ok {
				merged[k] = DeepMerge(prev, v)
				continue
			}
			merged[k] = v
		}
		return merged
	}
	if incoming == nil {
		return existing
	}
	return incoming
}

// MergeRecords deep-merges two flattened metadata records. If either side
// is nil the other wins outright.
func MergeRecords(existing, incoming map[string]string) (map[string]string, error) {
	if existing == nil {
		return incoming, nil
	}
	if incoming == nil {
		return existing, nil
	}
	merged := DeepMerge(Expand(existing), Expand(incoming))
	return flattenValue(merged)
}
