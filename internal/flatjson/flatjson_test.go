package flatjson

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlatten_Object(t *testing.T) {
	record, err := Flatten(json.RawMessage(`{"env":"prod","retries":3,"nested":{"a":1}}`))
	require.NoError(t, err)

	assert.Equal(t, `"prod"`, record["env"])
	assert.Equal(t, `3`, record["retries"])
	assert.Equal(t, `{"a":1}`, record["nested"])
}

func TestFlatten_ScalarAndArray(t *testing.T) {
	record, err := Flatten(json.RawMessage(`"just a note"`))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{BlobKey: `"just a note"`}, record)

	record, err = Flatten(json.RawMessage(`[1,2,3]`))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{BlobKey: `[1,2,3]`}, record)
}

func TestFlatten_EmptyAndNull(t *testing.T) {
	record, err := Flatten(nil)
	require.NoError(t, err)
	assert.Nil(t, record)

	record, err = Flatten(json.RawMessage(`null`))
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestExpand_RoundTrip(t *testing.T) {
	original := json.RawMessage(`{"env":"prod","nested":{"a":1,"b":[true,false]}}`)
	record, err := Flatten(original)
	require.NoError(t, err)

	doc := Expand(record)
	assert.Equal(t, "prod", doc["env"])
	assert.Equal(t, map[string]any{"a": float64(1), "b": []any{true, false}}, doc["nested"])
}

func TestDeepMerge_DisjointObjectKeys(t *testing.T) {
	merged := DeepMerge(
		map[string]any{"a": map[string]any{"x": float64(1)}},
		map[string]any{"a": map[string]any{"y": float64(2)}},
	)

	assert.Equal(t, map[string]any{
		"a": map[string]any{"x": float64(1), "y": float64(2)},
	}, merged)
}

func TestDeepMerge_IncomingLeafWins(t *testing.T) {
	merged := DeepMerge(
		map[string]any{"a": "old", "keep": true},
		map[string]any{"a": "new"},
	)

	assert.Equal(t, map[string]any{"a": "new", "keep": true}, merged)
}

func TestDeepMerge_NullNeverErases(t *testing.T) {
	merged := DeepMerge(
		map[string]any{"a": "value"},
		map[string]any{"a": nil},
	)

	assert.Equal(t, map[string]any{"a": "value"}, merged)
}

func TestDeepMerge_TypeConflictIncomingWins(t *testing.T) {
	merged := DeepMerge(map[string]any{"a": float64(1)}, "scalar")
	assert.Equal(t, "scalar", merged)
}

func TestMergeRecords(t *testing.T) {
	existing, err := Flatten(json.RawMessage(`{"a":{"x":1},"keep":"yes"}`))
	require.NoError(t, err)
	incoming, err := Flatten(json.RawMessage(`{"a":{"y":2}}`))
	require.NoError(t, err)

	merged, err := MergeRecords(existing, incoming)
	require.NoError(t, err)

	assert.Equal(t, `"yes"`, merged["keep"])
	assert.JSONEq(t, `{"x":1,"y":2}`, merged["a"])
}

func TestMergeRecords_NilSides(t *testing.T) {
	record := map[string]string{"a": `1`}

	merged, err := MergeRecords(nil, record)
	require.NoError(t, err)
	assert.Equal(t, record, merged)

	merged, err = MergeRecords(record, nil)
	require.NoError(t, err)
	assert.Equal(t, record, merged)
}
