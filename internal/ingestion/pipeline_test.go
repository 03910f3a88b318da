package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/glasswing-ai/tracelens/internal/domain"
	"github.com/glasswing-ai/tracelens/internal/repository"
)

func testPipeline(cache *MockRecordCache, store *MockTelemetryStore, catalog *MockCatalog) *Pipeline {
	return NewPipeline(cache, store, catalog, stubTokenizer{}, zap.NewNop())
}

func traceEvent(body string) domain.IngestionEvent {
	return domain.IngestionEvent{Type: domain.TraceCreate, Body: json.RawMessage(body)}
}

func TestProcessBatch_CreateThenUpdateSameTrace(t *testing.T) {
	cache := new(MockRecordCache)
	store := new(MockTelemetryStore)
	catalog := new(MockCatalog)
	p := testPipeline(cache, store, catalog)

	// no prior state anywhere
	cache.On("GetMany", mock.Anything, domain.TableTraces, "p1", []string{"t1"}).
		Return([][]byte{nil}, nil).Once()
	store.On("SelectLatestTraces", mock.Anything, "p1", []string{"t1"}).
		Return([]*domain.TraceRecord{}, nil).Once()
	cache.On("SetMany", mock.Anything, domain.TableTraces, "p1", mock.Anything, CacheTTL).
		Return(nil).Once()

	var written []*domain.TraceRecord
	store.On("InsertTraces", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			written = args.Get(1).([]*domain.TraceRecord)
		}).
		Return(nil).Once()

	result, err := p.ProcessBatch(context.Background(), "p1", []domain.IngestionEvent{
		traceEvent(`{"id":"t1","name":"first","userId":"u1"}`),
		traceEvent(`{"id":"t1","name":"second","release":"r1"}`),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"t1"}, result.TraceIDs)
	require.Len(t, written, 1)
	// name is protected: the first value in arrival order wins
	assert.Equal(t, "first", *written[0].Name)
	assert.Equal(t, "u1", *written[0].UserID)
	assert.Equal(t, "r1", *written[0].Release)

	cache.AssertExpectations(t)
	store.AssertExpectations(t)
}

func TestProcessBatch_CachedStateShadowsStore(t *testing.T) {
	cache := new(MockRecordCache)
	store := new(MockTelemetryStore)
	catalog := new(MockCatalog)
	p := testPipeline(cache, store, catalog)

	prior := &domain.TraceRecord{
		ID:        "t1",
		ProjectID: "p1",
		Timestamp: 111,
		Name:      strPtr("cached-name"),
		UserID:    strPtr("cached-user"),
	}
	raw, err := json.Marshal(prior)
	require.NoError(t, err)

	cache.On("GetMany", mock.Anything, domain.TableTraces, "p1", []string{"t1"}).
		Return([][]byte{raw}, nil).Once()
	cache.On("SetMany", mock.Anything, domain.TableTraces, "p1", mock.Anything, CacheTTL).
		Return(nil).Once()

	var written []*domain.TraceRecord
	store.On("InsertTraces", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			written = args.Get(1).([]*domain.TraceRecord)
		}).
		Return(nil).Once()

	_, err = p.ProcessBatch(context.Background(), "p1", []domain.IngestionEvent{
		traceEvent(`{"id":"t1","name":"incoming","userId":"new-user"}`),
	})
	require.NoError(t, err)

	require.Len(t, written, 1)
	// protected fields keep the cached values, the rest is updated
	assert.Equal(t, "cached-name", *written[0].Name)
	assert.Equal(t, int64(111), written[0].Timestamp)
	assert.Equal(t, "new-user", *written[0].UserID)

	// the store was never consulted for prior state
	store.AssertNotCalled(t, "SelectLatestTraces", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessBatch_CorruptCacheEntryFallsBackToStore(t *testing.T) {
	cache := new(MockRecordCache)
	store := new(MockTelemetryStore)
	catalog := new(MockCatalog)
	p := testPipeline(cache, store, catalog)

	stored := &domain.TraceRecord{
		ID:        "t1",
		ProjectID: "p1",
		Timestamp: 222,
		Name:      strPtr("stored-name"),
	}

	cache.On("GetMany", mock.Anything, domain.TableTraces, "p1", []string{"t1"}).
		Return([][]byte{[]byte("{not json")}, nil).Once()
	store.On("SelectLatestTraces", mock.Anything, "p1", []string{"t1"}).
		Return([]*domain.TraceRecord{stored}, nil).Once()
	cache.On("SetMany", mock.Anything, domain.TableTraces, "p1", mock.Anything, CacheTTL).
		Return(nil).Once()

	var written []*domain.TraceRecord
	store.On("InsertTraces", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			written = args.Get(1).([]*domain.TraceRecord)
		}).
		Return(nil).Once()

	_, err := p.ProcessBatch(context.Background(), "p1", []domain.IngestionEvent{
		traceEvent(`{"id":"t1","name":"incoming"}`),
	})
	require.NoError(t, err)

	require.Len(t, written, 1)
	assert.Equal(t, "stored-name", *written[0].Name)
	store.AssertExpectations(t)
}

func TestProcessBatch_CacheWriteFailureDoesNotBlockInsert(t *testing.T) {
	cache := new(MockRecordCache)
	store := new(MockTelemetryStore)
	catalog := new(MockCatalog)
	p := testPipeline(cache, store, catalog)

	cache.On("GetMany", mock.Anything, domain.TableTraces, "p1", mock.Anything).
		Return([][]byte{nil}, nil).Once()
	store.On("SelectLatestTraces", mock.Anything, "p1", mock.Anything).
		Return([]*domain.TraceRecord{}, nil).Once()
	cache.On("SetMany", mock.Anything, domain.TableTraces, "p1", mock.Anything, CacheTTL).
		Return(errors.New("redis down")).Once()
	store.On("InsertTraces", mock.Anything, mock.Anything).Return(nil).Once()

	_, err := p.ProcessBatch(context.Background(), "p1", []domain.IngestionEvent{
		traceEvent(`{"id":"t1"}`),
	})
	require.NoError(t, err)
	store.AssertExpectations(t)
}

func TestProcessBatch_ValidationErrorAbortsKind(t *testing.T) {
	cache := new(MockRecordCache)
	store := new(MockTelemetryStore)
	catalog := new(MockCatalog)
	p := testPipeline(cache, store, catalog)

	_, err := p.ProcessBatch(context.Background(), "p1", []domain.IngestionEvent{
		{Type: domain.ScoreCreate, Body: json.RawMessage(`{"name":"no-trace","value":1}`)},
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
	store.AssertNotCalled(t, "InsertScores", mock.Anything, mock.Anything)
}

func TestProcessBatch_EmptyBatch(t *testing.T) {
	p := testPipeline(new(MockRecordCache), new(MockTelemetryStore), new(MockCatalog))

	result, err := p.ProcessBatch(context.Background(), "p1", nil)
	require.NoError(t, err)
	assert.Empty(t, result.TraceIDs)
	assert.Zero(t, result.Traces)
	assert.Zero(t, result.Observations)
	assert.Zero(t, result.Scores)
}

func TestWriteRecords_CachesThenInserts(t *testing.T) {
	cache := new(MockRecordCache)

	record := &domain.TraceRecord{ID: "t1", ProjectID: "p1", Timestamp: 1}

	var cachedEntries []repository.CacheEntry
	cache.On("SetMany", mock.Anything, domain.TableTraces, "p1", mock.Anything, CacheTTL).
		Run(func(args mock.Arguments) {
			cachedEntries = args.Get(3).([]repository.CacheEntry)
		}).
		Return(nil).Once()

	inserted := false
	insert := func(ctx context.Context, records []*domain.TraceRecord) error {
		inserted = true
		return nil
	}

	err := WriteRecords(context.Background(), cache, domain.TableTraces, "p1", []*domain.TraceRecord{record}, insert, zap.NewNop())
	require.NoError(t, err)

	assert.True(t, inserted)
	require.Len(t, cachedEntries, 1)
	assert.Equal(t, "t1", cachedEntries[0].ID)

	var roundTripped domain.TraceRecord
	require.NoError(t, json.Unmarshal(cachedEntries[0].Value, &roundTripped))
	assert.Equal(t, *record, roundTripped)
}
