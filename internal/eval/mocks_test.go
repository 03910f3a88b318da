package eval

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/glasswing-ai/tracelens/internal/domain"
	"github.com/glasswing-ai/tracelens/internal/repository"
)

// MockRecordCache is a mock implementation of repository.RecordCache
type MockRecordCache struct {
	mock.Mock
}

func (m *MockRecordCache) GetMany(ctx context.Context, table domain.Table, projectID string, ids []string) ([][]byte, error) {
	args := m.Called(ctx, table, projectID, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]byte), args.Error(1)
}

func (m *MockRecordCache) SetMany(ctx context.Context, table domain.Table, projectID string, entries []repository.CacheEntry, ttl time.Duration) error {
	args := m.Called(ctx, table, projectID, entries, ttl)
	return args.Error(0)
}

func (m *MockRecordCache) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockTelemetryStore is a mock implementation of repository.TelemetryStore
type MockTelemetryStore struct {
	mock.Mock
}

func (m *MockTelemetryStore) InitSchema(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockTelemetryStore) InsertTraces(ctx context.Context, records []*domain.TraceRecord) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

func (m *MockTelemetryStore) InsertObservations(ctx context.Context, records []*domain.ObservationRecord) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

func (m *MockTelemetryStore) InsertScores(ctx context.Context, records []*domain.ScoreRecord) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

func (m *MockTelemetryStore) SelectLatestTraces(ctx context.Context, projectID string, ids []string) ([]*domain.TraceRecord, error) {
	args := m.Called(ctx, projectID, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.TraceRecord), args.Error(1)
}

func (m *MockTelemetryStore) SelectLatestObservations(ctx context.Context, projectID string, ids []string) ([]*domain.ObservationRecord, error) {
	args := m.Called(ctx, projectID, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ObservationRecord), args.Error(1)
}

func (m *MockTelemetryStore) SelectLatestScores(ctx context.Context, projectID string, ids []string) ([]*domain.ScoreRecord, error) {
	args := m.Called(ctx, projectID, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ScoreRecord), args.Error(1)
}

func (m *MockTelemetryStore) TraceMatchesFilter(ctx context.Context, projectID, traceID string, filter []domain.FilterCondition) (bool, error) {
	args := m.Called(ctx, projectID, traceID, filter)
	return args.Bool(0), args.Error(1)
}

func (m *MockTelemetryStore) SelectTraceColumn(ctx context.Context, projectID, traceID string, column domain.ColumnDef) (string, error) {
	args := m.Called(ctx, projectID, traceID, column)
	return args.String(0), args.Error(1)
}

func (m *MockTelemetryStore) SelectObservationColumn(ctx context.Context, projectID, traceID, name string, obsType domain.ObservationType, column domain.ColumnDef) (string, error) {
	args := m.Called(ctx, projectID, traceID, name, obsType, column)
	return args.String(0), args.Error(1)
}

func (m *MockTelemetryStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockTelemetryStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockCatalog is a mock implementation of repository.Catalog
type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) FindModel(ctx context.Context, projectID, model, unit string) (*domain.ModelDefinition, error) {
	args := m.Called(ctx, projectID, model, unit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ModelDefinition), args.Error(1)
}

func (m *MockCatalog) FindPrompt(ctx context.Context, projectID, name string, version int) (*domain.Prompt, error) {
	args := m.Called(ctx, projectID, name, version)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Prompt), args.Error(1)
}

func (m *MockCatalog) JobConfigurations(ctx context.Context, projectID string, jobType domain.JobType) ([]*domain.JobConfiguration, error) {
	args := m.Called(ctx, projectID, jobType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.JobConfiguration), args.Error(1)
}

func (m *MockCatalog) JobConfiguration(ctx context.Context, projectID, id string) (*domain.JobConfiguration, error) {
	args := m.Called(ctx, projectID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.JobConfiguration), args.Error(1)
}

func (m *MockCatalog) EvalTemplate(ctx context.Context, projectID, id string) (*domain.EvalTemplate, error) {
	args := m.Called(ctx, projectID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.EvalTemplate), args.Error(1)
}

func (m *MockCatalog) FindJobExecution(ctx context.Context, projectID, configID, traceID string) (*domain.JobExecution, error) {
	args := m.Called(ctx, projectID, configID, traceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.JobExecution), args.Error(1)
}

func (m *MockCatalog) JobExecution(ctx context.Context, projectID, id string) (*domain.JobExecution, error) {
	args := m.Called(ctx, projectID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.JobExecution), args.Error(1)
}

func (m *MockCatalog) InsertJobExecution(ctx context.Context, execution *domain.JobExecution) error {
	args := m.Called(ctx, execution)
	return args.Error(0)
}

func (m *MockCatalog) UpdateJobExecutionStatus(ctx context.Context, projectID, id string, status domain.JobExecutionStatus) error {
	args := m.Called(ctx, projectID, id, status)
	return args.Error(0)
}

func (m *MockCatalog) CompleteJobExecution(ctx context.Context, projectID, id, scoreID string) error {
	args := m.Called(ctx, projectID, id, scoreID)
	return args.Error(0)
}

func (m *MockCatalog) DeleteJobExecution(ctx context.Context, projectID, id string) error {
	args := m.Called(ctx, projectID, id)
	return args.Error(0)
}

func (m *MockCatalog) Close() {
	m.Called()
}


// MockExecutionQueue is a mock implementation of ExecutionQueue
type MockExecutionQueue struct {
	mock.Mock
}

func (m *MockExecutionQueue) EnqueueEvaluation(ctx context.Context, projectID, jobExecutionID string, delay time.Duration) error {
	args := m.Called(ctx, projectID, jobExecutionID, delay)
	return args.Error(0)
}

// MockCompleter is a mock implementation of Completer
type MockCompleter struct {
	mock.Mock
}

func (m *MockCompleter) Complete(ctx context.Context, req CompletionRequest) (json.RawMessage, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}
