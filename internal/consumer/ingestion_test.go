package consumer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/glasswing-ai/tracelens/internal/domain"
	"github.com/glasswing-ai/tracelens/internal/ingestion"
)

// MockBatchProcessor is a mock implementation of BatchProcessor
type MockBatchProcessor struct {
	mock.Mock
}

func (m *MockBatchProcessor) ProcessBatch(ctx context.Context, projectID string, events []domain.IngestionEvent) (*ingestion.Result, error) {
	args := m.Called(ctx, projectID, events)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ingestion.Result), args.Error(1)
}

// MockUpsertPublisher is a mock implementation of UpsertPublisher
type MockUpsertPublisher struct {
	mock.Mock
}

func (m *MockUpsertPublisher) PublishTraceUpserts(ctx context.Context, projectID string, traceIDs []string) error {
	args := m.Called(ctx, projectID, traceIDs)
	return args.Error(0)
}

func message(body string) types.Message {
	return types.Message{
		MessageId:     aws.String("msg-1"),
		ReceiptHandle: aws.String("rh-1"),
		Body:          aws.String(body),
	}
}

func TestIngestionHandler_SuccessPublishesUpserts(t *testing.T) {
	pipeline := new(MockBatchProcessor)
	upserts := new(MockUpsertPublisher)
	h := NewIngestionHandler(pipeline, upserts, zap.NewNop())

	pipeline.On("ProcessBatch", mock.Anything, "p1", mock.Anything).
		Return(&ingestion.Result{TraceIDs: []string{"t1", "t2"}, Traces: 2}, nil).Once()
	upserts.On("PublishTraceUpserts", mock.Anything, "p1", []string{"t1", "t2"}).
		Return(nil).Once()

	disposition := h.Handle(context.Background(), message(`{"project_id":"p1","batch":[{"id":"e1","type":"trace-create","body":{"id":"t1"}}]}`))
	assert.Equal(t, Ack, disposition)
	pipeline.AssertExpectations(t)
	upserts.AssertExpectations(t)
}

func TestIngestionHandler_MalformedMessageDropped(t *testing.T) {
	pipeline := new(MockBatchProcessor)
	upserts := new(MockUpsertPublisher)
	h := NewIngestionHandler(pipeline, upserts, zap.NewNop())

	assert.Equal(t, Drop, h.Handle(context.Background(), message(`{not json`)))
	assert.Equal(t, Drop, h.Handle(context.Background(), message(`{"batch":[]}`)))
	pipeline.AssertNotCalled(t, "ProcessBatch", mock.Anything, mock.Anything, mock.Anything)
}

func TestIngestionHandler_ValidationErrorDropped(t *testing.T) {
	pipeline := new(MockBatchProcessor)
	upserts := new(MockUpsertPublisher)
	h := NewIngestionHandler(pipeline, upserts, zap.NewNop())

	pipeline.On("ProcessBatch", mock.Anything, "p1", mock.Anything).
		Return(nil, fmt.Errorf("bad score: %w", domain.ErrValidation)).Once()

	disposition := h.Handle(context.Background(), message(`{"project_id":"p1","batch":[]}`))
	assert.Equal(t, Drop, disposition)
	upserts.AssertNotCalled(t, "PublishTraceUpserts", mock.Anything, mock.Anything, mock.Anything)
}

func TestIngestionHandler_IOErrorRetried(t *testing.T) {
	pipeline := new(MockBatchProcessor)
	upserts := new(MockUpsertPublisher)
	h := NewIngestionHandler(pipeline, upserts, zap.NewNop())

	pipeline.On("ProcessBatch", mock.Anything, "p1", mock.Anything).
		Return(nil, errors.New("clickhouse unreachable")).Once()

	disposition := h.Handle(context.Background(), message(`{"project_id":"p1","batch":[]}`))
	assert.Equal(t, Retry, disposition)
}

func TestIngestionHandler_PublishFailureRetried(t *testing.T) {
	pipeline := new(MockBatchProcessor)
	upserts := new(MockUpsertPublisher)
	h := NewIngestionHandler(pipeline, upserts, zap.NewNop())

	pipeline.On("ProcessBatch", mock.Anything, "p1", mock.Anything).
		Return(&ingestion.Result{TraceIDs: []string{"t1"}}, nil).Once()
	upserts.On("PublishTraceUpserts", mock.Anything, "p1", []string{"t1"}).
		Return(errors.New("sqs down")).Once()

	disposition := h.Handle(context.Background(), message(`{"project_id":"p1","batch":[]}`))
	assert.Equal(t, Retry, disposition)
}
