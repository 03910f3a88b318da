package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"

	"github.com/glasswing-ai/tracelens/internal/domain"
	"github.com/glasswing-ai/tracelens/internal/ingestion"
	"github.com/glasswing-ai/tracelens/internal/metrics"
	"github.com/glasswing-ai/tracelens/internal/queue"
)

// BatchProcessor ingests one project-scoped batch of events.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, projectID string, events []domain.IngestionEvent) (*ingestion.Result, error)
}

// UpsertPublisher fans out trace-upsert notifications after a batch lands.
type UpsertPublisher interface {
	PublishTraceUpserts(ctx context.Context, projectID string, traceIDs []string) error
}

// IngestionHandler processes ingestion batch messages: run the pipeline,
// then notify downstream about every written trace.
type IngestionHandler struct {
	pipeline BatchProcessor
	upserts  UpsertPublisher
	log      *zap.Logger
}

func NewIngestionHandler(pipeline BatchProcessor, upserts UpsertPublisher, log *zap.Logger) *IngestionHandler {
	return &IngestionHandler{
		pipeline: pipeline,
		upserts:  upserts,
		log:      log,
	}
}

func (h *IngestionHandler) Handle(ctx context.Context, msg types.Message) Disposition {
	var batch queue.IngestionBatchMessage
	if err := json.Unmarshal([]byte(aws.ToString(msg.Body)), &batch); err != nil {
		h.log.Warn("Dropping malformed ingestion message",
			zap.String("message_id", aws.ToString(msg.MessageId)),
			zap.Error(err))
		metrics.IncMessagesDropped("ingestion")
		return Drop
	}
	if batch.ProjectID == "" {
		h.log.Warn("Dropping ingestion message without project id",
			zap.String("message_id", aws.ToString(msg.MessageId)))
		metrics.IncMessagesDropped("ingestion")
		return Drop
	}

	start := time.Now()
	result, err := h.pipeline.ProcessBatch(ctx, batch.ProjectID, batch.Batch)
	metrics.ObserveBatchDuration(time.Since(start))

	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			// Bad payloads never become processable; retrying would loop.
			h.log.Warn("Dropping invalid ingestion batch",
				zap.String("project_id", batch.ProjectID),
				zap.String("message_id", aws.ToString(msg.MessageId)),
				zap.Error(err))
			metrics.IncBatch("invalid")
			metrics.IncMessagesDropped("ingestion")
			return Drop
		}
		h.log.Error("Failed to process ingestion batch",
			zap.String("project_id", batch.ProjectID),
			zap.Error(err))
		metrics.IncBatch("error")
		return Retry
	}

	metrics.IncBatch("ok")
	metrics.AddRecordsWritten("traces", result.Traces)
	metrics.AddRecordsWritten("observations", result.Observations)
	metrics.AddRecordsWritten("scores", result.Scores)

	if err := h.upserts.PublishTraceUpserts(ctx, batch.ProjectID, result.TraceIDs); err != nil {
		// Records are already persisted; redelivery re-runs the idempotent
		// pipeline and retries the fan-out.
		h.log.Error("Failed to publish trace upserts",
			zap.String("project_id", batch.ProjectID),
			zap.Error(err))
		return Retry
	}

	h.log.Info("Processed ingestion batch",
		zap.String("project_id", batch.ProjectID),
		zap.Int("traces", result.Traces),
		zap.Int("observations", result.Observations),
		zap.Int("scores", result.Scores))
	return Ack
}
