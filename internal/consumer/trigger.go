package consumer

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"

	"github.com/glasswing-ai/tracelens/internal/metrics"
	"github.com/glasswing-ai/tracelens/internal/queue"
)

// UpsertProcessor reacts to one trace upsert.
type UpsertProcessor interface {
	HandleTraceUpsert(ctx context.Context, projectID, traceID string) error
}

// TriggerHandler feeds trace-upsert notifications into the eval trigger.
type TriggerHandler struct {
	trigger UpsertProcessor
	log     *zap.Logger
}

func NewTriggerHandler(trigger UpsertProcessor, log *zap.Logger) *TriggerHandler {
	return &TriggerHandler{trigger: trigger, log: log}
}

func (h *TriggerHandler) Handle(ctx context.Context, msg types.Message) Disposition {
	var event queue.TraceUpsertEvent
	if err := json.Unmarshal([]byte(aws.ToString(msg.Body)), &event); err != nil {
		h.log.Warn("Dropping malformed trace upsert message",
			zap.String("message_id", aws.ToString(msg.MessageId)),
			zap.Error(err))
		metrics.IncMessagesDropped("trace_upsert")
		return Drop
	}
	if event.ProjectID == "" || event.TraceID == "" {
		h.log.Warn("Dropping incomplete trace upsert message",
			zap.String("message_id", aws.ToString(msg.MessageId)))
		metrics.IncMessagesDropped("trace_upsert")
		return Drop
	}

	if err := h.trigger.HandleTraceUpsert(ctx, event.ProjectID, event.TraceID); err != nil {
		h.log.Error("Failed to handle trace upsert",
			zap.String("project_id", event.ProjectID),
			zap.String("trace_id", event.TraceID),
			zap.Error(err))
		return Retry
	}
	return Ack
}
