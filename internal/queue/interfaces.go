package queue

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// QueueConsumer defines the raw receive side of one queue.
type QueueConsumer interface {
	ReceiveMessages(ctx context.Context, input *sqs.ReceiveMessageInput) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, input *sqs.DeleteMessageInput) (*sqs.DeleteMessageOutput, error)
	QueueURL() string
}

// Sender defines the raw send side of one queue. Attributes become string
// message attributes; delay is clamped to what the transport supports.
type Sender interface {
	Send(ctx context.Context, body []byte, delay time.Duration, attributes map[string]string) error
}
