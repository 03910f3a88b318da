package consumer

import (
	"context"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"

	"github.com/glasswing-ai/tracelens/internal/queue"
)

// Disposition is what the worker does with a message after handling it.
type Disposition int

const (
	// Ack deletes the message: processing succeeded.
	Ack Disposition = iota
	// Retry leaves the message in flight so the visibility timeout
	// redelivers it.
	Retry
	// Drop deletes the message without success: poison input or a failure
	// that was already handed off elsewhere.
	Drop
)

// Handler processes one raw queue message.
type Handler interface {
	Handle(ctx context.Context, msg types.Message) Disposition
}

// WorkerConfig sizes one queue worker.
type WorkerConfig struct {
	MaxMessages     int32
	WaitTimeSeconds int32
	BufferSize      int
	Concurrency     int
}

// Worker pairs a receiver with a handler pool on one queue.
type Worker struct {
	name     string
	consumer queue.QueueConsumer
	receiver *Receiver
	handler  Handler
	config   WorkerConfig
	log      *zap.Logger
}

func NewWorker(name string, consumer queue.QueueConsumer, handler Handler, config WorkerConfig, log *zap.Logger) *Worker {
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	receiver := NewReceiver(consumer, ReceiverConfig{
		MaxMessages:     config.MaxMessages,
		WaitTimeSeconds: config.WaitTimeSeconds,
		BufferSize:      config.BufferSize,
	}, log.With(zap.String("worker", name)))

	return &Worker{
		name:     name,
		consumer: consumer,
		receiver: receiver,
		handler:  handler,
		config:   config,
		log:      log.With(zap.String("worker", name)),
	}
}

// Start runs the receive stage and the handler pool until the context is
// cancelled and the message channel drains.
func (w *Worker) Start(ctx context.Context) error {
	messages := make(chan types.Message, w.config.BufferSize)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.receiver.Start(ctx, messages)
	}()

	for i := 0; i < w.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.process(ctx, messages)
		}()
	}

	wg.Wait()
	return nil
}

func (w *Worker) process(ctx context.Context, messages <-chan types.Message) {
	for msg := range messages {
		switch w.handler.Handle(ctx, msg) {
		case Ack, Drop:
			w.deleteMessage(ctx, msg)
		case Retry:
			// Left in flight; SQS redelivers after the visibility timeout.
		}
	}
}

func (w *Worker) deleteMessage(ctx context.Context, msg types.Message) {
	_, err := w.consumer.DeleteMessage(ctx, &awssqs.DeleteMessageInput{
		QueueUrl:      aws.String(w.consumer.QueueURL()),
		ReceiptHandle: msg.ReceiptHandle,
	})
	if err != nil {
		w.log.Error("Failed to delete message",
			zap.String("message_id", aws.ToString(msg.MessageId)),
			zap.Error(err))
	}
}

// messageAttempt reads the delivery attempt attribute, defaulting to 0 for
// first deliveries.
func messageAttempt(msg types.Message) int {
	attr, ok := msg.MessageAttributes[queue.AttemptAttribute]
	if !ok || attr.StringValue == nil {
		return 0
	}
	attempt, err := strconv.Atoi(*attr.StringValue)
	if err != nil || attempt < 0 {
		return 0
	}
	return attempt
}
