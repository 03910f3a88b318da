package sqs

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"

	envConfig "github.com/glasswing-ai/tracelens/internal/config"
)

// maxDelay is the longest delivery delay SQS accepts on a single message.
const maxDelay = 900 * time.Second

// Client wraps one SQS queue. The worker holds one Client per queue it
// reads from or writes to.
type Client struct {
	client   *sqs.Client
	queueURL string
	log      *zap.Logger
}

// NewClient builds the shared AWS SQS API client.
func NewClient(ctx context.Context, SQSConfig envConfig.SQS, log *zap.Logger) (*sqs.Client, error) {
	configOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(SQSConfig.Region),
	}

	var clientOpts []func(*sqs.Options)

	// Configure for local development with ElasticMQ
	if SQSConfig.Endpoint != "" {
		log.Info("Configuring SQS for local development",
			zap.String("endpoint", SQSConfig.Endpoint))
		configOpts = append(configOpts,
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("dummy", "dummy", "")))

		clientOpts = append(clientOpts, func(o *sqs.Options) {
			o.BaseEndpoint = aws.String(SQSConfig.Endpoint)
		})
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return sqs.NewFromConfig(cfg, clientOpts...), nil
}

// ForQueue binds the shared API client to one queue URL.
func ForQueue(client *sqs.Client, queueURL string, log *zap.Logger) *Client {
	log.Info("SQS queue client created", zap.String("queue_url", queueURL))
	return &Client{
		client:   client,
		queueURL: queueURL,
		log:      log,
	}
}

// ReceiveMessages receives messages from the queue
func (c *Client) ReceiveMessages(ctx context.Context, input *sqs.ReceiveMessageInput) (*sqs.ReceiveMessageOutput, error) {
	return c.client.ReceiveMessage(ctx, input)
}

// DeleteMessage deletes a message from the queue
func (c *Client) DeleteMessage(ctx context.Context, input *sqs.DeleteMessageInput) (*sqs.DeleteMessageOutput, error) {
	return c.client.DeleteMessage(ctx, input)
}

// QueueURL returns the bound queue URL
func (c *Client) QueueURL() string {
	return c.queueURL
}

// Send publishes one message to the queue with an optional delivery delay
// and string attributes.
func (c *Client) Send(ctx context.Context, body []byte, delay time.Duration, attributes map[string]string) error {
	if delay > maxDelay {
		delay = maxDelay
	}
	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(c.queueURL),
		MessageBody: aws.String(string(body)),
	}
	if delay > 0 {
		input.DelaySeconds = int32(delay / time.Second)
	}
	if len(attributes) > 0 {
		input.MessageAttributes = make(map[string]types.MessageAttributeValue, len(attributes))
		for name, value := range attributes {
			input.MessageAttributes[name] = types.MessageAttributeValue{
				DataType:    aws.String("String"),
				StringValue: aws.String(value),
			}
		}
	}

	if _, err := c.client.SendMessage(ctx, input); err != nil {
		c.log.Error("Failed to send message to SQS",
			zap.String("queue_url", c.queueURL),
			zap.Error(err))
		return fmt.Errorf("failed to send message to SQS: %w", err)
	}
	return nil
}
