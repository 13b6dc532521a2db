// Package queue wraps the distributed queue job descriptors travel over.
// ReceiveAndDelete gives the worker surface receive-and-delete semantics:
// a single logical call that dequeues zero or one message, deleting it
// from the queue as soon as it is handed back so a crashed worker can't
// replay it — re-work is cheap and duplicate completion is idempotent.
package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/pamaxie/Pamaxie.Scan-API/internal/logging"
)

// Config configures the SQS client from the AWS_* environment variables.
type Config struct {
	AccessKeyID string
	SecretKey   string
	Region      string
	QueueURL    string
	Endpoint    string // override for local/testing use only
}

// Queue sends job descriptors and leases them back out.
type Queue struct {
	client   *sqs.Client
	queueURL string
}

// New builds a Queue from Config.
func New(ctx context.Context, cfg Config) (*Queue, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("queue: loading aws config: %w", err)
	}

	client := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return &Queue{client: client, queueURL: cfg.QueueURL}, nil
}

// Send enqueues body as a new message. Any failure is returned plain; the
// coordinator maps it to error.internal and rolls back the staged object.
func (q *Queue) Send(ctx context.Context, body string) error {
	_, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(body),
	})
	if err != nil {
		logging.Warn().Err(err).Msg("queue: send failed")
		return fmt.Errorf("queue: send: %w", err)
	}
	return nil
}

// ReceiveAndDelete dequeues at most one message and deletes it from the
// queue before returning. It returns ("", nil) on an empty queue — the
// worker-facing get_work loop treats that as "try again", not an error.
func (q *Queue) ReceiveAndDelete(ctx context.Context) (string, error) {
	out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: 1,
		WaitTimeSeconds:     0,
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameSentTimestamp,
		},
	})
	if err != nil {
		logging.Warn().Err(err).Msg("queue: receive failed")
		return "", fmt.Errorf("queue: receive: %w", err)
	}
	if len(out.Messages) == 0 {
		return "", nil
	}

	msg := out.Messages[0]
	body := aws.ToString(msg.Body)

	if _, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: msg.ReceiptHandle,
	}); err != nil {
		logging.Warn().Err(err).Msg("queue: delete-after-receive failed")
		return "", errors.New("queue: message received but could not be deleted")
	}

	return body, nil
}
