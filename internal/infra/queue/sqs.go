package queue

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/Builder-Lawyers/stack-deployer/internal/application/dto"
	"github.com/Builder-Lawyers/stack-deployer/internal/application/interfaces"
	"github.com/Builder-Lawyers/stack-deployer/internal/infra/config"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// FifoQueue is the work queue backed by an SQS FIFO queue. Redelivery, content
// deduplication and dead-lettering are configured on the queue itself.
type FifoQueue struct {
	client *sqs.Client
	cfg    config.QueueConfig
}

var (
	_ interfaces.WorkQueue   = (*FifoQueue)(nil)
	_ interfaces.DeadLetters = (*FifoQueue)(nil)
)

func NewFifoQueue(client *sqs.Client, cfg config.QueueConfig) *FifoQueue {
	return &FifoQueue{client: client, cfg: cfg}
}

func NewFifoQueueFromConfig(awsCfg aws.Config, cfg config.QueueConfig) *FifoQueue {
	return NewFifoQueue(sqs.NewFromConfig(awsCfg), cfg)
}

func (q *FifoQueue) Enqueue(ctx context.Context, groupID, body string) (string, error) {
	input := &sqs.SendMessageInput{
		QueueUrl:       aws.String(q.cfg.URL),
		MessageBody:    aws.String(body),
		MessageGroupId: aws.String(groupID),
	}
	if !q.cfg.ContentDedup {
		input.MessageDeduplicationId = aws.String(DeduplicationID(body))
	}

	out, err := q.client.SendMessage(ctx, input)
	if err != nil {
		return "", fmt.Errorf("error sending message to queue, %w", err)
	}
	return aws.ToString(out.MessageId), nil
}

func (q *FifoQueue) Receive(ctx context.Context, max int) ([]dto.WorkItem, error) {
	if max < 1 || max > 10 {
		return nil, fmt.Errorf("receive batch size must be within 1..10, got %d", max)
	}
	out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.cfg.URL),
		MaxNumberOfMessages: int32(max),
		WaitTimeSeconds:     q.cfg.WaitSeconds,
		VisibilityTimeout:   q.cfg.VisibilityTimeout,
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameApproximateReceiveCount,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("error receiving from queue, %w", err)
	}

	items := make([]dto.WorkItem, 0, len(out.Messages))
	for _, m := range out.Messages {
		count, _ := strconv.Atoi(m.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)])
		items = append(items, dto.WorkItem{
			MessageID:     aws.ToString(m.MessageId),
			Body:          aws.ToString(m.Body),
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
			ReceiveCount:  count,
		})
	}
	return items, nil
}

func (q *FifoQueue) Delete(ctx context.Context, receiptHandle string) error {
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.cfg.URL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("error deleting message, %w", err)
	}
	return nil
}

func (q *FifoQueue) DeadLetterDepth(ctx context.Context) (int, error) {
	if q.cfg.DeadLetterURL == "" {
		return 0, fmt.Errorf("dead-letter queue is not configured")
	}
	out, err := q.client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(q.cfg.DeadLetterURL),
		AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameApproximateNumberOfMessages},
	})
	if err != nil {
		return 0, fmt.Errorf("error reading dead-letter queue attributes, %w", err)
	}

	depth, err := strconv.Atoi(out.Attributes[string(types.QueueAttributeNameApproximateNumberOfMessages)])
	if err != nil {
		return 0, fmt.Errorf("unexpected dead-letter queue depth, %w", err)
	}
	return depth, nil
}

// DeduplicationID is the explicit deduplication id used when the queue does not
// deduplicate by content: a digest of the body, so identical bodies collapse.
func DeduplicationID(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}
