package queue_test

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"testing"

	"github.com/Builder-Lawyers/stack-deployer/internal/infra/config"
	"github.com/Builder-Lawyers/stack-deployer/internal/infra/queue"
	"github.com/Builder-Lawyers/stack-deployer/internal/testinfra"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sqsClient *sqs.Client

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()
	ls, err := testinfra.SetupLocalstack(ctx, "sqs")
	if err != nil {
		log.Fatalf("failed to start localstack: %v", err)
	}
	sqsClient = sqs.NewFromConfig(ls.AwsCfg)

	exitCode := m.Run()

	ls.Terminate(ctx)
	os.Exit(exitCode)
}

func newQueues(t *testing.T, name string, maxReceive int, contentDedup bool) config.QueueConfig {
	t.Helper()
	ctx := context.Background()

	dlq, err := sqsClient.CreateQueue(ctx, &sqs.CreateQueueInput{
		QueueName: aws.String(name + "-dlq.fifo"),
		Attributes: map[string]string{
			"FifoQueue": "true",
		},
	})
	require.NoError(t, err)
	dlqAttrs, err := sqsClient.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       dlq.QueueUrl,
		AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameQueueArn},
	})
	require.NoError(t, err)

	redrive, err := json.Marshal(map[string]any{
		"deadLetterTargetArn": dlqAttrs.Attributes["QueueArn"],
		"maxReceiveCount":     maxReceive,
	})
	require.NoError(t, err)

	attrs := map[string]string{
		"FifoQueue":     "true",
		"RedrivePolicy": string(redrive),
	}
	if contentDedup {
		attrs["ContentBasedDeduplication"] = "true"
	}
	q, err := sqsClient.CreateQueue(ctx, &sqs.CreateQueueInput{
		QueueName:  aws.String(name + ".fifo"),
		Attributes: attrs,
	})
	require.NoError(t, err)

	return config.QueueConfig{
		URL:               aws.ToString(q.QueueUrl),
		DeadLetterURL:     aws.ToString(dlq.QueueUrl),
		GroupID:           "deploy",
		BatchSize:         1,
		WaitSeconds:       1,
		VisibilityTimeout: 1,
		MaxReceiveCount:   maxReceive,
		ContentDedup:      contentDedup,
		Concurrency:       1,
	}
}

func TestEnqueueReceiveDelete(t *testing.T) {
	if testing.Short() {
		t.Skip("needs localstack")
	}
	ctx := context.Background()
	cfg := newQueues(t, "roundtrip", 3, true)
	q := queue.NewFifoQueue(sqsClient, cfg)

	id, err := q.Enqueue(ctx, cfg.GroupID, `{"id":"cus_1"}`)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	items, err := q.Receive(ctx, 1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, `{"id":"cus_1"}`, items[0].Body)

	require.NoError(t, q.Delete(ctx, items[0].ReceiptHandle))
}

func TestEnqueueDeduplicatesIdenticalBodies(t *testing.T) {
	if testing.Short() {
		t.Skip("needs localstack")
	}
	ctx := context.Background()
	cfg := newQueues(t, "dedup", 3, false)
	q := queue.NewFifoQueue(sqsClient, cfg)

	_, err := q.Enqueue(ctx, cfg.GroupID, `{"id":"cus_2"}`)
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, cfg.GroupID, `{"id":"cus_2"}`)
	require.NoError(t, err)

	items, err := q.Receive(ctx, 1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NoError(t, q.Delete(ctx, items[0].ReceiptHandle))

	items, err = q.Receive(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, items, "duplicate body must not be delivered twice")
}

func TestReceiveRejectsInvalidBatchSize(t *testing.T) {
	q := queue.NewFifoQueue(sqs.New(sqs.Options{Region: "us-east-1"}), config.QueueConfig{URL: "http://localhost/q.fifo"})

	_, err := q.Receive(context.Background(), 0)
	assert.Error(t, err)
	_, err = q.Receive(context.Background(), 11)
	assert.Error(t, err)
}

func TestDeduplicationIDIsStable(t *testing.T) {
	a := queue.DeduplicationID(`{"id":"cus_1"}`)
	assert.Equal(t, a, queue.DeduplicationID(`{"id":"cus_1"}`))
	assert.NotEqual(t, a, queue.DeduplicationID(`{"id":"cus_2"}`))
	assert.Len(t, a, 64)
}
