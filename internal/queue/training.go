// Package queue provides the SQS producer that dispatches model retraining
// jobs to the trainer.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"carbmine/internal/config"
	"carbmine/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// TrainingTrigger enqueues TrainingJob messages.
type TrainingTrigger struct {
	client   SQSSender
	queueURL string
	dataset  string
	logger   *slog.Logger
	now      func() time.Time
}

// NewTrainingTrigger creates a trigger for the configured training queue.
// The default dataset is used when a request does not name one.
func NewTrainingTrigger(client SQSSender, awsCfg config.AWSConfig, defaultDataset string, logger *slog.Logger) *TrainingTrigger {
	if logger == nil {
		logger = slog.Default()
	}
	return &TrainingTrigger{
		client:   client,
		queueURL: awsCfg.TrainingQueueURL,
		dataset:  defaultDataset,
		logger:   logger,
		now:      time.Now,
	}
}

// Enabled reports whether a queue is configured.
func (t *TrainingTrigger) Enabled() bool {
	return t != nil && t.client != nil && t.queueURL != ""
}

// Enqueue sends a job and returns it. datasetPath may be empty.
func (t *TrainingTrigger) Enqueue(ctx context.Context, datasetPath, reason string) (*types.TrainingJob, error) {
	if !t.Enabled() {
		return nil, types.NewAppError(types.ErrCodeFeatureDisabled, "model retraining queue is not configured", nil)
	}
	if datasetPath == "" {
		datasetPath = t.dataset
	}
	if datasetPath == "" {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeValidationMissingField, "dataset_path is required", nil, map[string]any{"field": "dataset_path"})
	}

	job := &types.TrainingJob{
		JobID:       uuid.NewString(),
		DatasetPath: datasetPath,
		Reason:      reason,
		RequestedAt: t.now().UTC(),
	}
	body, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("queue: failed to marshal TrainingJob: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(t.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"job_id": {
				DataType:    aws.String("String"),
				StringValue: aws.String(job.JobID),
			},
		},
	}
	if reason != "" {
		input.MessageAttributes["reason"] = sqsTypes.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(reason),
		}
	}
	// FIFO queues require a message group and deduplication ID.
	if strings.HasSuffix(t.queueURL, ".fifo") {
		input.MessageGroupId = aws.String("model-training")
		input.MessageDeduplicationId = aws.String(job.JobID)
	}

	if _, err := t.client.SendMessage(ctx, input); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamQueue, "failed to enqueue training job", err)
	}

	t.logger.InfoContext(ctx, "training job enqueued",
		"queue_url", t.queueURL,
		"job_id", job.JobID,
		"dataset_path", job.DatasetPath,
		"reason", reason,
	)
	return job, nil
}

// DecodeTrainingJob parses a message body produced by Enqueue.
func DecodeTrainingJob(body string) (types.TrainingJob, error) {
	var job types.TrainingJob
	if err := json.Unmarshal([]byte(body), &job); err != nil {
		return job, fmt.Errorf("queue: invalid TrainingJob payload: %w", err)
	}
	if job.DatasetPath == "" {
		return job, fmt.Errorf("queue: TrainingJob %q has no dataset_path", job.JobID)
	}
	return job, nil
}
