/*
Copyright 2022 The Numaproj Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/numaproj/spotfleet/pkg/workqueue"
)

// SQS long polling is capped at 20 seconds.
const maxReceiveWait = 20 * time.Second

// Queue is the SQS work queue.
type Queue struct {
	sqs   SQSAPI
	url   string
	clock func() time.Time
}

var _ workqueue.Queue = (*Queue)(nil)

func NewQueue(c *Clients, url string) *Queue {
	return &Queue{sqs: c.SQS, url: url, clock: time.Now}
}

// OpenQueue resolves the URL of the named queue.
func OpenQueue(ctx context.Context, c *Clients, name string) (*Queue, error) {
	out, err := c.SQS.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(name)})
	if err != nil {
		return nil, fmt.Errorf("failed to get the url of queue %q, %w", name, err)
	}
	return NewQueue(c, aws.ToString(out.QueueUrl)), nil
}

func (q *Queue) Enqueue(ctx context.Context, body string) (string, error) {
	out, err := q.sqs.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.url),
		MessageBody: aws.String(body),
	})
	if err != nil {
		return "", fmt.Errorf("failed to send message, %w", err)
	}
	return aws.ToString(out.MessageId), nil
}

func (q *Queue) Receive(ctx context.Context, maxWait time.Duration) (*workqueue.Message, error) {
	if maxWait > maxReceiveWait {
		maxWait = maxReceiveWait
	}
	out, err := q.sqs.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.url),
		MaxNumberOfMessages: 1,
		WaitTimeSeconds:     int32(maxWait / time.Second),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to receive message, %w", err)
	}
	if len(out.Messages) == 0 {
		return nil, workqueue.ErrEmpty
	}
	m := out.Messages[0]
	return &workqueue.Message{
		ID:            aws.ToString(m.MessageId),
		Body:          aws.ToString(m.Body),
		ReceiptHandle: aws.ToString(m.ReceiptHandle),
		ReceivedAt:    q.clock(),
	}, nil
}

func (q *Queue) Delete(ctx context.Context, m *workqueue.Message) error {
	_, err := q.sqs.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.url),
		ReceiptHandle: aws.String(m.ReceiptHandle),
	})
	if err != nil {
		return fmt.Errorf("failed to delete message %q, %w", m.ID, err)
	}
	return nil
}

func (q *Queue) Close() error {
	return nil
}
