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

package inmem

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/numaproj/spotfleet/pkg/workqueue"
)

type queueOptions struct {
	visibilityTimeout time.Duration
	delay             time.Duration
	pollInterval      time.Duration
	clock             func() time.Time
}

type QueueOption func(*queueOptions)

// WithVisibilityTimeout sets how long a received message stays hidden
func WithVisibilityTimeout(d time.Duration) QueueOption {
	return func(o *queueOptions) {
		o.visibilityTimeout = d
	}
}

// WithDelay sets the delay before an enqueued message becomes visible
func WithDelay(d time.Duration) QueueOption {
	return func(o *queueOptions) {
		o.delay = d
	}
}

// WithQueueClock sets the time source, for testing
func WithQueueClock(clock func() time.Time) QueueOption {
	return func(o *queueOptions) {
		o.clock = clock
	}
}

type queued struct {
	msg       workqueue.Message
	visibleAt time.Time
	receipt   string
}

// Queue is an in memory work queue. It also serves the queue metrics, so
// it can back a sampler.
type Queue struct {
	*faults
	options *queueOptions

	lock          sync.Mutex
	messages      []*queued
	emptyReceives []time.Time
}

var _ workqueue.Queue = (*Queue)(nil)

func NewQueue(opts ...QueueOption) *Queue {
	o := &queueOptions{
		visibilityTimeout: 30 * time.Second,
		pollInterval:      10 * time.Millisecond,
		clock:             time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return &Queue{faults: newFaults(), options: o}
}

func (q *Queue) Enqueue(ctx context.Context, body string) (string, error) {
	if err := q.check(ctx, OpEnqueue); err != nil {
		return "", err
	}
	q.lock.Lock()
	defer q.lock.Unlock()
	id := uuid.NewString()
	q.messages = append(q.messages, &queued{
		msg:       workqueue.Message{ID: id, Body: body},
		visibleAt: q.options.clock().Add(q.options.delay),
	})
	return id, nil
}

// Receive polls for a visible message until maxWait elapses.
func (q *Queue) Receive(ctx context.Context, maxWait time.Duration) (*workqueue.Message, error) {
	if err := q.check(ctx, OpReceive); err != nil {
		return nil, err
	}
	deadline := time.Now().Add(maxWait)
	for {
		if m := q.take(); m != nil {
			return m, nil
		}
		if !time.Now().Before(deadline) {
			q.lock.Lock()
			q.emptyReceives = append(q.emptyReceives, q.options.clock())
			q.lock.Unlock()
			return nil, workqueue.ErrEmpty
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(q.options.pollInterval):
		}
	}
}

func (q *Queue) take() *workqueue.Message {
	q.lock.Lock()
	defer q.lock.Unlock()
	now := q.options.clock()
	for _, m := range q.messages {
		if !now.Before(m.visibleAt) {
			m.visibleAt = now.Add(q.options.visibilityTimeout)
			m.receipt = uuid.NewString()
			msg := m.msg
			msg.ReceiptHandle = m.receipt
			msg.ReceivedAt = now
			return &msg
		}
	}
	return nil
}

func (q *Queue) Delete(_ context.Context, m *workqueue.Message) error {
	q.lock.Lock()
	defer q.lock.Unlock()
	for i, x := range q.messages {
		if x.receipt != "" && x.receipt == m.ReceiptHandle {
			q.messages = append(q.messages[:i], q.messages[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("receipt handle %q not found", m.ReceiptHandle)
}

func (q *Queue) Close() error {
	return nil
}

// VisibleMessages returns the number of messages available for receipt.
func (q *Queue) VisibleMessages(ctx context.Context) (uint64, error) {
	if err := q.check(ctx, OpVisibleMessages); err != nil {
		return 0, err
	}
	q.lock.Lock()
	defer q.lock.Unlock()
	now := q.options.clock()
	var n uint64
	for _, m := range q.messages {
		if !now.Before(m.visibleAt) {
			n++
		}
	}
	return n, nil
}

// EmptyReceives returns the number of receives which found no message in the last period.
func (q *Queue) EmptyReceives(ctx context.Context, period time.Duration) (uint64, error) {
	if err := q.check(ctx, OpEmptyReceives); err != nil {
		return 0, err
	}
	q.lock.Lock()
	defer q.lock.Unlock()
	since := q.options.clock().Add(-period)
	kept := q.emptyReceives[:0]
	for _, t := range q.emptyReceives {
		if t.After(since) {
			kept = append(kept, t)
		}
	}
	q.emptyReceives = kept
	return uint64(len(kept)), nil
}
