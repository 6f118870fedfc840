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

// Package redis implements a self-hosted work queue on redis, for fleets
// which do not run next to a managed queue service. It also reports the
// queue depth signals the autoscaler samples.
//
// Keys of a queue named q, all in the same cluster slot:
//
//	spotfleet:{q}:pending         list of message IDs ready for delivery
//	spotfleet:{q}:messages        hash of message ID to body
//	spotfleet:{q}:delayed         sorted set of message IDs by delivery time
//	spotfleet:{q}:inflight        sorted set of received IDs by visibility deadline
//	spotfleet:{q}:empty:<minute>  counter of empty receives in a minute
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	redisclient "github.com/numaproj/spotfleet/pkg/shared/clients/redis"
	"github.com/numaproj/spotfleet/pkg/workqueue"
)

// Empty receive counters outlive any sampling period.
const emptyCounterTTL = time.Hour

// promote moves the due delayed messages and the expired in flight ones back
// to the pending list.
var promote = redis.NewScript(`
local due = {}
for _, key in ipairs({KEYS[2], KEYS[3]}) do
  local ids = redis.call('ZRANGEBYSCORE', key, '-inf', ARGV[1])
  for _, id in ipairs(ids) do
    redis.call('ZREM', key, id)
    if redis.call('HEXISTS', KEYS[4], id) == 1 then
      redis.call('RPUSH', KEYS[1], id)
      table.insert(due, id)
    end
  end
end
return #due
`)

type options struct {
	visibilityTimeout time.Duration
	delay             time.Duration
	clock             func() time.Time
}

type Option func(*options)

func defaultOptions() *options {
	return &options{
		visibilityTimeout: 30 * time.Second,
		clock:             time.Now,
	}
}

// WithVisibilityTimeout sets how long a received message stays hidden before it is delivered again.
func WithVisibilityTimeout(d time.Duration) Option {
	return func(o *options) {
		o.visibilityTimeout = d
	}
}

// WithDelay delays the delivery of every enqueued message.
func WithDelay(d time.Duration) Option {
	return func(o *options) {
		o.delay = d
	}
}

// WithClock sets the clock of the visibility deadlines and the empty receive counters.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// Queue is a redis backed work queue. Messages are delivered at least once.
type Queue struct {
	client  *redisclient.RedisClient
	name    string
	options *options
}

var _ workqueue.Queue = (*Queue)(nil)

func NewQueue(client *redisclient.RedisClient, name string, opts ...Option) *Queue {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return &Queue{client: client, name: name, options: o}
}

func (q *Queue) key(suffix string) string {
	return "spotfleet:{" + q.name + "}:" + suffix
}

func (q *Queue) emptyKey(t time.Time) string {
	return q.key("empty:" + strconv.FormatInt(t.Unix()/60, 10))
}

func (q *Queue) Enqueue(ctx context.Context, body string) (string, error) {
	id := uuid.NewString()
	_, err := q.client.Client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, q.key("messages"), id, body)
		if q.options.delay > 0 {
			p.ZAdd(ctx, q.key("delayed"), redis.Z{Score: score(q.options.clock().Add(q.options.delay)), Member: id})
		} else {
			p.RPush(ctx, q.key("pending"), id)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to enqueue to %q, %w", q.name, err)
	}
	return id, nil
}

func (q *Queue) Receive(ctx context.Context, maxWait time.Duration) (*workqueue.Message, error) {
	if err := q.promote(ctx); err != nil {
		return nil, err
	}
	// Blocking pops wait at least a second, a zero timeout blocks forever.
	if maxWait < time.Second {
		maxWait = time.Second
	}
	res, err := q.client.Client.BLPop(ctx, maxWait, q.key("pending")).Result()
	if errors.Is(err, redis.Nil) {
		if err := q.countEmpty(ctx); err != nil {
			return nil, err
		}
		return nil, workqueue.ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("failed to receive from %q, %w", q.name, err)
	}
	id := res[1]
	now := q.options.clock()
	if err := q.client.Client.ZAdd(ctx, q.key("inflight"), redis.Z{Score: score(now.Add(q.options.visibilityTimeout)), Member: id}).Err(); err != nil {
		// Back to the head, the message was never handed out.
		_ = q.client.Client.LPush(context.WithoutCancel(ctx), q.key("pending"), id).Err()
		return nil, fmt.Errorf("failed to mark message %q in flight, %w", id, err)
	}
	body, err := q.client.Client.HGet(ctx, q.key("messages"), id).Result()
	if errors.Is(err, redis.Nil) {
		// Deleted by a consumer which received it before a redelivery.
		_ = q.client.Client.ZRem(ctx, q.key("inflight"), id).Err()
		return nil, workqueue.ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read message %q, %w", id, err)
	}
	return &workqueue.Message{ID: id, Body: body, ReceiptHandle: id, ReceivedAt: now}, nil
}

func (q *Queue) promote(ctx context.Context) error {
	keys := []string{q.key("pending"), q.key("delayed"), q.key("inflight"), q.key("messages")}
	if err := promote.Run(ctx, q.client.Client, keys, score(q.options.clock())).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to promote due messages of %q, %w", q.name, err)
	}
	return nil
}

func (q *Queue) countEmpty(ctx context.Context) error {
	key := q.emptyKey(q.options.clock())
	_, err := q.client.Client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, key)
		p.Expire(ctx, key, emptyCounterTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to count an empty receive of %q, %w", q.name, err)
	}
	return nil
}

func (q *Queue) Delete(ctx context.Context, m *workqueue.Message) error {
	_, err := q.client.Client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRem(ctx, q.key("inflight"), m.ReceiptHandle)
		p.HDel(ctx, q.key("messages"), m.ReceiptHandle)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete message %q, %w", m.ID, err)
	}
	return nil
}

func (q *Queue) Close() error {
	return q.client.Close()
}

// VisibleMessages returns the number of messages ready for delivery.
func (q *Queue) VisibleMessages(ctx context.Context) (uint64, error) {
	if err := q.promote(ctx); err != nil {
		return 0, err
	}
	n, err := q.client.Client.LLen(ctx, q.key("pending")).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get the length of %q, %w", q.name, err)
	}
	return uint64(n), nil
}

// EmptyReceives sums the empty receive counters of the complete minutes of the last period.
func (q *Queue) EmptyReceives(ctx context.Context, period time.Duration) (uint64, error) {
	now := q.options.clock().Truncate(time.Minute)
	minutes := int(period / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	keys := make([]string, 0, minutes)
	for i := 1; i <= minutes; i++ {
		keys = append(keys, q.emptyKey(now.Add(-time.Duration(i)*time.Minute)))
	}
	values, err := q.client.Client.MGet(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read the empty receive counters of %q, %w", q.name, err)
	}
	var total uint64
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid empty receive counter %q, %w", s, err)
		}
		total += n
	}
	return total, nil
}

func score(t time.Time) float64 {
	return float64(t.UnixMilli())
}
