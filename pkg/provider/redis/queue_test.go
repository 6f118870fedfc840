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

package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numaproj/spotfleet/pkg/sampler"
	redisclient "github.com/numaproj/spotfleet/pkg/shared/clients/redis"
	"github.com/numaproj/spotfleet/pkg/workqueue"
)

var _ sampler.MetricsReader = (*Queue)(nil)

type fakeClock struct {
	lock sync.Mutex
	now  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.now
}

func (c *fakeClock) Add(d time.Duration) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.now = c.now.Add(d)
}

func newTestQueue(t *testing.T, opts ...Option) (*Queue, *fakeClock, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	clock := &fakeClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	client := redisclient.NewRedisClient(&redis.UniversalOptions{Addrs: []string{s.Addr()}})
	q := NewQueue(client, "jobs", append([]Option{WithClock(clock.Now)}, opts...)...)
	t.Cleanup(func() { _ = q.Close() })
	return q, clock, s
}

func TestQueue_EnqueueReceiveDelete(t *testing.T) {
	q, _, s := newTestQueue(t)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, "job-1")
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, "job-2")
	require.NoError(t, err)

	visible, err := q.VisibleMessages(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), visible)

	m, err := q.Receive(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, id, m.ID)
	assert.Equal(t, "job-1", m.Body)

	visible, err = q.VisibleMessages(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), visible)

	require.NoError(t, q.Delete(ctx, m))
	assert.False(t, s.Exists("spotfleet:{jobs}:inflight"))
	got, err := s.HKeys("spotfleet:{jobs}:messages")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestQueue_VisibilityTimeout(t *testing.T) {
	q, clock, _ := newTestQueue(t, WithVisibilityTimeout(30*time.Second))
	ctx := context.Background()
	_, err := q.Enqueue(ctx, "job")
	require.NoError(t, err)

	first, err := q.Receive(ctx, time.Second)
	require.NoError(t, err)

	clock.Add(29 * time.Second)
	visible, err := q.VisibleMessages(ctx)
	require.NoError(t, err)
	assert.Zero(t, visible)

	clock.Add(2 * time.Second)
	again, err := q.Receive(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	require.NoError(t, q.Delete(ctx, again))

	clock.Add(time.Minute)
	visible, err = q.VisibleMessages(ctx)
	require.NoError(t, err)
	assert.Zero(t, visible)
}

func TestQueue_Delay(t *testing.T) {
	q, clock, _ := newTestQueue(t, WithDelay(15*time.Second))
	ctx := context.Background()
	_, err := q.Enqueue(ctx, "job")
	require.NoError(t, err)

	visible, err := q.VisibleMessages(ctx)
	require.NoError(t, err)
	assert.Zero(t, visible)

	clock.Add(15 * time.Second)
	visible, err = q.VisibleMessages(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), visible)
}

func TestQueue_EmptyReceives(t *testing.T) {
	q, clock, s := newTestQueue(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := q.Receive(ctx, 0)
		assert.ErrorIs(t, err, workqueue.ErrEmpty)
	}
	// The current minute is not complete yet.
	n, err := q.EmptyReceives(ctx, time.Minute)
	require.NoError(t, err)
	assert.Zero(t, n)

	clock.Add(time.Minute)
	_, err = q.Receive(ctx, 0)
	assert.ErrorIs(t, err, workqueue.ErrEmpty)
	clock.Add(time.Minute)

	n, err = q.EmptyReceives(ctx, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
	n, err = q.EmptyReceives(ctx, 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), n)

	key := q.emptyKey(clock.Now().Add(-time.Minute))
	assert.Equal(t, emptyCounterTTL, s.TTL(key))
}

func TestQueue_DeletedWhileInFlight(t *testing.T) {
	q, clock, _ := newTestQueue(t, WithVisibilityTimeout(time.Second))
	ctx := context.Background()
	_, err := q.Enqueue(ctx, "job")
	require.NoError(t, err)
	m, err := q.Receive(ctx, time.Second)
	require.NoError(t, err)
	require.NoError(t, q.Delete(ctx, m))

	clock.Add(time.Minute)
	visible, err := q.VisibleMessages(ctx)
	require.NoError(t, err)
	assert.Zero(t, visible)
}

func TestQueue_ConnectionError(t *testing.T) {
	client := redisclient.NewRedisClient(&redis.UniversalOptions{Addrs: []string{"127.0.0.1:1"}, MaxRetries: -1})
	q := NewQueue(client, "jobs")
	defer func() { _ = q.Close() }()
	_, err := q.VisibleMessages(context.Background())
	assert.Error(t, err)
	_, err = q.EmptyReceives(context.Background(), time.Minute)
	assert.Error(t, err)
}
