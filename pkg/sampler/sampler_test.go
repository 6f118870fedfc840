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

package sampler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeReader struct {
	sync.Mutex
	visible    uint64
	empty      uint64
	visibleErr error
	emptyErr   error
	block      bool
	period     time.Duration
}

func (f *fakeReader) VisibleMessages(ctx context.Context) (uint64, error) {
	f.Lock()
	defer f.Unlock()
	if f.block {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	return f.visible, f.visibleErr
}

func (f *fakeReader) EmptyReceives(_ context.Context, period time.Duration) (uint64, error) {
	f.Lock()
	defer f.Unlock()
	f.period = period
	return f.empty, f.emptyErr
}

func TestSampler_Sample(t *testing.T) {
	ctx := context.Background()
	r := &fakeReader{visible: 7, empty: 2}
	s := NewSampler(r, WithPeriod(30*time.Second))

	got := s.Sample(ctx, t0)
	assert.Equal(t, Sample{Timestamp: t0, VisibleMessages: 7, EmptyReceives: 2}, got)
	assert.Equal(t, 30*time.Second, r.period)
	assert.Equal(t, 7.0, s.BacklogTrend())
}

func TestSampler_StaleOnFailure(t *testing.T) {
	ctx := context.Background()

	t.Run("no previous sample", func(t *testing.T) {
		s := NewSampler(&fakeReader{visibleErr: errors.New("service unavailable")})
		got := s.Sample(ctx, t0)
		assert.True(t, got.Stale)
		assert.Equal(t, t0, got.Timestamp)
		assert.Equal(t, uint64(0), got.VisibleMessages)
		assert.Equal(t, uint64(0), got.EmptyReceives)
	})

	t.Run("previous values are reused", func(t *testing.T) {
		r := &fakeReader{visible: 4, empty: 11}
		s := NewSampler(r)
		first := s.Sample(ctx, t0)
		assert.False(t, first.Stale)

		r.Lock()
		r.emptyErr = errors.New("throttled")
		r.visible = 100
		r.Unlock()
		second := s.Sample(ctx, t0.Add(time.Minute))
		assert.True(t, second.Stale)
		assert.Equal(t, t0.Add(time.Minute), second.Timestamp)
		assert.Equal(t, uint64(4), second.VisibleMessages)
		assert.Equal(t, uint64(11), second.EmptyReceives)
		// a failed read does not move the trend
		assert.Equal(t, 4.0, s.BacklogTrend())

		r.Lock()
		r.emptyErr = nil
		r.Unlock()
		third := s.Sample(ctx, t0.Add(2*time.Minute))
		assert.False(t, third.Stale)
		assert.Equal(t, uint64(100), third.VisibleMessages)
	})

	t.Run("timeout", func(t *testing.T) {
		r := &fakeReader{block: true}
		s := NewSampler(r, WithTimeout(20*time.Millisecond))
		start := time.Now()
		got := s.Sample(ctx, t0)
		assert.True(t, got.Stale)
		assert.Less(t, time.Since(start), 5*time.Second)
	})
}
