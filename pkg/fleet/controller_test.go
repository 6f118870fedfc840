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

package fleet

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numaproj/spotfleet/pkg/scaling"
)

type fakeCompute struct {
	sync.Mutex
	status       GroupStatus
	describeErr  error
	setErr       error
	block        bool
	describes    int
	sets         []int32
	replaceDelay int
}

func newFakeCompute(name string, desired, minSize, maxSize int32) *fakeCompute {
	return &fakeCompute{status: GroupStatus{Name: name, DesiredCapacity: desired, MinSize: minSize, MaxSize: maxSize}}
}

func (f *fakeCompute) DescribeGroup(ctx context.Context, name string) (GroupStatus, error) {
	f.Lock()
	block := f.block
	f.Unlock()
	if block {
		<-ctx.Done()
		return GroupStatus{}, ctx.Err()
	}
	f.Lock()
	defer f.Unlock()
	f.describes++
	if f.describeErr != nil {
		return GroupStatus{}, f.describeErr
	}
	s := f.status
	s.Instances = append([]Instance(nil), f.status.Instances...)
	// Pending instances come into service after being observed once.
	for i := range f.status.Instances {
		if f.status.Instances[i].LifecycleState == LifecyclePending {
			f.status.Instances[i].LifecycleState = LifecycleInService
		}
	}
	return s, nil
}

func (f *fakeCompute) SetDesiredCapacity(_ context.Context, _ string, n int32) error {
	f.Lock()
	defer f.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.sets = append(f.sets, n)
	f.status.DesiredCapacity = n
	return nil
}

func (f *fakeCompute) setCalls() []int32 {
	f.Lock()
	defer f.Unlock()
	return append([]int32(nil), f.sets...)
}

func newTestController(t *testing.T, compute *fakeCompute, minSize, maxSize int32, opts ...Option) *Controller {
	t.Helper()
	g, err := NewWorkerGroup(compute.status.Name, minSize, maxSize)
	require.NoError(t, err)
	return NewController(compute, g, opts...)
}

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func TestNewWorkerGroup(t *testing.T) {
	g, err := NewWorkerGroup("workers", 2, 5)
	require.NoError(t, err)
	assert.Equal(t, int32(2), g.DesiredCapacity)
	assert.Equal(t, int32(2), g.Clamp(0))
	assert.Equal(t, int32(5), g.Clamp(9))
	assert.Equal(t, int32(3), g.Clamp(3))

	for _, b := range [][2]int32{{3, 2}, {-1, 2}} {
		_, err := NewWorkerGroup("workers", b[0], b[1])
		assert.ErrorIs(t, err, ErrInvalidBounds)
	}
}

func TestApply_NoOp(t *testing.T) {
	compute := newFakeCompute("workers", 0, 0, 50)
	c := newTestController(t, compute, 0, 50)
	delta, err := c.Apply(context.Background(), scaling.NoOp, t0)
	require.NoError(t, err)
	assert.Equal(t, AppliedDelta(0), delta)
	assert.Equal(t, 0, compute.describes)
	assert.Empty(t, compute.setCalls())
	assert.Equal(t, int32(0), c.Group().DesiredCapacity)
}

func TestApply_ScaleUp(t *testing.T) {
	compute := newFakeCompute("workers", 0, 0, 50)
	c := newTestController(t, compute, 0, 50)
	delta, err := c.Apply(context.Background(), scaling.ScaleUp, t0)
	require.NoError(t, err)
	assert.Equal(t, AppliedDelta(1), delta)
	g := c.Group()
	assert.Equal(t, int32(1), g.DesiredCapacity)
	assert.Equal(t, t0, g.LastScaleUpAt)
	assert.True(t, g.LastScaleDownAt.IsZero())
	assert.Equal(t, []int32{1}, compute.setCalls())
}

func TestApply_AtBounds(t *testing.T) {
	t.Run("scale up at max", func(t *testing.T) {
		compute := newFakeCompute("workers", 50, 0, 50)
		c := newTestController(t, compute, 0, 50)
		delta, err := c.Apply(context.Background(), scaling.ScaleUp, t0)
		require.NoError(t, err)
		assert.Equal(t, AppliedDelta(0), delta)
		assert.Empty(t, compute.setCalls())
		assert.Equal(t, int32(50), c.Group().DesiredCapacity)
		assert.True(t, c.Group().LastScaleUpAt.IsZero())
	})
	t.Run("scale down at min", func(t *testing.T) {
		compute := newFakeCompute("workers", 2, 2, 50)
		c := newTestController(t, compute, 2, 50)
		delta, err := c.Apply(context.Background(), scaling.ScaleDown, t0)
		require.NoError(t, err)
		assert.Equal(t, AppliedDelta(0), delta)
		assert.Empty(t, compute.setCalls())
	})
	t.Run("observed above max", func(t *testing.T) {
		compute := newFakeCompute("workers", 60, 0, 50)
		c := newTestController(t, compute, 0, 50)
		delta, err := c.Apply(context.Background(), scaling.ScaleDown, t0)
		require.NoError(t, err)
		assert.Equal(t, AppliedDelta(-11), delta)
		assert.Equal(t, []int32{49}, compute.setCalls())
		assert.Equal(t, int32(49), c.Group().DesiredCapacity)
	})
}

func TestApply_Cooldown(t *testing.T) {
	compute := newFakeCompute("workers", 0, 0, 50)
	c := newTestController(t, compute, 0, 50)
	ctx := context.Background()

	delta, err := c.Apply(ctx, scaling.ScaleUp, t0)
	require.NoError(t, err)
	assert.Equal(t, AppliedDelta(1), delta)

	// Inside the scale up cooldown, the group is not even described.
	describes := compute.describes
	delta, err = c.Apply(ctx, scaling.ScaleUp, t0.Add(30*time.Second))
	require.NoError(t, err)
	assert.Equal(t, AppliedDelta(0), delta)
	assert.Equal(t, describes, compute.describes)

	// Scale down has its own cooldown.
	delta, err = c.Apply(ctx, scaling.ScaleDown, t0.Add(40*time.Second))
	require.NoError(t, err)
	assert.Equal(t, AppliedDelta(-1), delta)

	delta, err = c.Apply(ctx, scaling.ScaleUp, t0.Add(60*time.Second))
	require.NoError(t, err)
	assert.Equal(t, AppliedDelta(1), delta)

	delta, err = c.Apply(ctx, scaling.ScaleDown, t0.Add(90*time.Second))
	require.NoError(t, err)
	assert.Equal(t, AppliedDelta(0), delta)
	assert.Equal(t, []int32{1, 0, 1}, compute.setCalls())
}

func TestApply_ProvisioningFailure(t *testing.T) {
	compute := newFakeCompute("workers", 3, 0, 50)
	compute.setErr = errors.New("throttled")
	c := newTestController(t, compute, 0, 50)
	ctx := context.Background()

	before := c.Group()
	delta, err := c.Apply(ctx, scaling.ScaleUp, t0)
	assert.ErrorIs(t, err, ErrProvisioningFailed)
	assert.ErrorContains(t, err, "throttled")
	assert.Equal(t, AppliedDelta(0), delta)
	after := c.Group()
	assert.Equal(t, before.DesiredCapacity, after.DesiredCapacity)
	assert.True(t, after.LastScaleUpAt.IsZero())

	// Retried on the next period, not suppressed by a cooldown.
	compute.Lock()
	compute.setErr = nil
	compute.Unlock()
	delta, err = c.Apply(ctx, scaling.ScaleUp, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, AppliedDelta(1), delta)
	assert.Equal(t, int32(4), c.Group().DesiredCapacity)
}

func TestApply_DescribeFailure(t *testing.T) {
	compute := newFakeCompute("workers", 3, 0, 50)
	compute.describeErr = errors.New("unavailable")
	c := newTestController(t, compute, 0, 50)
	_, err := c.Apply(context.Background(), scaling.ScaleDown, t0)
	assert.ErrorIs(t, err, ErrProvisioningFailed)
	assert.Empty(t, compute.setCalls())
}

func TestApply_Timeout(t *testing.T) {
	compute := newFakeCompute("workers", 3, 0, 50)
	compute.block = true
	c := newTestController(t, compute, 0, 50, WithTimeout(20*time.Millisecond))
	start := time.Now()
	_, err := c.Apply(context.Background(), scaling.ScaleUp, t0)
	assert.ErrorIs(t, err, ErrProvisioningFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestApply_ExternalChange(t *testing.T) {
	compute := newFakeCompute("workers", 0, 0, 50)
	c := newTestController(t, compute, 0, 50)
	// An alarm action raised the capacity out of band.
	compute.status.DesiredCapacity = 5
	delta, err := c.Apply(context.Background(), scaling.ScaleUp, t0)
	require.NoError(t, err)
	assert.Equal(t, AppliedDelta(1), delta)
	assert.Equal(t, int32(6), c.Group().DesiredCapacity)
}

func TestApply_ReplicasPerScale(t *testing.T) {
	compute := newFakeCompute("workers", 0, 0, 5)
	c := newTestController(t, compute, 0, 5, WithReplicasPerScaleUp(3), WithReplicasPerScaleDown(2))
	ctx := context.Background()
	delta, err := c.Apply(ctx, scaling.ScaleUp, t0)
	require.NoError(t, err)
	assert.Equal(t, AppliedDelta(3), delta)
	delta, err = c.Apply(ctx, scaling.ScaleUp, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, AppliedDelta(2), delta)
	delta, err = c.Apply(ctx, scaling.ScaleDown, t0.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, AppliedDelta(-2), delta)
}

func TestDrain(t *testing.T) {
	compute := newFakeCompute("workers", 7, 1, 50)
	c := newTestController(t, compute, 1, 50)
	ctx := context.Background()
	_, err := c.Apply(ctx, scaling.ScaleDown, t0)
	require.NoError(t, err)

	// Drain ignores the cooldown.
	delta, err := c.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, AppliedDelta(-5), delta)
	assert.Equal(t, int32(1), c.Group().DesiredCapacity)

	compute.setErr = fmt.Errorf("denied")
	_, err = c.Drain(ctx)
	assert.ErrorIs(t, err, ErrProvisioningFailed)
}

func TestRefresh(t *testing.T) {
	compute := newFakeCompute("workers", 4, 0, 50)
	compute.status.Instances = []Instance{{ID: "i-1", LifecycleState: LifecycleInService}, {ID: "i-2", LifecycleState: LifecyclePending}}
	c := newTestController(t, compute, 0, 50)
	status, err := c.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(4), status.DesiredCapacity)
	g := c.Group()
	assert.Equal(t, int32(4), g.ObservedCapacity)
	assert.Equal(t, int32(0), g.DesiredCapacity)
	assert.Len(t, g.Instances, 2)
	assert.Equal(t, 1, g.InService())
}

func TestTarget(t *testing.T) {
	compute := newFakeCompute("workers", 9, 0, 10)
	c := newTestController(t, compute, 0, 10, WithReplicasPerScaleUp(3), WithReplicasPerScaleDown(2))
	assert.Equal(t, int32(3), c.Target(scaling.ScaleUp))
	_, err := c.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(10), c.Target(scaling.ScaleUp))
	assert.Equal(t, int32(7), c.Target(scaling.ScaleDown))
	assert.Equal(t, int32(9), c.Target(scaling.NoOp))
}

// Random action sequences keep the capacity within bounds, move it by at most
// one step, and honour both cooldowns.
func TestApply_Properties(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	compute := newFakeCompute("workers", 0, 0, 4)
	c := newTestController(t, compute, 0, 4)
	ctx := context.Background()
	now := t0
	var lastUp, lastDown time.Time
	for i := 0; i < 1000; i++ {
		now = now.Add(time.Duration(r.Intn(90)) * time.Second)
		compute.Lock()
		compute.setErr = nil
		if r.Intn(10) == 0 {
			compute.setErr = errors.New("boom")
		}
		compute.Unlock()
		action := scaling.Action(r.Intn(3))
		before := c.Group().DesiredCapacity
		delta, err := c.Apply(ctx, action, now)
		g := c.Group()
		require.GreaterOrEqual(t, g.DesiredCapacity, g.MinSize)
		require.LessOrEqual(t, g.DesiredCapacity, g.MaxSize)
		require.LessOrEqual(t, delta, AppliedDelta(1))
		require.GreaterOrEqual(t, delta, AppliedDelta(-1))
		if err != nil {
			require.Equal(t, before, g.DesiredCapacity)
			require.Equal(t, AppliedDelta(0), delta)
			continue
		}
		switch {
		case delta > 0:
			require.Equal(t, scaling.ScaleUp, action)
			if !lastUp.IsZero() {
				require.GreaterOrEqual(t, now.Sub(lastUp), time.Minute)
			}
			lastUp = now
		case delta < 0:
			require.Equal(t, scaling.ScaleDown, action)
			if !lastDown.IsZero() {
				require.GreaterOrEqual(t, now.Sub(lastDown), time.Minute)
			}
			lastDown = now
		}
	}
}
