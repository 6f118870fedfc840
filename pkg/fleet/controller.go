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
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/numaproj/spotfleet/pkg/scaling"
	"github.com/numaproj/spotfleet/pkg/shared/logging"
)

// AppliedDelta is the capacity change that was confirmed by the compute
// service. It is 0 when nothing was changed.
type AppliedDelta int32

// Controller turns scaling actions into desired capacity changes of the worker group.
type Controller struct {
	compute ComputeClient
	options *options

	lock  sync.RWMutex
	group *WorkerGroup
}

// NewController returns a controller owning the given group.
func NewController(compute ComputeClient, group *WorkerGroup, opts ...Option) *Controller {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if o.replicasPerScaleUp < 1 {
		o.replicasPerScaleUp = 1
	}
	if o.replicasPerScaleDown < 1 {
		o.replicasPerScaleDown = 1
	}
	return &Controller{
		compute: compute,
		options: o,
		group:   group,
	}
}

// Group returns a snapshot of the worker group.
func (c *Controller) Group() WorkerGroup {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.group.DeepCopy()
}

// Apply applies an action at the given time.
//
// A NoOp, an action within its cooldown, or an action that would not change
// the clamped capacity returns a zero delta. When the compute service fails,
// the error wraps ErrProvisioningFailed and the group is left as it was, so
// the same action is attempted again on the next evaluation.
func (c *Controller) Apply(ctx context.Context, action scaling.Action, now time.Time) (AppliedDelta, error) {
	log := logging.FromContext(ctx).With("group", c.group.Name, "action", action.String())
	switch action {
	case scaling.ScaleUp:
		if c.inCooldown(c.group.LastScaleUpAt, c.options.scaleUpCooldown, now) {
			log.Infof("Cooldown period for scaling up, skip scaling.")
			return 0, nil
		}
	case scaling.ScaleDown:
		if c.inCooldown(c.group.LastScaleDownAt, c.options.scaleDownCooldown, now) {
			log.Infof("Cooldown period for scaling down, skip scaling.")
			return 0, nil
		}
	default:
		return 0, nil
	}
	step := c.step(action)

	status, err := c.describe(ctx)
	if err != nil {
		return 0, err
	}
	observed := status.DesiredCapacity
	c.lock.Lock()
	c.group.observe(status, now)
	current := c.group.Clamp(observed)
	if current != observed {
		// Someone might have changed the capacity out of band.
		log.Infof("Observed desired capacity %d of group %q is out of [%d, %d], using %d.", observed, c.group.Name, c.group.MinSize, c.group.MaxSize, current)
	}
	desired := c.group.Clamp(current + step)
	if desired == observed {
		c.group.DesiredCapacity = observed
		c.lock.Unlock()
		log.Infof("Desired capacity of group %q is already %d, skip scaling.", c.group.Name, desired)
		return 0, nil
	}
	c.lock.Unlock()

	if err := c.setDesiredCapacity(ctx, desired); err != nil {
		log.Errorw("Failed to set desired capacity", zap.Int32("from", observed), zap.Int32("to", desired), zap.Error(err))
		return 0, err
	}

	c.lock.Lock()
	c.group.DesiredCapacity = desired
	c.group.ObservedCapacity = desired
	if action == scaling.ScaleUp {
		c.group.LastScaleUpAt = now
	} else {
		c.group.LastScaleDownAt = now
	}
	c.lock.Unlock()
	log.Infow("Scaled worker group", zap.Int32("from", observed), zap.Int32("to", desired))
	return AppliedDelta(desired - observed), nil
}

// Drain sets the desired capacity to the minimum size, ignoring the cooldowns.
func (c *Controller) Drain(ctx context.Context) (AppliedDelta, error) {
	log := logging.FromContext(ctx).With("group", c.group.Name)
	observed := c.Group().ObservedCapacity
	if status, err := c.describe(ctx); err != nil {
		log.Warnw("Failed to describe group before draining, using last observed capacity", zap.Error(err))
	} else {
		observed = status.DesiredCapacity
		c.lock.Lock()
		c.group.observe(status, time.Now())
		c.lock.Unlock()
	}
	desired := c.group.MinSize
	if err := c.setDesiredCapacity(ctx, desired); err != nil {
		return 0, err
	}
	c.lock.Lock()
	c.group.DesiredCapacity = desired
	c.group.ObservedCapacity = desired
	c.lock.Unlock()
	log.Infow("Drained worker group", zap.Int32("from", observed), zap.Int32("to", desired))
	return AppliedDelta(desired - observed), nil
}

// Refresh re-reads the group from the compute service without changing its target.
func (c *Controller) Refresh(ctx context.Context) (GroupStatus, error) {
	status, err := c.describe(ctx)
	if err != nil {
		return GroupStatus{}, err
	}
	c.lock.Lock()
	c.group.observe(status, time.Now())
	c.lock.Unlock()
	return status, nil
}

// Target returns the capacity the action steps to from the last observed capacity.
func (c *Controller) Target(action scaling.Action) int32 {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.group.Clamp(c.group.Clamp(c.group.ObservedCapacity) + c.step(action))
}

func (c *Controller) step(action scaling.Action) int32 {
	switch action {
	case scaling.ScaleUp:
		return c.options.replicasPerScaleUp
	case scaling.ScaleDown:
		return -c.options.replicasPerScaleDown
	default:
		return 0
	}
}

func (c *Controller) inCooldown(last time.Time, cooldown time.Duration, now time.Time) bool {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return !last.IsZero() && now.Sub(last) < cooldown
}

func (c *Controller) describe(ctx context.Context) (GroupStatus, error) {
	cctx, cancel := context.WithTimeout(ctx, c.options.timeout)
	defer cancel()
	status, err := c.compute.DescribeGroup(cctx, c.group.Name)
	if err != nil {
		return GroupStatus{}, fmt.Errorf("%w, failed to describe group %q: %w", ErrProvisioningFailed, c.group.Name, err)
	}
	return status, nil
}

func (c *Controller) setDesiredCapacity(ctx context.Context, n int32) error {
	cctx, cancel := context.WithTimeout(ctx, c.options.timeout)
	defer cancel()
	if err := c.compute.SetDesiredCapacity(cctx, c.group.Name, n); err != nil {
		return fmt.Errorf("%w, failed to set desired capacity of group %q to %d: %w", ErrProvisioningFailed, c.group.Name, n, err)
	}
	return nil
}
