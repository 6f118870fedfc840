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

package autoscaler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/numaproj/spotfleet/pkg/fleet"
	"github.com/numaproj/spotfleet/pkg/metrics"
	"github.com/numaproj/spotfleet/pkg/notify"
	"github.com/numaproj/spotfleet/pkg/sampler"
	"github.com/numaproj/spotfleet/pkg/scaling"
	"github.com/numaproj/spotfleet/pkg/shared/logging"
)

// TickResult is the outcome of one evaluation period.
type TickResult struct {
	Sample sampler.Sample
	Action scaling.Action
	Delta  fleet.AppliedDelta
	Err    error
}

// AlarmLoop drives the sampler, the decider and the controller. The loop
// goroutine is the only writer of the windows and of the group state.
type AlarmLoop struct {
	sampler    *sampler.Sampler
	decider    *scaling.Decider
	controller *fleet.Controller
	options    *options
	group      string

	visible *sampler.Window
	empty   *sampler.Window

	running atomic.Bool
	ticks   atomic.Int64
	skipped atomic.Int64

	lock   sync.RWMutex
	status Status
}

// NewAlarmLoop returns a loop whose windows are as long as the decider's evaluation periods.
func NewAlarmLoop(s *sampler.Sampler, d *scaling.Decider, c *fleet.Controller, opts ...Option) *AlarmLoop {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if o.notifier == nil {
		o.notifier = notify.Multi{}
	}
	l := &AlarmLoop{
		sampler:    s,
		decider:    d,
		controller: c,
		options:    o,
		group:      c.Group().Name,
		visible:    sampler.NewWindow(d.EvaluationPeriods()),
		empty:      sampler.NewWindow(d.EvaluationPeriods()),
	}
	l.status = Status{Period: o.period.String(), Group: c.Group()}
	return l
}

// Start runs the loop until ctx is done. The period in flight when ctx is
// cancelled completes first, then the group is drained if configured.
func (l *AlarmLoop) Start(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return errors.New("alarm loop is already running")
	}
	defer l.running.Store(false)
	log := logging.FromContext(ctx).With("group", l.group)
	log.Infow("Starting alarm loop", zap.Duration("period", l.options.period), zap.Int("evaluationPeriods", l.decider.EvaluationPeriods()))
	if _, err := l.controller.Refresh(context.WithoutCancel(ctx)); err != nil {
		log.Warnw("Failed to refresh the worker group", zap.Error(err))
	}
	ticker := time.NewTicker(l.options.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("Exiting alarm loop...")
			return l.shutdown(ctx)
		case <-ticker.C:
			if ctx.Err() != nil {
				log.Info("Exiting alarm loop...")
				return l.shutdown(ctx)
			}
			start := time.Now()
			// A period is never aborted half way by a stop signal.
			_ = l.Tick(context.WithoutCancel(ctx), l.options.clock())
			if elapsed := time.Since(start); elapsed >= l.options.period {
				missed := int64(elapsed / l.options.period)
				l.skipped.Add(missed)
				metrics.SkippedTicks.WithLabelValues(l.group).Add(float64(missed))
				log.Warnw("Evaluation overran the period, skipping missed periods", zap.Duration("elapsed", elapsed), zap.Int64("skipped", missed))
				select {
				case <-ticker.C:
				default:
				}
			}
		}
	}
}

// Tick runs one evaluation period at the given time.
func (l *AlarmLoop) Tick(ctx context.Context, now time.Time) TickResult {
	log := logging.FromContext(ctx).With("group", l.group)
	start := time.Now()
	defer func() {
		metrics.TickDuration.WithLabelValues(l.group).Observe(time.Since(start).Seconds())
	}()
	l.ticks.Inc()

	result := TickResult{Action: scaling.NoOp}
	result.Sample = l.sampler.Sample(ctx, now)
	l.recordSample(result.Sample)
	if err := l.visible.Push(result.Sample); err != nil {
		log.Warnw("Dropping sample", zap.Error(err))
		result.Err = err
		l.recordTick(now, result)
		return result
	}
	if err := l.empty.Push(result.Sample); err != nil {
		log.Warnw("Dropping sample", zap.Error(err))
	}

	result.Action = l.decider.Decide(l.visible, l.empty)
	metrics.Decisions.WithLabelValues(l.group, result.Action.String()).Inc()
	result.Delta, result.Err = l.controller.Apply(ctx, result.Action, now)
	after := l.controller.Group()
	switch {
	case result.Err != nil:
		metrics.ProvisioningErrors.WithLabelValues(l.group, result.Action.String()).Inc()
		e := notify.NewEvent(notify.EventTypeProvisioningFailed, l.group, now)
		e.Action = result.Action.String()
		// The capacity the failed step started from, as just re-read from the compute service.
		e.From = after.ObservedCapacity
		e.To = l.controller.Target(result.Action)
		e.Reason = result.Err.Error()
		l.notify(ctx, e)
	case result.Delta != 0:
		metrics.ScalingActions.WithLabelValues(l.group, result.Action.String()).Inc()
		e := notify.NewEvent(notify.EventTypeScaled, l.group, now)
		e.Action = result.Action.String()
		e.From = after.DesiredCapacity - int32(result.Delta)
		e.To = after.DesiredCapacity
		l.notify(ctx, e)
	}
	metrics.DesiredCapacity.WithLabelValues(l.group).Set(float64(after.DesiredCapacity))
	metrics.InServiceInstances.WithLabelValues(l.group).Set(float64(after.InService()))
	l.recordTick(now, result)
	return result
}

// Status returns a snapshot of the loop.
func (l *AlarmLoop) Status() Status {
	l.lock.RLock()
	s := l.status
	s.Window = append([]sampler.Sample(nil), l.status.Window...)
	l.lock.RUnlock()
	s.Running = l.running.Load()
	s.Ticks = l.ticks.Load()
	s.SkippedTicks = l.skipped.Load()
	s.Group = l.controller.Group()
	return s
}

// Running returns whether Start is in progress.
func (l *AlarmLoop) Running() bool {
	return l.running.Load()
}

func (l *AlarmLoop) shutdown(ctx context.Context) error {
	if !l.options.drainOnShutdown {
		return nil
	}
	log := logging.FromContext(ctx).With("group", l.group)
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.options.shutdownTimeout)
	defer cancel()
	before := l.controller.Group()
	delta, err := l.controller.Drain(dctx)
	if err != nil {
		log.Errorw("Failed to drain the worker group", zap.Error(err))
		return fmt.Errorf("failed to drain group %q, %w", l.group, err)
	}
	e := notify.NewEvent(notify.EventTypeDrained, l.group, l.options.clock())
	e.From = before.ObservedCapacity
	e.To = e.From + int32(delta)
	l.notify(dctx, e)
	return nil
}

func (l *AlarmLoop) notify(ctx context.Context, e notify.Event) {
	nctx, cancel := context.WithTimeout(ctx, l.options.notifyTimeout)
	defer cancel()
	if err := l.options.notifier.Notify(nctx, e); err != nil {
		metrics.NotificationErrors.WithLabelValues(l.group).Inc()
		logging.FromContext(ctx).Warnw("Failed to deliver event", zap.Stringer("event", e), zap.Error(err))
	}
}

func (l *AlarmLoop) recordSample(s sampler.Sample) {
	metrics.QueueVisibleMessages.WithLabelValues(l.group).Set(float64(s.VisibleMessages))
	metrics.QueueEmptyReceives.WithLabelValues(l.group).Set(float64(s.EmptyReceives))
	metrics.QueueBacklogTrend.WithLabelValues(l.group).Set(l.sampler.BacklogTrend())
	if s.Stale {
		metrics.StaleSamples.WithLabelValues(l.group).Inc()
	}
}

func (l *AlarmLoop) recordTick(now time.Time, r TickResult) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.status.LastTickAt = now
	l.status.LastSample = r.Sample
	l.status.LastAction = r.Action.String()
	l.status.LastDelta = int32(r.Delta)
	l.status.LastError = ""
	if r.Err != nil {
		l.status.LastError = r.Err.Error()
	}
	l.status.BacklogTrend = l.sampler.BacklogTrend()
	l.status.Window = l.visible.Samples()
}
