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
	"time"

	"github.com/numaproj/spotfleet/pkg/notify"
)

type options struct {
	// Evaluation period
	period time.Duration
	// Whether to set the group to its minimum size on stop
	drainOnShutdown bool
	// Timeout of the drain on stop
	shutdownTimeout time.Duration
	// Timeout of delivering one event
	notifyTimeout time.Duration
	notifier      notify.Notifier
	clock         func() time.Time
}

type Option func(*options)

func defaultOptions() *options {
	return &options{
		period:          60 * time.Second,
		drainOnShutdown: true,
		shutdownTimeout: 30 * time.Second,
		notifyTimeout:   5 * time.Second,
		clock:           time.Now,
	}
}

// WithPeriod sets the evaluation period
func WithPeriod(d time.Duration) Option {
	return func(o *options) {
		o.period = d
	}
}

// WithDrainOnShutdown sets whether the group is drained when the loop stops
func WithDrainOnShutdown(b bool) Option {
	return func(o *options) {
		o.drainOnShutdown = b
	}
}

// WithShutdownTimeout sets the timeout of the drain on stop
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *options) {
		o.shutdownTimeout = d
	}
}

// WithNotifier sets the notifier receiving the fleet events
func WithNotifier(n notify.Notifier) Option {
	return func(o *options) {
		o.notifier = n
	}
}

// WithNotifyTimeout sets the timeout of delivering one event
func WithNotifyTimeout(d time.Duration) Option {
	return func(o *options) {
		o.notifyTimeout = d
	}
}

// WithClock sets the time source, for testing
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		o.clock = clock
	}
}
