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

package rollout

import (
	"time"

	"github.com/numaproj/spotfleet/pkg/notify"
)

type options struct {
	// Cron schedule of the automatic rollouts, empty disables them
	schedule string
	// Number of rollout records kept
	historySize int
	// Max duration of one rollout
	timeout  time.Duration
	notifier notify.Notifier
	clock    func() time.Time
}

type Option func(*options)

func defaultOptions() *options {
	return &options{
		historySize: 20,
		timeout:     time.Hour,
		clock:       time.Now,
	}
}

// WithSchedule sets the cron schedule, in the standard 5 field format
func WithSchedule(schedule string) Option {
	return func(o *options) {
		o.schedule = schedule
	}
}

// WithHistorySize sets how many rollout records are kept
func WithHistorySize(n int) Option {
	return func(o *options) {
		o.historySize = n
	}
}

// WithTimeout sets the max duration of a rollout
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithNotifier sets the notifier receiving the rollout events
func WithNotifier(n notify.Notifier) Option {
	return func(o *options) {
		o.notifier = n
	}
}
