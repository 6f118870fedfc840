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

import "time"

type options struct {
	// Length of one metric period, empty receives are counted over it.
	period time.Duration
	// Timeout of a single read from the monitoring service.
	timeout time.Duration
	// Number of samples the backlog trend is smoothed over.
	trendSpan float64
}

type Option func(*options)

func defaultOptions() *options {
	return &options{
		period:    60 * time.Second,
		timeout:   10 * time.Second,
		trendSpan: defaultSpan,
	}
}

// WithPeriod sets the metric period.
func WithPeriod(d time.Duration) Option {
	return func(o *options) {
		o.period = d
	}
}

// WithTimeout sets the timeout of a single metric read.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithTrendSpan sets the number of samples the backlog trend is smoothed over.
func WithTrendSpan(n float64) Option {
	return func(o *options) {
		o.trendSpan = n
	}
}
