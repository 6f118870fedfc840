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

import "time"

type options struct {
	// Minimum time between two scale ups.
	scaleUpCooldown time.Duration
	// Minimum time between two scale downs.
	scaleDownCooldown time.Duration
	// Number of workers added by one scale up.
	replicasPerScaleUp int32
	// Number of workers removed by one scale down.
	replicasPerScaleDown int32
	// Timeout of a single call to the compute service.
	timeout time.Duration
}

type Option func(*options)

func defaultOptions() *options {
	return &options{
		scaleUpCooldown:      60 * time.Second,
		scaleDownCooldown:    60 * time.Second,
		replicasPerScaleUp:   1,
		replicasPerScaleDown: 1,
		timeout:              10 * time.Second,
	}
}

// WithScaleUpCooldown sets the cooldown after a scale up.
func WithScaleUpCooldown(d time.Duration) Option {
	return func(o *options) {
		o.scaleUpCooldown = d
	}
}

// WithScaleDownCooldown sets the cooldown after a scale down.
func WithScaleDownCooldown(d time.Duration) Option {
	return func(o *options) {
		o.scaleDownCooldown = d
	}
}

// WithReplicasPerScaleUp sets the step of a scale up.
func WithReplicasPerScaleUp(n int32) Option {
	return func(o *options) {
		o.replicasPerScaleUp = n
	}
}

// WithReplicasPerScaleDown sets the step of a scale down.
func WithReplicasPerScaleDown(n int32) Option {
	return func(o *options) {
		o.replicasPerScaleDown = n
	}
}

// WithTimeout sets the timeout of the calls to the compute service.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}
