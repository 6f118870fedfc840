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

package bootstrap

import (
	"context"
	"errors"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
)

type options struct {
	// Backoff of retrying a failing step
	backoff wait.Backoff
	// Decides whether a step error is worth retrying
	isRetryable func(error) bool
}

type Option func(*options)

func defaultOptions() *options {
	return &options{
		backoff: wait.Backoff{
			Steps:    5,
			Duration: time.Second,
			Factor:   2.0,
			Jitter:   0.1,
		},
		isRetryable: func(err error) bool {
			return !errors.Is(err, ErrMissingResource) && !errors.Is(err, ErrInvalidInput) &&
				!errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		},
	}
}

// WithBackoff sets the retry backoff of the steps
func WithBackoff(b wait.Backoff) Option {
	return func(o *options) {
		o.backoff = b
	}
}

// WithRetryable sets the function classifying step errors as transient
func WithRetryable(f func(error) bool) Option {
	return func(o *options) {
		o.isRetryable = f
	}
}
