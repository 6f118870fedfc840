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

package util

import (
	"context"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
)

var DefaultRetryBackoff = wait.Backoff{
	Steps:    10,
	Duration: 5 * time.Second,
	Factor:   2.0,
	Jitter:   0.1,
}

// Retry calls fn with the given backoff until it succeeds, the context is done,
// or isRetryable reports the error as permanent. The last error is returned.
func Retry(ctx context.Context, backoff wait.Backoff, isRetryable func(error) bool, fn func(context.Context) error) error {
	var lastErr error
	err := wait.ExponentialBackoffWithContext(ctx, backoff, func(ctx context.Context) (bool, error) {
		if lastErr = fn(ctx); lastErr == nil {
			return true, nil
		}
		if isRetryable != nil && !isRetryable(lastErr) {
			return false, lastErr
		}
		return false, nil
	})
	if err != nil && lastErr != nil {
		return lastErr
	}
	return err
}
