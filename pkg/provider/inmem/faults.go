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

package inmem

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Operation names accepted by the fault injection.
const (
	OpDescribeGroup         = "DescribeGroup"
	OpSetDesiredCapacity    = "SetDesiredCapacity"
	OpSetLaunchTemplate     = "SetLaunchTemplateVersion"
	OpTerminateInstances    = "TerminateInstances"
	OpLatestTemplateVersion = "LatestTemplateVersion"
	OpVisibleMessages       = "VisibleMessages"
	OpEmptyReceives         = "EmptyReceives"
	OpEnsureQueue           = "EnsureQueue"
	OpCheckBuckets          = "CheckBuckets"
	OpEnsureRole            = "EnsureRole"
	OpEnsureInstanceProfile = "EnsureInstanceProfile"
	OpEnsureLaunchTemplate  = "EnsureLaunchTemplate"
	OpEnsureGroup           = "EnsureGroup"
	OpEnsureScalingPolicies = "EnsureScalingPolicies"
	OpEnsureAlarms          = "EnsureAlarms"
	OpDeleteQueue           = "DeleteQueue"
	OpDeleteRole            = "DeleteRole"
	OpDeleteInstanceProfile = "DeleteInstanceProfile"
	OpDeleteLaunchTemplate  = "DeleteLaunchTemplate"
	OpDeleteGroup           = "DeleteGroup"
	OpDeleteScalingPolicies = "DeleteScalingPolicies"
	OpDeleteAlarms          = "DeleteAlarms"
	OpEnqueue               = "Enqueue"
	OpReceive               = "Receive"
)

// ErrInjected is the default error of an injected failure.
var ErrInjected = errors.New("injected failure")

type fault struct {
	// Remaining failures, negative fails forever
	remaining int
	err       error
}

// faults holds the failures and latencies injected per operation.
type faults struct {
	lock      sync.Mutex
	failures  map[string]*fault
	latencies map[string]time.Duration
}

func newFaults() *faults {
	return &faults{failures: map[string]*fault{}, latencies: map[string]time.Duration{}}
}

// FailNext makes the next n calls of op fail with err, or ErrInjected when
// err is nil. A negative n fails every call until Heal.
func (f *faults) FailNext(op string, n int, err error) {
	if err == nil {
		err = ErrInjected
	}
	f.lock.Lock()
	defer f.lock.Unlock()
	f.failures[op] = &fault{remaining: n, err: err}
}

// SetLatency delays every call of op by d, or until the call context is done.
func (f *faults) SetLatency(op string, d time.Duration) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.latencies[op] = d
}

// Heal removes the failures and latency of op.
func (f *faults) Heal(op string) {
	f.lock.Lock()
	defer f.lock.Unlock()
	delete(f.failures, op)
	delete(f.latencies, op)
}

func (f *faults) check(ctx context.Context, op string) error {
	f.lock.Lock()
	latency := f.latencies[op]
	var err error
	if x, ok := f.failures[op]; ok {
		err = x.err
		if x.remaining > 0 {
			x.remaining--
			if x.remaining == 0 {
				delete(f.failures, op)
			}
		}
	}
	f.lock.Unlock()
	if latency > 0 {
		t := time.NewTimer(latency)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	if err != nil {
		return err
	}
	return ctx.Err()
}
