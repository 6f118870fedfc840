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
	"time"

	"go.uber.org/zap"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/numaproj/spotfleet/pkg/shared/logging"
)

type rollingOptions struct {
	// Max number of instances replaced at once.
	batchSize int
	// Number of instances which must stay in service while replacing.
	minInService int
	// Wait between two batches.
	pause time.Duration
	// Interval of polling the group while waiting for replacements.
	pollInterval time.Duration
}

type RollingOption func(*rollingOptions)

func defaultRollingOptions() *rollingOptions {
	return &rollingOptions{
		batchSize:    10,
		minInService: 0,
		pause:        0,
		pollInterval: 15 * time.Second,
	}
}

// WithBatchSize sets the max number of instances replaced at once.
func WithBatchSize(n int) RollingOption {
	return func(o *rollingOptions) {
		o.batchSize = n
	}
}

// WithMinInstancesInService sets the number of instances kept in service during the update.
func WithMinInstancesInService(n int) RollingOption {
	return func(o *rollingOptions) {
		o.minInService = n
	}
}

// WithPause sets the wait between two batches.
func WithPause(d time.Duration) RollingOption {
	return func(o *rollingOptions) {
		o.pause = d
	}
}

// WithPollInterval sets how often the group is polled while waiting for replacements.
func WithPollInterval(d time.Duration) RollingOption {
	return func(o *rollingOptions) {
		o.pollInterval = d
	}
}

// UpdateResult summarises a rolling update.
type UpdateResult struct {
	TemplateVersion string `json:"templateVersion"`
	Batches         int    `json:"batches"`
	Replaced        int    `json:"replaced"`
}

// RollingUpdater replaces the instances of a group which do not run the
// current launch template version.
type RollingUpdater struct {
	replacer InstanceReplacer
	group    string
	options  *rollingOptions
}

func NewRollingUpdater(replacer InstanceReplacer, group string, opts ...RollingOption) *RollingUpdater {
	o := defaultRollingOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if o.batchSize < 1 {
		o.batchSize = 1
	}
	if o.pollInterval <= 0 {
		o.pollInterval = time.Second
	}
	return &RollingUpdater{
		replacer: replacer,
		group:    group,
		options:  o,
	}
}

// Update points the group to the given launch template version, and replaces
// out of date instances batch by batch. Desired capacity is never changed,
// the compute service launches a replacement for every terminated instance.
// A batch is only started after the replacements of the previous one are in
// service. It returns when no out of date instance is left, or when ctx is done.
func (u *RollingUpdater) Update(ctx context.Context, templateVersion string) (UpdateResult, error) {
	log := logging.FromContext(ctx).With("group", u.group, "templateVersion", templateVersion)
	result := UpdateResult{TemplateVersion: templateVersion}
	if err := u.replacer.SetLaunchTemplateVersion(ctx, u.group, templateVersion); err != nil {
		return result, fmt.Errorf("failed to set launch template version of group %q, %w", u.group, err)
	}
	for {
		status, err := u.replacer.DescribeGroup(ctx, u.group)
		if err != nil {
			return result, fmt.Errorf("failed to describe group %q, %w", u.group, err)
		}
		outdated := outdatedInstances(status, templateVersion)
		if len(outdated) == 0 {
			log.Infow("Rolling update finished", zap.Int("batches", result.Batches), zap.Int("replaced", result.Replaced))
			return result, nil
		}
		batch := u.nextBatch(status, outdated)
		if len(batch) == 0 {
			log.Infof("Not enough instances in service to replace any of the %d outdated ones, waiting.", len(outdated))
			if err := u.sleep(ctx, u.options.pollInterval); err != nil {
				return result, err
			}
			continue
		}
		ids := make([]string, 0, len(batch))
		for _, i := range batch {
			ids = append(ids, i.ID)
		}
		log.Infow("Replacing instances", zap.Int("batch", result.Batches+1), zap.Strings("instances", ids))
		if err := u.replacer.TerminateInstances(ctx, u.group, ids); err != nil {
			return result, fmt.Errorf("failed to terminate instances %v of group %q, %w", ids, u.group, err)
		}
		result.Batches++
		result.Replaced += len(ids)
		if err := u.waitForReplacements(ctx, ids); err != nil {
			return result, err
		}
		if err := u.sleep(ctx, u.options.pause); err != nil {
			return result, err
		}
	}
}

// nextBatch picks up to batchSize outdated instances, keeping at least
// minInService instances in service.
func (u *RollingUpdater) nextBatch(status GroupStatus, outdated []Instance) []Instance {
	removable := status.CountInState(LifecycleInService) - u.options.minInService
	batch := make([]Instance, 0, u.options.batchSize)
	for _, i := range outdated {
		if len(batch) >= u.options.batchSize {
			break
		}
		if i.LifecycleState == LifecycleInService {
			if removable <= 0 {
				continue
			}
			removable--
		}
		batch = append(batch, i)
	}
	return batch
}

// waitForReplacements waits until the terminated instances are gone, and the
// group has as many instances in service as it desires.
func (u *RollingUpdater) waitForReplacements(ctx context.Context, terminated []string) error {
	gone := make(map[string]struct{}, len(terminated))
	for _, id := range terminated {
		gone[id] = struct{}{}
	}
	err := wait.PollUntilContextCancel(ctx, u.options.pollInterval, false, func(ctx context.Context) (bool, error) {
		status, err := u.replacer.DescribeGroup(ctx, u.group)
		if err != nil {
			logging.FromContext(ctx).Warnw("Failed to describe group while waiting for replacements", zap.Error(err))
			return false, nil
		}
		for _, i := range status.Instances {
			if _, ok := gone[i.ID]; ok && i.Live() {
				return false, nil
			}
		}
		return int32(status.CountInState(LifecycleInService)) >= status.DesiredCapacity, nil
	})
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (u *RollingUpdater) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func outdatedInstances(status GroupStatus, templateVersion string) []Instance {
	var outdated []Instance
	for _, i := range status.Instances {
		if i.Live() && i.TemplateVersion != templateVersion {
			outdated = append(outdated, i)
		}
	}
	return outdated
}
