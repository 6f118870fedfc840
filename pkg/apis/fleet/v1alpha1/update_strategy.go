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

package v1alpha1

import "time"

// UpdateStrategy controls how worker instances are replaced after the launch template changes.
type UpdateStrategy struct {
	// BatchSize is the maximum number of instances taken out of service at once.
	// +optional
	BatchSize *uint32 `json:"batchSize,omitempty"`
	// MinInstancesInService is the number of instances that have to stay in service during an update.
	// Zero allows the group to transiently have no instance in service.
	// +optional
	MinInstancesInService *uint32 `json:"minInstancesInService,omitempty"`
	// PauseSeconds between two batches.
	// +optional
	PauseSeconds *uint32 `json:"pauseSeconds,omitempty"`
	// PollSeconds is how often the group is polled while waiting for replacements.
	// +optional
	PollSeconds *uint32 `json:"pollSeconds,omitempty"`
	// Schedule is an optional cron expression to run a rolling update periodically.
	// +optional
	Schedule string `json:"schedule,omitempty"`
}

func (us UpdateStrategy) GetBatchSize() int {
	if us.BatchSize != nil && *us.BatchSize > 0 {
		return int(*us.BatchSize)
	}
	return DefaultBatchSize
}

func (us UpdateStrategy) GetMinInstancesInService() int {
	if us.MinInstancesInService != nil {
		return int(*us.MinInstancesInService)
	}
	return DefaultMinInstancesInService
}

func (us UpdateStrategy) GetPause() time.Duration {
	if us.PauseSeconds != nil {
		return time.Duration(*us.PauseSeconds) * time.Second
	}
	return DefaultPauseSeconds * time.Second
}

func (us UpdateStrategy) GetPollInterval() time.Duration {
	if us.PollSeconds != nil && *us.PollSeconds > 0 {
		return time.Duration(*us.PollSeconds) * time.Second
	}
	return DefaultRolloutPollSeconds * time.Second
}
