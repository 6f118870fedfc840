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

// Scale defines the parameters for autoscaling the worker group.
type Scale struct {
	// Whether to disable autoscaling, the loop then only samples and reports.
	// +optional
	Disabled bool `json:"disabled,omitempty"`
	// Minimum number of workers.
	// +optional
	Min *int32 `json:"min,omitempty"`
	// Maximum number of workers.
	// +optional
	Max *int32 `json:"max,omitempty"`
	// PeriodSeconds is the length of one metric period, which is also the tick of the control loop.
	// +optional
	PeriodSeconds *uint32 `json:"periodSeconds,omitempty"`
	// EvaluationPeriods is how many consecutive periods a condition needs to hold before acting on it.
	// +optional
	EvaluationPeriods *uint32 `json:"evaluationPeriods,omitempty"`
	// VisibleMessagesThreshold is exceeded when the sum of visible messages over the window is greater than it.
	// +optional
	VisibleMessagesThreshold *uint64 `json:"visibleMessagesThreshold,omitempty"`
	// EmptyReceivesThreshold is exceeded when the sum of empty receives over the window is greater than it.
	// +optional
	EmptyReceivesThreshold *uint64 `json:"emptyReceivesThreshold,omitempty"`
	// ScaleUpCooldownSeconds is the minimum time between two scale ups.
	// +optional
	ScaleUpCooldownSeconds *uint32 `json:"scaleUpCooldownSeconds,omitempty"`
	// ScaleDownCooldownSeconds is the minimum time between two scale downs.
	// +optional
	ScaleDownCooldownSeconds *uint32 `json:"scaleDownCooldownSeconds,omitempty"`
	// ReplicasPerScaleUp is how many workers a single scale up adds.
	// +optional
	ReplicasPerScaleUp *uint32 `json:"replicasPerScaleUp,omitempty"`
	// ReplicasPerScaleDown is how many workers a single scale down removes.
	// +optional
	ReplicasPerScaleDown *uint32 `json:"replicasPerScaleDown,omitempty"`
	// TimeoutSeconds bounds every call to the monitoring and compute services.
	// +optional
	TimeoutSeconds *uint32 `json:"timeoutSeconds,omitempty"`
	// DrainOnShutdown sets the desired capacity to min when the controller stops, defaults to true.
	// +optional
	DrainOnShutdown *bool `json:"drainOnShutdown,omitempty"`
}

func (s Scale) GetMinReplicas() int32 {
	if x := s.Min; x == nil || *x < 0 {
		return DefaultMinSize
	} else {
		return *x
	}
}

func (s Scale) GetMaxReplicas() int32 {
	if x := s.Max; x == nil {
		return DefaultMaxSize
	} else {
		return *x
	}
}

func (s Scale) GetPeriod() time.Duration {
	if s.PeriodSeconds != nil {
		return time.Duration(*s.PeriodSeconds) * time.Second
	}
	return DefaultPeriodSeconds * time.Second
}

func (s Scale) GetEvaluationPeriods() int {
	if s.EvaluationPeriods != nil {
		return int(*s.EvaluationPeriods)
	}
	return DefaultEvaluationPeriods
}

func (s Scale) GetVisibleMessagesThreshold() uint64 {
	if s.VisibleMessagesThreshold != nil {
		return *s.VisibleMessagesThreshold
	}
	return DefaultVisibleMessagesThreshold
}

func (s Scale) GetEmptyReceivesThreshold() uint64 {
	if s.EmptyReceivesThreshold != nil {
		return *s.EmptyReceivesThreshold
	}
	return DefaultEmptyReceivesThreshold
}

func (s Scale) GetScaleUpCooldown() time.Duration {
	if s.ScaleUpCooldownSeconds != nil {
		return time.Duration(*s.ScaleUpCooldownSeconds) * time.Second
	}
	return DefaultCooldownSeconds * time.Second
}

func (s Scale) GetScaleDownCooldown() time.Duration {
	if s.ScaleDownCooldownSeconds != nil {
		return time.Duration(*s.ScaleDownCooldownSeconds) * time.Second
	}
	return DefaultCooldownSeconds * time.Second
}

func (s Scale) GetReplicasPerScaleUp() int32 {
	if s.ReplicasPerScaleUp != nil {
		return int32(*s.ReplicasPerScaleUp)
	}
	return DefaultReplicasPerScale
}

func (s Scale) GetReplicasPerScaleDown() int32 {
	if s.ReplicasPerScaleDown != nil {
		return int32(*s.ReplicasPerScaleDown)
	}
	return DefaultReplicasPerScale
}

func (s Scale) GetTimeout() time.Duration {
	if s.TimeoutSeconds != nil {
		return time.Duration(*s.TimeoutSeconds) * time.Second
	}
	return DefaultTimeoutSeconds * time.Second
}

func (s Scale) GetDrainOnShutdown() bool {
	if s.DrainOnShutdown != nil {
		return *s.DrainOnShutdown
	}
	return true
}
