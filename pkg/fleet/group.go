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
	"fmt"
	"time"
)

// LifecycleState of a worker instance, as reported by the compute service.
type LifecycleState string

const (
	LifecyclePending     LifecycleState = "Pending"
	LifecycleInService   LifecycleState = "InService"
	LifecycleTerminating LifecycleState = "Terminating"
	LifecycleTerminated  LifecycleState = "Terminated"
)

// Instance is a worker instance of the group.
type Instance struct {
	ID              string         `json:"id"`
	LifecycleState  LifecycleState `json:"lifecycleState"`
	TemplateVersion string         `json:"templateVersion,omitempty"`
}

// Live returns whether the instance is launching or running.
func (i Instance) Live() bool {
	return i.LifecycleState == LifecyclePending || i.LifecycleState == LifecycleInService
}

// GroupStatus is the state of the group reported by the compute service.
type GroupStatus struct {
	Name            string     `json:"name"`
	DesiredCapacity int32      `json:"desiredCapacity"`
	MinSize         int32      `json:"minSize"`
	MaxSize         int32      `json:"maxSize"`
	TemplateVersion string     `json:"templateVersion,omitempty"`
	Instances       []Instance `json:"instances,omitempty"`
}

// CountInState returns the number of instances in the given lifecycle state.
func (gs GroupStatus) CountInState(state LifecycleState) int {
	n := 0
	for _, i := range gs.Instances {
		if i.LifecycleState == state {
			n++
		}
	}
	return n
}

// WorkerGroup is the managed set of workers.
//
// DesiredCapacity is the last target confirmed by the compute service and
// always stays within [MinSize, MaxSize]. The actual instances lag behind it
// and are only observed.
type WorkerGroup struct {
	Name            string     `json:"name"`
	DesiredCapacity int32      `json:"desiredCapacity"`
	MinSize         int32      `json:"minSize"`
	MaxSize         int32      `json:"maxSize"`
	LastScaleUpAt   time.Time  `json:"lastScaleUpAt,omitempty"`
	LastScaleDownAt time.Time  `json:"lastScaleDownAt,omitempty"`
	Instances       []Instance `json:"instances,omitempty"`
	// ObservedCapacity is the desired capacity last read from the compute
	// service, which other actors may change.
	ObservedCapacity int32     `json:"observedCapacity"`
	ObservedAt       time.Time `json:"observedAt,omitempty"`
}

// NewWorkerGroup returns a group starting at its minimum size.
func NewWorkerGroup(name string, minSize, maxSize int32) (*WorkerGroup, error) {
	if minSize < 0 || maxSize < 0 || minSize > maxSize {
		return nil, fmt.Errorf("%w: min %d, max %d", ErrInvalidBounds, minSize, maxSize)
	}
	return &WorkerGroup{
		Name:             name,
		MinSize:          minSize,
		MaxSize:          maxSize,
		DesiredCapacity:  minSize,
		ObservedCapacity: minSize,
	}, nil
}

// Clamp bounds n to [MinSize, MaxSize].
func (g *WorkerGroup) Clamp(n int32) int32 {
	if n < g.MinSize {
		return g.MinSize
	}
	if n > g.MaxSize {
		return g.MaxSize
	}
	return n
}

// InService returns the number of observed instances in service.
func (g *WorkerGroup) InService() int {
	n := 0
	for _, i := range g.Instances {
		if i.LifecycleState == LifecycleInService {
			n++
		}
	}
	return n
}

// DeepCopy returns a copy sharing nothing with g.
func (g *WorkerGroup) DeepCopy() WorkerGroup {
	c := *g
	c.Instances = append([]Instance(nil), g.Instances...)
	return c
}

func (g *WorkerGroup) observe(status GroupStatus, now time.Time) {
	g.ObservedCapacity = status.DesiredCapacity
	g.ObservedAt = now
	g.Instances = append([]Instance(nil), status.Instances...)
}
