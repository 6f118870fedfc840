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
	"errors"
)

var (
	// ErrProvisioningFailed is returned when the compute service rejected or
	// did not confirm a capacity change. The group state is left untouched.
	ErrProvisioningFailed = errors.New("provisioning failed")
	// ErrInvalidBounds is returned for a group whose bounds are inconsistent.
	ErrInvalidBounds = errors.New("invalid worker group bounds")
)

// ComputeClient is the compute provisioning service managing the worker group.
type ComputeClient interface {
	// DescribeGroup returns the current state of the group as seen by the service.
	DescribeGroup(ctx context.Context, name string) (GroupStatus, error)
	// SetDesiredCapacity sets the target number of instances, it is a set and not a delta.
	SetDesiredCapacity(ctx context.Context, name string, n int32) error
}

// InstanceReplacer is the part of the compute service a rolling update needs.
type InstanceReplacer interface {
	ComputeClient
	// SetLaunchTemplateVersion points the group to a launch template version, future launches use it.
	SetLaunchTemplateVersion(ctx context.Context, name string, version string) error
	// TerminateInstances terminates the instances without decrementing the desired
	// capacity, so the group launches replacements.
	TerminateInstances(ctx context.Context, name string, ids []string) error
}
