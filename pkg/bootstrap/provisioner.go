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

	"github.com/numaproj/spotfleet/pkg/apis/fleet/v1alpha1"
)

// Resources are the identifiers produced by the steps, keyed by the
// v1alpha1.Resource* constants.
type Resources map[string]string

// Provisioner creates and deletes the cloud resources. Ensure calls are
// idempotent, calling one for a resource which exists returns the existing one.
type Provisioner interface {
	EnsureQueue(ctx context.Context, spec v1alpha1.QueueSpec) (url string, arn string, err error)
	LookupQueue(ctx context.Context, name string) (url string, err error)
	DeleteQueue(ctx context.Context, url string) error

	// CheckBuckets verifies that the buckets exist and are reachable.
	CheckBuckets(ctx context.Context, buckets ...string) error

	// EnsureRole creates the worker role, allowed to consume the queue, read
	// the artifact bucket and write the results bucket.
	EnsureRole(ctx context.Context, name string, queueARN string, perms v1alpha1.Permissions) error
	DeleteRole(ctx context.Context, name string) error

	EnsureInstanceProfile(ctx context.Context, name string, role string) error
	DeleteInstanceProfile(ctx context.Context, name string, role string) error

	// EnsureLaunchTemplate creates the launch template requesting spot
	// instances, and returns its ID.
	EnsureLaunchTemplate(ctx context.Context, name string, spec v1alpha1.LaunchTemplateSpec, instanceProfile string, userData string) (string, error)
	DeleteLaunchTemplate(ctx context.Context, name string) error

	EnsureGroup(ctx context.Context, name string, launchTemplateID string, spec v1alpha1.FleetSpec) error
	DeleteGroup(ctx context.Context, name string) error

	// EnsureScalingPolicies creates the one step scale up and scale down
	// policies of the group, and returns their ARNs.
	EnsureScalingPolicies(ctx context.Context, group string, scale v1alpha1.Scale) (upARN string, downARN string, err error)
	DeleteScalingPolicies(ctx context.Context, group string) error

	// EnsureAlarms creates the queue alarms triggering the scaling policies,
	// and returns the alarm names.
	EnsureAlarms(ctx context.Context, group string, queueName string, scale v1alpha1.Scale, upPolicyARN string, downPolicyARN string) (up string, down string, err error)
	DeleteAlarms(ctx context.Context, names ...string) error
}
