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
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/numaproj/spotfleet/pkg/apis/fleet/v1alpha1"
	"github.com/numaproj/spotfleet/pkg/shared/logging"
	"github.com/numaproj/spotfleet/pkg/shared/util"
	"github.com/numaproj/spotfleet/pkg/userdata"
)

// Step creates one resource from the outputs of the steps before it.
type Step struct {
	Name        string
	Description string
	Apply       func(ctx context.Context, res Resources) error
	Destroy     func(ctx context.Context, res Resources) error
}

// Bootstrapper runs the steps of a fleet.
type Bootstrapper struct {
	spec    v1alpha1.FleetSpec
	steps   []Step
	options *options
}

// RoleName returns the name of the worker role, also used for its instance profile.
func RoleName(spec v1alpha1.FleetSpec) string {
	return spec.Name + "-worker"
}

// LaunchTemplateName returns the name of the worker launch template.
func LaunchTemplateName(spec v1alpha1.FleetSpec) string {
	return spec.GetGroupName()
}

func New(spec v1alpha1.FleetSpec, p Provisioner, opts ...Option) *Bootstrapper {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return &Bootstrapper{spec: spec, steps: newSteps(spec, p), options: o}
}

func newSteps(spec v1alpha1.FleetSpec, p Provisioner) []Step {
	role := RoleName(spec)
	template := LaunchTemplateName(spec)
	group := spec.GetGroupName()
	var buckets []string
	for _, b := range []string{spec.Permissions.ArtifactBucket, spec.Permissions.ResultsBucket} {
		if b != "" {
			buckets = append(buckets, b)
		}
	}
	return []Step{
		{
			Name:        "queue",
			Description: fmt.Sprintf("work queue %q", spec.Queue.Name),
			Apply: func(ctx context.Context, res Resources) error {
				url, arn, err := p.EnsureQueue(ctx, spec.Queue)
				if err != nil {
					return err
				}
				res[v1alpha1.ResourceQueueURL] = url
				res[v1alpha1.ResourceQueueARN] = arn
				return nil
			},
			Destroy: func(ctx context.Context, res Resources) error {
				url := res[v1alpha1.ResourceQueueURL]
				if url == "" {
					var err error
					if url, err = p.LookupQueue(ctx, spec.Queue.Name); err != nil {
						return err
					}
				}
				if url == "" {
					return nil
				}
				return p.DeleteQueue(ctx, url)
			},
		},
		{
			Name:        "buckets",
			Description: fmt.Sprintf("check buckets %v", buckets),
			Apply: func(ctx context.Context, _ Resources) error {
				if len(buckets) == 0 {
					return nil
				}
				return p.CheckBuckets(ctx, buckets...)
			},
			// Buckets are not owned by the fleet.
			Destroy: func(context.Context, Resources) error { return nil },
		},
		{
			Name:        "role",
			Description: fmt.Sprintf("worker role %q", role),
			Apply: func(ctx context.Context, res Resources) error {
				arn, err := required(res, v1alpha1.ResourceQueueARN)
				if err != nil {
					return err
				}
				if err := p.EnsureRole(ctx, role, arn, spec.Permissions); err != nil {
					return err
				}
				res[v1alpha1.ResourceRoleName] = role
				return nil
			},
			Destroy: func(ctx context.Context, _ Resources) error {
				return p.DeleteRole(ctx, role)
			},
		},
		{
			Name:        "instance-profile",
			Description: fmt.Sprintf("instance profile %q", role),
			Apply: func(ctx context.Context, res Resources) error {
				r, err := required(res, v1alpha1.ResourceRoleName)
				if err != nil {
					return err
				}
				if err := p.EnsureInstanceProfile(ctx, role, r); err != nil {
					return err
				}
				res[v1alpha1.ResourceInstanceProfile] = role
				return nil
			},
			Destroy: func(ctx context.Context, _ Resources) error {
				return p.DeleteInstanceProfile(ctx, role, role)
			},
		},
		{
			Name:        "launch-template",
			Description: fmt.Sprintf("launch template %q (%s, spot price %s)", template, spec.LaunchTemplate.GetInstanceType(), spec.LaunchTemplate.GetSpotPrice()),
			Apply: func(ctx context.Context, res Resources) error {
				profile, err := required(res, v1alpha1.ResourceInstanceProfile)
				if err != nil {
					return err
				}
				url, err := required(res, v1alpha1.ResourceQueueURL)
				if err != nil {
					return err
				}
				ud, err := userdata.Render(userdata.NewData(spec, url))
				if err != nil {
					return fmt.Errorf("%w: %w", ErrInvalidInput, err)
				}
				id, err := p.EnsureLaunchTemplate(ctx, template, spec.LaunchTemplate, profile, ud)
				if err != nil {
					return err
				}
				res[v1alpha1.ResourceLaunchTemplateID] = id
				return nil
			},
			Destroy: func(ctx context.Context, _ Resources) error {
				return p.DeleteLaunchTemplate(ctx, template)
			},
		},
		{
			Name:        "group",
			Description: fmt.Sprintf("worker group %q [%d, %d]", group, spec.Scale.GetMinReplicas(), spec.Scale.GetMaxReplicas()),
			Apply: func(ctx context.Context, res Resources) error {
				id, err := required(res, v1alpha1.ResourceLaunchTemplateID)
				if err != nil {
					return err
				}
				if err := p.EnsureGroup(ctx, group, id, spec); err != nil {
					return err
				}
				res[v1alpha1.ResourceGroupName] = group
				return nil
			},
			Destroy: func(ctx context.Context, _ Resources) error {
				return p.DeleteGroup(ctx, group)
			},
		},
		{
			Name:        "scaling-policies",
			Description: fmt.Sprintf("scale up and scale down policies of %q", group),
			Apply: func(ctx context.Context, res Resources) error {
				g, err := required(res, v1alpha1.ResourceGroupName)
				if err != nil {
					return err
				}
				up, down, err := p.EnsureScalingPolicies(ctx, g, spec.Scale)
				if err != nil {
					return err
				}
				res[v1alpha1.ResourceScaleUpPolicyARN] = up
				res[v1alpha1.ResourceScaleDownPolicyARN] = down
				return nil
			},
			Destroy: func(ctx context.Context, _ Resources) error {
				return p.DeleteScalingPolicies(ctx, group)
			},
		},
		{
			Name:        "alarms",
			Description: fmt.Sprintf("queue alarms of %q", group),
			Apply: func(ctx context.Context, res Resources) error {
				up, err := required(res, v1alpha1.ResourceScaleUpPolicyARN)
				if err != nil {
					return err
				}
				down, err := required(res, v1alpha1.ResourceScaleDownPolicyARN)
				if err != nil {
					return err
				}
				upAlarm, downAlarm, err := p.EnsureAlarms(ctx, group, spec.Queue.Name, spec.Scale, up, down)
				if err != nil {
					return err
				}
				res[v1alpha1.ResourceScaleUpAlarm] = upAlarm
				res[v1alpha1.ResourceScaleDownAlarm] = downAlarm
				return nil
			},
			Destroy: func(ctx context.Context, res Resources) error {
				return p.DeleteAlarms(ctx, AlarmNames(group)...)
			},
		},
	}
}

// AlarmNames returns the scale up and scale down alarm names of a group.
func AlarmNames(group string) []string {
	return []string{group + "-scale-up", group + "-scale-down"}
}

// Steps returns the ordered steps.
func (b *Bootstrapper) Steps() []Step {
	return b.steps
}

// Plan describes the steps without running them.
func (b *Bootstrapper) Plan() []string {
	plan := make([]string, 0, len(b.steps))
	for i, s := range b.steps {
		plan = append(plan, fmt.Sprintf("%d. %s: %s", i+1, s.Name, s.Description))
	}
	return plan
}

// Apply runs the steps in order, retrying transient failures. It stops at
// the first step which keeps failing, and returns the resources created so far.
func (b *Bootstrapper) Apply(ctx context.Context) (Resources, error) {
	log := logging.FromContext(ctx).With("fleet", b.spec.Name)
	res := Resources{}
	for _, s := range b.steps {
		log.Infow("Applying bootstrap step", zap.String("step", s.Name), zap.String("description", s.Description))
		if err := util.Retry(ctx, b.options.backoff, b.options.isRetryable, func(ctx context.Context) error {
			err := s.Apply(ctx, res)
			if err != nil {
				log.Warnw("Bootstrap step failed", zap.String("step", s.Name), zap.Error(err))
			}
			return err
		}); err != nil {
			return res, fmt.Errorf("bootstrap step %q failed, %w", s.Name, err)
		}
	}
	log.Infow("Bootstrap finished", zap.Any("resources", res))
	return res, nil
}

// Destroy runs the steps backwards. A failing step does not stop the ones
// after it, all the errors are returned.
func (b *Bootstrapper) Destroy(ctx context.Context, res Resources) error {
	log := logging.FromContext(ctx).With("fleet", b.spec.Name)
	if res == nil {
		res = Resources{}
	}
	var errs error
	for i := len(b.steps) - 1; i >= 0; i-- {
		s := b.steps[i]
		log.Infow("Destroying bootstrap step", zap.String("step", s.Name))
		if err := util.Retry(ctx, b.options.backoff, b.options.isRetryable, func(ctx context.Context) error {
			return s.Destroy(ctx, res)
		}); err != nil {
			log.Errorw("Failed to destroy", zap.String("step", s.Name), zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("destroy step %q failed, %w", s.Name, err))
		}
	}
	return errs
}

func required(res Resources, key string) (string, error) {
	v, ok := res[key]
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingResource, key)
	}
	return v, nil
}
