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

package aws

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	astypes "github.com/aws/aws-sdk-go-v2/service/autoscaling/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"go.uber.org/multierr"

	"github.com/numaproj/spotfleet/pkg/fleet"
)

// Compute drives an EC2 Auto Scaling group.
type Compute struct {
	autoscaling AutoScalingAPI
	ec2         EC2API
}

func NewCompute(c *Clients) *Compute {
	return &Compute{autoscaling: c.AutoScaling, ec2: c.EC2}
}

func (c *Compute) describe(ctx context.Context, name string) (*astypes.AutoScalingGroup, error) {
	out, err := c.autoscaling.DescribeAutoScalingGroups(ctx, &autoscaling.DescribeAutoScalingGroupsInput{
		AutoScalingGroupNames: []string{name},
	})
	if err != nil {
		return nil, err
	}
	for i := range out.AutoScalingGroups {
		if aws.ToString(out.AutoScalingGroups[i].AutoScalingGroupName) == name {
			return &out.AutoScalingGroups[i], nil
		}
	}
	return nil, fmt.Errorf("auto scaling group %q not found", name)
}

func (c *Compute) DescribeGroup(ctx context.Context, name string) (fleet.GroupStatus, error) {
	g, err := c.describe(ctx, name)
	if err != nil {
		return fleet.GroupStatus{}, err
	}
	status := fleet.GroupStatus{
		Name:            name,
		DesiredCapacity: aws.ToInt32(g.DesiredCapacity),
		MinSize:         aws.ToInt32(g.MinSize),
		MaxSize:         aws.ToInt32(g.MaxSize),
	}
	if g.LaunchTemplate != nil {
		status.TemplateVersion = aws.ToString(g.LaunchTemplate.Version)
	}
	for _, i := range g.Instances {
		state, ok := lifecycleState(i.LifecycleState)
		if !ok {
			continue
		}
		instance := fleet.Instance{
			ID:             aws.ToString(i.InstanceId),
			LifecycleState: state,
		}
		if i.LaunchTemplate != nil {
			instance.TemplateVersion = aws.ToString(i.LaunchTemplate.Version)
		}
		status.Instances = append(status.Instances, instance)
	}
	return status, nil
}

// lifecycleState maps the Auto Scaling lifecycle states, including the
// lifecycle hook ones, to the fleet ones. Standby and warm pool instances do
// not serve the group and are left out.
func lifecycleState(s astypes.LifecycleState) (fleet.LifecycleState, bool) {
	v := string(s)
	switch {
	case strings.HasPrefix(v, "Pending"):
		return fleet.LifecyclePending, true
	case v == "InService":
		return fleet.LifecycleInService, true
	case v == "Terminated":
		return fleet.LifecycleTerminated, true
	case strings.HasPrefix(v, "Terminating"), strings.HasPrefix(v, "Detach"):
		return fleet.LifecycleTerminating, true
	default:
		return "", false
	}
}

// SetDesiredCapacity sets the target size without honoring the group
// cooldown, the controller keeps its own.
func (c *Compute) SetDesiredCapacity(ctx context.Context, name string, n int32) error {
	_, err := c.autoscaling.SetDesiredCapacity(ctx, &autoscaling.SetDesiredCapacityInput{
		AutoScalingGroupName: aws.String(name),
		DesiredCapacity:      aws.Int32(n),
		HonorCooldown:        aws.Bool(false),
	})
	return err
}

func (c *Compute) SetLaunchTemplateVersion(ctx context.Context, name string, version string) error {
	g, err := c.describe(ctx, name)
	if err != nil {
		return err
	}
	if g.LaunchTemplate == nil {
		return fmt.Errorf("auto scaling group %q does not use a launch template", name)
	}
	_, err = c.autoscaling.UpdateAutoScalingGroup(ctx, &autoscaling.UpdateAutoScalingGroupInput{
		AutoScalingGroupName: aws.String(name),
		LaunchTemplate: &astypes.LaunchTemplateSpecification{
			LaunchTemplateId:   g.LaunchTemplate.LaunchTemplateId,
			LaunchTemplateName: g.LaunchTemplate.LaunchTemplateName,
			Version:            aws.String(version),
		},
	})
	return err
}

// TerminateInstances terminates the instances one by one, keeping the
// desired capacity so that each of them gets replaced.
func (c *Compute) TerminateInstances(ctx context.Context, name string, ids []string) error {
	var errs error
	for _, id := range ids {
		_, err := c.autoscaling.TerminateInstanceInAutoScalingGroup(ctx, &autoscaling.TerminateInstanceInAutoScalingGroupInput{
			InstanceId:                     aws.String(id),
			ShouldDecrementDesiredCapacity: aws.Bool(false),
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("failed to terminate instance %q of group %q, %w", id, name, err))
		}
	}
	return errs
}

// LatestTemplateVersion returns the latest version number of the launch
// template used by the group.
func (c *Compute) LatestTemplateVersion(ctx context.Context, group string) (string, error) {
	g, err := c.describe(ctx, group)
	if err != nil {
		return "", err
	}
	if g.LaunchTemplate == nil {
		return "", fmt.Errorf("auto scaling group %q does not use a launch template", group)
	}
	in := &ec2.DescribeLaunchTemplatesInput{}
	if id := aws.ToString(g.LaunchTemplate.LaunchTemplateId); id != "" {
		in.LaunchTemplateIds = []string{id}
	} else {
		in.LaunchTemplateNames = []string{aws.ToString(g.LaunchTemplate.LaunchTemplateName)}
	}
	out, err := c.ec2.DescribeLaunchTemplates(ctx, in)
	if err != nil {
		return "", err
	}
	if len(out.LaunchTemplates) == 0 {
		return "", fmt.Errorf("launch template of group %q not found", group)
	}
	return strconv.FormatInt(aws.ToInt64(out.LaunchTemplates[0].LatestVersionNumber), 10), nil
}
