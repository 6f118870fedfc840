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
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	astypes "github.com/aws/aws-sdk-go-v2/service/autoscaling/types"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/multierr"

	"github.com/numaproj/spotfleet/pkg/apis/fleet/v1alpha1"
	"github.com/numaproj/spotfleet/pkg/bootstrap"
)

const (
	workerPolicyName = "spotfleet-worker"
	// The group follows the newest template version until a rollout pins one
	latestVersion = "$Latest"
)

// Provisioner creates the fleet resources.
type Provisioner struct {
	*Clients
}

var _ bootstrap.Provisioner = (*Provisioner)(nil)

func NewProvisioner(c *Clients) *Provisioner {
	return &Provisioner{Clients: c}
}

func (p *Provisioner) EnsureQueue(ctx context.Context, spec v1alpha1.QueueSpec) (string, string, error) {
	seconds := func(d time.Duration) string {
		return strconv.Itoa(int(d / time.Second))
	}
	out, err := p.SQS.CreateQueue(ctx, &sqs.CreateQueueInput{
		QueueName: aws.String(spec.Name),
		Attributes: map[string]string{
			string(sqstypes.QueueAttributeNameVisibilityTimeout):             seconds(spec.GetVisibilityTimeout()),
			string(sqstypes.QueueAttributeNameMessageRetentionPeriod):        seconds(spec.GetMessageRetention()),
			string(sqstypes.QueueAttributeNameDelaySeconds):                  seconds(spec.GetDelay()),
			string(sqstypes.QueueAttributeNameReceiveMessageWaitTimeSeconds): seconds(spec.GetReceiveWait()),
		},
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to create queue %q, %w", spec.Name, err)
	}
	url := aws.ToString(out.QueueUrl)
	attrs, err := p.SQS.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(url),
		AttributeNames: []sqstypes.QueueAttributeName{sqstypes.QueueAttributeNameQueueArn},
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to get the arn of queue %q, %w", spec.Name, err)
	}
	return url, attrs.Attributes[string(sqstypes.QueueAttributeNameQueueArn)], nil
}

// LookupQueue returns the URL of the queue, or an empty string if it does not exist.
func (p *Provisioner) LookupQueue(ctx context.Context, name string) (string, error) {
	out, err := p.SQS.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(name)})
	if err != nil {
		if isQueueNotFound(err) {
			return "", nil
		}
		return "", err
	}
	return aws.ToString(out.QueueUrl), nil
}

func (p *Provisioner) DeleteQueue(ctx context.Context, url string) error {
	if _, err := p.SQS.DeleteQueue(ctx, &sqs.DeleteQueueInput{QueueUrl: aws.String(url)}); err != nil && !isQueueNotFound(err) {
		return err
	}
	return nil
}

func isQueueNotFound(err error) bool {
	return isErrorCode(err, "AWS.SimpleQueueService.NonExistentQueue", "QueueDoesNotExist")
}

func (p *Provisioner) CheckBuckets(ctx context.Context, buckets ...string) error {
	var errs error
	for _, b := range buckets {
		if b == "" {
			continue
		}
		if _, err := p.S3.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(b)}); err != nil {
			if isErrorCode(err, "NotFound", "NoSuchBucket", "Forbidden", "AccessDenied") {
				err = fmt.Errorf("%w: bucket %q, %w", bootstrap.ErrMissingResource, b, err)
			}
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func (p *Provisioner) EnsureRole(ctx context.Context, name string, queueARN string, perms v1alpha1.Permissions) error {
	trust, err := assumeRolePolicy()
	if err != nil {
		return err
	}
	policy, err := workerPolicy(queueARN, perms)
	if err != nil {
		return err
	}
	if _, err := p.IAM.CreateRole(ctx, &iam.CreateRoleInput{
		RoleName:                 aws.String(name),
		AssumeRolePolicyDocument: aws.String(trust),
	}); err != nil && !isErrorCode(err, "EntityAlreadyExists") {
		return fmt.Errorf("failed to create role %q, %w", name, err)
	}
	// Overwrites the policy of an existing role, keeping it in sync with the queue.
	if _, err := p.IAM.PutRolePolicy(ctx, &iam.PutRolePolicyInput{
		RoleName:       aws.String(name),
		PolicyName:     aws.String(workerPolicyName),
		PolicyDocument: aws.String(policy),
	}); err != nil {
		return fmt.Errorf("failed to put the policy of role %q, %w", name, err)
	}
	return nil
}

func (p *Provisioner) DeleteRole(ctx context.Context, name string) error {
	if _, err := p.IAM.DeleteRolePolicy(ctx, &iam.DeleteRolePolicyInput{
		RoleName:   aws.String(name),
		PolicyName: aws.String(workerPolicyName),
	}); err != nil && !isErrorCode(err, "NoSuchEntity") {
		return err
	}
	if _, err := p.IAM.DeleteRole(ctx, &iam.DeleteRoleInput{RoleName: aws.String(name)}); err != nil && !isErrorCode(err, "NoSuchEntity") {
		return err
	}
	return nil
}

func (p *Provisioner) EnsureInstanceProfile(ctx context.Context, name string, role string) error {
	if _, err := p.IAM.CreateInstanceProfile(ctx, &iam.CreateInstanceProfileInput{
		InstanceProfileName: aws.String(name),
	}); err != nil && !isErrorCode(err, "EntityAlreadyExists") {
		return fmt.Errorf("failed to create instance profile %q, %w", name, err)
	}
	// A profile holds a single role, adding it twice is a LimitExceeded.
	if _, err := p.IAM.AddRoleToInstanceProfile(ctx, &iam.AddRoleToInstanceProfileInput{
		InstanceProfileName: aws.String(name),
		RoleName:            aws.String(role),
	}); err != nil && !isErrorCode(err, "LimitExceeded", "EntityAlreadyExists") {
		return fmt.Errorf("failed to add role %q to instance profile %q, %w", role, name, err)
	}
	return nil
}

func (p *Provisioner) DeleteInstanceProfile(ctx context.Context, name string, role string) error {
	if _, err := p.IAM.RemoveRoleFromInstanceProfile(ctx, &iam.RemoveRoleFromInstanceProfileInput{
		InstanceProfileName: aws.String(name),
		RoleName:            aws.String(role),
	}); err != nil && !isErrorCode(err, "NoSuchEntity") {
		return err
	}
	if _, err := p.IAM.DeleteInstanceProfile(ctx, &iam.DeleteInstanceProfileInput{
		InstanceProfileName: aws.String(name),
	}); err != nil && !isErrorCode(err, "NoSuchEntity") {
		return err
	}
	return nil
}

func (p *Provisioner) EnsureLaunchTemplate(ctx context.Context, name string, spec v1alpha1.LaunchTemplateSpec, instanceProfile string, userData string) (string, error) {
	data := &ec2types.RequestLaunchTemplateData{
		ImageId:          aws.String(spec.ImageID),
		InstanceType:     ec2types.InstanceType(spec.GetInstanceType()),
		SecurityGroupIds: spec.SecurityGroupIDs,
		UserData:         aws.String(userData),
		IamInstanceProfile: &ec2types.LaunchTemplateIamInstanceProfileSpecificationRequest{
			Name: aws.String(instanceProfile),
		},
		InstanceMarketOptions: &ec2types.LaunchTemplateInstanceMarketOptionsRequest{
			MarketType: ec2types.MarketTypeSpot,
			SpotOptions: &ec2types.LaunchTemplateSpotMarketOptionsRequest{
				MaxPrice: aws.String(spec.GetSpotPrice()),
			},
		},
	}
	if spec.KeyName != "" {
		data.KeyName = aws.String(spec.KeyName)
	}
	out, err := p.EC2.CreateLaunchTemplate(ctx, &ec2.CreateLaunchTemplateInput{
		LaunchTemplateName: aws.String(name),
		LaunchTemplateData: data,
	})
	if err == nil {
		return aws.ToString(out.LaunchTemplate.LaunchTemplateId), nil
	}
	if !isErrorCode(err, "InvalidLaunchTemplateName.AlreadyExistsException") {
		return "", fmt.Errorf("failed to create launch template %q, %w", name, err)
	}
	existing, err := p.EC2.DescribeLaunchTemplates(ctx, &ec2.DescribeLaunchTemplatesInput{
		LaunchTemplateNames: []string{name},
	})
	if err != nil {
		return "", fmt.Errorf("failed to describe launch template %q, %w", name, err)
	}
	if len(existing.LaunchTemplates) == 0 {
		return "", fmt.Errorf("launch template %q not found", name)
	}
	return aws.ToString(existing.LaunchTemplates[0].LaunchTemplateId), nil
}

func (p *Provisioner) DeleteLaunchTemplate(ctx context.Context, name string) error {
	if _, err := p.EC2.DeleteLaunchTemplate(ctx, &ec2.DeleteLaunchTemplateInput{
		LaunchTemplateName: aws.String(name),
	}); err != nil && !isErrorCode(err, "InvalidLaunchTemplateName.NotFoundException", "InvalidLaunchTemplateId.NotFound") {
		return err
	}
	return nil
}

func (p *Provisioner) EnsureGroup(ctx context.Context, name string, launchTemplateID string, spec v1alpha1.FleetSpec) error {
	minSize := spec.Scale.GetMinReplicas()
	_, err := p.AutoScaling.CreateAutoScalingGroup(ctx, &autoscaling.CreateAutoScalingGroupInput{
		AutoScalingGroupName: aws.String(name),
		MinSize:              aws.Int32(minSize),
		MaxSize:              aws.Int32(spec.Scale.GetMaxReplicas()),
		DesiredCapacity:      aws.Int32(minSize),
		LaunchTemplate: &astypes.LaunchTemplateSpecification{
			LaunchTemplateId: aws.String(launchTemplateID),
			Version:          aws.String(latestVersion),
		},
		VPCZoneIdentifier: aws.String(strings.Join(spec.LaunchTemplate.SubnetIDs, ",")),
		Tags: []astypes.Tag{{
			Key:               aws.String("Name"),
			Value:             aws.String(name),
			PropagateAtLaunch: aws.Bool(true),
		}},
	})
	if err != nil && !isErrorCode(err, "AlreadyExists") {
		return fmt.Errorf("failed to create auto scaling group %q, %w", name, err)
	}
	return nil
}

// DeleteGroup force deletes the group, terminating its instances.
func (p *Provisioner) DeleteGroup(ctx context.Context, name string) error {
	if _, err := p.AutoScaling.DeleteAutoScalingGroup(ctx, &autoscaling.DeleteAutoScalingGroupInput{
		AutoScalingGroupName: aws.String(name),
		ForceDelete:          aws.Bool(true),
	}); err != nil && !isGroupNotFound(err) {
		return err
	}
	return nil
}

// Auto Scaling reports missing groups and policies as validation errors.
func isGroupNotFound(err error) bool {
	return isErrorCode(err, "ValidationError") && strings.Contains(err.Error(), "not found")
}

func policyNames(group string) (string, string) {
	return group + "-scale-up-policy", group + "-scale-down-policy"
}

func (p *Provisioner) EnsureScalingPolicies(ctx context.Context, group string, scale v1alpha1.Scale) (string, string, error) {
	upName, downName := policyNames(group)
	put := func(name string, adjustment int32, cooldown time.Duration) (string, error) {
		out, err := p.AutoScaling.PutScalingPolicy(ctx, &autoscaling.PutScalingPolicyInput{
			AutoScalingGroupName: aws.String(group),
			PolicyName:           aws.String(name),
			PolicyType:           aws.String("SimpleScaling"),
			AdjustmentType:       aws.String("ChangeInCapacity"),
			ScalingAdjustment:    aws.Int32(adjustment),
			Cooldown:             aws.Int32(int32(cooldown / time.Second)),
		})
		if err != nil {
			return "", fmt.Errorf("failed to put scaling policy %q, %w", name, err)
		}
		return aws.ToString(out.PolicyARN), nil
	}
	up, err := put(upName, scale.GetReplicasPerScaleUp(), scale.GetScaleUpCooldown())
	if err != nil {
		return "", "", err
	}
	down, err := put(downName, -scale.GetReplicasPerScaleDown(), scale.GetScaleDownCooldown())
	if err != nil {
		return "", "", err
	}
	return up, down, nil
}

func (p *Provisioner) DeleteScalingPolicies(ctx context.Context, group string) error {
	upName, downName := policyNames(group)
	var errs error
	for _, name := range []string{upName, downName} {
		if _, err := p.AutoScaling.DeletePolicy(ctx, &autoscaling.DeletePolicyInput{
			AutoScalingGroupName: aws.String(group),
			PolicyName:           aws.String(name),
		}); err != nil && !isGroupNotFound(err) {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// EnsureAlarms creates the two queue alarms. Each one evaluates the sum of
// its metric over the whole evaluation window as a single period, the same
// rule the controller applies.
func (p *Provisioner) EnsureAlarms(ctx context.Context, group string, queueName string, scale v1alpha1.Scale, upPolicyARN string, downPolicyARN string) (string, string, error) {
	names := bootstrap.AlarmNames(group)
	window := scale.GetPeriod() * time.Duration(scale.GetEvaluationPeriods())
	put := func(name, metric string, threshold uint64, action string) error {
		_, err := p.CloudWatch.PutMetricAlarm(ctx, &cloudwatch.PutMetricAlarmInput{
			AlarmName:          aws.String(name),
			AlarmDescription:   aws.String(fmt.Sprintf("%s of queue %s above %d", metric, queueName, threshold)),
			Namespace:          aws.String(sqsNamespace),
			MetricName:         aws.String(metric),
			Dimensions:         []cwtypes.Dimension{{Name: aws.String(queueNameDimension), Value: aws.String(queueName)}},
			Statistic:          cwtypes.StatisticSum,
			Period:             aws.Int32(int32(window.Round(metricResolution) / time.Second)),
			EvaluationPeriods:  aws.Int32(1),
			Threshold:          aws.Float64(float64(threshold)),
			ComparisonOperator: cwtypes.ComparisonOperatorGreaterThanThreshold,
			TreatMissingData:   aws.String("notBreaching"),
			AlarmActions:       []string{action},
		})
		if err != nil {
			return fmt.Errorf("failed to put alarm %q, %w", name, err)
		}
		return nil
	}
	if err := put(names[0], v1alpha1.MetricVisibleMessages, scale.GetVisibleMessagesThreshold(), upPolicyARN); err != nil {
		return "", "", err
	}
	if err := put(names[1], v1alpha1.MetricEmptyReceives, scale.GetEmptyReceivesThreshold(), downPolicyARN); err != nil {
		return "", "", err
	}
	return names[0], names[1], nil
}

func (p *Provisioner) DeleteAlarms(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		return nil
	}
	_, err := p.CloudWatch.DeleteAlarms(ctx, &cloudwatch.DeleteAlarmsInput{AlarmNames: names})
	return err
}
