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
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	astypes "github.com/aws/aws-sdk-go-v2/service/autoscaling/types"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/aws/smithy-go"
)

func apiError(code string) error {
	return &smithy.GenericAPIError{Code: code, Message: code}
}

// fakeAWS records the calls and keeps just enough state for the provider logic.
type fakeAWS struct {
	lock  sync.Mutex
	calls []string
	// Errors returned by the next call of an operation
	errs map[string]error

	group        astypes.AutoScalingGroup
	desiredSets  []int32
	updates      []*autoscaling.UpdateAutoScalingGroupInput
	terminated   []string
	policies     map[string]int32
	alarms       map[string]*cloudwatch.PutMetricAlarmInput
	metricInputs []*cloudwatch.GetMetricDataInput
	metricOutput *cloudwatch.GetMetricDataOutput
	templates    map[string]ec2types.LaunchTemplate
	roles        map[string]string
	profiles     map[string]string
	buckets      map[string]bool
	queues       map[string]map[string]string
	sent         []string
	received     []sqstypes.Message
	deleted      []string
}

func newFakeAWS() *fakeAWS {
	return &fakeAWS{
		errs:      map[string]error{},
		policies:  map[string]int32{},
		alarms:    map[string]*cloudwatch.PutMetricAlarmInput{},
		templates: map[string]ec2types.LaunchTemplate{},
		roles:     map[string]string{},
		profiles:  map[string]string{},
		buckets:   map[string]bool{},
		queues:    map[string]map[string]string{},
	}
}

func (f *fakeAWS) clients() *Clients {
	return &Clients{AutoScaling: f, CloudWatch: f, EC2: f, IAM: f, S3: f, SQS: f}
}

func (f *fakeAWS) failNext(op string, err error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.errs[op] = err
}

func (f *fakeAWS) call(op string) error {
	f.calls = append(f.calls, op)
	if err, ok := f.errs[op]; ok {
		delete(f.errs, op)
		return err
	}
	return nil
}

func (f *fakeAWS) DescribeAutoScalingGroups(_ context.Context, in *autoscaling.DescribeAutoScalingGroupsInput, _ ...func(*autoscaling.Options)) (*autoscaling.DescribeAutoScalingGroupsOutput, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.call("DescribeAutoScalingGroups"); err != nil {
		return nil, err
	}
	out := &autoscaling.DescribeAutoScalingGroupsOutput{}
	for _, n := range in.AutoScalingGroupNames {
		if n == aws.ToString(f.group.AutoScalingGroupName) {
			out.AutoScalingGroups = append(out.AutoScalingGroups, f.group)
		}
	}
	return out, nil
}

func (f *fakeAWS) SetDesiredCapacity(_ context.Context, in *autoscaling.SetDesiredCapacityInput, _ ...func(*autoscaling.Options)) (*autoscaling.SetDesiredCapacityOutput, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.call("SetDesiredCapacity"); err != nil {
		return nil, err
	}
	f.desiredSets = append(f.desiredSets, aws.ToInt32(in.DesiredCapacity))
	f.group.DesiredCapacity = in.DesiredCapacity
	return &autoscaling.SetDesiredCapacityOutput{}, nil
}

func (f *fakeAWS) UpdateAutoScalingGroup(_ context.Context, in *autoscaling.UpdateAutoScalingGroupInput, _ ...func(*autoscaling.Options)) (*autoscaling.UpdateAutoScalingGroupOutput, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.call("UpdateAutoScalingGroup"); err != nil {
		return nil, err
	}
	f.updates = append(f.updates, in)
	return &autoscaling.UpdateAutoScalingGroupOutput{}, nil
}

func (f *fakeAWS) TerminateInstanceInAutoScalingGroup(_ context.Context, in *autoscaling.TerminateInstanceInAutoScalingGroupInput, _ ...func(*autoscaling.Options)) (*autoscaling.TerminateInstanceInAutoScalingGroupOutput, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.call("TerminateInstanceInAutoScalingGroup"); err != nil {
		return nil, err
	}
	if aws.ToBool(in.ShouldDecrementDesiredCapacity) {
		panic("desired capacity must not be decremented")
	}
	f.terminated = append(f.terminated, aws.ToString(in.InstanceId))
	return &autoscaling.TerminateInstanceInAutoScalingGroupOutput{}, nil
}

func (f *fakeAWS) CreateAutoScalingGroup(_ context.Context, in *autoscaling.CreateAutoScalingGroupInput, _ ...func(*autoscaling.Options)) (*autoscaling.CreateAutoScalingGroupOutput, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.call("CreateAutoScalingGroup"); err != nil {
		return nil, err
	}
	if f.group.AutoScalingGroupName != nil {
		return nil, apiError("AlreadyExists")
	}
	f.group = astypes.AutoScalingGroup{
		AutoScalingGroupName: in.AutoScalingGroupName,
		MinSize:              in.MinSize,
		MaxSize:              in.MaxSize,
		DesiredCapacity:      in.DesiredCapacity,
		LaunchTemplate:       in.LaunchTemplate,
		VPCZoneIdentifier:    in.VPCZoneIdentifier,
	}
	return &autoscaling.CreateAutoScalingGroupOutput{}, nil
}

func (f *fakeAWS) DeleteAutoScalingGroup(_ context.Context, in *autoscaling.DeleteAutoScalingGroupInput, _ ...func(*autoscaling.Options)) (*autoscaling.DeleteAutoScalingGroupOutput, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.call("DeleteAutoScalingGroup"); err != nil {
		return nil, err
	}
	if aws.ToString(f.group.AutoScalingGroupName) != aws.ToString(in.AutoScalingGroupName) {
		return nil, &smithy.GenericAPIError{Code: "ValidationError", Message: "AutoScalingGroup name not found"}
	}
	f.group = astypes.AutoScalingGroup{}
	return &autoscaling.DeleteAutoScalingGroupOutput{}, nil
}

func (f *fakeAWS) PutScalingPolicy(_ context.Context, in *autoscaling.PutScalingPolicyInput, _ ...func(*autoscaling.Options)) (*autoscaling.PutScalingPolicyOutput, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.call("PutScalingPolicy"); err != nil {
		return nil, err
	}
	f.policies[aws.ToString(in.PolicyName)] = aws.ToInt32(in.ScalingAdjustment)
	return &autoscaling.PutScalingPolicyOutput{PolicyARN: aws.String("arn:policy:" + aws.ToString(in.PolicyName))}, nil
}

func (f *fakeAWS) DeletePolicy(_ context.Context, in *autoscaling.DeletePolicyInput, _ ...func(*autoscaling.Options)) (*autoscaling.DeletePolicyOutput, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.call("DeletePolicy"); err != nil {
		return nil, err
	}
	delete(f.policies, aws.ToString(in.PolicyName))
	return &autoscaling.DeletePolicyOutput{}, nil
}

func (f *fakeAWS) GetMetricData(_ context.Context, in *cloudwatch.GetMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricDataOutput, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.call("GetMetricData"); err != nil {
		return nil, err
	}
	f.metricInputs = append(f.metricInputs, in)
	if f.metricOutput == nil {
		return &cloudwatch.GetMetricDataOutput{}, nil
	}
	return f.metricOutput, nil
}

func (f *fakeAWS) PutMetricAlarm(_ context.Context, in *cloudwatch.PutMetricAlarmInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricAlarmOutput, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.call("PutMetricAlarm"); err != nil {
		return nil, err
	}
	f.alarms[aws.ToString(in.AlarmName)] = in
	return &cloudwatch.PutMetricAlarmOutput{}, nil
}

func (f *fakeAWS) DeleteAlarms(_ context.Context, in *cloudwatch.DeleteAlarmsInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.DeleteAlarmsOutput, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.call("DeleteAlarms"); err != nil {
		return nil, err
	}
	for _, n := range in.AlarmNames {
		delete(f.alarms, n)
	}
	return &cloudwatch.DeleteAlarmsOutput{}, nil
}

func (f *fakeAWS) CreateLaunchTemplate(_ context.Context, in *ec2.CreateLaunchTemplateInput, _ ...func(*ec2.Options)) (*ec2.CreateLaunchTemplateOutput, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.call("CreateLaunchTemplate"); err != nil {
		return nil, err
	}
	name := aws.ToString(in.LaunchTemplateName)
	if _, ok := f.templates[name]; ok {
		return nil, apiError("InvalidLaunchTemplateName.AlreadyExistsException")
	}
	lt := ec2types.LaunchTemplate{
		LaunchTemplateId:    aws.String("lt-" + name),
		LaunchTemplateName:  in.LaunchTemplateName,
		LatestVersionNumber: aws.Int64(1),
	}
	f.templates[name] = lt
	return &ec2.CreateLaunchTemplateOutput{LaunchTemplate: &lt}, nil
}

func (f *fakeAWS) DescribeLaunchTemplates(_ context.Context, in *ec2.DescribeLaunchTemplatesInput, _ ...func(*ec2.Options)) (*ec2.DescribeLaunchTemplatesOutput, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.call("DescribeLaunchTemplates"); err != nil {
		return nil, err
	}
	out := &ec2.DescribeLaunchTemplatesOutput{}
	for _, lt := range f.templates {
		for _, n := range in.LaunchTemplateNames {
			if n == aws.ToString(lt.LaunchTemplateName) {
				out.LaunchTemplates = append(out.LaunchTemplates, lt)
			}
		}
		for _, id := range in.LaunchTemplateIds {
			if id == aws.ToString(lt.LaunchTemplateId) {
				out.LaunchTemplates = append(out.LaunchTemplates, lt)
			}
		}
	}
	return out, nil
}

func (f *fakeAWS) DeleteLaunchTemplate(_ context.Context, in *ec2.DeleteLaunchTemplateInput, _ ...func(*ec2.Options)) (*ec2.DeleteLaunchTemplateOutput, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.call("DeleteLaunchTemplate"); err != nil {
		return nil, err
	}
	name := aws.ToString(in.LaunchTemplateName)
	if _, ok := f.templates[name]; !ok {
		return nil, apiError("InvalidLaunchTemplateName.NotFoundException")
	}
	delete(f.templates, name)
	return &ec2.DeleteLaunchTemplateOutput{}, nil
}

func (f *fakeAWS) CreateRole(_ context.Context, in *iam.CreateRoleInput, _ ...func(*iam.Options)) (*iam.CreateRoleOutput, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.call("CreateRole"); err != nil {
		return nil, err
	}
	if _, ok := f.roles[aws.ToString(in.RoleName)]; ok {
		return nil, apiError("EntityAlreadyExists")
	}
	f.roles[aws.ToString(in.RoleName)] = ""
	return &iam.CreateRoleOutput{}, nil
}

func (f *fakeAWS) PutRolePolicy(_ context.Context, in *iam.PutRolePolicyInput, _ ...func(*iam.Options)) (*iam.PutRolePolicyOutput, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.call("PutRolePolicy"); err != nil {
		return nil, err
	}
	f.roles[aws.ToString(in.RoleName)] = aws.ToString(in.PolicyDocument)
	return &iam.PutRolePolicyOutput{}, nil
}

func (f *fakeAWS) DeleteRolePolicy(_ context.Context, _ *iam.DeleteRolePolicyInput, _ ...func(*iam.Options)) (*iam.DeleteRolePolicyOutput, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.call("DeleteRolePolicy"); err != nil {
		return nil, err
	}
	return &iam.DeleteRolePolicyOutput{}, nil
}

func (f *fakeAWS) DeleteRole(_ context.Context, in *iam.DeleteRoleInput, _ ...func(*iam.Options)) (*iam.DeleteRoleOutput, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.call("DeleteRole"); err != nil {
		return nil, err
	}
	if _, ok := f.roles[aws.ToString(in.RoleName)]; !ok {
		return nil, apiError("NoSuchEntity")
	}
	delete(f.roles, aws.ToString(in.RoleName))
	return &iam.DeleteRoleOutput{}, nil
}

func (f *fakeAWS) CreateInstanceProfile(_ context.Context, in *iam.CreateInstanceProfileInput, _ ...func(*iam.Options)) (*iam.CreateInstanceProfileOutput, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.call("CreateInstanceProfile"); err != nil {
		return nil, err
	}
	if _, ok := f.profiles[aws.ToString(in.InstanceProfileName)]; ok {
		return nil, apiError("EntityAlreadyExists")
	}
	f.profiles[aws.ToString(in.InstanceProfileName)] = ""
	return &iam.CreateInstanceProfileOutput{}, nil
}

func (f *fakeAWS) AddRoleToInstanceProfile(_ context.Context, in *iam.AddRoleToInstanceProfileInput, _ ...func(*iam.Options)) (*iam.AddRoleToInstanceProfileOutput, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.call("AddRoleToInstanceProfile"); err != nil {
		return nil, err
	}
	if f.profiles[aws.ToString(in.InstanceProfileName)] != "" {
		return nil, apiError("LimitExceeded")
	}
	f.profiles[aws.ToString(in.InstanceProfileName)] = aws.ToString(in.RoleName)
	return &iam.AddRoleToInstanceProfileOutput{}, nil
}

func (f *fakeAWS) RemoveRoleFromInstanceProfile(_ context.Context, in *iam.RemoveRoleFromInstanceProfileInput, _ ...func(*iam.Options)) (*iam.RemoveRoleFromInstanceProfileOutput, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.call("RemoveRoleFromInstanceProfile"); err != nil {
		return nil, err
	}
	f.profiles[aws.ToString(in.InstanceProfileName)] = ""
	return &iam.RemoveRoleFromInstanceProfileOutput{}, nil
}

func (f *fakeAWS) DeleteInstanceProfile(_ context.Context, in *iam.DeleteInstanceProfileInput, _ ...func(*iam.Options)) (*iam.DeleteInstanceProfileOutput, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.call("DeleteInstanceProfile"); err != nil {
		return nil, err
	}
	delete(f.profiles, aws.ToString(in.InstanceProfileName))
	return &iam.DeleteInstanceProfileOutput{}, nil
}

func (f *fakeAWS) HeadBucket(_ context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.call("HeadBucket"); err != nil {
		return nil, err
	}
	if !f.buckets[aws.ToString(in.Bucket)] {
		return nil, apiError("NotFound")
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeAWS) CreateQueue(_ context.Context, in *sqs.CreateQueueInput, _ ...func(*sqs.Options)) (*sqs.CreateQueueOutput, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.call("CreateQueue"); err != nil {
		return nil, err
	}
	name := aws.ToString(in.QueueName)
	f.queues[name] = in.Attributes
	return &sqs.CreateQueueOutput{QueueUrl: aws.String(fakeQueueURL(name))}, nil
}

func fakeQueueURL(name string) string {
	return "https://sqs.local/000000000000/" + name
}

func (f *fakeAWS) GetQueueUrl(_ context.Context, in *sqs.GetQueueUrlInput, _ ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.call("GetQueueUrl"); err != nil {
		return nil, err
	}
	name := aws.ToString(in.QueueName)
	if _, ok := f.queues[name]; !ok {
		return nil, apiError("AWS.SimpleQueueService.NonExistentQueue")
	}
	return &sqs.GetQueueUrlOutput{QueueUrl: aws.String(fakeQueueURL(name))}, nil
}

func (f *fakeAWS) GetQueueAttributes(_ context.Context, in *sqs.GetQueueAttributesInput, _ ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.call("GetQueueAttributes"); err != nil {
		return nil, err
	}
	url := aws.ToString(in.QueueUrl)
	return &sqs.GetQueueAttributesOutput{Attributes: map[string]string{
		"QueueArn": "arn:aws:sqs:local:000000000000:" + url[len(fakeQueueURL("")):],
	}}, nil
}

func (f *fakeAWS) DeleteQueue(_ context.Context, in *sqs.DeleteQueueInput, _ ...func(*sqs.Options)) (*sqs.DeleteQueueOutput, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.call("DeleteQueue"); err != nil {
		return nil, err
	}
	name := aws.ToString(in.QueueUrl)[len(fakeQueueURL("")):]
	if _, ok := f.queues[name]; !ok {
		return nil, apiError("AWS.SimpleQueueService.NonExistentQueue")
	}
	delete(f.queues, name)
	return &sqs.DeleteQueueOutput{}, nil
}

func (f *fakeAWS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.call("SendMessage"); err != nil {
		return nil, err
	}
	f.sent = append(f.sent, aws.ToString(in.MessageBody))
	return &sqs.SendMessageOutput{MessageId: aws.String("msg-" + aws.ToString(in.MessageBody))}, nil
}

func (f *fakeAWS) ReceiveMessage(_ context.Context, in *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.call("ReceiveMessage"); err != nil {
		return nil, err
	}
	if in.WaitTimeSeconds > 20 {
		return nil, apiError("InvalidParameterValue")
	}
	out := &sqs.ReceiveMessageOutput{}
	if len(f.received) > 0 {
		out.Messages = f.received[:1]
		f.received = f.received[1:]
	}
	return out, nil
}

func (f *fakeAWS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.call("DeleteMessage"); err != nil {
		return nil, err
	}
	f.deleted = append(f.deleted, aws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}
