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

const (
	Project = "spotfleet"

	// Environment variables
	EnvDebug      = "SPOTFLEET_DEBUG"
	EnvConfigPath = "SPOTFLEET_CONFIG"
	EnvPrefix     = "SPOTFLEET"

	DefaultConfigPath = "/etc/spotfleet/fleet.yaml"

	// Queue defaults
	DefaultVisibilityTimeoutSeconds = 1800
	DefaultMessageRetentionSeconds  = 345600 // 4 days
	DefaultDelaySeconds             = 15
	DefaultReceiveWaitSeconds       = 20

	// Launch template defaults
	DefaultInstanceType = "m1.xlarge"
	DefaultSpotPrice    = "0.2"
	DefaultQueuePath    = "/var/lib/spotfleet/queue"
	DefaultServiceName  = "spotfleet-worker"

	// Auto scaling defaults
	DefaultMinSize                  = 0
	DefaultMaxSize                  = 50
	DefaultPeriodSeconds            = 60
	DefaultEvaluationPeriods        = 5
	DefaultVisibleMessagesThreshold = 0
	DefaultEmptyReceivesThreshold   = 10
	DefaultCooldownSeconds          = 60
	DefaultReplicasPerScale         = 1
	DefaultTimeoutSeconds           = 10

	// Rolling update defaults
	DefaultBatchSize             = 10
	DefaultMinInstancesInService = 0
	DefaultPauseSeconds          = 0
	DefaultRolloutPollSeconds    = 15

	DefaultServerPort = 9090

	// Metric names published by the queue service, used both by the sampler and the alarms.
	MetricVisibleMessages = "ApproximateNumberOfMessagesVisible"
	MetricEmptyReceives   = "NumberOfEmptyReceives"

	// Resource keys produced by the bootstrap steps.
	ResourceQueueURL           = "queueUrl"
	ResourceQueueARN           = "queueArn"
	ResourceRoleName           = "roleName"
	ResourceInstanceProfile    = "instanceProfile"
	ResourceLaunchTemplateID   = "launchTemplateId"
	ResourceGroupName          = "groupName"
	ResourceScaleUpPolicyARN   = "scaleUpPolicyArn"
	ResourceScaleDownPolicyARN = "scaleDownPolicyArn"
	ResourceScaleUpAlarm       = "scaleUpAlarm"
	ResourceScaleDownAlarm     = "scaleDownAlarm"
)
