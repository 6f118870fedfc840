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

import "slices"

// AllowedInstanceTypes is the allow-list of worker instance types.
var AllowedInstanceTypes = []string{
	"t1.micro",
	"m1.small",
	"m1.medium",
	"m1.large",
	"m1.xlarge",
	"m2.xlarge",
	"m2.2xlarge",
	"m2.4xlarge",
	"m3.medium",
	"m3.large",
	"m3.xlarge",
	"m3.2xlarge",
	"c1.medium",
	"c1.xlarge",
	"c3.large",
	"c3.xlarge",
	"c3.2xlarge",
	"c3.4xlarge",
	"c3.8xlarge",
	"cc2.8xlarge",
	"cr1.8xlarge",
	"hi1.4xlarge",
	"hs1.8xlarge",
}

// IsAllowedInstanceType returns whether the instance type is in the allow-list.
func IsAllowedInstanceType(t string) bool {
	return slices.Contains(AllowedInstanceTypes, t)
}

// LaunchTemplateSpec describes how worker instances are launched.
type LaunchTemplateSpec struct {
	// InstanceType of the workers, must be one of AllowedInstanceTypes.
	// +optional
	InstanceType string `json:"instanceType,omitempty"`
	// SpotPrice is the bid ceiling per instance hour, as a decimal string.
	// +optional
	SpotPrice string `json:"spotPrice,omitempty"`
	// ImageID is the machine image the workers boot from.
	ImageID string `json:"imageId,omitempty"`
	// +optional
	SecurityGroupIDs []string `json:"securityGroupIds,omitempty"`
	// SubnetIDs the worker group spreads across.
	// +optional
	SubnetIDs []string `json:"subnetIds,omitempty"`
	// +optional
	KeyName string `json:"keyName,omitempty"`
	// +optional
	Bootstrap WorkerBootstrap `json:"bootstrap,omitempty"`
}

// WorkerBootstrap configures the boot script of a worker: it writes the queue
// identifier to QueuePath and starts ServiceName, which consumes the queue.
type WorkerBootstrap struct {
	// +optional
	QueuePath string `json:"queuePath,omitempty"`
	// +optional
	ServiceName string `json:"serviceName,omitempty"`
}

func (lt LaunchTemplateSpec) GetInstanceType() string {
	if lt.InstanceType == "" {
		return DefaultInstanceType
	}
	return lt.InstanceType
}

func (lt LaunchTemplateSpec) GetSpotPrice() string {
	if lt.SpotPrice == "" {
		return DefaultSpotPrice
	}
	return lt.SpotPrice
}

func (wb WorkerBootstrap) GetQueuePath() string {
	if wb.QueuePath == "" {
		return DefaultQueuePath
	}
	return wb.QueuePath
}

func (wb WorkerBootstrap) GetServiceName() string {
	if wb.ServiceName == "" {
		return DefaultServiceName
	}
	return wb.ServiceName
}
