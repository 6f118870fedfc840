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

// ProviderType is the cloud provider backing the compute and monitoring collaborators.
type ProviderType string

const (
	ProviderAWS   ProviderType = "aws"
	ProviderInMem ProviderType = "inmem"
)

// FleetSpec is the full configuration of a queue-draining spot worker fleet.
type FleetSpec struct {
	// Name of the fleet, also used as the worker group name.
	Name string `json:"name"`
	// Region where the collaborators live.
	// +optional
	Region string `json:"region,omitempty"`
	// Provider of the compute, monitoring and identity collaborators, defaults to aws.
	// +optional
	Provider ProviderType `json:"provider,omitempty"`
	Queue    QueueSpec    `json:"queue"`
	// +optional
	LaunchTemplate LaunchTemplateSpec `json:"launchTemplate,omitempty"`
	// +optional
	Scale Scale `json:"scale,omitempty"`
	// +optional
	UpdateStrategy UpdateStrategy `json:"updateStrategy,omitempty"`
	// +optional
	Permissions Permissions `json:"permissions,omitempty"`
	// +optional
	Notifications Notifications `json:"notifications,omitempty"`
	// +optional
	Server Server `json:"server,omitempty"`
}

func (fs FleetSpec) GetProvider() ProviderType {
	if fs.Provider == "" {
		return ProviderAWS
	}
	return fs.Provider
}

// GetGroupName returns the name of the managed worker group.
func (fs FleetSpec) GetGroupName() string {
	return fs.Name + "-workers"
}

// Permissions scopes what the worker role is allowed to touch.
type Permissions struct {
	// ArtifactBucket is the external bucket the workers read their inputs from, read-only.
	ArtifactBucket string `json:"artifactBucket,omitempty"`
	// ResultsBucket is the private bucket the workers write analysis results to.
	ResultsBucket string `json:"resultsBucket,omitempty"`
}

// Server configures the metrics and status HTTP server.
type Server struct {
	// +optional
	Port *int32 `json:"port,omitempty"`
	// AllowedOrigins enables CORS on the API for the given origins.
	// +optional
	AllowedOrigins []string `json:"allowedOrigins,omitempty"`
}

func (s Server) GetPort() int {
	if s.Port != nil && *s.Port > 0 {
		return int(*s.Port)
	}
	return DefaultServerPort
}
