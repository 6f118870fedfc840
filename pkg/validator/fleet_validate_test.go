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

package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/multierr"
	"k8s.io/utils/ptr"

	"github.com/numaproj/spotfleet/pkg/apis/fleet/v1alpha1"
)

func testFleet() *v1alpha1.FleetSpec {
	return &v1alpha1.FleetSpec{
		Name:   "analysis",
		Region: "us-east-1",
		Queue:  v1alpha1.QueueSpec{Name: "jobs"},
		LaunchTemplate: v1alpha1.LaunchTemplateSpec{
			ImageID: "ami-123",
		},
		Permissions: v1alpha1.Permissions{
			ArtifactBucket: "artifacts",
			ResultsBucket:  "results",
		},
	}
}

func TestValidateFleetSpec(t *testing.T) {
	assert.NoError(t, ValidateFleetSpec(testFleet()))

	inmem := &v1alpha1.FleetSpec{
		Name:     "dry-run",
		Provider: v1alpha1.ProviderInMem,
		Queue:    v1alpha1.QueueSpec{Name: "jobs", Backend: v1alpha1.QueueBackendInMem},
	}
	assert.NoError(t, ValidateFleetSpec(inmem))

	err := ValidateFleetSpec(nil)
	assert.ErrorIs(t, err, ErrInvalidFleetSpec)
}

func TestValidateFleetSpec_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*v1alpha1.FleetSpec)
		errMsg string
	}{
		{"bad name", func(s *v1alpha1.FleetSpec) { s.Name = "Analysis_1" }, "invalid fleet name"},
		{"bad provider", func(s *v1alpha1.FleetSpec) { s.Provider = "gcp" }, "unsupported provider"},
		{"no queue", func(s *v1alpha1.FleetSpec) { s.Queue.Name = "" }, "queue name is required"},
		{"bad backend", func(s *v1alpha1.FleetSpec) { s.Queue.Backend = "kafka" }, "unsupported queue backend"},
		{"redis without addrs", func(s *v1alpha1.FleetSpec) { s.Queue.Backend = v1alpha1.QueueBackendRedis }, "redis addrs are required"},
		{"inmem queue on aws", func(s *v1alpha1.FleetSpec) { s.Queue.Backend = v1alpha1.QueueBackendInMem }, "requires provider"},
		{"long visibility", func(s *v1alpha1.FleetSpec) { s.Queue.VisibilityTimeoutSeconds = ptr.To[uint32](50000) }, "visibility timeout"},
		{"long receive wait", func(s *v1alpha1.FleetSpec) { s.Queue.ReceiveWaitSeconds = ptr.To[uint32](21) }, "receive wait"},
		{"instance type", func(s *v1alpha1.FleetSpec) { s.LaunchTemplate.InstanceType = "p5.48xlarge" }, "instance type"},
		{"spot price", func(s *v1alpha1.FleetSpec) { s.LaunchTemplate.SpotPrice = "-1" }, "spot price"},
		{"spot price text", func(s *v1alpha1.FleetSpec) { s.LaunchTemplate.SpotPrice = "cheap" }, "spot price"},
		{"no image", func(s *v1alpha1.FleetSpec) { s.LaunchTemplate.ImageID = "" }, "image id is required"},
		{"min greater than max", func(s *v1alpha1.FleetSpec) { s.Scale.Min = ptr.To[int32](5); s.Scale.Max = ptr.To[int32](2) }, "min 5 is greater than max 2"},
		{"negative max", func(s *v1alpha1.FleetSpec) { s.Scale.Max = ptr.To[int32](-1) }, "max -1 is negative"},
		{"zero evaluation periods", func(s *v1alpha1.FleetSpec) { s.Scale.EvaluationPeriods = ptr.To[uint32](0) }, "evaluationPeriods must be at least 1"},
		{"zero period", func(s *v1alpha1.FleetSpec) { s.Scale.PeriodSeconds = ptr.To[uint32](0) }, "periodSeconds must be at least 1"},
		{"timeout over period", func(s *v1alpha1.FleetSpec) { s.Scale.TimeoutSeconds = ptr.To[uint32](120) }, "longer than the period"},
		{"zero batch", func(s *v1alpha1.FleetSpec) { s.UpdateStrategy.BatchSize = ptr.To[uint32](0) }, "batchSize"},
		{"bad schedule", func(s *v1alpha1.FleetSpec) { s.UpdateStrategy.Schedule = "every day" }, "invalid update schedule"},
		{"no buckets", func(s *v1alpha1.FleetSpec) { s.Permissions = v1alpha1.Permissions{} }, "buckets are required"},
		{"no region", func(s *v1alpha1.FleetSpec) { s.Region = "" }, "region is required"},
		{"nats without subject", func(s *v1alpha1.FleetSpec) {
			s.Notifications.NATS = &v1alpha1.NATSNotification{URL: "nats://localhost:4222"}
		}, "nats notifications"},
		{"kafka without topic", func(s *v1alpha1.FleetSpec) {
			s.Notifications.Kafka = &v1alpha1.KafkaNotification{Brokers: []string{"localhost:9092"}}
		}, "kafka notifications"},
		{"kafka bad config", func(s *v1alpha1.FleetSpec) {
			s.Notifications.Kafka = &v1alpha1.KafkaNotification{Brokers: []string{"localhost:9092"}, Topic: "t", Config: "producer: ["}
		}, "invalid kafka config"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			spec := testFleet()
			tc.modify(spec)
			err := ValidateFleetSpec(spec)
			assert.ErrorIs(t, err, ErrInvalidFleetSpec)
			assert.ErrorContains(t, err, tc.errMsg)
		})
	}
}

func TestValidateFleetSpec_ReportsEveryProblem(t *testing.T) {
	spec := testFleet()
	spec.Queue.Name = ""
	spec.LaunchTemplate.InstanceType = "x1.32xlarge"
	spec.Scale.Min = ptr.To[int32](10)
	spec.Scale.Max = ptr.To[int32](1)
	err := ValidateFleetSpec(spec)
	assert.ErrorIs(t, err, ErrInvalidFleetSpec)
	assert.Len(t, multierr.Errors(errorsOf(err)), 3)
}

// errorsOf unwraps the multierr combined by ValidateFleetSpec.
func errorsOf(err error) error {
	u, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return err
	}
	errs := u.Unwrap()
	return errs[len(errs)-1]
}
