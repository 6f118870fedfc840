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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numaproj/spotfleet/pkg/apis/fleet/v1alpha1"
)

const testConfig = `
name: analysis
region: us-east-1
queue:
  name: jobs
  visibilityTimeoutSeconds: 600
  redis:
    addrs: ["redis:6379"]
launchTemplate:
  instanceType: c3.xlarge
  imageId: ami-123
  securityGroupIds: [sg-1]
  bootstrap:
    serviceName: analyzer
scale:
  max: 20
  scaleDownCooldownSeconds: 120
  drainOnShutdown: false
updateStrategy:
  batchSize: 5
  schedule: "0 3 * * *"
permissions:
  artifactBucket: artifacts
  resultsBucket: results
notifications:
  kafka:
    brokers: [kafka:9092]
    topic: fleet-events
    config: |
      producer:
        maxMessageBytes: 1024
server:
  port: 8080
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fleet.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFleetSpec(t *testing.T) {
	spec, err := LoadFleetSpec(writeConfig(t, testConfig))
	require.NoError(t, err)
	assert.Equal(t, "analysis", spec.Name)
	assert.Equal(t, v1alpha1.ProviderAWS, spec.GetProvider())
	assert.Equal(t, "jobs", spec.Queue.Name)
	assert.Equal(t, 10*time.Minute, spec.Queue.GetVisibilityTimeout())
	assert.Equal(t, []string{"redis:6379"}, spec.Queue.Redis.Addrs)
	assert.Equal(t, "c3.xlarge", spec.LaunchTemplate.GetInstanceType())
	assert.Equal(t, "ami-123", spec.LaunchTemplate.ImageID)
	assert.Equal(t, []string{"sg-1"}, spec.LaunchTemplate.SecurityGroupIDs)
	assert.Equal(t, "analyzer", spec.LaunchTemplate.Bootstrap.GetServiceName())
	assert.Equal(t, int32(20), spec.Scale.GetMaxReplicas())
	assert.Equal(t, int32(0), spec.Scale.GetMinReplicas())
	assert.Equal(t, 2*time.Minute, spec.Scale.GetScaleDownCooldown())
	assert.Equal(t, time.Minute, spec.Scale.GetScaleUpCooldown())
	assert.False(t, spec.Scale.GetDrainOnShutdown())
	assert.Equal(t, 5, spec.UpdateStrategy.GetBatchSize())
	assert.Equal(t, "0 3 * * *", spec.UpdateStrategy.Schedule)
	assert.Equal(t, "results", spec.Permissions.ResultsBucket)
	require.NotNil(t, spec.Notifications.Kafka)
	assert.Equal(t, "fleet-events", spec.Notifications.Kafka.Topic)
	assert.Contains(t, spec.Notifications.Kafka.Config, "maxMessageBytes")
	assert.Nil(t, spec.Notifications.NATS)
	assert.Equal(t, 8080, spec.Server.GetPort())
}

func TestLoadFleetSpec_EnvOverrides(t *testing.T) {
	t.Setenv("SPOTFLEET_SCALE_MAX", "7")
	t.Setenv("SPOTFLEET_PROVIDER", "inmem")
	t.Setenv("SPOTFLEET_LAUNCHTEMPLATE_IMAGEID", "ami-456")
	spec, err := LoadFleetSpec(writeConfig(t, testConfig))
	require.NoError(t, err)
	assert.Equal(t, int32(7), spec.Scale.GetMaxReplicas())
	assert.Equal(t, v1alpha1.ProviderInMem, spec.GetProvider())
	assert.Equal(t, "ami-456", spec.LaunchTemplate.ImageID)
	assert.Equal(t, "c3.xlarge", spec.LaunchTemplate.GetInstanceType())
}

func TestLoadFleetSpec_Errors(t *testing.T) {
	_, err := LoadFleetSpec(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to load configuration file")

	_, err = LoadFleetSpec(writeConfig(t, "name: [unterminated"))
	assert.Error(t, err)

	_, err = LoadFleetSpec(writeConfig(t, "scale:\n  max: lots\n"))
	assert.ErrorContains(t, err, "failed unmarshal")
}

func TestConfigPath(t *testing.T) {
	assert.Equal(t, "/tmp/a.yaml", ConfigPath("/tmp/a.yaml"))
	t.Setenv(v1alpha1.EnvConfigPath, "/tmp/b.yaml")
	assert.Equal(t, "/tmp/b.yaml", ConfigPath(""))
}
