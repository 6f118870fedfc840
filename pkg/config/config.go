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

// Package config loads the fleet configuration from a YAML file, with
// SPOTFLEET_ prefixed environment variables taking precedence.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/numaproj/spotfleet/pkg/apis/fleet/v1alpha1"
	"github.com/numaproj/spotfleet/pkg/shared/util"
)

// envKeys can be overridden from the environment, e.g. SPOTFLEET_SCALE_MAX.
var envKeys = []string{
	"name",
	"region",
	"provider",
	"queue.name",
	"queue.backend",
	"queue.endpointUrl",
	"launchTemplate.imageId",
	"launchTemplate.instanceType",
	"launchTemplate.spotPrice",
	"scale.disabled",
	"scale.min",
	"scale.max",
	"scale.periodSeconds",
	"scale.evaluationPeriods",
	"updateStrategy.schedule",
	"permissions.artifactBucket",
	"permissions.resultsBucket",
	"server.port",
}

// ConfigPath returns the path of the configuration file, either the given
// one, the SPOTFLEET_CONFIG environment variable, or the default.
func ConfigPath(path string) string {
	if path != "" {
		return path
	}
	return util.LookupEnvStringOr(v1alpha1.EnvConfigPath, v1alpha1.DefaultConfigPath)
}

// LoadFleetSpec reads the fleet spec. It does not validate it.
func LoadFleetSpec(path string) (*v1alpha1.FleetSpec, error) {
	v := viper.New()
	v.SetConfigFile(ConfigPath(path))
	v.SetConfigType("yaml")
	v.SetEnvPrefix(v1alpha1.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, k := range envKeys {
		if err := v.BindEnv(k); err != nil {
			return nil, fmt.Errorf("failed to bind env of %q, %w", k, err)
		}
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration file. %w", err)
	}
	spec := &v1alpha1.FleetSpec{}
	if err := v.Unmarshal(spec); err != nil {
		return nil, fmt.Errorf("failed unmarshal configuration file. %w", err)
	}
	return spec, nil
}
