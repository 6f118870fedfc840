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

package commands

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/numaproj/spotfleet/pkg/shared/logging"
)

func NewValidateCommand() *cobra.Command {
	var configPath string

	command := &cobra.Command{
		Use:   "validate",
		Short: "Validate a fleet configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewLogger().Named("validate")
			spec, err := loadFleetSpec(configPath)
			if err != nil {
				logger.Errorw("Invalid fleet configuration", zap.Error(err))
				return err
			}
			cmd.Printf("Fleet %q is valid, group %q scales between %d and %d workers\n", spec.Name, spec.GetGroupName(), spec.Scale.GetMinReplicas(), spec.Scale.GetMaxReplicas())
			return nil
		},
	}
	addConfigFlag(command, &configPath)
	return command
}
