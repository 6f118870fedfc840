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

	"github.com/numaproj/spotfleet/pkg/rollout"
	"github.com/numaproj/spotfleet/pkg/shared/logging"
	sharedutil "github.com/numaproj/spotfleet/pkg/shared/util"
)

func NewRolloutCommand() *cobra.Command {
	var configPath string

	command := &cobra.Command{
		Use:   "rollout",
		Short: "Replace the workers running an outdated launch template version",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewLogger().Named("rollout")
			spec, err := loadFleetSpec(configPath)
			if err != nil {
				logger.Errorw("Invalid fleet configuration", zap.Error(err))
				return err
			}
			ctx := commandContext(cmd, logger)
			env, err := newEnvironment(ctx, spec)
			if err != nil {
				logger.Errorw("Failed to connect to the provider", zap.Error(err))
				return err
			}
			defer func() { _ = env.Close() }()
			manager, err := newRolloutManager(env)
			if err != nil {
				return err
			}
			r, err := manager.Trigger(ctx, rollout.TriggerManual)
			cmd.Println(sharedutil.MustJSON(r))
			if err != nil {
				logger.Errorw("Rollout failed", zap.Error(err))
				return err
			}
			return nil
		},
	}
	addConfigFlag(command, &configPath)
	return command
}
