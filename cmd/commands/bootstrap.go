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
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/numaproj/spotfleet/pkg/bootstrap"
	"github.com/numaproj/spotfleet/pkg/shared/logging"
)

func NewBootstrapCommand() *cobra.Command {
	var (
		configPath string
		plan       bool
		destroy    bool
	)

	command := &cobra.Command{
		Use:   "bootstrap",
		Short: "Create, or destroy, the cloud resources of a fleet",
		RunE: func(cmd *cobra.Command, args []string) error {
			if plan && destroy {
				return fmt.Errorf("--plan and --destroy are mutually exclusive")
			}
			logger := logging.NewLogger().Named("bootstrap")
			spec, err := loadFleetSpec(configPath)
			if err != nil {
				logger.Errorw("Invalid fleet configuration", zap.Error(err))
				return err
			}
			if plan {
				// The provisioner is never called when planning.
				for _, s := range bootstrap.New(*spec, nil).Plan() {
					cmd.Println(s)
				}
				return nil
			}
			ctx := commandContext(cmd, logger)
			env, err := newEnvironment(ctx, spec)
			if err != nil {
				logger.Errorw("Failed to connect to the provider", zap.Error(err))
				return err
			}
			defer func() { _ = env.Close() }()
			b := bootstrap.New(*spec, env.provisioner)
			if destroy {
				if err := b.Destroy(ctx, nil); err != nil {
					logger.Errorw("Failed to destroy the fleet", zap.Error(err))
					return err
				}
				cmd.Printf("Fleet %q destroyed\n", spec.Name)
				return nil
			}
			res, err := b.Apply(ctx)
			if err != nil {
				logger.Errorw("Failed to bootstrap the fleet", zap.Error(err))
				return err
			}
			keys := make([]string, 0, len(res))
			for k := range res {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				cmd.Printf("%s: %s\n", k, res[k])
			}
			return nil
		},
	}
	addConfigFlag(command, &configPath)
	command.Flags().BoolVar(&plan, "plan", false, "Print the bootstrap steps without running them")
	command.Flags().BoolVar(&destroy, "destroy", false, "Delete the resources of the fleet, in reverse order")
	return command
}
