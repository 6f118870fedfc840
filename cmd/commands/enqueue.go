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
	"bufio"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/numaproj/spotfleet/pkg/shared/logging"
)

func NewEnqueueCommand() *cobra.Command {
	var (
		configPath string
		fromStdin  bool
	)

	command := &cobra.Command{
		Use:   "enqueue [message...]",
		Short: "Send messages to the work queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			bodies := append([]string{}, args...)
			if fromStdin {
				scanner := bufio.NewScanner(cmd.InOrStdin())
				for scanner.Scan() {
					if line := scanner.Text(); line != "" {
						bodies = append(bodies, line)
					}
				}
				if err := scanner.Err(); err != nil {
					return fmt.Errorf("failed to read stdin, %w", err)
				}
			}
			if len(bodies) == 0 {
				return fmt.Errorf("no message to enqueue")
			}
			logger := logging.NewLogger().Named("enqueue")
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
			q, err := env.openQueue(ctx)
			if err != nil {
				logger.Errorw("Failed to open the work queue", zap.Error(err))
				return err
			}
			defer func() { _ = q.Close() }()
			for _, body := range bodies {
				id, err := q.Enqueue(ctx, body)
				if err != nil {
					return fmt.Errorf("failed to enqueue message, %w", err)
				}
				cmd.Println(id)
			}
			return nil
		},
	}
	addConfigFlag(command, &configPath)
	command.Flags().BoolVar(&fromStdin, "stdin", false, "Also read messages from stdin, one per line")
	return command
}
