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
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/numaproj/spotfleet/pkg/autoscaler"
	"github.com/numaproj/spotfleet/pkg/notify"
	"github.com/numaproj/spotfleet/pkg/rollout"
	"github.com/numaproj/spotfleet/pkg/sampler"
	"github.com/numaproj/spotfleet/pkg/scaling"
	"github.com/numaproj/spotfleet/pkg/server"
	"github.com/numaproj/spotfleet/pkg/shared/logging"
)

func NewControllerCommand() *cobra.Command {
	var (
		configPath string
		port       int
	)

	command := &cobra.Command{
		Use:   "controller",
		Short: "Start the fleet controller",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewLogger().Named("controller")
			spec, err := loadFleetSpec(configPath)
			if err != nil {
				logger.Errorw("Invalid fleet configuration", zap.Error(err))
				return err
			}
			if cmd.Flags().Changed("port") {
				p := int32(port)
				spec.Server.Port = &p
			}
			ctx, stop := signal.NotifyContext(logging.WithLogger(context.Background(), logger), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			env, err := newEnvironment(ctx, spec)
			if err != nil {
				logger.Errorw("Failed to connect to the provider", zap.Error(err))
				return err
			}
			defer func() { _ = env.Close() }()
			notifier, err := notify.New(ctx, &spec.Notifications)
			if err != nil {
				logger.Errorw("Failed to create the notifiers", zap.Error(err))
				return err
			}
			defer func() { _ = notifier.Close() }()

			group, err := newWorkerGroup(spec)
			if err != nil {
				return err
			}
			scale := spec.Scale
			loop := autoscaler.NewAlarmLoop(
				sampler.NewSampler(env.reader, sampler.WithPeriod(scale.GetPeriod()), sampler.WithTimeout(scale.GetTimeout())),
				scaling.NewDecider(
					scaling.WithEvaluationPeriods(scale.GetEvaluationPeriods()),
					scaling.WithVisibleMessagesThreshold(scale.GetVisibleMessagesThreshold()),
					scaling.WithEmptyReceivesThreshold(scale.GetEmptyReceivesThreshold())),
				newController(env, group),
				autoscaler.WithPeriod(scale.GetPeriod()),
				autoscaler.WithDrainOnShutdown(scale.GetDrainOnShutdown()),
				autoscaler.WithNotifier(notifier))
			manager, err := newRolloutManager(env, rollout.WithSchedule(spec.UpdateStrategy.Schedule), rollout.WithNotifier(notifier))
			if err != nil {
				return err
			}
			srv := server.NewServer(loop, manager, server.WithPort(spec.Server.GetPort()), server.WithAllowedOrigins(spec.Server.AllowedOrigins...), server.WithHealthCheckers(env.healthCheckers...))

			eg, egCtx := errgroup.WithContext(ctx)
			if scale.Disabled {
				logger.Warn("Autoscaling is disabled, the group size is left as is")
			} else {
				eg.Go(func() error { return loop.Start(egCtx) })
			}
			eg.Go(func() error { return manager.Start(egCtx) })
			eg.Go(func() error { return srv.Start(egCtx) })
			logger.Infow("Fleet controller started", zap.String("fleet", spec.Name), zap.String("group", spec.GetGroupName()), zap.String("provider", string(spec.GetProvider())))
			if err := eg.Wait(); err != nil {
				logger.Errorw("Fleet controller exited with an error", zap.Error(err))
				return err
			}
			logger.Info("Fleet controller stopped")
			return nil
		},
	}
	addConfigFlag(command, &configPath)
	command.Flags().IntVarP(&port, "port", "p", 0, "Port of the metrics and status server, overrides the configuration")
	return command
}
