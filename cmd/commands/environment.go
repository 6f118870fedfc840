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
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/numaproj/spotfleet/pkg/apis/fleet/v1alpha1"
	"github.com/numaproj/spotfleet/pkg/bootstrap"
	"github.com/numaproj/spotfleet/pkg/config"
	"github.com/numaproj/spotfleet/pkg/fleet"
	"github.com/numaproj/spotfleet/pkg/metrics"
	awsprovider "github.com/numaproj/spotfleet/pkg/provider/aws"
	"github.com/numaproj/spotfleet/pkg/provider/inmem"
	redisprovider "github.com/numaproj/spotfleet/pkg/provider/redis"
	"github.com/numaproj/spotfleet/pkg/rollout"
	"github.com/numaproj/spotfleet/pkg/sampler"
	sharedaws "github.com/numaproj/spotfleet/pkg/shared/clients/aws"
	redisclient "github.com/numaproj/spotfleet/pkg/shared/clients/redis"
	"github.com/numaproj/spotfleet/pkg/shared/logging"
	"github.com/numaproj/spotfleet/pkg/validator"
	"github.com/numaproj/spotfleet/pkg/workqueue"
)

// computeClient is what the commands need from a compute provider.
type computeClient interface {
	fleet.ComputeClient
	fleet.InstanceReplacer
	rollout.VersionSource
}

// environment holds the provider collaborators of a fleet.
type environment struct {
	spec        *v1alpha1.FleetSpec
	compute     computeClient
	provisioner bootstrap.Provisioner
	reader      sampler.MetricsReader
	// openQueue connects to the work queue on demand, only the enqueue
	// command needs it.
	openQueue      func(ctx context.Context) (workqueue.Queue, error)
	healthCheckers []metrics.HealthChecker
	closers        []func() error
}

func (e *environment) Close() error {
	var errs error
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs = multierr.Append(errs, e.closers[i]())
	}
	return errs
}

func addConfigFlag(command *cobra.Command, path *string) {
	command.Flags().StringVarP(path, "config", "c", "", fmt.Sprintf("Fleet configuration file, defaults to $%s or %s", v1alpha1.EnvConfigPath, v1alpha1.DefaultConfigPath))
}

// commandContext returns the context of a command carrying the logger.
func commandContext(cmd *cobra.Command, logger *zap.SugaredLogger) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return logging.WithLogger(ctx, logger)
}

// loadFleetSpec loads and validates the fleet configuration.
func loadFleetSpec(path string) (*v1alpha1.FleetSpec, error) {
	spec, err := config.LoadFleetSpec(config.ConfigPath(path))
	if err != nil {
		return nil, err
	}
	if err := validator.ValidateFleetSpec(spec); err != nil {
		return nil, err
	}
	return spec, nil
}

// newEnvironment connects to the provider of the fleet. The in memory
// provider has nothing to connect to, the fleet is bootstrapped in process
// so that the other commands can run against it.
func newEnvironment(ctx context.Context, spec *v1alpha1.FleetSpec) (*environment, error) {
	env := &environment{spec: spec}
	switch spec.GetProvider() {
	case v1alpha1.ProviderAWS:
		cfg, err := sharedaws.LoadConfig(ctx, sharedaws.WithRegion(spec.Region))
		if err != nil {
			return nil, err
		}
		clients := awsprovider.NewClients(cfg)
		compute := awsprovider.NewCompute(clients)
		env.compute = compute
		env.provisioner = awsprovider.NewProvisioner(clients)
		env.healthCheckers = append(env.healthCheckers, metrics.HealthCheckerFunc(func(ctx context.Context) error {
			_, err := compute.DescribeGroup(ctx, spec.GetGroupName())
			return err
		}))
		if spec.Queue.GetBackend() == v1alpha1.QueueBackendSQS {
			env.reader = awsprovider.NewQueueMetrics(clients, spec.Queue.Name)
			env.openQueue = func(ctx context.Context) (workqueue.Queue, error) {
				return awsprovider.OpenQueue(ctx, clients, spec.Queue.Name)
			}
		}
	case v1alpha1.ProviderInMem:
		cloud := inmem.NewCloud()
		for _, b := range []string{spec.Permissions.ArtifactBucket, spec.Permissions.ResultsBucket} {
			if b != "" {
				cloud.AddBucket(b)
			}
		}
		if _, err := bootstrap.New(*spec, cloud).Apply(ctx); err != nil {
			return nil, err
		}
		env.compute = cloud
		env.provisioner = cloud
		if q, ok := cloud.Queue(spec.Queue.Name); ok {
			env.reader = q
			env.openQueue = func(context.Context) (workqueue.Queue, error) { return q, nil }
		}
	default:
		return nil, fmt.Errorf("unsupported provider %q", spec.Provider)
	}

	if spec.Queue.GetBackend() == v1alpha1.QueueBackendRedis {
		client := redisclient.NewRedisClientFromConfig(spec.Queue.Redis)
		q := redisprovider.NewQueue(client, spec.Queue.Name,
			redisprovider.WithVisibilityTimeout(spec.Queue.GetVisibilityTimeout()),
			redisprovider.WithDelay(spec.Queue.GetDelay()))
		env.reader = q
		env.openQueue = func(context.Context) (workqueue.Queue, error) { return q, nil }
		env.healthCheckers = append(env.healthCheckers, metrics.HealthCheckerFunc(client.Ping))
		env.closers = append(env.closers, client.Close)
	}
	if env.reader == nil {
		return nil, fmt.Errorf("queue backend %q is not supported by provider %q", spec.Queue.GetBackend(), spec.GetProvider())
	}
	return env, nil
}

func newWorkerGroup(spec *v1alpha1.FleetSpec) (*fleet.WorkerGroup, error) {
	return fleet.NewWorkerGroup(spec.GetGroupName(), spec.Scale.GetMinReplicas(), spec.Scale.GetMaxReplicas())
}

func newController(env *environment, group *fleet.WorkerGroup) *fleet.Controller {
	scale := env.spec.Scale
	return fleet.NewController(env.compute, group,
		fleet.WithScaleUpCooldown(scale.GetScaleUpCooldown()),
		fleet.WithScaleDownCooldown(scale.GetScaleDownCooldown()),
		fleet.WithReplicasPerScaleUp(scale.GetReplicasPerScaleUp()),
		fleet.WithReplicasPerScaleDown(scale.GetReplicasPerScaleDown()),
		fleet.WithTimeout(scale.GetTimeout()))
}

func newRolloutManager(env *environment, opts ...rollout.Option) (*rollout.Manager, error) {
	us := env.spec.UpdateStrategy
	updater := fleet.NewRollingUpdater(env.compute, env.spec.GetGroupName(),
		fleet.WithBatchSize(us.GetBatchSize()),
		fleet.WithMinInstancesInService(us.GetMinInstancesInService()),
		fleet.WithPause(us.GetPause()),
		fleet.WithPollInterval(us.GetPollInterval()))
	return rollout.NewManager(env.spec.GetGroupName(), env.compute, updater, opts...)
}
