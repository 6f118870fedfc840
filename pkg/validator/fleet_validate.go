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
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	k8svalidation "k8s.io/apimachinery/pkg/util/validation"

	"github.com/numaproj/spotfleet/pkg/apis/fleet/v1alpha1"
	"github.com/numaproj/spotfleet/pkg/shared/util"
)

// ErrInvalidFleetSpec wraps every configuration problem found at startup.
var ErrInvalidFleetSpec = errors.New("invalid fleet spec")

// Limits of the SQS queue attributes.
const (
	maxVisibilityTimeout = 12 * time.Hour
	maxDelay             = 15 * time.Minute
	maxReceiveWait       = 20 * time.Second
	minRetention         = time.Minute
	maxRetention         = 14 * 24 * time.Hour
)

// ValidateFleetSpec returns all the problems of the fleet configuration at once, wrapped in
// ErrInvalidFleetSpec.
func ValidateFleetSpec(spec *v1alpha1.FleetSpec) error {
	if spec == nil {
		return fmt.Errorf("%w: nil fleet spec", ErrInvalidFleetSpec)
	}
	var errs error
	if errList := k8svalidation.IsDNS1035Label(spec.Name); len(errList) > 0 {
		errs = multierr.Append(errs, fmt.Errorf("invalid fleet name %q, %v", spec.Name, errList))
	}
	provider := spec.GetProvider()
	switch provider {
	case v1alpha1.ProviderAWS, v1alpha1.ProviderInMem:
	default:
		errs = multierr.Append(errs, fmt.Errorf("unsupported provider %q", spec.Provider))
	}
	errs = multierr.Combine(errs,
		validateQueue(spec.Queue, provider),
		validateLaunchTemplate(spec.LaunchTemplate, provider),
		validateScale(spec.Scale),
		validateUpdateStrategy(spec.UpdateStrategy),
		validateNotifications(spec.Notifications),
	)
	if provider == v1alpha1.ProviderAWS {
		if spec.Region == "" {
			errs = multierr.Append(errs, fmt.Errorf("region is required with provider %q", provider))
		}
		if spec.Permissions.ArtifactBucket == "" || spec.Permissions.ResultsBucket == "" {
			errs = multierr.Append(errs, fmt.Errorf("artifact and results buckets are required with provider %q", provider))
		}
	}
	if errs != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFleetSpec, errs)
	}
	return nil
}

func validateQueue(q v1alpha1.QueueSpec, provider v1alpha1.ProviderType) error {
	var errs error
	if q.Name == "" {
		errs = multierr.Append(errs, fmt.Errorf("queue name is required"))
	}
	switch q.GetBackend() {
	case v1alpha1.QueueBackendSQS:
		if provider != v1alpha1.ProviderAWS {
			errs = multierr.Append(errs, fmt.Errorf("queue backend %q requires provider %q", v1alpha1.QueueBackendSQS, v1alpha1.ProviderAWS))
		}
		if d := q.GetVisibilityTimeout(); d > maxVisibilityTimeout {
			errs = multierr.Append(errs, fmt.Errorf("queue visibility timeout %v is greater than %v", d, maxVisibilityTimeout))
		}
		if d := q.GetDelay(); d > maxDelay {
			errs = multierr.Append(errs, fmt.Errorf("queue delay %v is greater than %v", d, maxDelay))
		}
		if d := q.GetReceiveWait(); d > maxReceiveWait {
			errs = multierr.Append(errs, fmt.Errorf("queue receive wait %v is greater than %v", d, maxReceiveWait))
		}
		if d := q.GetMessageRetention(); d < minRetention || d > maxRetention {
			errs = multierr.Append(errs, fmt.Errorf("queue message retention %v is not within [%v, %v]", d, minRetention, maxRetention))
		}
	case v1alpha1.QueueBackendRedis:
		if q.Redis == nil || len(q.Redis.Addrs) == 0 {
			errs = multierr.Append(errs, fmt.Errorf("redis addrs are required with queue backend %q", v1alpha1.QueueBackendRedis))
		}
	case v1alpha1.QueueBackendInMem:
		if provider != v1alpha1.ProviderInMem {
			errs = multierr.Append(errs, fmt.Errorf("queue backend %q requires provider %q", v1alpha1.QueueBackendInMem, v1alpha1.ProviderInMem))
		}
	default:
		errs = multierr.Append(errs, fmt.Errorf("unsupported queue backend %q", q.Backend))
	}
	return errs
}

func validateLaunchTemplate(lt v1alpha1.LaunchTemplateSpec, provider v1alpha1.ProviderType) error {
	var errs error
	if t := lt.GetInstanceType(); !v1alpha1.IsAllowedInstanceType(t) {
		errs = multierr.Append(errs, fmt.Errorf("instance type %q is not one of %v", t, v1alpha1.AllowedInstanceTypes))
	}
	if p, err := strconv.ParseFloat(lt.GetSpotPrice(), 64); err != nil || p <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("spot price %q is not a positive decimal", lt.GetSpotPrice()))
	}
	if provider == v1alpha1.ProviderAWS && lt.ImageID == "" {
		errs = multierr.Append(errs, fmt.Errorf("image id is required with provider %q", provider))
	}
	return errs
}

func validateScale(s v1alpha1.Scale) error {
	var errs error
	if s.Min != nil && *s.Min < 0 {
		errs = multierr.Append(errs, fmt.Errorf("min %d is negative", *s.Min))
	}
	if s.Max != nil && *s.Max < 0 {
		errs = multierr.Append(errs, fmt.Errorf("max %d is negative", *s.Max))
	}
	if minR, maxR := s.GetMinReplicas(), s.GetMaxReplicas(); minR > maxR {
		errs = multierr.Append(errs, fmt.Errorf("min %d is greater than max %d", minR, maxR))
	}
	for name, v := range map[string]*uint32{
		"periodSeconds":        s.PeriodSeconds,
		"evaluationPeriods":    s.EvaluationPeriods,
		"replicasPerScaleUp":   s.ReplicasPerScaleUp,
		"replicasPerScaleDown": s.ReplicasPerScaleDown,
		"timeoutSeconds":       s.TimeoutSeconds,
	} {
		if v != nil && *v == 0 {
			errs = multierr.Append(errs, fmt.Errorf("%s must be at least 1", name))
		}
	}
	if s.GetTimeout() > s.GetPeriod() {
		errs = multierr.Append(errs, fmt.Errorf("timeout %v is longer than the period %v", s.GetTimeout(), s.GetPeriod()))
	}
	return errs
}

func validateUpdateStrategy(us v1alpha1.UpdateStrategy) error {
	var errs error
	if us.BatchSize != nil && *us.BatchSize == 0 {
		errs = multierr.Append(errs, fmt.Errorf("batchSize must be at least 1"))
	}
	if us.Schedule != "" {
		if _, err := cron.ParseStandard(us.Schedule); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("invalid update schedule %q, %w", us.Schedule, err))
		}
	}
	return errs
}

func validateNotifications(n v1alpha1.Notifications) error {
	var errs error
	if x := n.NATS; x != nil {
		if x.URL == "" || x.Subject == "" {
			errs = multierr.Append(errs, fmt.Errorf("nats notifications require a url and a subject"))
		}
	}
	if x := n.Kafka; x != nil {
		if len(x.Brokers) == 0 || x.Topic == "" {
			errs = multierr.Append(errs, fmt.Errorf("kafka notifications require brokers and a topic"))
		}
		if _, err := util.GetSaramaConfigFromYAMLString(x.Config); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("invalid kafka config, %w", err))
		}
	}
	return errs
}
