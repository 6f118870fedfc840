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

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	LabelVersion   = "version"
	LabelPlatform  = "platform"
	LabelComponent = "component"
	LabelGroup     = "group"
	LabelAction    = "action"
	LabelReason    = "reason"
	LabelSignal    = "signal"
	LabelOutcome   = "outcome"
)

var (
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "A metric with a constant value '1', labeled by spotfleet binary version, platform, and other information",
	}, []string{LabelComponent, LabelVersion, LabelPlatform})
)

// Sampler metrics
var (
	// QueueVisibleMessages is the last sampled number of visible messages
	QueueVisibleMessages = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "sampler",
		Name:      "visible_messages",
		Help:      "Last sampled number of visible messages in the work queue",
	}, []string{LabelGroup})

	// QueueEmptyReceives is the last sampled number of empty receives over a period
	QueueEmptyReceives = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "sampler",
		Name:      "empty_receives",
		Help:      "Last sampled number of empty receives of the work queue in a period",
	}, []string{LabelGroup})

	// QueueBacklogTrend is the moving average of the visible messages
	QueueBacklogTrend = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "sampler",
		Name:      "backlog_trend",
		Help:      "Exponentially weighted moving average of the visible messages",
	}, []string{LabelGroup})

	// StaleSamples counts the samples which reused previous values because the monitoring read failed
	StaleSamples = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "sampler",
		Name:      "stale_samples_total",
		Help:      "Total number of samples reusing the previous values",
	}, []string{LabelGroup})
)

// Autoscaler metrics
var (
	// Decisions counts the scaling decisions by action
	Decisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "autoscaler",
		Name:      "decisions_total",
		Help:      "Total number of scaling decisions",
	}, []string{LabelGroup, LabelAction})

	// SkippedTicks counts the evaluations skipped because the previous one overran
	SkippedTicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "autoscaler",
		Name:      "skipped_ticks_total",
		Help:      "Total number of skipped evaluation periods",
	}, []string{LabelGroup})

	// TickDuration is a histogram of the evaluation latency
	TickDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Subsystem: "autoscaler",
		Name:      "tick_duration_seconds",
		Help:      "Duration of one evaluation period (sample, decide and apply)",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
	}, []string{LabelGroup})
)

// Fleet metrics
var (
	// DesiredCapacity is the desired capacity of the worker group
	DesiredCapacity = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "fleet",
		Name:      "desired_capacity",
		Help:      "Desired capacity of the worker group",
	}, []string{LabelGroup})

	// InServiceInstances is the observed number of instances in service
	InServiceInstances = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "fleet",
		Name:      "in_service_instances",
		Help:      "Observed number of worker instances in service",
	}, []string{LabelGroup})

	// ScalingActions counts the confirmed capacity changes
	ScalingActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "fleet",
		Name:      "scaling_actions_total",
		Help:      "Total number of confirmed capacity changes",
	}, []string{LabelGroup, LabelAction})

	// ProvisioningErrors counts the failed capacity changes
	ProvisioningErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "fleet",
		Name:      "provisioning_error_total",
		Help:      "Total number of failed capacity changes",
	}, []string{LabelGroup, LabelAction})

	// Rollouts counts the rolling updates by outcome
	Rollouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "fleet",
		Name:      "rollouts_total",
		Help:      "Total number of rolling updates",
	}, []string{LabelGroup, LabelOutcome})

	// NotificationErrors counts the events which failed to be delivered
	NotificationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "notify",
		Name:      "error_total",
		Help:      "Total number of failed event notifications",
	}, []string{LabelGroup})
)
