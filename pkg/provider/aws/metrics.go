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

package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/numaproj/spotfleet/pkg/apis/fleet/v1alpha1"
)

const (
	sqsNamespace       = "AWS/SQS"
	queueNameDimension = "QueueName"
	// SQS metrics are published once a minute
	metricResolution = time.Minute
)

// QueueMetrics reads the queue depth signals from CloudWatch.
type QueueMetrics struct {
	cloudwatch CloudWatchAPI
	queueName  string
	clock      func() time.Time
}

func NewQueueMetrics(c *Clients, queueName string) *QueueMetrics {
	return &QueueMetrics{cloudwatch: c.CloudWatch, queueName: queueName, clock: time.Now}
}

// VisibleMessages returns the latest reported number of visible messages.
func (m *QueueMetrics) VisibleMessages(ctx context.Context) (uint64, error) {
	return m.sum(ctx, v1alpha1.MetricVisibleMessages, metricResolution)
}

// EmptyReceives returns the number of empty receives over the last period.
func (m *QueueMetrics) EmptyReceives(ctx context.Context, period time.Duration) (uint64, error) {
	return m.sum(ctx, v1alpha1.MetricEmptyReceives, period)
}

// sum returns the Sum statistic of the newest datapoint of the metric. A
// metric without datapoints in the lookback reads as zero, CloudWatch does
// not publish idle queues.
func (m *QueueMetrics) sum(ctx context.Context, metric string, period time.Duration) (uint64, error) {
	seconds := int32(period.Round(metricResolution) / time.Second)
	if seconds < int32(metricResolution/time.Second) {
		seconds = int32(metricResolution / time.Second)
	}
	end := m.clock().Truncate(metricResolution)
	// Datapoints show up with a delay, look back two periods.
	start := end.Add(-2 * time.Duration(seconds) * time.Second)
	out, err := m.cloudwatch.GetMetricData(ctx, &cloudwatch.GetMetricDataInput{
		StartTime: aws.Time(start),
		EndTime:   aws.Time(end),
		ScanBy:    cwtypes.ScanByTimestampDescending,
		MetricDataQueries: []cwtypes.MetricDataQuery{{
			Id: aws.String("m"),
			MetricStat: &cwtypes.MetricStat{
				Metric: &cwtypes.Metric{
					Namespace:  aws.String(sqsNamespace),
					MetricName: aws.String(metric),
					Dimensions: []cwtypes.Dimension{{Name: aws.String(queueNameDimension), Value: aws.String(m.queueName)}},
				},
				Period: aws.Int32(seconds),
				Stat:   aws.String(string(cwtypes.StatisticSum)),
			},
			ReturnData: aws.Bool(true),
		}},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get metric %s of queue %q, %w", metric, m.queueName, err)
	}
	for _, r := range out.MetricDataResults {
		if aws.ToString(r.Id) != "m" || len(r.Values) == 0 {
			continue
		}
		newest := 0
		for i := range r.Timestamps {
			if r.Timestamps[i].After(r.Timestamps[newest]) {
				newest = i
			}
		}
		if newest >= len(r.Values) || r.Values[newest] < 0 {
			return 0, nil
		}
		return uint64(r.Values[newest]), nil
	}
	return 0, nil
}
