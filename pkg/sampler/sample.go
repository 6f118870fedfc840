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

package sampler

import (
	"context"
	"fmt"
	"time"
)

// Sample is one reading of the queue signals, immutable once recorded.
type Sample struct {
	Timestamp       time.Time `json:"timestamp"`
	VisibleMessages uint64    `json:"visibleMessages"`
	EmptyReceives   uint64    `json:"emptyReceives"`
	// Stale is set when the reading failed and the values were carried over from the previous sample.
	Stale bool `json:"stale,omitempty"`
}

func (s Sample) String() string {
	return fmt.Sprintf("{ts:%s visible:%d empty:%d stale:%t}", s.Timestamp.Format(time.RFC3339), s.VisibleMessages, s.EmptyReceives, s.Stale)
}

// MetricsReader reads the queue metrics from the monitoring service.
type MetricsReader interface {
	// VisibleMessages returns the approximate number of messages available for retrieval.
	VisibleMessages(ctx context.Context) (uint64, error)
	// EmptyReceives returns how many receive calls returned no message during the last period.
	EmptyReceives(ctx context.Context, period time.Duration) (uint64, error)
}
