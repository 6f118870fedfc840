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

package autoscaler

import (
	"time"

	"github.com/numaproj/spotfleet/pkg/fleet"
	"github.com/numaproj/spotfleet/pkg/sampler"
)

// Status is a point in time view of the loop, safe to hand to readers.
type Status struct {
	Running      bool              `json:"running"`
	Period       string            `json:"period"`
	Ticks        int64             `json:"ticks"`
	SkippedTicks int64             `json:"skippedTicks"`
	LastTickAt   time.Time         `json:"lastTickAt,omitempty"`
	LastSample   sampler.Sample    `json:"lastSample"`
	LastAction   string            `json:"lastAction,omitempty"`
	LastDelta    int32             `json:"lastDelta"`
	LastError    string            `json:"lastError,omitempty"`
	BacklogTrend float64           `json:"backlogTrend"`
	Window       []sampler.Sample  `json:"window,omitempty"`
	Group        fleet.WorkerGroup `json:"group"`
}
