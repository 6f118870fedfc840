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

const (
	defaultSpan = 30.0
)

// trend is an exponentially weighted moving average of the visible messages.
// It is reported as a gauge only, decisions never look at it.
type trend struct {
	// alpha is the smoothing factor
	alpha float64
	value float64
	init  bool
}

// newTrend returns a trend smoothing over span samples, alpha = 2 / (span + 1).
func newTrend(span float64) *trend {
	if span <= 0 {
		span = defaultSpan
	}
	return &trend{alpha: 2.0 / (span + 1.0)}
}

func (t *trend) add(value float64) {
	if !t.init {
		t.value = value
		t.init = true
		return
	}
	t.value = t.value + t.alpha*(value-t.value)
}

func (t *trend) get() float64 {
	return t.value
}
