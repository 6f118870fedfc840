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

package scaling

import (
	"github.com/numaproj/spotfleet/pkg/sampler"
)

// Decider maps the sample windows to a scaling action. It holds no state
// besides its configuration, so the same windows always yield the same action.
type Decider struct {
	options *options
}

// NewDecider returns a Decider instance.
func NewDecider(opts ...Option) *Decider {
	deciderOpts := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(deciderOpts)
		}
	}
	if deciderOpts.evaluationPeriods < 1 {
		deciderOpts.evaluationPeriods = 1
	}
	return &Decider{options: deciderOpts}
}

// EvaluationPeriods returns the window length the decider requires.
func (d *Decider) EvaluationPeriods() int {
	return d.options.evaluationPeriods
}

// Decide returns ScaleUp when the visible messages summed over a full window
// exceed the threshold, ScaleDown when the empty receives summed over a full
// window exceed theirs, and NoOp otherwise. ScaleUp wins when both hold.
// A window with fewer than EvaluationPeriods samples never triggers an action.
func (d *Decider) Decide(visible, empty *sampler.Window) Action {
	if d.backlogged(visible) {
		return ScaleUp
	}
	if d.idle(empty) {
		return ScaleDown
	}
	return NoOp
}

func (d *Decider) backlogged(w *sampler.Window) bool {
	if !d.evaluable(w) {
		return false
	}
	return w.SumVisible() > d.options.visibleMessagesThreshold
}

func (d *Decider) idle(w *sampler.Window) bool {
	if !d.evaluable(w) {
		return false
	}
	return w.SumEmpty() > d.options.emptyReceivesThreshold
}

func (d *Decider) evaluable(w *sampler.Window) bool {
	return w != nil && w.Len() >= d.options.evaluationPeriods
}
