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

type options struct {
	// Number of consecutive periods a window needs before a decision is made.
	evaluationPeriods int
	// Scale up when the visible messages sum is greater than this.
	visibleMessagesThreshold uint64
	// Scale down when the empty receives sum is greater than this.
	emptyReceivesThreshold uint64
}

type Option func(*options)

func defaultOptions() *options {
	return &options{
		evaluationPeriods:        5,
		visibleMessagesThreshold: 0,
		emptyReceivesThreshold:   10,
	}
}

// WithEvaluationPeriods sets the number of periods required before deciding.
func WithEvaluationPeriods(n int) Option {
	return func(o *options) {
		o.evaluationPeriods = n
	}
}

// WithVisibleMessagesThreshold sets the threshold of the visible messages sum.
func WithVisibleMessagesThreshold(n uint64) Option {
	return func(o *options) {
		o.visibleMessagesThreshold = n
	}
}

// WithEmptyReceivesThreshold sets the threshold of the empty receives sum.
func WithEmptyReceivesThreshold(n uint64) Option {
	return func(o *options) {
		o.emptyReceivesThreshold = n
	}
}
