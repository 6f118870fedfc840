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
	"errors"
	"fmt"

	"github.com/numaproj/spotfleet/pkg/shared/queue"
)

var ErrNonIncreasingTimestamp = errors.New("sample timestamp is not after the newest sample in the window")

// Window keeps the last N samples ordered by strictly increasing timestamp,
// the oldest one is evicted on insert.
type Window struct {
	samples *queue.OverflowQueue[Sample]
}

// NewWindow returns a window holding at most size samples.
func NewWindow(size int) *Window {
	return &Window{samples: queue.New[Sample](size)}
}

// Push appends a sample to the window.
func (w *Window) Push(s Sample) error {
	if newest, ok := w.samples.Newest(); ok && !s.Timestamp.After(newest.Timestamp) {
		return fmt.Errorf("%w: %s <= %s", ErrNonIncreasingTimestamp, s.Timestamp, newest.Timestamp)
	}
	w.samples.Append(s)
	return nil
}

// Len returns the number of samples held.
func (w *Window) Len() int {
	return w.samples.Length()
}

// Capacity returns the configured length of the window.
func (w *Window) Capacity() int {
	return w.samples.Capacity()
}

// Full returns whether the window has reached its configured length.
func (w *Window) Full() bool {
	return w.samples.Full()
}

// Samples returns a copy of the samples, oldest first.
func (w *Window) Samples() []Sample {
	return w.samples.Items()
}

// SumVisible returns the sum of visible messages over all the samples.
func (w *Window) SumVisible() uint64 {
	var sum uint64
	for _, s := range w.samples.Items() {
		sum += s.VisibleMessages
	}
	return sum
}

// SumEmpty returns the sum of empty receives over all the samples.
func (w *Window) SumEmpty() uint64 {
	var sum uint64
	for _, s := range w.samples.Items() {
		sum += s.EmptyReceives
	}
	return sum
}
