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

package inmem

import (
	"context"
	"sync"
	"time"
)

// Metrics is a monitoring service whose values are set by the caller.
type Metrics struct {
	*faults

	lock    sync.Mutex
	visible uint64
	empty   uint64
}

func NewMetrics() *Metrics {
	return &Metrics{faults: newFaults()}
}

// Set sets the values returned from now on.
func (m *Metrics) Set(visible, emptyReceives uint64) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.visible = visible
	m.empty = emptyReceives
}

func (m *Metrics) VisibleMessages(ctx context.Context) (uint64, error) {
	if err := m.check(ctx, OpVisibleMessages); err != nil {
		return 0, err
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.visible, nil
}

func (m *Metrics) EmptyReceives(ctx context.Context, _ time.Duration) (uint64, error) {
	if err := m.check(ctx, OpEmptyReceives); err != nil {
		return 0, err
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.empty, nil
}
