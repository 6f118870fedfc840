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

package queue

import "sync"

// OverflowQueue is a thread safe bounded queue, appending to a full queue evicts the oldest element.
type OverflowQueue[T any] struct {
	elements []T
	maxSize  int
	lock     *sync.RWMutex
}

func New[T any](size int) *OverflowQueue[T] {
	if size < 1 {
		size = 1
	}
	return &OverflowQueue[T]{
		elements: make([]T, 0, size),
		maxSize:  size,
		lock:     new(sync.RWMutex),
	}
}

// Append adds an element to the tail of the queue, and returns the evicted element if any.
func (q *OverflowQueue[T]) Append(value T) (evicted T, ok bool) {
	q.lock.Lock()
	defer q.lock.Unlock()
	if len(q.elements) >= q.maxSize {
		evicted, ok = q.elements[0], true
		q.elements = q.elements[1:]
	}
	q.elements = append(q.elements, value)
	return evicted, ok
}

// Items returns a copy of the elements in the queue, oldest first.
func (q *OverflowQueue[T]) Items() []T {
	q.lock.RLock()
	defer q.lock.RUnlock()
	r := make([]T, len(q.elements))
	_ = copy(r, q.elements)
	return r
}

// Newest returns the most recently appended element.
func (q *OverflowQueue[T]) Newest() (T, bool) {
	q.lock.RLock()
	defer q.lock.RUnlock()
	var zero T
	if len(q.elements) == 0 {
		return zero, false
	}
	return q.elements[len(q.elements)-1], true
}

// Length returns the current length of the queue
func (q *OverflowQueue[T]) Length() int {
	q.lock.RLock()
	defer q.lock.RUnlock()
	return len(q.elements)
}

// Capacity returns the max size of the queue.
func (q *OverflowQueue[T]) Capacity() int {
	return q.maxSize
}

// Full returns whether the queue holds Capacity elements.
func (q *OverflowQueue[T]) Full() bool {
	return q.Length() >= q.maxSize
}

// Clear drops all the elements.
func (q *OverflowQueue[T]) Clear() {
	q.lock.Lock()
	defer q.lock.Unlock()
	q.elements = make([]T, 0, q.maxSize)
}
