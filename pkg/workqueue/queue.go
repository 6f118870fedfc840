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

// Package workqueue defines the work queue the workers consume jobs from.
package workqueue

import (
	"context"
	"errors"
	"time"
)

// ErrEmpty is returned by Receive when no message arrived within the wait time.
var ErrEmpty = errors.New("no message available")

// Message is a received job. It stays invisible to other consumers for the
// visibility timeout, and must be deleted once processed.
type Message struct {
	ID            string    `json:"id"`
	Body          string    `json:"body"`
	ReceiptHandle string    `json:"receiptHandle"`
	ReceivedAt    time.Time `json:"receivedAt"`
}

// Queue is a work queue backend.
type Queue interface {
	// Enqueue adds a job and returns its ID.
	Enqueue(ctx context.Context, body string) (string, error)
	// Receive waits up to maxWait for a job. An empty receive returns ErrEmpty
	// and is counted by the backend.
	Receive(ctx context.Context, maxWait time.Duration) (*Message, error)
	// Delete acknowledges a received job.
	Delete(ctx context.Context, m *Message) error
	Close() error
}
