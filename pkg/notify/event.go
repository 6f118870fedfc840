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

package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventTypeScaled             EventType = "scaled"
	EventTypeProvisioningFailed EventType = "provisioning_failed"
	EventTypeDrained            EventType = "drained"
	EventTypeRollout            EventType = "rollout"
)

// Event is something that happened to the worker group.
type Event struct {
	ID     string    `json:"id"`
	Type   EventType `json:"type"`
	Group  string    `json:"group"`
	Action string    `json:"action,omitempty"`
	From   int32     `json:"from"`
	To     int32     `json:"to"`
	Reason string    `json:"reason,omitempty"`
	Time   time.Time `json:"time"`
}

// NewEvent returns an event with a new ID.
func NewEvent(t EventType, group string, at time.Time) Event {
	return Event{
		ID:    uuid.NewString(),
		Type:  t,
		Group: group,
		Time:  at,
	}
}

func (e Event) String() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s %s %s %d->%d: %s", e.Type, e.Group, e.Action, e.From, e.To, e.Reason)
	}
	return fmt.Sprintf("%s %s %s %d->%d", e.Type, e.Group, e.Action, e.From, e.To)
}

func (e Event) marshal() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event %s, %w", e.ID, err)
	}
	return b, nil
}
