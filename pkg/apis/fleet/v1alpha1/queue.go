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

package v1alpha1

import "time"

// QueueBackend is the service holding the work queue.
type QueueBackend string

const (
	QueueBackendSQS   QueueBackend = "sqs"
	QueueBackendRedis QueueBackend = "redis"
	QueueBackendInMem QueueBackend = "inmem"
)

// QueueSpec describes the work queue drained by the workers.
type QueueSpec struct {
	Name string `json:"name"`
	// Backend defaults to sqs.
	// +optional
	Backend QueueBackend `json:"backend,omitempty"`
	// VisibilityTimeoutSeconds is how long a received but unacknowledged message stays hidden.
	// +optional
	VisibilityTimeoutSeconds *uint32 `json:"visibilityTimeoutSeconds,omitempty"`
	// +optional
	MessageRetentionSeconds *uint32 `json:"messageRetentionSeconds,omitempty"`
	// DelaySeconds is the artificial delay applied to every enqueued message.
	// +optional
	DelaySeconds *uint32 `json:"delaySeconds,omitempty"`
	// ReceiveWaitSeconds is the long polling wait of a receive call.
	// +optional
	ReceiveWaitSeconds *uint32 `json:"receiveWaitSeconds,omitempty"`
	// EndpointURL overrides the queue service endpoint, e.g. for localstack.
	// +optional
	EndpointURL string `json:"endpointUrl,omitempty"`
	// Redis holds the connection settings when the backend is redis.
	// +optional
	Redis *RedisConfig `json:"redis,omitempty"`
}

type RedisConfig struct {
	Addrs []string `json:"addrs,omitempty"`
	// +optional
	Username string `json:"username,omitempty"`
	// +optional
	Password string `json:"password,omitempty"`
	// MasterName enables sentinel mode.
	// +optional
	MasterName string `json:"masterName,omitempty"`
}

func (q QueueSpec) GetBackend() QueueBackend {
	if q.Backend == "" {
		return QueueBackendSQS
	}
	return q.Backend
}

func (q QueueSpec) GetVisibilityTimeout() time.Duration {
	if q.VisibilityTimeoutSeconds != nil {
		return time.Duration(*q.VisibilityTimeoutSeconds) * time.Second
	}
	return DefaultVisibilityTimeoutSeconds * time.Second
}

func (q QueueSpec) GetMessageRetention() time.Duration {
	if q.MessageRetentionSeconds != nil {
		return time.Duration(*q.MessageRetentionSeconds) * time.Second
	}
	return DefaultMessageRetentionSeconds * time.Second
}

func (q QueueSpec) GetDelay() time.Duration {
	if q.DelaySeconds != nil {
		return time.Duration(*q.DelaySeconds) * time.Second
	}
	return DefaultDelaySeconds * time.Second
}

func (q QueueSpec) GetReceiveWait() time.Duration {
	if q.ReceiveWaitSeconds != nil {
		return time.Duration(*q.ReceiveWaitSeconds) * time.Second
	}
	return DefaultReceiveWaitSeconds * time.Second
}
