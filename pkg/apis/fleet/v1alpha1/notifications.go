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

// Notifications configures where scaling events are published, in addition to the log.
type Notifications struct {
	// +optional
	NATS *NATSNotification `json:"nats,omitempty"`
	// +optional
	Kafka *KafkaNotification `json:"kafka,omitempty"`
}

type NATSNotification struct {
	URL     string `json:"url"`
	Subject string `json:"subject"`
	// +optional
	User string `json:"user,omitempty"`
	// +optional
	Password string `json:"password,omitempty"`
}

type KafkaNotification struct {
	Brokers []string `json:"brokers"`
	Topic   string   `json:"topic"`
	// Config is a sarama config in yaml format.
	// +optional
	Config string `json:"config,omitempty"`
}
