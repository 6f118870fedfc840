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
	"context"
	"fmt"

	"github.com/IBM/sarama"

	"github.com/numaproj/spotfleet/pkg/shared/util"
)

type kafkaNotifier struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaNotifier connects a sync producer to the brokers. config is an
// optional sarama config in YAML.
func NewKafkaNotifier(brokers []string, topic, config string) (Notifier, error) {
	cfg, err := util.GetSaramaConfigFromYAMLString(config)
	if err != nil {
		return nil, err
	}
	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer. %w", err)
	}
	return NewKafkaNotifierWithProducer(producer, topic), nil
}

// NewKafkaNotifierWithProducer returns a notifier sending through an existing producer.
func NewKafkaNotifierWithProducer(producer sarama.SyncProducer, topic string) Notifier {
	return &kafkaNotifier{producer: producer, topic: topic}
}

func (k *kafkaNotifier) Notify(ctx context.Context, e Event) error {
	b, err := e.marshal()
	if err != nil {
		return err
	}
	// Keyed by group, so the events of a group stay ordered in a partition.
	msg := &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(e.Group),
		Value: sarama.ByteEncoder(b),
	}
	// SendMessage takes no context, the producer's own timeouts bound the send.
	errCh := make(chan error, 1)
	go func() {
		_, _, err := k.producer.SendMessage(msg)
		errCh <- err
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("failed to send event %s to topic %q, %w", e.ID, k.topic, ctx.Err())
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to send event %s to topic %q, %w", e.ID, k.topic, err)
		}
		return nil
	}
}

func (k *kafkaNotifier) Close() error {
	return k.producer.Close()
}
