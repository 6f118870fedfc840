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

	natsclient "github.com/numaproj/spotfleet/pkg/shared/clients/nats"
)

type natsNotifier struct {
	client  *natsclient.Client
	subject string
}

// NewNATSNotifier returns a notifier publishing JSON events to a NATS subject.
func NewNATSNotifier(client *natsclient.Client, subject string) Notifier {
	return &natsNotifier{client: client, subject: subject}
}

func (n *natsNotifier) Notify(ctx context.Context, e Event) error {
	b, err := e.marshal()
	if err != nil {
		return err
	}
	return n.client.Publish(ctx, n.subject, b)
}

func (n *natsNotifier) Close() error {
	n.client.Close()
	return nil
}
