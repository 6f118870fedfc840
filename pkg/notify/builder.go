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

	"github.com/numaproj/spotfleet/pkg/apis/fleet/v1alpha1"
	natsclient "github.com/numaproj/spotfleet/pkg/shared/clients/nats"
	"github.com/numaproj/spotfleet/pkg/shared/logging"
)

// New returns the notifiers configured in the notification spec. Events are
// always logged.
func New(ctx context.Context, spec *v1alpha1.Notifications) (Notifier, error) {
	notifiers := Multi{NewLogNotifier(logging.FromContext(ctx))}
	if spec == nil {
		return notifiers, nil
	}
	if x := spec.NATS; x != nil {
		client, err := natsclient.NewNATSClient(ctx, x.URL, x.User, x.Password)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, NewNATSNotifier(client, x.Subject))
	}
	if x := spec.Kafka; x != nil {
		k, err := NewKafkaNotifier(x.Brokers, x.Topic, x.Config)
		if err != nil {
			_ = notifiers.Close()
			return nil, err
		}
		notifiers = append(notifiers, k)
	}
	return notifiers, nil
}
