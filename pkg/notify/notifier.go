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

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/numaproj/spotfleet/pkg/shared/logging"
)

// Notifier delivers events.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
	Close() error
}

type logNotifier struct {
	log *zap.SugaredLogger
}

// NewLogNotifier returns a notifier writing events to the logger.
func NewLogNotifier(log *zap.SugaredLogger) Notifier {
	if log == nil {
		log = logging.NewLogger()
	}
	return &logNotifier{log: log.Named("notify")}
}

func (l *logNotifier) Notify(_ context.Context, e Event) error {
	l.log.Infow("Fleet event",
		zap.String("id", e.ID),
		zap.String("type", string(e.Type)),
		zap.String("group", e.Group),
		zap.String("action", e.Action),
		zap.Int32("from", e.From),
		zap.Int32("to", e.To),
		zap.String("reason", e.Reason),
		zap.Time("time", e.Time))
	return nil
}

func (l *logNotifier) Close() error {
	return nil
}

// Multi fans out to all of its notifiers.
type Multi []Notifier

// Notify delivers the event to every notifier, even after a failure, and
// returns the combined errors.
func (m Multi) Notify(ctx context.Context, e Event) error {
	var err error
	for _, n := range m {
		err = multierr.Append(err, n.Notify(ctx, e))
	}
	return err
}

func (m Multi) Close() error {
	var err error
	for _, n := range m {
		err = multierr.Append(err, n.Close())
	}
	return err
}
