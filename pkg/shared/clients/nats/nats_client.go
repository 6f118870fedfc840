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

package nats

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/numaproj/spotfleet/pkg/shared/logging"
	sharedutil "github.com/numaproj/spotfleet/pkg/shared/util"
)

// EnvNATSTLSEnabled turns on TLS, without verification, for the NATS connection.
const EnvNATSTLSEnabled = "SPOTFLEET_NATS_TLS_ENABLED"

// Client is a NATS connection shared by the publishers of a process.
type Client struct {
	sync.Mutex
	nc  *nats.Conn
	log *zap.SugaredLogger
}

// NewNATSClient connects to the NATS server at url.
func NewNATSClient(ctx context.Context, url, user, password string, natsOptions ...nats.Option) (*Client, error) {
	log := logging.FromContext(ctx)
	opts := []nats.Option{
		// Reconnect forever
		nats.MaxReconnects(-1),
		nats.PingInterval(3 * time.Second),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Errorw("Nats default: error occurred for subscription", zap.Error(err))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Info("Nats default: connection closed")
		}),
		// Without it the initial connect is not retried
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Errorw("Nats default: disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("Nats default: reconnected")
		}),
		// Write (and flush) timeout
		nats.FlusherTimeout(10 * time.Second),
		nats.MaxPingsOutstanding(2),
		nats.LameDuckModeHandler(func(nc *nats.Conn) {
			log.Info("Nats default: entering lame duck mode to avoid reconnect storm")
		}),
	}
	if url == "" {
		return nil, fmt.Errorf("nats url is required")
	}
	if user != "" {
		opts = append(opts, nats.UserInfo(user, password))
	}
	if sharedutil.LookupEnvBoolOr(EnvNATSTLSEnabled, false) {
		opts = append(opts, nats.Secure(&tls.Config{
			InsecureSkipVerify: true,
		}))
	}
	opts = append(opts, natsOptions...)
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats url=%s: %w", url, err)
	}
	return &Client{nc: nc, log: log}, nil
}

// Publish publishes data to the subject and flushes it to the server.
func (c *Client) Publish(ctx context.Context, subject string, data []byte) error {
	c.Lock()
	defer c.Unlock()
	if err := c.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to subject %q, %w", subject, err)
	}
	if err := c.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("failed to flush subject %q, %w", subject, err)
	}
	return nil
}

// Conn returns the underlying connection.
func (c *Client) Conn() *nats.Conn {
	return c.nc
}

// Close closes the NATS client
func (c *Client) Close() {
	c.nc.Close()
}

// NewTestClient connects to url and closes the connection when the test ends.
func NewTestClient(t *testing.T, url string) *Client {
	t.Helper()
	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("failed to connect to the test nats server, %v", err)
	}
	t.Cleanup(nc.Close)
	return &Client{nc: nc, log: zap.NewNop().Sugar()}
}

// NewTestClientWithServer connects to a server started by test.RunNatsServer.
func NewTestClientWithServer(t *testing.T, s *server.Server) *Client {
	t.Helper()
	return NewTestClient(t, s.ClientURL())
}
