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
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	natstest "github.com/numaproj/spotfleet/pkg/shared/clients/nats/test"
	"github.com/numaproj/spotfleet/pkg/shared/logging"
)

func TestNewNATSClient(t *testing.T) {
	s := natstest.RunNatsServer(t)
	defer s.Shutdown()
	ctx := logging.WithLogger(context.Background(), zap.NewNop().Sugar())

	client, err := NewNATSClient(ctx, s.ClientURL(), "", "")
	require.NoError(t, err)
	defer client.Close()
	assert.True(t, client.Conn().IsConnected())
}

func TestNewNATSClient_Failure(t *testing.T) {
	ctx := logging.WithLogger(context.Background(), zap.NewNop().Sugar())
	client, err := NewNATSClient(ctx, "", "", "")
	assert.Error(t, err)
	assert.Nil(t, client)
}

func TestPublish(t *testing.T) {
	s := natstest.RunNatsServer(t)
	defer s.Shutdown()
	client := NewTestClientWithServer(t, s)
	defer client.Close()

	sub, err := client.Conn().SubscribeSync("fleet.events")
	require.NoError(t, err)
	require.NoError(t, client.Conn().Flush())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, client.Publish(ctx, "fleet.events", []byte("hello")))
	msg, err := sub.NextMsg(5 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(msg.Data))

	client.Close()
	err = client.Publish(ctx, "fleet.events", []byte("closed"))
	assert.ErrorIs(t, err, nats.ErrConnectionClosed)
}
