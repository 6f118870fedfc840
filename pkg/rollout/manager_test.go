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

package rollout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/numaproj/spotfleet/pkg/fleet"
	"github.com/numaproj/spotfleet/pkg/provider/inmem"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type versionFunc func(ctx context.Context, group string) (string, error)

func (f versionFunc) LatestTemplateVersion(ctx context.Context, group string) (string, error) {
	return f(ctx, group)
}

type blockingUpdater struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingUpdater) Update(ctx context.Context, version string) (fleet.UpdateResult, error) {
	close(b.started)
	select {
	case <-b.release:
		return fleet.UpdateResult{TemplateVersion: version, Batches: 1, Replaced: 1}, nil
	case <-ctx.Done():
		return fleet.UpdateResult{TemplateVersion: version}, ctx.Err()
	}
}

func fixed(v string) VersionSource {
	return versionFunc(func(context.Context, string) (string, error) { return v, nil })
}

func TestNewManager_InvalidSchedule(t *testing.T) {
	_, err := NewManager("workers", fixed("1"), &blockingUpdater{}, WithSchedule("every tuesday"))
	assert.Error(t, err)
}

func TestTrigger(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	cloud := inmem.NewCloud()
	cloud.AddGroup("workers", 3, 0, 10)
	_, err := cloud.DescribeGroup(ctx, "workers")
	require.NoError(t, err)
	updater := fleet.NewRollingUpdater(cloud, "workers", fleet.WithPollInterval(time.Millisecond))
	m, err := NewManager("workers", fixed("2"), updater)
	require.NoError(t, err)

	r, err := m.Trigger(ctx, TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, PhaseSucceeded, r.Phase)
	assert.Equal(t, "2", r.TemplateVersion)
	assert.Equal(t, 3, r.Replaced)
	assert.Equal(t, 1, r.Batches)
	assert.False(t, r.FinishedAt.IsZero())

	got, ok := m.Get(r.ID)
	require.True(t, ok)
	assert.Equal(t, r, got)
	assert.False(t, m.InProgress())
}

func TestTrigger_Failure(t *testing.T) {
	m, err := NewManager("workers", versionFunc(func(context.Context, string) (string, error) {
		return "", errors.New("template not found")
	}), &blockingUpdater{})
	require.NoError(t, err)
	r, err := m.Trigger(context.Background(), TriggerManual)
	assert.ErrorContains(t, err, "template not found")
	assert.Equal(t, PhaseFailed, r.Phase)
	assert.Contains(t, r.Error, "template not found")
	assert.False(t, m.InProgress())
}

func TestTriggerAsync_RejectsOverlap(t *testing.T) {
	u := &blockingUpdater{started: make(chan struct{}), release: make(chan struct{})}
	m, err := NewManager("workers", fixed("3"), u)
	require.NoError(t, err)
	ctx := context.Background()

	r, err := m.TriggerAsync(ctx, TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, PhaseRunning, r.Phase)
	<-u.started
	assert.True(t, m.InProgress())

	_, err = m.TriggerAsync(ctx, TriggerManual)
	assert.ErrorIs(t, err, ErrRolloutInProgress)
	_, err = m.Trigger(ctx, TriggerManual)
	assert.ErrorIs(t, err, ErrRolloutInProgress)

	close(u.release)
	m.Wait()
	got, ok := m.Get(r.ID)
	require.True(t, ok)
	assert.Equal(t, PhaseSucceeded, got.Phase)
	assert.Equal(t, "3", got.TemplateVersion)
	assert.False(t, m.InProgress())
}

func TestTriggerAsync_CancelledWithContext(t *testing.T) {
	u := &blockingUpdater{started: make(chan struct{}), release: make(chan struct{})}
	m, err := NewManager("workers", fixed("3"), u)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	r, err := m.TriggerAsync(ctx, TriggerManual)
	require.NoError(t, err)
	<-u.started
	cancel()
	m.Wait()
	got, _ := m.Get(r.ID)
	assert.Equal(t, PhaseFailed, got.Phase)
	assert.Contains(t, got.Error, context.Canceled.Error())
}

func TestHistory(t *testing.T) {
	m, err := NewManager("workers", fixed("1"), updaterFunc(func(context.Context, string) (fleet.UpdateResult, error) {
		return fleet.UpdateResult{}, nil
	}), WithHistorySize(2))
	require.NoError(t, err)
	var ids []string
	for i := 0; i < 3; i++ {
		r, err := m.Trigger(context.Background(), TriggerManual)
		require.NoError(t, err)
		ids = append(ids, r.ID)
		time.Sleep(time.Millisecond)
	}
	records := m.List()
	require.Len(t, records, 2)
	assert.Equal(t, ids[2], records[0].ID)
	assert.Equal(t, ids[1], records[1].ID)
	_, ok := m.Get(ids[0])
	assert.False(t, ok)
}

type updaterFunc func(ctx context.Context, version string) (fleet.UpdateResult, error)

func (f updaterFunc) Update(ctx context.Context, version string) (fleet.UpdateResult, error) {
	return f(ctx, version)
}

func TestStart_Schedule(t *testing.T) {
	done := make(chan string, 10)
	m, err := NewManager("workers", fixed("7"), updaterFunc(func(_ context.Context, version string) (fleet.UpdateResult, error) {
		done <- version
		return fleet.UpdateResult{TemplateVersion: version}, nil
	}), WithSchedule("@every 1s"))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- m.Start(ctx)
	}()
	select {
	case v := <-done:
		assert.Equal(t, "7", v)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduled rollout did not run")
	}
	cancel()
	require.NoError(t, <-errCh)
	records := m.List()
	require.NotEmpty(t, records)
	assert.Equal(t, TriggerSchedule, records[0].Trigger)
}

func TestTriggerAsync_RejectedAfterStop(t *testing.T) {
	u := &blockingUpdater{started: make(chan struct{}), release: make(chan struct{})}
	m, err := NewManager("workers", fixed("3"), u)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- m.Start(ctx)
	}()
	_, err = m.TriggerAsync(context.Background(), TriggerManual)
	require.NoError(t, err)
	<-u.started
	cancel()

	// Start keeps waiting for the rollout in flight while new ones are refused.
	assert.Eventually(t, func() bool {
		_, err := m.TriggerAsync(context.Background(), TriggerManual)
		return errors.Is(err, ErrManagerStopped)
	}, 5*time.Second, time.Millisecond)
	select {
	case <-errCh:
		t.Fatal("Start returned before the rollout in flight finished")
	default:
	}
	close(u.release)
	require.NoError(t, <-errCh)
	assert.False(t, m.InProgress())
}

func TestStart_NoSchedule(t *testing.T) {
	m, err := NewManager("workers", fixed("1"), &blockingUpdater{})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, m.Start(ctx))
}
