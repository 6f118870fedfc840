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

// Package rollout triggers rolling updates of the worker group, on demand
// or on a cron schedule, one at a time.
package rollout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/robfig/cron/v3"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/numaproj/spotfleet/pkg/fleet"
	"github.com/numaproj/spotfleet/pkg/metrics"
	"github.com/numaproj/spotfleet/pkg/notify"
	"github.com/numaproj/spotfleet/pkg/shared/logging"
)

// ErrRolloutInProgress is returned when a rollout is requested while another one runs.
var ErrRolloutInProgress = errors.New("a rollout is already in progress")

// ErrManagerStopped is returned when a rollout is requested after the manager started stopping.
var ErrManagerStopped = errors.New("rollout manager is stopping")

// VersionSource returns the launch template version the group should run.
type VersionSource interface {
	LatestTemplateVersion(ctx context.Context, group string) (string, error)
}

// Updater replaces the instances of the group. fleet.RollingUpdater implements it.
type Updater interface {
	Update(ctx context.Context, templateVersion string) (fleet.UpdateResult, error)
}

type Phase string

const (
	PhaseRunning   Phase = "Running"
	PhaseSucceeded Phase = "Succeeded"
	PhaseFailed    Phase = "Failed"
)

const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)

// Record describes one rollout.
type Record struct {
	ID              string    `json:"id"`
	Trigger         string    `json:"trigger"`
	TemplateVersion string    `json:"templateVersion,omitempty"`
	Phase           Phase     `json:"phase"`
	StartedAt       time.Time `json:"startedAt"`
	FinishedAt      time.Time `json:"finishedAt,omitempty"`
	Batches         int       `json:"batches"`
	Replaced        int       `json:"replaced"`
	Error           string    `json:"error,omitempty"`
}

// Manager runs at most one rollout at a time.
type Manager struct {
	group   string
	source  VersionSource
	updater Updater
	options *options

	running atomic.Bool
	// Guards stopping and the wg.Add of async rollouts.
	lock     sync.Mutex
	stopping bool
	wg       sync.WaitGroup
	// Safe for concurrent use
	history *lru.Cache[string, Record]
}

func NewManager(group string, source VersionSource, updater Updater, opts ...Option) (*Manager, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if o.schedule != "" {
		if _, err := cron.ParseStandard(o.schedule); err != nil {
			return nil, fmt.Errorf("invalid rollout schedule %q, %w", o.schedule, err)
		}
	}
	if o.historySize < 1 {
		o.historySize = 1
	}
	if o.notifier == nil {
		o.notifier = notify.Multi{}
	}
	history, err := lru.New[string, Record](o.historySize)
	if err != nil {
		return nil, err
	}
	return &Manager{
		group:   group,
		source:  source,
		updater: updater,
		options: o,
		history: history,
	}, nil
}

// Trigger runs a rollout to the latest launch template version and waits for it.
func (m *Manager) Trigger(ctx context.Context, trigger string) (Record, error) {
	r, err := m.begin(trigger)
	if err != nil {
		return r, err
	}
	defer m.running.Store(false)
	return m.run(ctx, r)
}

// TriggerAsync starts a rollout in the background and returns its initial record.
// The rollout is cancelled when ctx is done.
func (m *Manager) TriggerAsync(ctx context.Context, trigger string) (Record, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.stopping {
		return Record{}, ErrManagerStopped
	}
	r, err := m.begin(trigger)
	if err != nil {
		return r, err
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.running.Store(false)
		_, _ = m.run(ctx, r)
	}()
	return r, nil
}

// Start runs the scheduled rollouts until ctx is done, then waits for the
// rollouts in flight. No async rollout can be started after that.
func (m *Manager) Start(ctx context.Context) error {
	log := logging.FromContext(ctx).With("group", m.group)
	defer m.stop()
	if m.options.schedule == "" {
		<-ctx.Done()
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(m.options.schedule, func() {
		if _, err := m.Trigger(ctx, TriggerSchedule); errors.Is(err, ErrRolloutInProgress) {
			log.Infow("Skipping scheduled rollout", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule rollouts, %w", err)
	}
	log.Infow("Starting rollout scheduler", zap.String("schedule", m.options.schedule))
	c.Start()
	<-ctx.Done()
	log.Info("Stopping rollout scheduler...")
	<-c.Stop().Done()
	return nil
}

// Wait waits for the rollouts started by TriggerAsync.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) stop() {
	m.lock.Lock()
	m.stopping = true
	m.lock.Unlock()
	m.wg.Wait()
}

// InProgress returns whether a rollout is running.
func (m *Manager) InProgress() bool {
	return m.running.Load()
}

// Get returns a rollout record by ID.
func (m *Manager) Get(id string) (Record, bool) {
	return m.history.Peek(id)
}

// List returns the kept rollout records, newest first.
func (m *Manager) List() []Record {
	records := m.history.Values()
	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.After(records[j].StartedAt)
	})
	return records
}

func (m *Manager) begin(trigger string) (Record, error) {
	if !m.running.CompareAndSwap(false, true) {
		return Record{}, ErrRolloutInProgress
	}
	r := Record{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		Phase:     PhaseRunning,
		StartedAt: m.options.clock(),
	}
	m.save(r)
	return r, nil
}

func (m *Manager) run(ctx context.Context, r Record) (Record, error) {
	log := logging.FromContext(ctx).With("group", m.group, "rollout", r.ID)
	ctx, cancel := context.WithTimeout(ctx, m.options.timeout)
	defer cancel()
	err := func() error {
		version, err := m.source.LatestTemplateVersion(ctx, m.group)
		if err != nil {
			return fmt.Errorf("failed to get the latest launch template version, %w", err)
		}
		r.TemplateVersion = version
		m.save(r)
		log.Infow("Starting rollout", zap.String("trigger", r.Trigger), zap.String("templateVersion", version))
		result, err := m.updater.Update(ctx, version)
		r.Batches = result.Batches
		r.Replaced = result.Replaced
		return err
	}()
	r.FinishedAt = m.options.clock()
	r.Phase = PhaseSucceeded
	if err != nil {
		r.Phase = PhaseFailed
		r.Error = err.Error()
		log.Errorw("Rollout failed", zap.Error(err))
	} else {
		log.Infow("Rollout succeeded", zap.Int("batches", r.Batches), zap.Int("replaced", r.Replaced))
	}
	m.save(r)
	metrics.Rollouts.WithLabelValues(m.group, string(r.Phase)).Inc()

	e := notify.NewEvent(notify.EventTypeRollout, m.group, r.FinishedAt)
	e.Action = r.Trigger
	e.Reason = fmt.Sprintf("%s to version %s, replaced %d instances", r.Phase, r.TemplateVersion, r.Replaced)
	if r.Error != "" {
		e.Reason += ": " + r.Error
	}
	nctx, ncancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer ncancel()
	if nerr := m.options.notifier.Notify(nctx, e); nerr != nil {
		metrics.NotificationErrors.WithLabelValues(m.group).Inc()
		log.Warnw("Failed to deliver rollout event", zap.Error(nerr))
	}
	return r, err
}

func (m *Manager) save(r Record) {
	m.history.Add(r.ID, r)
}
