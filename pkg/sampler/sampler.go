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

package sampler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/numaproj/spotfleet/pkg/shared/logging"
)

// Sampler produces one Sample per period from the monitoring service.
// It is not safe for concurrent use, the control loop is its only caller.
type Sampler struct {
	reader  MetricsReader
	options *options
	last    Sample
	trend   *trend
}

// NewSampler returns a Sampler reading from the given MetricsReader.
func NewSampler(reader MetricsReader, opts ...Option) *Sampler {
	samplerOpts := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(samplerOpts)
		}
	}
	return &Sampler{
		reader:  reader,
		options: samplerOpts,
		trend:   newTrend(samplerOpts.trendSpan),
	}
}

// Sample reads both signals and returns them stamped with now.
// When any read fails or times out, the values of the previous sample are
// returned with Stale set; the error is only logged.
func (s *Sampler) Sample(ctx context.Context, now time.Time) Sample {
	log := logging.FromContext(ctx)
	visible, empty, err := s.read(ctx)
	if err != nil {
		log.Warnw("Failed to read queue metrics, reusing the previous sample", zap.Error(err), zap.Stringer("previous", s.last))
		s.last = Sample{
			Timestamp:       now,
			VisibleMessages: s.last.VisibleMessages,
			EmptyReceives:   s.last.EmptyReceives,
			Stale:           true,
		}
		return s.last
	}
	s.last = Sample{
		Timestamp:       now,
		VisibleMessages: visible,
		EmptyReceives:   empty,
	}
	s.trend.add(float64(visible))
	log.Debugw("Sampled queue metrics", zap.Uint64("visible", visible), zap.Uint64("emptyReceives", empty))
	return s.last
}

// BacklogTrend returns the smoothed number of visible messages.
func (s *Sampler) BacklogTrend() float64 {
	return s.trend.get()
}

func (s *Sampler) read(ctx context.Context) (visible uint64, empty uint64, err error) {
	ctx, cancel := context.WithTimeout(ctx, s.options.timeout)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := s.reader.VisibleMessages(gCtx)
		if err != nil {
			return fmt.Errorf("failed to read visible messages, %w", err)
		}
		visible = v
		return nil
	})
	g.Go(func() error {
		e, err := s.reader.EmptyReceives(gCtx, s.options.period)
		if err != nil {
			return fmt.Errorf("failed to read empty receives, %w", err)
		}
		empty = e
		return nil
	})
	if err = g.Wait(); err != nil {
		return 0, 0, err
	}
	return visible, empty, nil
}
