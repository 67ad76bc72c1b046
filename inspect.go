// Copyright 2023 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package hostlb

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/bufbuild/hostlb/health"
	"github.com/bufbuild/hostlb/internal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// HostLister provides the hosts to inspect. *HostManager implements it.
type HostLister interface {
	Hosts() []*Host
}

// InspectManager actively checks the health of hosts. Once per interval it
// takes the current hosts of a HostLister and inspects each of them on a
// shared pool of workers. A host that fails an inspection is blocked for
// two intervals, with no recovery window. Passing inspections do not
// unblock hosts; blocked hosts return to rotation once their block expires.
type InspectManager struct {
	hosts  HostLister
	cancel context.CancelFunc
	clock  internal.Clock
	logger *zap.Logger

	metrics    *instruments
	pool       pond.Pool
	timing     atomic.Pointer[inspectTiming]
	inspectors atomic.Pointer[[]health.Inspector]

	dispatchDone chan struct{}
	closeOnce    sync.Once
}

// inspectTiming is derived from the inspection interval and replaced as a
// whole when the interval changes.
type inspectTiming struct {
	interval      time.Duration
	timeout       time.Duration
	blockDuration time.Duration
}

func newInspectTiming(interval time.Duration) *inspectTiming {
	return &inspectTiming{
		interval:      interval,
		timeout:       interval / 4,
		blockDuration: interval * 2,
	}
}

// NewInspectManager returns a new InspectManager that inspects the hosts of
// the given lister. It starts inspecting right away, with the first cycle
// one interval from now; call Close to stop it.
func NewInspectManager(hosts HostLister, options ...InspectOption) *InspectManager {
	var opts inspectOptions
	for _, opt := range options {
		opt.applyToInspect(&opts)
	}
	opts.applyDefaults()
	ctx, cancel := context.WithCancel(opts.rootCtx)
	manager := &InspectManager{
		hosts:        hosts,
		cancel:       cancel,
		clock:        opts.clock,
		logger:       opts.logger,
		metrics:      newInstruments(opts.meterProvider),
		pool:         pond.NewPool(opts.maxWorkers, pond.WithContext(ctx)),
		dispatchDone: make(chan struct{}),
	}
	manager.timing.Store(newInspectTiming(opts.interval))
	inspectors := opts.inspectors
	manager.inspectors.Store(&inspectors)
	go manager.dispatch(ctx)
	return manager
}

// SetInspectInterval changes the inspection interval, and with it the time
// budget of each inspection and how long failing hosts are blocked. The
// change applies from the next cycle on; a cycle already waiting keeps its
// original schedule. Non-positive intervals are ignored.
func (im *InspectManager) SetInspectInterval(interval time.Duration) {
	if interval <= 0 {
		return
	}
	im.timing.Store(newInspectTiming(interval))
}

// SetInspectors replaces the inspectors, from the next cycle on. With no
// inspectors, cycles do nothing.
func (im *InspectManager) SetInspectors(inspectors ...health.Inspector) {
	clone := make([]health.Inspector, len(inspectors))
	copy(clone, inspectors)
	im.inspectors.Store(&clone)
}

// Close stops inspecting. Inspections that are queued are dropped, and
// inspections in progress see their context cancelled; Close waits for
// them to return, so hosts are not modified after Close returns. It is
// safe to call Close more than once.
func (im *InspectManager) Close() error {
	im.closeOnce.Do(func() {
		im.cancel()
		var grp errgroup.Group
		grp.Go(func() error {
			<-im.dispatchDone
			return nil
		})
		grp.Go(func() error {
			im.pool.StopAndWait()
			return nil
		})
		_ = grp.Wait()
	})
	return nil
}

func (im *InspectManager) dispatch(ctx context.Context) {
	defer close(im.dispatchDone)
	for {
		select {
		case <-ctx.Done():
			return
		case <-im.clock.After(im.timing.Load().interval):
		}
		if ctx.Err() != nil {
			return
		}
		inspectors := *im.inspectors.Load()
		if len(inspectors) == 0 {
			continue
		}
		hosts := im.hosts.Hosts()
		if len(hosts) == 0 {
			continue
		}
		timing := im.timing.Load()
		for _, host := range hosts {
			im.pool.Submit(func() {
				im.inspect(ctx, host, inspectors, timing)
			})
		}
	}
}

func (im *InspectManager) inspect(ctx context.Context, host *Host, inspectors []health.Inspector, timing *inspectTiming) {
	for i, inspector := range inspectors {
		if ctx.Err() != nil {
			return
		}
		if im.runInspector(ctx, inspector, host.URL(), timing.timeout) {
			continue
		}
		if ctx.Err() != nil {
			// Failure caused by shutdown; not the host's fault.
			return
		}
		host.Block(timing.blockDuration, 1)
		im.metrics.recordBlock(ctx, blockPathActive)
		im.metrics.recordInspectFailure(ctx)
		im.logger.Warn("host inspection failed",
			zap.String("host", host.URL()),
			zap.Int("inspector", i),
			zap.Duration("blockDuration", timing.blockDuration),
		)
		return
	}
}

func (im *InspectManager) runInspector(
	ctx context.Context,
	inspector health.Inspector,
	url string,
	timeout time.Duration,
) (healthy bool) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			im.logger.Error("host inspector panicked",
				zap.String("host", url),
				zap.Any("panic", r),
			)
			healthy = false
		}
	}()
	return inspector.Inspect(ctx, url)
}
