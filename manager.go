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
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// HostManager owns the current set of hosts and selects among them.
//
// Selection is lock-free: hosts are held in an immutable snapshot that is
// replaced atomically when the set changes. Changes are applied by a single
// background goroutine, so SetHosts never blocks. Hosts that appear in
// consecutive sets under the same URL keep their health state.
type HostManager struct {
	//nolint:containedctx
	ctx    context.Context
	cancel context.CancelFunc
	env    *hostEnv
	logger *zap.Logger
	// throttles the warning logged when every host is blocked
	allBlockedLog rate.Sometimes

	returnNilIfAllBlocked atomic.Bool
	snapshot              atomic.Pointer[hostSnapshot]
	pending               atomic.Pointer[[]string]
	updates               chan struct{}

	// +checkatomic
	mainCounter atomic.Uint64
	// +checkatomic
	refugeCounter atomic.Uint64

	source    io.Closer
	closeOnce sync.Once
	closeErr  error
	done      chan struct{}

	// NB: only set from tests
	installHook func([]string)
}

// hostSnapshot is never modified once published.
type hostSnapshot struct {
	hosts []*Host
	byURL map[string]*Host
}

// NewHostManager returns a new HostManager configured with the given
// options. It starts a background goroutine that applies host updates;
// call Close to stop it.
func NewHostManager(options ...ManagerOption) *HostManager {
	var opts managerOptions
	for _, opt := range options {
		opt.applyToManager(&opts)
	}
	opts.applyDefaults()
	ctx, cancel := context.WithCancel(opts.rootCtx)
	manager := &HostManager{
		ctx:    ctx,
		cancel: cancel,
		env: &hostEnv{
			clock:   opts.clock,
			metrics: newInstruments(opts.meterProvider),
		},
		logger:        opts.logger,
		allBlockedLog: rate.Sometimes{Interval: time.Second},
		updates:       make(chan struct{}, 1),
		done:          make(chan struct{}),
	}
	manager.returnNilIfAllBlocked.Store(opts.returnNilIfAllBlocked)
	if len(opts.hosts) > 0 {
		manager.SetHosts(opts.hosts)
	}
	go manager.receiveUpdates(ctx)
	if opts.source != nil {
		manager.source = opts.source.New(ctx, manager)
	}
	return manager
}

// NextHost selects the host to use for one request. It returns false only
// if there are no hosts, or if every host is blocked and the manager was
// configured with WithReturnNilIfAllBlocked(true).
//
// Hosts are selected in round-robin order. If the host whose turn it is
// happens to be blocked, the other hosts are scanned for one that is not,
// starting from a position that rotates independently of the main order.
// If there is only one host, it is always returned, blocked or not, since
// there is nothing else to choose.
func (m *HostManager) NextHost() (*Host, bool) {
	snapshot := m.snapshot.Load()
	if snapshot == nil || len(snapshot.hosts) == 0 {
		return nil, false
	}
	hosts := snapshot.hosts
	numHosts := uint64(len(hosts))
	if numHosts == 1 {
		return hosts[0], true
	}
	now := m.env.clock.Now().UnixNano()
	main := hosts[(m.mainCounter.Add(1)-1)%numHosts]
	if !main.isBlocked(now) {
		return main, true
	}
	refuge := m.refugeCounter.Add(1) - 1
	for i := uint64(0); i < numHosts; i++ {
		candidate := hosts[(refuge+i)%numHosts]
		if !candidate.isBlocked(now) {
			return candidate, true
		}
	}
	m.env.metrics.recordExhausted(m.ctx)
	returnNil := m.returnNilIfAllBlocked.Load()
	m.allBlockedLog.Do(func() {
		m.logger.Warn("all hosts are blocked",
			zap.Int("hosts", len(hosts)),
			zap.Bool("failFast", returnNil),
		)
	})
	if returnNil {
		return nil, false
	}
	return main, true
}

// SetReturnNilIfAllBlocked changes the behavior of NextHost when every host
// is blocked. See WithReturnNilIfAllBlocked.
func (m *HostManager) SetReturnNilIfAllBlocked(returnNil bool) {
	m.returnNilIfAllBlocked.Store(returnNil)
}

// SetHosts replaces the set of hosts. Entries are trimmed of surrounding
// whitespace and empty entries are dropped. The order of the remaining
// entries is the round-robin order.
//
// The first set of hosts given to a manager is installed before SetHosts
// returns. Later sets are installed asynchronously; when several calls
// arrive faster than they can be applied, intermediate sets may be skipped,
// but the most recent set is always the one eventually installed.
func (m *HostManager) SetHosts(urls []string) {
	hosts := normalizeHosts(urls)
	if m.snapshot.Load() == nil {
		if m.snapshot.CompareAndSwap(nil, m.newSnapshot(nil, hosts)) {
			m.logInstalled(hosts)
			return
		}
	}
	m.pending.Store(&hosts)
	select {
	case m.updates <- struct{}{}:
	default:
	}
}

// SetHostsString is like SetHosts but accepts a comma-separated list.
func (m *HostManager) SetHostsString(urls string) {
	m.SetHosts(strings.Split(urls, ","))
}

// OnHosts implements source.Receiver. Empty lists are ignored, so that a
// source returning nothing does not take down every host.
func (m *HostManager) OnHosts(urls []string) {
	if len(normalizeHosts(urls)) == 0 {
		return
	}
	m.SetHosts(urls)
}

// OnHostsError implements source.Receiver. The current hosts stay in use.
func (m *HostManager) OnHostsError(err error) {
	m.logger.Warn("host source failed", zap.Error(err))
}

// Hosts returns the current hosts, in round-robin order.
func (m *HostManager) Hosts() []*Host {
	snapshot := m.snapshot.Load()
	if snapshot == nil {
		return nil
	}
	hosts := make([]*Host, len(snapshot.hosts))
	copy(hosts, snapshot.hosts)
	return hosts
}

// HostsStatus returns, for each current host URL, whether the host is
// available. It is meant for diagnostics and does not affect selection.
func (m *HostManager) HostsStatus() map[string]bool {
	snapshot := m.snapshot.Load()
	if snapshot == nil {
		return map[string]bool{}
	}
	status := make(map[string]bool, len(snapshot.byURL))
	for url, host := range snapshot.byURL {
		status[url] = host.Available()
	}
	return status
}

// Close stops the background goroutine and closes the source, if any. Host
// updates requested after Close are never applied. It is safe to call
// Close more than once.
func (m *HostManager) Close() error {
	m.closeOnce.Do(func() {
		m.cancel()
		<-m.done
		if m.source != nil {
			m.closeErr = m.source.Close()
		}
	})
	return m.closeErr
}

func (m *HostManager) receiveUpdates(ctx context.Context) {
	defer close(m.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.updates:
			// Drain until no newer set arrives while installing, so that we
			// always converge on the latest one.
			for {
				hosts := m.pending.Swap(nil)
				if hosts == nil {
					break
				}
				m.install(*hosts)
			}
		}
	}
}

// install is only called from the receiveUpdates goroutine, and only after
// the first snapshot was published, so snapshots are never replaced
// concurrently.
func (m *HostManager) install(hosts []string) {
	if m.installHook != nil {
		m.installHook(hosts)
	}
	m.snapshot.Store(m.newSnapshot(m.snapshot.Load(), hosts))
	m.logInstalled(hosts)
}

func (m *HostManager) newSnapshot(prev *hostSnapshot, urls []string) *hostSnapshot {
	snapshot := &hostSnapshot{
		hosts: make([]*Host, len(urls)),
		byURL: make(map[string]*Host, len(urls)),
	}
	for i, url := range urls {
		host, ok := snapshot.byURL[url]
		if !ok && prev != nil {
			host, ok = prev.byURL[url]
		}
		if !ok {
			host = newHost(url, m.env)
		}
		snapshot.hosts[i] = host
		snapshot.byURL[url] = host
	}
	return snapshot
}

func (m *HostManager) logInstalled(hosts []string) {
	m.logger.Debug("installed hosts", zap.Strings("hosts", hosts))
}

func normalizeHosts(urls []string) []string {
	hosts := make([]string, 0, len(urls))
	for _, url := range urls {
		url = strings.TrimSpace(url)
		if url != "" {
			hosts = append(hosts, url)
		}
	}
	return hosts
}
