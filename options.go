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
	"time"

	"github.com/bufbuild/hostlb/health"
	"github.com/bufbuild/hostlb/internal"
	"github.com/bufbuild/hostlb/source"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const defaultInspectInterval = 10 * time.Second

// ManagerOption is an option used to customize the behavior of a HostManager.
type ManagerOption interface {
	applyToManager(*managerOptions)
}

// InspectOption is an option used to customize the behavior of an
// InspectManager.
type InspectOption interface {
	applyToInspect(*inspectOptions)
}

// Option is an option that applies to both HostManager and InspectManager.
type Option interface {
	ManagerOption
	InspectOption
}

// WithLogger configures the logger used to report notable events, like
// failed inspections or selections that found every host blocked. If not
// specified, nothing is logged.
func WithLogger(logger *zap.Logger) Option {
	return commonOptionFunc(func(opts *commonOptions) {
		opts.logger = logger
	})
}

// WithMeterProvider configures the provider of the meter used to record
// metrics. If not specified, no metrics are recorded.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return commonOptionFunc(func(opts *commonOptions) {
		opts.meterProvider = provider
	})
}

// WithRootContext configures the root context used for background
// goroutines. If not specified, [context.Background] is used. Cancelling
// the given context has the same effect as calling Close, except that it
// does not wait for the background goroutines to stop.
func WithRootContext(ctx context.Context) Option {
	return commonOptionFunc(func(opts *commonOptions) {
		opts.rootCtx = ctx
	})
}

// WithHosts seeds a HostManager with the given host URLs. The hosts are
// installed before NewHostManager returns.
func WithHosts(urls ...string) ManagerOption {
	return managerOptionFunc(func(opts *managerOptions) {
		opts.hosts = append(opts.hosts, urls...)
	})
}

// WithReturnNilIfAllBlocked configures what NextHost does when every host
// is blocked. By default it returns a blocked host anyway, on the theory
// that a request has better odds than no request. If returnNil is true, it
// reports that no host is available instead.
func WithReturnNilIfAllBlocked(returnNil bool) ManagerOption {
	return managerOptionFunc(func(opts *managerOptions) {
		opts.returnNilIfAllBlocked = returnNil
	})
}

// WithSource attaches a source of host URLs to a HostManager. Every list
// the source provides is applied as if by SetHosts. The source is closed
// when the manager is closed.
func WithSource(src source.Source) ManagerOption {
	return managerOptionFunc(func(opts *managerOptions) {
		opts.source = src
	})
}

// WithInspectors configures the inspectors an InspectManager runs against
// every host. Inspectors run in the given order and the first failure
// stops the inspection of that host for that cycle. Without inspectors,
// active health checking is disabled.
func WithInspectors(inspectors ...health.Inspector) InspectOption {
	return inspectOptionFunc(func(opts *inspectOptions) {
		opts.inspectors = append(opts.inspectors, inspectors...)
	})
}

// WithInspectInterval configures how often hosts are inspected. Each
// inspection has a time budget of a quarter of the interval, and a failed
// inspection blocks the host for two intervals. If zero or not specified,
// a default of 10 seconds is used.
func WithInspectInterval(interval time.Duration) InspectOption {
	return inspectOptionFunc(func(opts *inspectOptions) {
		opts.interval = interval
	})
}

// WithMaxInspectWorkers limits how many inspections run concurrently. If
// zero or not specified, the number of workers is not limited.
func WithMaxInspectWorkers(workers int) InspectOption {
	return inspectOptionFunc(func(opts *inspectOptions) {
		opts.maxWorkers = workers
	})
}

type commonOptions struct {
	rootCtx       context.Context //nolint:containedctx
	logger        *zap.Logger
	meterProvider metric.MeterProvider
	clock         internal.Clock
}

func (opts *commonOptions) applyDefaults() {
	if opts.rootCtx == nil {
		opts.rootCtx = context.Background()
	}
	if opts.logger == nil {
		opts.logger = zap.NewNop()
	}
	if opts.clock == nil {
		opts.clock = internal.NewRealClock()
	}
}

type managerOptions struct {
	commonOptions
	hosts                 []string
	returnNilIfAllBlocked bool
	source                source.Source
}

type inspectOptions struct {
	commonOptions
	inspectors []health.Inspector
	interval   time.Duration
	maxWorkers int
}

func (opts *inspectOptions) applyDefaults() {
	opts.commonOptions.applyDefaults()
	if opts.interval <= 0 {
		opts.interval = defaultInspectInterval
	}
	if opts.maxWorkers < 0 {
		opts.maxWorkers = 0
	}
}

type commonOptionFunc func(*commonOptions)

func (f commonOptionFunc) applyToManager(opts *managerOptions) {
	f(&opts.commonOptions)
}

func (f commonOptionFunc) applyToInspect(opts *inspectOptions) {
	f(&opts.commonOptions)
}

type managerOptionFunc func(*managerOptions)

func (f managerOptionFunc) applyToManager(opts *managerOptions) {
	f(opts)
}

type inspectOptionFunc func(*inspectOptions)

func (f inspectOptionFunc) applyToInspect(opts *inspectOptions) {
	f(opts)
}

// withClock is used by tests to control time.
func withClock(clock internal.Clock) Option {
	return commonOptionFunc(func(opts *commonOptions) {
		opts.clock = clock
	})
}
