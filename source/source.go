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

package source

import (
	"context"
	"io"
	"time"

	"github.com/bufbuild/hostlb/internal"
)

// Source is an interface for continuous retrieval of host lists.
type Source interface {
	// New creates a task that provides host lists to the given receiver.
	//
	// As the list changes over time, the receiver may be called repeatedly.
	// Each call must supply the full list of host URLs (no deltas).
	//
	// The source may report errors in addition to or instead of lists, but
	// it should keep trying until it is closed or the given context is
	// cancelled.
	//
	// The Close method on the return value should stop all goroutines and
	// free any resources before returning. After Close returns, there
	// should be no subsequent calls to the receiver.
	New(ctx context.Context, receiver Receiver) io.Closer
}

// Receiver is a client of a source and receives host lists.
type Receiver interface {
	// OnHosts is called with the full list of host URLs, every time the
	// list is retrieved.
	OnHosts(urls []string)
	// OnHostsError is called when retrieving the list fails.
	OnHostsError(err error)
}

// Fetcher retrieves a host list once.
type Fetcher interface {
	Fetch(ctx context.Context) ([]string, error)
}

// FetcherFunc adapts an ordinary function to the Fetcher interface.
type FetcherFunc func(ctx context.Context) ([]string, error)

func (f FetcherFunc) Fetch(ctx context.Context) ([]string, error) {
	return f(ctx)
}

// NewStaticSource returns a source that provides the given list once.
func NewStaticSource(urls ...string) Source {
	clone := make([]string, len(urls))
	copy(clone, urls)
	return staticSource(clone)
}

type staticSource []string

func (s staticSource) New(_ context.Context, receiver Receiver) io.Closer {
	task := &sourceTask{cancel: func() {}, doneSignal: make(chan struct{})}
	go func() {
		defer close(task.doneSignal)
		clone := make([]string, len(s))
		copy(clone, s)
		receiver.OnHosts(clone)
	}()
	return task
}

// NewPollingSource returns a source that calls the given fetcher right
// away and then once per interval.
func NewPollingSource(fetcher Fetcher, interval time.Duration) Source {
	return &pollingSource{
		fetcher:  fetcher,
		interval: interval,
		clock:    internal.NewRealClock(),
	}
}

type pollingSource struct {
	fetcher  Fetcher
	interval time.Duration
	clock    internal.Clock
}

func (ps *pollingSource) New(ctx context.Context, receiver Receiver) io.Closer {
	ctx, cancel := context.WithCancel(ctx)
	task := &sourceTask{
		cancel:     cancel,
		doneSignal: make(chan struct{}),
	}
	go ps.run(ctx, task, receiver)
	return task
}

func (ps *pollingSource) run(ctx context.Context, task *sourceTask, receiver Receiver) {
	defer close(task.doneSignal)
	defer task.cancel()

	for {
		urls, err := ps.fetcher.Fetch(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			receiver.OnHostsError(err)
		} else {
			receiver.OnHosts(urls)
		}
		// TODO: back off when the fetcher keeps failing
		select {
		case <-ctx.Done():
			return
		case <-ps.clock.After(ps.interval):
		}
	}
}

type sourceTask struct {
	cancel     context.CancelFunc
	doneSignal chan struct{}
}

func (task *sourceTask) Close() error {
	task.cancel()
	<-task.doneSignal
	return nil
}
