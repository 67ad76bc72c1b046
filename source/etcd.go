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
	"errors"
	"io"
	"time"

	"github.com/bufbuild/hostlb/internal"
	clientv3 "go.etcd.io/etcd/client/v3"
)

const etcdRewatchDelay = time.Second

var errEtcdWatchClosed = errors.New("etcd watch closed")

// NewEtcdSource returns a source that reads host URLs from the values of
// all keys under the given prefix, in key order. It watches the prefix and
// re-reads the list whenever a key under it changes. A *clientv3.Client
// can be used as both kv and watcher.
//
// Entries can be registered with a lease, so that hosts which stop
// renewing it drop out of the list.
func NewEtcdSource(kv clientv3.KV, watcher clientv3.Watcher, prefix string) Source {
	return &etcdSource{
		kv:      kv,
		watcher: watcher,
		prefix:  prefix,
		clock:   internal.NewRealClock(),
	}
}

type etcdSource struct {
	kv      clientv3.KV
	watcher clientv3.Watcher
	prefix  string
	clock   internal.Clock
}

func (es *etcdSource) New(ctx context.Context, receiver Receiver) io.Closer {
	ctx, cancel := context.WithCancel(ctx)
	task := &sourceTask{
		cancel:     cancel,
		doneSignal: make(chan struct{}),
	}
	go es.run(ctx, task, receiver)
	return task
}

func (es *etcdSource) run(ctx context.Context, task *sourceTask, receiver Receiver) {
	defer close(task.doneSignal)
	defer task.cancel()

	for {
		// Watch before reading, so that no change slips in between.
		watchCh := es.watcher.Watch(ctx, es.prefix, clientv3.WithPrefix())
		es.refresh(ctx, receiver)
		if !es.follow(ctx, watchCh, receiver) {
			return
		}
		receiver.OnHostsError(errEtcdWatchClosed)
		select {
		case <-ctx.Done():
			return
		case <-es.clock.After(etcdRewatchDelay):
		}
	}
}

// follow refreshes the list on every watch event. It returns false if the
// context is done, and true if the watch ended for another reason.
func (es *etcdSource) follow(ctx context.Context, watchCh clientv3.WatchChan, receiver Receiver) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case resp, ok := <-watchCh:
			if !ok {
				return ctx.Err() == nil
			}
			if err := resp.Err(); err != nil {
				receiver.OnHostsError(err)
				continue
			}
			es.refresh(ctx, receiver)
		}
	}
}

func (es *etcdSource) refresh(ctx context.Context, receiver Receiver) {
	resp, err := es.kv.Get(ctx, es.prefix,
		clientv3.WithPrefix(),
		clientv3.WithSort(clientv3.SortByKey, clientv3.SortAscend),
	)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		receiver.OnHostsError(err)
		return
	}
	urls := make([]string, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		urls = append(urls, string(kv.Value))
	}
	receiver.OnHosts(urls)
}
