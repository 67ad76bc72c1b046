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

// Package source provides host lists to a [hostlb.HostManager] from
// outside the process, and keeps them current.
//
// A [Source] creates a task that watches some system of record for the set
// of host URLs and pushes every new list to a [Receiver]. The HostManager
// is a Receiver: attach a source with [hostlb.WithSource] and the manager
// applies each list as if SetHosts had been called. Since the manager keeps
// the health state of hosts whose URL appears in consecutive lists,
// re-reading an unchanged list costs nothing.
//
// Sources that need to poll are built with [NewPollingSource] from a
// [Fetcher], which reads the list once. This package provides fetchers for
// local files ([NewFileFetcher]) and Redis sets ([NewRedisFetcher]).
// [NewEtcdSource] instead watches a key prefix in etcd and refreshes as
// soon as a key changes.
//
// [hostlb.HostManager]: https://pkg.go.dev/github.com/bufbuild/hostlb#HostManager
// [hostlb.WithSource]: https://pkg.go.dev/github.com/bufbuild/hostlb#WithSource
package source
