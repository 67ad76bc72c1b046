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

// Package hostlb provides client-side load balancing over a set of host
// URLs. Callers ask a [HostManager] for the next host to use, report how
// the request went, and the manager steers traffic away from hosts that
// misbehave until they have had time to recover.
//
// To create a manager use [NewHostManager]. Hosts may be given up front
// with [WithHosts], replaced at any time with [HostManager.SetHosts], or
// fed by a [source.Source] such as a file, a Redis set, or an etcd prefix.
// A host that is present before and after a replacement keeps its state.
//
// # Selection
//
// [HostManager.NextHost] walks the hosts in round-robin order. If the host
// in turn is blocked, a second counter scans the list for the first host
// that is not. If every host is blocked, NextHost returns one of them
// anyway, or nothing if [WithReturnNilIfAllBlocked] is set. A manager with
// a single host always returns it.
//
// # Blocking and recovery
//
// Each request outcome is reported through [Host.Feedback]. A failure
// blocks the host for the given duration, followed by a recovery window
// that is a multiple of that duration. While the host is blocked it is
// skipped. During the recovery window, exactly one selection is let
// through as a trial; if it fails too, the host is blocked again. Blocks
// only ever extend the deadlines, so concurrent failures keep the longest
// one. A success does not clear a block: blocks expire on their own, or
// are cleared with [Host.Release].
//
// # Active inspection
//
// An [InspectManager] periodically runs [health.Inspector] probes against
// every host of a manager, using a bounded worker pool. A host that fails
// any probe is blocked for two inspection intervals. Probes get a quarter
// of the interval to complete.
//
//	hosts := hostlb.NewHostManager(
//	    hostlb.WithHosts("http://10.0.0.1:8080", "http://10.0.0.2:8080"),
//	    hostlb.WithLogger(logger),
//	)
//	defer hosts.Close()
//	inspect := hostlb.NewInspectManager(hosts,
//	    hostlb.WithInspectors(health.NewHTTPInspector("/healthz", nil)),
//	    hostlb.WithInspectInterval(5*time.Second),
//	)
//	defer inspect.Close()
//
//	host, ok := hosts.NextHost()
//	if !ok {
//	    return errNoHosts
//	}
//	err := call(ctx, host.URL())
//	host.Feedback(err == nil, 10*time.Second, 3)
package hostlb
