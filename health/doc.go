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

// Package health provides active health checking for hosts managed by a
// [hostlb.HostManager].
//
// The core type is [Inspector], a single-shot check of one host URL. An
// [hostlb.InspectManager] runs every configured inspector against every
// host once per inspection interval, and blocks the hosts that fail.
//
// This package includes two implementations: [NewTCPInspector], which only
// verifies that a TCP connection can be established, and
// [NewHTTPInspector], which sends an HTTP GET request and examines the
// response status. URLs with the "h2c" scheme are inspected using HTTP/2
// over plaintext.
//
// [hostlb.HostManager]: https://pkg.go.dev/github.com/bufbuild/hostlb#HostManager
// [hostlb.InspectManager]: https://pkg.go.dev/github.com/bufbuild/hostlb#InspectManager
package health
