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

package health

import "context"

//nolint:gochecknoglobals
var (
	// NopInspector is an inspector that does nothing. It reports every
	// host as healthy.
	NopInspector Inspector = InspectorFunc(func(context.Context, string) bool { return true })
)

// Inspector performs a single-shot health check of one host.
type Inspector interface {
	// Inspect reports whether the host identified by url is healthy.
	//
	// The time budget for the check is the deadline of the given context.
	// Implementations must honor it: an inspection that overruns holds a
	// worker of the shared inspection pool for as long as it runs.
	//
	// Expected failure modes, like timeouts or refused connections, must
	// be reported as false rather than by panicking. A panic is treated as
	// a failed inspection by the caller.
	Inspect(ctx context.Context, url string) bool
}

// InspectorFunc adapts an ordinary function to the Inspector interface.
type InspectorFunc func(ctx context.Context, url string) bool

func (f InspectorFunc) Inspect(ctx context.Context, url string) bool {
	return f(ctx, url)
}
