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
	"math"
	"sync/atomic"
	"time"

	"github.com/bufbuild/hostlb/internal"
)

// recoveryGateOpen is stored in a host's recovery gate by Release. It is far
// enough below zero that increments made by selection never reach the
// single-admission value of one.
const recoveryGateOpen = math.MinInt64 / 2

// Host is a single backend, identified by its URL, along with its health
// state. Hosts are created by a HostManager and are safe for concurrent use.
//
// A host moves between three states as time passes and feedback arrives:
//
//   - blocked, until its block deadline passes: never selected;
//   - recovering, from the block deadline until the recovery deadline: a
//     single selection is let through as a trial, unless Release is called,
//     which lets all selections through;
//   - available, from the recovery deadline on.
type Host struct {
	url string
	env *hostEnv

	// Unix nanoseconds. recoveryUntil is never behind blockUntil.
	// +checkatomic
	blockUntil atomic.Int64
	// +checkatomic
	recoveryUntil atomic.Int64
	// +checkatomic
	recoveryGate atomic.Int64
}

// hostEnv is shared by every host created by the same HostManager.
type hostEnv struct {
	clock   internal.Clock
	metrics *instruments
}

func newHost(url string, env *hostEnv) *Host {
	return &Host{url: url, env: env}
}

// URL returns the URL identifying this host.
func (h *Host) URL() string {
	return h.url
}

// String implements fmt.Stringer.
func (h *Host) String() string {
	return h.url
}

// Feedback reports the outcome of a request sent to this host. A successful
// outcome calls Release. A failed one calls Block with the given duration
// and recovery coefficient.
//
// Transports that have no opinion about recovery should pass a coefficient
// of 1, which means no recovery window.
func (h *Host) Feedback(ok bool, blockDuration time.Duration, recoveryCoefficient int) {
	if ok {
		h.Release()
		return
	}
	h.Block(blockDuration, recoveryCoefficient)
	h.env.metrics.recordBlock(context.Background(), blockPathPassive)
}

// Block takes this host out of rotation for the given duration. After that,
// the host is recovering until duration*recoveryCoefficient has passed
// since now. A coefficient of 1 or less means no recovery window.
//
// Deadlines only move forward: a block that would end sooner than an
// existing one leaves the existing deadline in place. Every call re-arms
// the single trial admission of the recovery window.
func (h *Host) Block(duration time.Duration, recoveryCoefficient int) {
	if recoveryCoefficient < 1 {
		recoveryCoefficient = 1
	}
	now := h.env.clock.Now().UnixNano()
	blockUntil := now + int64(duration)
	recoveryUntil := now + int64(duration)*int64(recoveryCoefficient)
	// Raise recoveryUntil first so that it is never observed behind blockUntil.
	advance(&h.recoveryUntil, recoveryUntil)
	advance(&h.blockUntil, blockUntil)
	h.recoveryGate.Store(0)
}

// Release opens the recovery window of this host, so that it is selected
// as if available for the rest of the window. It has no effect on a host
// that is still blocked.
func (h *Host) Release() {
	h.recoveryGate.Store(recoveryGateOpen)
}

// Available reports whether this host could currently be selected. Unlike
// selection, it does not consume the trial admission of a recovery window.
func (h *Host) Available() bool {
	now := h.env.clock.Now().UnixNano()
	if now < h.blockUntil.Load() {
		return false
	}
	return now >= h.recoveryUntil.Load() || h.recoveryGate.Load() < 1
}

// isBlocked reports whether this host must be skipped by selection at the
// given time. During a recovery window, only the first call after the
// gate was reset returns false; that call is the trial admission.
func (h *Host) isBlocked(now int64) bool {
	if now < h.blockUntil.Load() {
		return true
	}
	if now >= h.recoveryUntil.Load() {
		return false
	}
	return h.recoveryGate.Add(1) > 1
}

// advance raises the value stored in v to target, unless it already holds
// something larger.
func advance(v *atomic.Int64, target int64) {
	for {
		current := v.Load()
		if current >= target || v.CompareAndSwap(current, target) {
			return
		}
	}
}
