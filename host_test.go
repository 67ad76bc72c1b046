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
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bufbuild/hostlb/internal/clocktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHost(t *testing.T) (*Host, clocktest.FakeClock) {
	t.Helper()
	testClock := clocktest.NewFakeClock()
	return newHost("http://10.0.0.1:8080", &hostEnv{clock: testClock}), testClock
}

func TestHost_BlockOnlyExtends(t *testing.T) {
	t.Parallel()
	host, testClock := newTestHost(t)
	start := testClock.Now()

	host.Block(100*time.Millisecond, 1)
	host.Block(50*time.Millisecond, 1)
	assert.Equal(t, start.Add(100*time.Millisecond).UnixNano(), host.blockUntil.Load())
	assert.Equal(t, host.blockUntil.Load(), host.recoveryUntil.Load())

	testClock.Advance(60 * time.Millisecond)
	assert.True(t, host.isBlocked(testClock.Now().UnixNano()))
	assert.False(t, host.Available())
	testClock.Advance(40 * time.Millisecond)
	assert.False(t, host.isBlocked(testClock.Now().UnixNano()))
	assert.True(t, host.Available())
}

func TestHost_ConcurrentBlocksKeepLongest(t *testing.T) {
	t.Parallel()
	host, testClock := newTestHost(t)
	start := testClock.Now()

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			host.Block(time.Duration(i)*time.Second, 2)
		}()
	}
	wg.Wait()
	assert.Equal(t, start.Add(50*time.Second).UnixNano(), host.blockUntil.Load())
	assert.Equal(t, start.Add(100*time.Second).UnixNano(), host.recoveryUntil.Load())
}

func TestHost_RecoveryWindowAdmitsOneTrial(t *testing.T) {
	t.Parallel()
	host, testClock := newTestHost(t)
	blockDuration := time.Second

	host.Block(blockDuration, 3)
	now := testClock.Now().UnixNano()
	assert.True(t, host.isBlocked(now))

	testClock.Advance(blockDuration)
	now = testClock.Now().UnixNano()
	assert.True(t, host.Available())
	assert.False(t, host.isBlocked(now), "first check in the recovery window is the trial")
	assert.True(t, host.isBlocked(now))
	assert.True(t, host.isBlocked(now))
	assert.False(t, host.Available())

	testClock.Advance(blockDuration)
	assert.True(t, host.isBlocked(testClock.Now().UnixNano()), "still in the recovery window")

	testClock.Advance(blockDuration)
	now = testClock.Now().UnixNano()
	assert.False(t, host.isBlocked(now))
	assert.False(t, host.isBlocked(now))
	assert.True(t, host.Available())
}

func TestHost_RecoveryTrialIsAtomic(t *testing.T) {
	t.Parallel()
	host, testClock := newTestHost(t)
	host.Block(time.Second, 3)
	testClock.Advance(time.Second)
	now := testClock.Now().UnixNano()

	var admitted atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if !host.isBlocked(now) {
				admitted.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()
	assert.Equal(t, int32(1), admitted.Load())
}

func TestHost_Release(t *testing.T) {
	t.Parallel()
	host, testClock := newTestHost(t)

	host.Block(time.Second, 3)
	// releasing a blocked host does not unblock it
	host.Release()
	assert.True(t, host.isBlocked(testClock.Now().UnixNano()))

	// but it does open the recovery window that follows
	testClock.Advance(time.Second)
	now := testClock.Now().UnixNano()
	for i := 0; i < 5; i++ {
		assert.False(t, host.isBlocked(now))
	}
	assert.True(t, host.Available())

	// a new block re-arms the trial admission
	host.Block(time.Second, 3)
	testClock.Advance(time.Second)
	now = testClock.Now().UnixNano()
	assert.False(t, host.isBlocked(now))
	assert.True(t, host.isBlocked(now))
}

func TestHost_Feedback(t *testing.T) {
	t.Parallel()
	host, testClock := newTestHost(t)

	host.Feedback(false, time.Second, 1)
	assert.False(t, host.Available())
	testClock.Advance(time.Second)
	// no recovery window with a coefficient of one
	now := testClock.Now().UnixNano()
	assert.False(t, host.isBlocked(now))
	assert.False(t, host.isBlocked(now))

	host.Feedback(false, time.Second, 4)
	testClock.Advance(time.Second)
	now = testClock.Now().UnixNano()
	assert.False(t, host.isBlocked(now))
	assert.True(t, host.isBlocked(now))
	host.Feedback(true, 0, 0)
	assert.False(t, host.isBlocked(now))
}

func TestHost_CoefficientBelowOne(t *testing.T) {
	t.Parallel()
	host, testClock := newTestHost(t)
	host.Block(time.Second, 0)
	require.Equal(t, host.blockUntil.Load(), host.recoveryUntil.Load())
	host.Block(time.Second, -3)
	require.Equal(t, host.blockUntil.Load(), host.recoveryUntil.Load())
	testClock.Advance(time.Second)
	assert.True(t, host.Available())
}

func TestHost_URL(t *testing.T) {
	t.Parallel()
	host, _ := newTestHost(t)
	assert.Equal(t, "http://10.0.0.1:8080", host.URL())
	assert.Equal(t, "http://10.0.0.1:8080", host.String())
}
