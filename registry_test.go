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
	"errors"
	"io"
	"sync/atomic"
	"testing"

	"github.com/bufbuild/hostlb/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	t.Parallel()
	registry := NewRegistry()
	users := NewHostManager(WithHosts("http://users-1", "http://users-2"))
	orders := NewHostManager(WithHosts("http://orders-1"))

	require.NoError(t, registry.Register("users", users))
	require.NoError(t, registry.Register("orders", orders))
	assert.Equal(t, []string{"orders", "users"}, registry.Names())

	got, ok := registry.Get("users")
	require.True(t, ok)
	assert.Same(t, users, got)
	_, ok = registry.Get("payments")
	assert.False(t, ok)

	err := registry.Register("users", orders)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateName))
	assert.Contains(t, err.Error(), `"users"`)
	got, ok = registry.Get("users")
	require.True(t, ok)
	assert.Same(t, users, got, "failed registration must not replace the manager")

	require.ErrorIs(t, registry.Register("", users), errEmptyName)

	require.NoError(t, registry.Close())
	assert.Empty(t, registry.Names())
	// Managers were closed: closing again is a no-op.
	require.NoError(t, users.Close())
	require.NoError(t, orders.Close())
	// Closing an empty registry is fine too.
	require.NoError(t, registry.Close())
}

func TestRegistry_CloseStopsSources(t *testing.T) {
	t.Parallel()
	registry := NewRegistry()
	var closed []*closeRecorder
	for _, name := range []string{"a", "b", "c"} {
		src := &closeRecorder{}
		closed = append(closed, src)
		require.NoError(t, registry.Register(name, NewHostManager(WithSource(src))))
	}
	require.NoError(t, registry.Close())
	for _, src := range closed {
		assert.True(t, src.closed.Load())
	}
}

type closeRecorder struct {
	closed atomic.Bool
}

func (c *closeRecorder) New(context.Context, source.Receiver) io.Closer {
	return c
}

func (c *closeRecorder) Close() error {
	c.closed.Store(true)
	return nil
}
