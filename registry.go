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
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrDuplicateName is returned by Registry.Register when the name is
	// already taken.
	ErrDuplicateName = errors.New("host manager name already registered")
	errEmptyName     = errors.New("host manager name must not be empty")
)

// Registry is a set of named host managers, typically one per upstream
// service. Names are unique; registering a name twice is an error, as it
// usually means two services were configured with the same identifier.
type Registry struct {
	mu sync.Mutex
	// +checklocks:mu
	managers map[string]*HostManager
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{managers: map[string]*HostManager{}}
}

// Register adds the given manager under the given name.
func (r *Registry) Register(name string, manager *HostManager) error {
	if name == "" {
		return errEmptyName
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.managers[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	r.managers[name] = manager
	return nil
}

// Get returns the manager registered under the given name.
func (r *Registry) Get(name string) (*HostManager, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	manager, ok := r.managers[name]
	return manager, ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.managers))
	for name := range r.managers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close closes and removes every registered manager. If any of them fails
// to close, one of the errors is returned.
func (r *Registry) Close() error {
	r.mu.Lock()
	managers := r.managers
	r.managers = map[string]*HostManager{}
	r.mu.Unlock()

	var grp errgroup.Group
	var closeErr atomic.Pointer[error]
	for _, manager := range managers {
		grp.Go(func() error {
			if err := manager.Close(); err != nil {
				// Not returned, so that the other closes are not abandoned.
				closeErr.CompareAndSwap(nil, &err)
			}
			return nil
		})
	}
	_ = grp.Wait()
	if errPtr := closeErr.Load(); errPtr != nil {
		return *errPtr
	}
	return nil
}
