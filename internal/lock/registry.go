package locking

// used for single-handle-per-file enforcement
// a key is held from Acquire until the matching Release

import (
	"fmt"
	"sort"
	"sync"
)

type Registry struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{held: make(map[string]struct{})}
}

// Acquire takes key exclusively. It reports false if key is already held.
func (r *Registry) Acquire(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.held[key]; ok {
		return false
	}
	r.held[key] = struct{}{}
	return true
}

// Release frees key. Releasing a key that is not held is a bug in the
// caller and panics, like a refcount dropping below zero.
func (r *Registry) Release(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.held[key]; !ok {
		panic(fmt.Sprintf("locking: release of unheld key %q", key))
	}
	delete(r.held, key)
}

func (r *Registry) IsHeld(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.held[key]
	return ok
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.held)
}

// Keys returns the held keys in sorted order.
func (r *Registry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]string, 0, len(r.held))
	for k := range r.held {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (r *Registry) String() string {
	return fmt.Sprintf("Registry: %d held", r.Count())
}
