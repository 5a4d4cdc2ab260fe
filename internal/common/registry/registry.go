// Package registry provides a generic, thread-safe registry keyed by a
// unique id that rejects duplicate registration and remembers insertion
// order.
//
// Example usage:
//
//	providers := registry.New[Integration]("provider")
//	if err := providers.Register("tits", integration); err != nil {
//		// errors.ErrTypeDuplicateID
//	}
package registry

import (
	"fmt"
	"sync"

	"triggerd/internal/common/errors"
)

// Registry stores items of type T by id.
type Registry[T any] struct {
	kind  string
	items map[string]T
	order []string
	mu    sync.RWMutex
}

// New creates an empty registry; kind names the items in error messages.
func New[T any](kind string) *Registry[T] {
	return &Registry[T]{
		kind:  kind,
		items: make(map[string]T),
	}
}

// Register adds item under id. An existing id is a DuplicateIDError and
// leaves the registry unchanged.
func (r *Registry[T]) Register(id string, item T) error {
	if id == "" {
		return errors.ValidationError(fmt.Sprintf("%s id is required", r.kind))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[id]; exists {
		return errors.DuplicateIDError(r.kind, id)
	}
	r.items[id] = item
	r.order = append(r.order, id)
	return nil
}

// Get retrieves an item by id.
func (r *Registry[T]) Get(id string) (T, error) {
	r.mu.RLock()
	item, exists := r.items[id]
	r.mu.RUnlock()

	if !exists {
		var zero T
		return zero, errors.NotFoundError(fmt.Sprintf("%s %s", r.kind, id))
	}
	return item, nil
}

// Has reports whether id is registered.
func (r *Registry[T]) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.items[id]
	return exists
}

// Remove deletes id and reports whether it existed.
func (r *Registry[T]) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[id]; !exists {
		return false
	}
	delete(r.items, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// List returns the items in registration order.
func (r *Registry[T]) List() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]T, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.items[id])
	}
	return out
}

// IDs returns the registered ids in registration order.
func (r *Registry[T]) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Count returns the number of registered items.
func (r *Registry[T]) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Clear removes everything.
func (r *Registry[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = make(map[string]T)
	r.order = nil
}
