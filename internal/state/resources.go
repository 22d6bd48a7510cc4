package state

import (
	"fmt"
	"reflect"
	"sync"
)

// Resources is a registry of singleton values keyed by type. Values are
// stored behind a pointer so a system granted write access mutates the
// resource in place.
type Resources struct {
	mu     sync.RWMutex
	values map[reflect.Type]any
}

// NewResources creates an empty registry.
func NewResources() *Resources {
	return &Resources{values: make(map[reflect.Type]any)}
}

// Len returns the number of registered resources.
func (r *Resources) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.values)
}

// Insert stores v as the resource of type T, replacing any previous value.
func Insert[T any](r *Resources, v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ptr := new(T)
	*ptr = v
	r.values[reflect.TypeFor[T]()] = ptr
}

// Get returns a pointer to the resource of type T.
func Get[T any](r *Resources) (*T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.values[reflect.TypeFor[T]()]
	if !ok {
		return nil, false
	}
	return v.(*T), true
}

// MustGet is like Get but panics when the resource is missing. Systems use it
// for resources their phase is guaranteed to have inserted.
func MustGet[T any](r *Resources) *T {
	v, ok := Get[T](r)
	if !ok {
		panic(fmt.Sprintf("resource %s not found", reflect.TypeFor[T]()))
	}
	return v
}

// GetOrInsert returns the resource of type T, inserting init() first when it
// is missing.
func GetOrInsert[T any](r *Resources, init func() T) *T {
	typ := reflect.TypeFor[T]()

	r.mu.RLock()
	v, ok := r.values[typ]
	r.mu.RUnlock()
	if ok {
		return v.(*T)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.values[typ]; ok {
		return v.(*T)
	}
	ptr := new(T)
	*ptr = init()
	r.values[typ] = ptr
	return ptr
}

// Has reports whether a resource of type T is registered.
func Has[T any](r *Resources) bool {
	_, ok := Get[T](r)
	return ok
}

// Remove deletes the resource of type T and reports whether it existed.
func Remove[T any](r *Resources) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	typ := reflect.TypeFor[T]()
	_, ok := r.values[typ]
	delete(r.values, typ)
	return ok
}
