package state

import (
	"fmt"
	"reflect"
	"slices"
	"sync"
)

// Entity is a unique identifier for an entity in the World.
type Entity uint64

// World is the entity/component store. Components are keyed by their
// dynamic type; an entity holds at most one component of each type.
//
// The mutex keeps the maps structurally sound. It does not serialize
// systems: which system may touch the World at a time is decided by the
// executor from each system's declared access.
type World struct {
	mu     sync.RWMutex
	nextID Entity
	// entities maps each live entity to its components.
	entities map[Entity]map[reflect.Type]any
	// byType is the reverse index: component type -> entities holding it.
	byType map[reflect.Type]map[Entity]struct{}
}

// NewWorld creates an empty World.
func NewWorld() *World {
	return &World{
		nextID:   1,
		entities: make(map[Entity]map[reflect.Type]any),
		byType:   make(map[reflect.Type]map[Entity]struct{}),
	}
}

// Spawn creates an entity holding the given components and returns its ID.
func (w *World) Spawn(components ...any) Entity {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := w.nextID
	w.nextID++
	w.entities[id] = make(map[reflect.Type]any, len(components))
	for _, c := range components {
		w.insertLocked(id, c)
	}
	return id
}

// Despawn removes an entity and all its components. It reports whether the
// entity existed.
func (w *World) Despawn(e Entity) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	components, ok := w.entities[e]
	if !ok {
		return false
	}
	for typ := range components {
		delete(w.byType[typ], e)
	}
	delete(w.entities, e)
	return true
}

// Insert adds or replaces a component on an existing entity.
func (w *World) Insert(e Entity, component any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.entities[e]; !ok {
		return fmt.Errorf("entity %d does not exist", e)
	}
	w.insertLocked(e, component)
	return nil
}

func (w *World) insertLocked(e Entity, component any) {
	typ := reflect.TypeOf(component)
	w.entities[e][typ] = component
	if w.byType[typ] == nil {
		w.byType[typ] = make(map[Entity]struct{})
	}
	w.byType[typ][e] = struct{}{}
}

// Remove deletes the component of the given type from an entity.
func (w *World) Remove(e Entity, typ reflect.Type) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if components, ok := w.entities[e]; ok {
		delete(components, typ)
		delete(w.byType[typ], e)
	}
}

// Component returns the component of the given type held by an entity.
func (w *World) Component(e Entity, typ reflect.Type) (any, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	c, ok := w.entities[e][typ]
	return c, ok
}

// Alive reports whether the entity exists.
func (w *World) Alive(e Entity) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.entities[e]
	return ok
}

// With returns, in ascending ID order, all entities that hold every one of
// the given component types.
func (w *World) With(types ...reflect.Type) []Entity {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if len(types) == 0 {
		return nil
	}

	var result []Entity
	for e := range w.byType[types[0]] {
		hasAll := true
		for _, typ := range types[1:] {
			if _, ok := w.entities[e][typ]; !ok {
				hasAll = false
				break
			}
		}
		if hasAll {
			result = append(result, e)
		}
	}
	slices.Sort(result)
	return result
}

// Len returns the number of live entities.
func (w *World) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.entities)
}

// ComponentOf is the typed form of World.Component.
func ComponentOf[T any](w *World, e Entity) (T, bool) {
	var zero T
	c, ok := w.Component(e, reflect.TypeFor[T]())
	if !ok {
		return zero, false
	}
	return c.(T), true
}

// Query returns all entities holding a component of type T, with the
// components, in ascending ID order.
func Query[T any](w *World) ([]Entity, []T) {
	entities := w.With(reflect.TypeFor[T]())
	values := make([]T, 0, len(entities))
	for _, e := range entities {
		v, _ := ComponentOf[T](w, e)
		values = append(values, v)
	}
	return entities, values
}
