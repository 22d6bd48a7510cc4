// Package access describes which parts of the shared state a system reads
// and writes, and decides when two such declarations conflict.
//
// Two declarations conflict when either one writes something the other reads
// or writes. Conflicting systems are never run at the same time; systems that
// only share reads may overlap.
package access

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// Mode is the level of access to a single target.
type Mode uint8

const (
	ModeNone Mode = iota
	ModeRead
	ModeWrite
)

// String returns the string representation of a mode.
func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeRead:
		return "read"
	case ModeWrite:
		return "write"
	default:
		return "unknown"
	}
}

// Access is a system's declared access. The zero value declares no access to
// shared state and conflicts with nothing except an exclusive declaration.
type Access struct {
	resources map[reflect.Type]Mode
	world     Mode
	exclusive bool
}

// Decl adds one declaration to an Access.
type Decl func(*Access)

// Of builds an Access from declarations. When a target is declared more than
// once the strongest mode wins.
func Of(decls ...Decl) Access {
	var a Access
	for _, d := range decls {
		d(&a)
	}
	return a
}

// Read declares read-only access to the resource of type T.
func Read[T any]() Decl {
	return func(a *Access) { a.addResource(reflect.TypeFor[T](), ModeRead) }
}

// Write declares read-write access to the resource of type T.
func Write[T any]() Decl {
	return func(a *Access) { a.addResource(reflect.TypeFor[T](), ModeWrite) }
}

// ReadWorld declares read-only access to the entity/component store.
func ReadWorld() Decl {
	return func(a *Access) { a.world = max(a.world, ModeRead) }
}

// WriteWorld declares read-write access to the entity/component store.
func WriteWorld() Decl {
	return func(a *Access) { a.world = ModeWrite }
}

// Exclusive declares read-write access to the whole state.
func Exclusive() Decl {
	return func(a *Access) { a.exclusive = true }
}

func (a *Access) addResource(typ reflect.Type, m Mode) {
	if a.resources == nil {
		a.resources = make(map[reflect.Type]Mode)
	}
	a.resources[typ] = max(a.resources[typ], m)
}

// Resource returns the declared mode for the resource type.
func (a Access) Resource(typ reflect.Type) Mode {
	if a.exclusive {
		return ModeWrite
	}
	return a.resources[typ]
}

// World returns the declared mode for the entity/component store.
func (a Access) World() Mode {
	if a.exclusive {
		return ModeWrite
	}
	return a.world
}

// IsExclusive reports whether the declaration covers the whole state.
func (a Access) IsExclusive() bool { return a.exclusive }

// IsEmpty reports whether nothing was declared.
func (a Access) IsEmpty() bool {
	return !a.exclusive && a.world == ModeNone && len(a.resources) == 0
}

// ReadOnly reports whether the declaration writes nothing.
func (a Access) ReadOnly() bool {
	if a.exclusive || a.world == ModeWrite {
		return false
	}
	for _, m := range a.resources {
		if m == ModeWrite {
			return false
		}
	}
	return true
}

// Conflicts reports whether a and b may not run concurrently.
func Conflicts(a, b Access) bool {
	_, ok := Conflict(a, b)
	return ok
}

// Conflict reports whether a and b conflict and, when they do, names what
// they conflict on.
func Conflict(a, b Access) (string, bool) {
	if a.exclusive && !b.IsEmpty() || b.exclusive && !a.IsEmpty() {
		return "exclusive", true
	}
	if clash(a.world, b.world) {
		return "world", true
	}

	var names []string
	for typ, m := range a.resources {
		if clash(m, b.resources[typ]) {
			names = append(names, typ.String())
		}
	}
	if len(names) == 0 {
		return "", false
	}
	slices.Sort(names)
	return strings.Join(names, ", "), true
}

func clash(a, b Mode) bool {
	if a == ModeNone || b == ModeNone {
		return false
	}
	return a == ModeWrite || b == ModeWrite
}

// String renders the declaration for logs and error messages.
func (a Access) String() string {
	if a.exclusive {
		return "exclusive"
	}
	var parts []string
	if a.world != ModeNone {
		parts = append(parts, fmt.Sprintf("world:%s", a.world))
	}
	for typ, m := range a.resources {
		parts = append(parts, fmt.Sprintf("%s:%s", typ, m))
	}
	if len(parts) == 0 {
		return "none"
	}
	slices.Sort(parts)
	return strings.Join(parts, " ")
}
