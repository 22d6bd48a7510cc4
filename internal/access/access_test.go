package access

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

type counter struct{}
type score struct{}

func TestConflicts(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Access
		conflict bool
		on       string
	}{
		{"read/read same resource", Of(Read[counter]()), Of(Read[counter]()), false, ""},
		{"write/read same resource", Of(Write[counter]()), Of(Read[counter]()), true, "access.counter"},
		{"read/write same resource", Of(Read[counter]()), Of(Write[counter]()), true, "access.counter"},
		{"write/write same resource", Of(Write[counter]()), Of(Write[counter]()), true, "access.counter"},
		{"disjoint writes", Of(Write[counter]()), Of(Write[score]()), false, ""},
		{"world read/read", Of(ReadWorld()), Of(ReadWorld()), false, ""},
		{"world write/read", Of(WriteWorld()), Of(ReadWorld()), true, "world"},
		{"world vs resource", Of(WriteWorld()), Of(Write[counter]()), false, ""},
		{"exclusive vs reader", Of(Exclusive()), Of(Read[score]()), true, "exclusive"},
		{"exclusive vs exclusive", Of(Exclusive()), Of(Exclusive()), true, "exclusive"},
		{"exclusive vs nothing", Of(Exclusive()), Of(), false, ""},
		{"nothing vs nothing", Of(), Of(), false, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			on, ok := Conflict(tc.a, tc.b)
			assert.Equal(t, tc.conflict, ok)
			assert.Equal(t, tc.on, on)
			assert.Equal(t, tc.conflict, Conflicts(tc.b, tc.a), "the conflict rule is symmetric")
		})
	}
}

func TestStrongestModeWins(t *testing.T) {
	a := Of(Read[counter](), Write[counter](), Read[counter](), ReadWorld(), WriteWorld(), ReadWorld())

	assert.Equal(t, ModeWrite, a.Resource(reflect.TypeFor[counter]()))
	assert.Equal(t, ModeWrite, a.World())
	assert.Equal(t, ModeNone, a.Resource(reflect.TypeFor[score]()))
}

func TestPredicates(t *testing.T) {
	assert.True(t, Of().IsEmpty())
	assert.True(t, Of().ReadOnly())
	assert.True(t, Of(Read[counter](), ReadWorld()).ReadOnly())
	assert.False(t, Of(Write[counter]()).ReadOnly())
	assert.False(t, Of(WriteWorld()).ReadOnly())
	assert.False(t, Of(Exclusive()).ReadOnly())
	assert.True(t, Of(Exclusive()).IsExclusive())
	assert.Equal(t, ModeWrite, Of(Exclusive()).Resource(reflect.TypeFor[score]()))
}

func TestString(t *testing.T) {
	assert.Equal(t, "none", Of().String())
	assert.Equal(t, "exclusive", Of(Exclusive(), Read[counter]()).String())
	assert.Equal(t, "access.counter:read access.score:write world:write",
		Of(Write[score](), Read[counter](), WriteWorld()).String())
	assert.Equal(t, "write", ModeWrite.String())
}
