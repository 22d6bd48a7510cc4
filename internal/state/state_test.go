package state

import (
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type position struct{ X, Y int }
type velocity struct{ DX, DY int }
type counter struct{ N int }

func TestWorld_SpawnAndQuery(t *testing.T) {
	w := NewWorld()

	a := w.Spawn(position{1, 2}, velocity{1, 0})
	b := w.Spawn(position{5, 5})
	c := w.Spawn(velocity{0, 1})

	assert.Equal(t, 3, w.Len())
	assert.Equal(t, []Entity{a, b}, w.With(reflect.TypeFor[position]()))
	assert.Equal(t, []Entity{a}, w.With(reflect.TypeFor[position](), reflect.TypeFor[velocity]()))
	assert.Equal(t, []Entity{a, c}, w.With(reflect.TypeFor[velocity]()))
	assert.Nil(t, w.With())

	pos, ok := ComponentOf[position](w, a)
	require.True(t, ok)
	assert.Equal(t, position{1, 2}, pos)
}

func TestWorld_InsertRemoveDespawn(t *testing.T) {
	w := NewWorld()
	e := w.Spawn()

	require.NoError(t, w.Insert(e, position{}))
	require.NoError(t, w.Insert(e, position{3, 4}))
	pos, ok := ComponentOf[position](w, e)
	require.True(t, ok)
	assert.Equal(t, position{3, 4}, pos, "insert replaces an existing component")

	w.Remove(e, reflect.TypeFor[position]())
	_, ok = ComponentOf[position](w, e)
	assert.False(t, ok)
	assert.Empty(t, w.With(reflect.TypeFor[position]()))

	assert.True(t, w.Despawn(e))
	assert.False(t, w.Despawn(e))
	assert.False(t, w.Alive(e))
	assert.ErrorContains(t, w.Insert(e, position{}), "does not exist")
}

func TestQuery(t *testing.T) {
	w := NewWorld()
	a := w.Spawn(position{1, 1})
	b := w.Spawn(position{2, 2})

	entities, values := Query[position](w)
	assert.Equal(t, []Entity{a, b}, entities)
	assert.Equal(t, []position{{1, 1}, {2, 2}}, values)
}

func TestResources_InsertGetMutate(t *testing.T) {
	r := NewResources()

	_, ok := Get[counter](r)
	assert.False(t, ok)

	Insert(r, counter{N: 1})
	c, ok := Get[counter](r)
	require.True(t, ok)
	c.N++

	assert.Equal(t, 2, MustGet[counter](r).N, "Get hands out a pointer to the stored value")
	assert.True(t, Has[counter](r))
	assert.Equal(t, 1, r.Len())

	assert.True(t, Remove[counter](r))
	assert.False(t, Remove[counter](r))
	assert.Panics(t, func() { MustGet[counter](r) })
}

func TestResources_GetOrInsertConcurrent(t *testing.T) {
	r := NewResources()
	var wg sync.WaitGroup
	ptrs := make([]*counter, 50)

	for i := range ptrs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ptrs[i] = GetOrInsert(r, func() counter { return counter{N: 7} })
		}(i)
	}
	wg.Wait()

	for _, p := range ptrs {
		assert.Same(t, ptrs[0], p)
	}
	assert.Equal(t, 7, ptrs[0].N)
}

func TestEvents(t *testing.T) {
	r := NewResources()
	type ping struct{ ID int }

	Send(r, ping{1})
	Send(r, ping{2})

	events := EventsOf[ping](r)
	assert.Equal(t, 2, events.Len())
	assert.Equal(t, []ping{{1}, {2}}, events.Drain())
	assert.Zero(t, events.Len())
	assert.Empty(t, events.Drain())
}

func TestNew(t *testing.T) {
	st := New()
	require.NotNil(t, st.World)
	require.NotNil(t, st.Resources)
	assert.Zero(t, st.World.Len())
	assert.Zero(t, st.Resources.Len())
}
