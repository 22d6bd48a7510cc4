package schedule

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/tickgrid/internal/access"
	"github.com/vk/tickgrid/internal/state"
)

type counter struct{ N int }
type score struct{ N int }
type config struct{}

// inlineExecutor runs the plan group by group on the calling goroutine.
type inlineExecutor struct {
	closed atomic.Bool
}

func (e *inlineExecutor) Name() string { return "inline" }

func (e *inlineExecutor) Run(ctx context.Context, plan *Plan, st *state.State) error {
	for _, group := range plan.Groups {
		for _, i := range group {
			if err := plan.Invoke(ctx, i, st); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *inlineExecutor) Close() error {
	e.closed.Store(true)
	return nil
}

// countingFactory records every executor it constructs.
type countingFactory struct {
	mu    sync.Mutex
	built []*inlineExecutor
	err   error
}

func (f *countingFactory) New(_ context.Context, _ string, _ bool) (Executor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	e := &inlineExecutor{}
	f.built = append(f.built, e)
	return e, nil
}

func (f *countingFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.built)
}

func noop(context.Context, *state.State) error { return nil }

func mustCompile(t *testing.T, systems ...System) *Plan {
	t.Helper()
	plan, err := compile("App", true, systems)
	require.NoError(t, err)
	return plan
}

func TestCompile_IndependentSystemsShareAGroup(t *testing.T) {
	plan := mustCompile(t,
		NewSystem("a", noop, access.Write[counter]()),
		NewSystem("b", noop, access.Write[score]()),
		NewSystem("c", noop, access.Read[config]()),
	)
	assert.Equal(t, [][]int{{0, 1, 2}}, plan.Groups)
	assert.Equal(t, [][]int{nil, nil, nil}, plan.Deps)
	assert.Equal(t, []int{0, 1, 2}, plan.Order)
}

func TestCompile_ConflictsAreOrderedByDeclaration(t *testing.T) {
	plan := mustCompile(t,
		NewSystem("increment", noop, access.Write[counter]()),
		NewSystem("report", noop, access.Read[counter]()),
		NewSystem("audit", noop, access.Read[counter]()),
		NewSystem("reset", noop, access.Write[counter]()),
	)
	assert.Equal(t, [][]int{{0}, {1, 2}, {3}}, plan.Groups)
	assert.Equal(t, []int{0}, plan.Deps[1])
	assert.Equal(t, []int{0}, plan.Deps[2])
	assert.Equal(t, []int{0, 1, 2}, plan.Deps[3])
}

func TestCompile_ExplicitOrderingOverridesDeclarationOrder(t *testing.T) {
	plan := mustCompile(t,
		NewSystem("report", noop, access.Read[counter]()).RunsAfter("increment"),
		NewSystem("increment", noop, access.Write[counter]()),
		NewSystem("other", noop, access.Write[score]()),
	)
	assert.Equal(t, [][]int{{1, 2}, {0}}, plan.Groups)
	assert.Equal(t, []int{1}, plan.Deps[0])
	assert.Equal(t, []int{1, 0, 2}, plan.Order)
}

func TestCompile_ExplicitOrderingAndConflictsNeverCycle(t *testing.T) {
	// a is forced after c while b conflicts with both. Declaration order alone
	// would give a->b->c and close a cycle with c->a.
	plan := mustCompile(t,
		NewSystem("a", noop, access.Write[counter]()).RunsAfter("c"),
		NewSystem("b", noop, access.Write[counter]()),
		NewSystem("c", noop, access.Write[counter]()),
	)
	assert.Equal(t, [][]int{{1}, {2}, {0}}, plan.Groups)
	assert.Equal(t, []int{1, 2, 0}, plan.Order)
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		systems []System
		want    error
	}{
		{"unknown after", []System{NewSystem("a", noop).RunsAfter("ghost")}, ErrUnknownDependency},
		{"self after", []System{NewSystem("a", noop).RunsAfter("a")}, ErrOrderingCycle},
		{"cycle", []System{NewSystem("a", noop).RunsAfter("b"), NewSystem("b", noop).RunsAfter("a")}, ErrOrderingCycle},
		{"duplicate", []System{NewSystem("a", noop), NewSystem("a", noop)}, ErrDuplicateSystem},
		{"no logic", []System{{Name: "a"}}, ErrInvalidSystem},
		{"no name", []System{{Run: noop}}, ErrInvalidSystem},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := compile("App", true, tc.systems)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestPlanVerify_DetectsConflictingGroup(t *testing.T) {
	plan := &Plan{
		Systems: []System{
			NewSystem("writer", noop, access.Write[counter]()),
			NewSystem("reader", noop, access.Read[counter]()),
		},
		Groups: [][]int{{0, 1}},
	}
	err := plan.verify()

	var conflict *AccessConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "writer", conflict.First)
	assert.Equal(t, "reader", conflict.Second)
	assert.Equal(t, "schedule.counter", conflict.On)
}

func TestInitialize_IsIdempotent(t *testing.T) {
	s := New()
	require.NoError(t, s.AddSystem(NewSystem("a", noop)))
	st := state.New()
	slot := &Slot{}
	factory := &countingFactory{}
	ctx := context.Background()

	for range 5 {
		require.NoError(t, s.Initialize(ctx, st, slot, "App", true, factory.New))
	}

	assert.Equal(t, 1, factory.count())
	assert.Same(t, factory.built[0], slot.Executor())
	assert.True(t, s.Sealed())
}

func TestInitialize_ConcurrentFirstCallsBuildOneExecutor(t *testing.T) {
	s := New()
	require.NoError(t, s.AddSystem(NewSystem("a", noop)))
	st := state.New()
	slot := &Slot{}
	factory := &countingFactory{}

	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Initialize(context.Background(), st, slot, "App", true, factory.New))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, factory.count())
}

func TestInitialize_FailureLeavesSlotEmptyForRetry(t *testing.T) {
	s := New()
	require.NoError(t, s.AddSystem(NewSystem("a", noop)))
	st := state.New()
	slot := &Slot{}
	boom := errors.New("bad pool")
	factory := &countingFactory{err: boom}

	err := s.Initialize(context.Background(), st, slot, "App", true, factory.New)
	require.ErrorIs(t, err, boom)
	assert.False(t, slot.Initialized())
	assert.False(t, s.Sealed())
	assert.ErrorIs(t, slot.Run(context.Background(), st), ErrNotInitialized)

	factory.err = nil
	require.NoError(t, s.Initialize(context.Background(), st, slot, "App", true, factory.New))
	assert.True(t, slot.Initialized())
}

func TestInitialize_RunsInitHooksOnce(t *testing.T) {
	s := New()
	var calls int
	sys := NewSystem("a", noop, access.Write[counter]()).WithInit(func(st *state.State) error {
		calls++
		state.Insert(st.Resources, counter{N: 41})
		return nil
	})
	require.NoError(t, s.AddSystem(sys))
	st := state.New()
	slot := &Slot{}
	factory := &countingFactory{}

	require.NoError(t, s.Initialize(context.Background(), st, slot, "App", true, factory.New))
	require.NoError(t, s.Initialize(context.Background(), st, slot, "App", true, factory.New))

	assert.Equal(t, 1, calls)
	assert.Equal(t, 41, state.MustGet[counter](st.Resources).N)
}

func TestInitialize_InitHookFailureClosesExecutor(t *testing.T) {
	s := New()
	hookErr := errors.New("missing asset")
	require.NoError(t, s.AddSystem(NewSystem("a", noop).WithInit(func(*state.State) error { return hookErr })))
	slot := &Slot{}
	factory := &countingFactory{}

	err := s.Initialize(context.Background(), state.New(), slot, "Startup", false, factory.New)
	require.ErrorIs(t, err, hookErr)
	assert.False(t, slot.Initialized())
	require.Len(t, factory.built, 1)
	assert.True(t, factory.built[0].closed.Load())
}

func TestInitialize_NoFactory(t *testing.T) {
	err := New().Initialize(context.Background(), state.New(), &Slot{}, "App", true, nil)
	assert.ErrorIs(t, err, ErrNoExecutor)
}

func TestAddSystem_RejectedAfterInitialize(t *testing.T) {
	s := New()
	require.NoError(t, s.AddSystem(NewSystem("a", noop)))
	assert.ErrorIs(t, s.AddSystem(NewSystem("a", noop)), ErrDuplicateSystem)
	assert.ErrorIs(t, s.AddSystem(System{Name: "b"}), ErrInvalidSystem)

	factory := &countingFactory{}
	require.NoError(t, s.Initialize(context.Background(), state.New(), &Slot{}, "App", true, factory.New))

	assert.ErrorIs(t, s.AddSystem(NewSystem("c", noop)), ErrScheduleSealed)
	assert.Equal(t, []string{"a"}, s.Names())
	assert.Equal(t, 1, s.Len())
}

func TestSlot_RunCountsTicks(t *testing.T) {
	s := New()
	var seen []uint64
	require.NoError(t, s.AddSystem(NewSystem("a", func(ctx context.Context, _ *state.State) error {
		seen = append(seen, TickFrom(ctx))
		return nil
	})))
	st := state.New()
	slot := &Slot{}
	factory := &countingFactory{}
	require.NoError(t, s.Initialize(context.Background(), st, slot, "App", true, factory.New))

	for range 3 {
		require.NoError(t, slot.Run(context.Background(), st))
	}
	assert.Equal(t, []uint64{1, 2, 3}, seen)
	assert.Equal(t, uint64(3), slot.Ticks())

	require.NoError(t, slot.Close())
	assert.True(t, factory.built[0].closed.Load())
	assert.False(t, slot.Initialized())
	assert.Nil(t, slot.Plan())
}

func TestInvoke_WrapsErrorsAndPanics(t *testing.T) {
	boom := errors.New("boom")
	plan := mustCompile(t,
		NewSystem("fails", func(context.Context, *state.State) error { return boom }),
		NewSystem("panics", func(context.Context, *state.State) error { panic("kaput") }),
		NewSystem("panics-with-error", func(context.Context, *state.State) error { panic(boom) }),
	)
	ctx := WithTick(context.Background(), 7)
	st := state.New()

	var failure *SystemFailure

	err := plan.Invoke(ctx, 0, st)
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, "fails", failure.System)
	assert.Equal(t, "App", failure.Phase)
	assert.Equal(t, uint64(7), failure.Tick)
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, failure.Panic)

	err = plan.Invoke(ctx, 1, st)
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, "kaput", failure.Panic)
	assert.NotEmpty(t, failure.Stack)
	assert.Contains(t, err.Error(), `system "panics" panicked in App tick 7`)

	err = plan.Invoke(ctx, 2, st)
	assert.ErrorIs(t, err, boom)
}
