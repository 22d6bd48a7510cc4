package main

import (
	"context"
	"math"

	"github.com/vk/tickgrid/internal/access"
	"github.com/vk/tickgrid/internal/app"
	"github.com/vk/tickgrid/internal/ctxlog"
	"github.com/vk/tickgrid/internal/schedule"
	"github.com/vk/tickgrid/internal/state"
)

const defaultParticleCount = 64

// Position and Velocity are the components of a particle.
type Position struct{ X, Y float64 }

type Velocity struct{ DX, DY float64 }

// Bounds is the box particles bounce around in.
type Bounds struct{ Width, Height float64 }

// Stats summarises the simulation after every tick.
type Stats struct {
	Ticks     uint64
	Particles int
	Energy    float64
}

// Clock counts ticks independently of the particles.
type Clock struct{ Ticks uint64 }

// registerParticles adds a small bouncing-particle simulation to b.
func registerParticles(b *app.Builder, count int) {
	app.InsertResource(b, Bounds{Width: 100, Height: 100})
	app.InsertResource(b, Stats{})
	app.InsertResource(b, Clock{})

	b.AddStartupSystem(schedule.NewSystem("spawn_particles", func(_ context.Context, st *state.State) error {
		bounds := state.MustGet[Bounds](st.Resources)
		for i := 0; i < count; i++ {
			angle := 2 * math.Pi * float64(i) / float64(count)
			st.World.Spawn(
				Position{X: bounds.Width / 2, Y: bounds.Height / 2},
				Velocity{DX: math.Cos(angle), DY: math.Sin(angle)},
			)
		}
		return nil
	}, access.Read[Bounds](), access.WriteWorld()))

	b.AddSystem(
		schedule.NewSystem("integrate", integrate, access.Read[Bounds](), access.WriteWorld()),
		schedule.NewSystem("clock", func(_ context.Context, st *state.State) error {
			state.MustGet[Clock](st.Resources).Ticks++
			return nil
		}, access.Write[Clock]()),
		schedule.NewSystem("measure", measure, access.ReadWorld(), access.Write[Stats]()),
		schedule.NewSystem("report", report, access.Read[Stats]()),
	)
}

func integrate(_ context.Context, st *state.State) error {
	bounds := state.MustGet[Bounds](st.Resources)
	entities, positions := state.Query[Position](st.World)
	for i, e := range entities {
		v, ok := state.ComponentOf[Velocity](st.World, e)
		if !ok {
			continue
		}
		p := positions[i]
		p.X, v.DX = bounce(p.X+v.DX, v.DX, bounds.Width)
		p.Y, v.DY = bounce(p.Y+v.DY, v.DY, bounds.Height)
		if err := st.World.Insert(e, p); err != nil {
			return err
		}
		if err := st.World.Insert(e, v); err != nil {
			return err
		}
	}
	return nil
}

// bounce reflects x back into [0, limit], flipping the velocity when it hit
// a wall.
func bounce(x, v, limit float64) (float64, float64) {
	switch {
	case x < 0:
		return -x, -v
	case x > limit:
		return 2*limit - x, -v
	default:
		return x, v
	}
}

func measure(_ context.Context, st *state.State) error {
	stats := state.MustGet[Stats](st.Resources)
	_, velocities := state.Query[Velocity](st.World)

	energy := 0.0
	for _, v := range velocities {
		energy += 0.5 * (v.DX*v.DX + v.DY*v.DY)
	}
	stats.Ticks++
	stats.Particles = len(velocities)
	stats.Energy = energy
	return nil
}

func report(ctx context.Context, st *state.State) error {
	stats := state.MustGet[Stats](st.Resources)
	ctxlog.FromContext(ctx).Debug("Simulation tick.",
		"tick", stats.Ticks,
		"particles", stats.Particles,
		"energy", stats.Energy,
	)
	return nil
}
