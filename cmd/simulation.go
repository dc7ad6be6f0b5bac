package main

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/EngoEngine/ecs"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/spatial-lookup/featureflag"
	lookuphttp "github.com/aukilabs/spatial-lookup/http"
	"github.com/aukilabs/spatial-lookup/lookup"
	"github.com/aukilabs/spatial-lookup/system"
	"github.com/go-gl/mathgl/mgl32"
)

type simulationOptions struct {
	Algorithm          lookup.Algorithm
	EntityCount        int
	WorldHalfExtent    float32
	QueryRadius        float32
	QueriesPerTick     int
	TickInterval       time.Duration
	Seed               int64
	LogSummaryInterval time.Duration
	FeatureFlags       featureflag.FeatureFlag
}

// simulation runs a synthetic world of drifting entities through a
// SpatialSystem, exercising the active algorithm with periodic radius queries.
//
// All world access goes through mu so the diagnostic handlers can snapshot
// the lookup between ticks.
type simulation struct {
	mu      sync.Mutex
	opts    simulationOptions
	world   *ecs.World
	spatial *system.SpatialSystem
	rng     *rand.Rand

	basics     []ecs.BasicEntity
	positions  []mgl32.Vec3
	velocities []mgl32.Vec3

	ticks        int64
	queries      int64
	matched      int64
	preparedOnce bool
}

func newSimulation(opts simulationOptions) *simulation {
	sim := &simulation{
		opts:    opts,
		world:   &ecs.World{},
		spatial: &system.SpatialSystem{Lookup: lookup.NewStateWithAlgorithm(opts.Algorithm)},
		rng:     rand.New(rand.NewSource(opts.Seed)),
	}
	sim.world.AddSystem(sim.spatial)

	sim.basics = make([]ecs.BasicEntity, opts.EntityCount)
	sim.positions = make([]mgl32.Vec3, opts.EntityCount)
	sim.velocities = make([]mgl32.Vec3, opts.EntityCount)

	for i := range sim.basics {
		sim.basics[i] = ecs.NewBasic()
		sim.positions[i] = sim.randomPoint()
		sim.velocities[i] = mgl32.Vec3{
			sim.rng.Float32() - 0.5,
			sim.rng.Float32() - 0.5,
			sim.rng.Float32() - 0.5,
		}
		sim.spatial.Add(&sim.basics[i], &sim.positions[i])
	}

	return sim
}

// Run ticks the world until the context is canceled.
func (sim *simulation) Run(ctx context.Context) {
	ticker := time.NewTicker(sim.opts.TickInterval)
	defer ticker.Stop()

	summary := time.NewTicker(sim.opts.LogSummaryInterval)
	defer summary.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			sim.tick(float32(sim.opts.TickInterval.Seconds()))

		case <-summary.C:
			sim.opts.FeatureFlags.IfNotSet(featureflag.FlagDisableQuerySummary, sim.logSummary)
		}
	}
}

func (sim *simulation) tick(dt float32) {
	sim.mu.Lock()
	defer sim.mu.Unlock()

	half := sim.opts.WorldHalfExtent
	for i := range sim.positions {
		p := sim.positions[i].Add(sim.velocities[i].Mul(dt))
		for axis := 0; axis < 3; axis++ {
			if p[axis] > half || p[axis] < -half {
				sim.velocities[i][axis] = -sim.velocities[i][axis]
				p[axis] = sim.positions[i][axis]
			}
		}
		sim.positions[i] = p
	}

	sim.world.Update(dt)
	sim.preparedOnce = true
	sim.ticks++

	for q := 0; q < sim.opts.QueriesPerTick; q++ {
		it := sim.spatial.InRadius(sim.randomPoint(), sim.opts.QueryRadius)
		for {
			if _, ok := it.Next(); !ok {
				break
			}
			sim.matched++
		}
		sim.queries++
	}
}

func (sim *simulation) logSummary() {
	sim.mu.Lock()
	defer sim.mu.Unlock()

	logs.WithTag("algorithm", sim.spatial.Lookup.AlgorithmName()).
		WithTag("entities", sim.spatial.Lookup.Len()).
		WithTag("ticks", sim.ticks).
		WithTag("queries", sim.queries).
		WithTag("matched", sim.matched).
		Info("simulation summary")
}

// Snapshot captures the lookup state for the diagnostic endpoints.
func (sim *simulation) Snapshot() lookuphttp.LookupSnapshot {
	sim.mu.Lock()
	defer sim.mu.Unlock()

	return lookuphttp.NewLookupSnapshot(sim.spatial.Lookup)
}

// Ready reports whether the lookup has been prepared at least once.
func (sim *simulation) Ready() bool {
	sim.mu.Lock()
	defer sim.mu.Unlock()

	return sim.preparedOnce
}

func (sim *simulation) randomPoint() mgl32.Vec3 {
	half := sim.opts.WorldHalfExtent
	return mgl32.Vec3{
		(sim.rng.Float32()*2 - 1) * half,
		(sim.rng.Float32()*2 - 1) * half,
		(sim.rng.Float32()*2 - 1) * half,
	}
}
