package lookup

import (
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"
)

// requireReverseMapConsistent checks that every reverse map entry points to a
// real leaf whose bucket contains the entity.
func requireReverseMapConsistent(t *testing.T, o *Octree) {
	t.Helper()

	for id, leaf := range o.entityLeaf {
		require.True(t, o.nodes[leaf].isLeaf())

		found := false
		for _, e := range o.nodes[leaf].bucket {
			if e.ID == id {
				found = true
				break
			}
		}
		require.Truef(t, found, "entity %d is not in the bucket of its mapped leaf %d", id, leaf)
	}
}

func TestOctreeIncrementalMatchesFullRebuild(t *testing.T) {
	rng := rand.New(rand.NewSource(worldSeed))

	initial := worldWithNEntities(2_000)
	s := NewStateWithAlgorithm(NewOctree(DefaultOctreeConfig()))
	for _, e := range initial {
		s.Upsert(e.ID, e.Position)
	}
	s.Prepare()

	// churn through inserts, moves and removals on the incremental path
	next := EntityID(len(initial))
	for i := 0; i < 1_000; i++ {
		p := mgl32.Vec3{
			(rng.Float32()*2 - 1) * worldSize,
			(rng.Float32()*2 - 1) * worldSize,
			(rng.Float32()*2 - 1) * worldSize,
		}

		switch i % 3 {
		case 0:
			s.Upsert(next, p)
			next++
		case 1:
			s.Upsert(EntityID(rng.Intn(len(initial))), p)
		case 2:
			s.Remove(EntityID(rng.Intn(len(initial))))
		}
	}

	// rebuild a fresh octree from the final snapshot
	rebuilt := NewOctree(DefaultOctreeConfig())
	rebuilt.Prepare(s.entities)

	oracle := &Naive{}
	oracle.Prepare(s.entities)

	for _, p := range []mgl32.Vec3{{0, 0, 0}, {4, 4, -4}, {-8, 1, 7}} {
		want := sortedIDs(oracle.EntitiesInRadius(p, 2.5))
		require.Equal(t, want, sortedIDs(s.EntitiesInRadius(p, 2.5)))
		require.Equal(t, want, sortedIDs(rebuilt.EntitiesInRadius(p, 2.5)))
	}

	requireReverseMapConsistent(t, s.algorithm.(*Octree))
}

func TestOctreeDynamicRootGrowth(t *testing.T) {
	o := NewOctree(DefaultOctreeConfig())
	o.Prepare(worldWithNEntities(100))

	rootHalf := o.nodes[0].bounds.Half

	// far outside the root volume: the root must regrow to contain it
	far := mgl32.Vec3{1_000, -1_000, 1_000}
	o.InsertEntity(4_242, far)

	require.Greater(t, o.nodes[0].bounds.Half, rootHalf)
	require.Equal(t, []EntityID{4_242}, o.EntitiesInRadius(far, 1))

	// entities demoted with the old root stay retrievable
	oracle := &Naive{}
	oracle.Prepare(worldWithNEntities(100))
	require.Equal(t,
		sortedIDs(oracle.EntitiesInRadius(mgl32.Vec3{}, lookupRadius)),
		sortedIDs(o.EntitiesInRadius(mgl32.Vec3{}, lookupRadius)))

	requireReverseMapConsistent(t, o)
}

func TestOctreeUpdateMovesEntity(t *testing.T) {
	o := NewOctree(DefaultOctreeConfig())
	o.Prepare([]TrackedEntity{{ID: 1, Position: mgl32.Vec3{0, 0, 0}}})

	o.UpdateEntity(1, mgl32.Vec3{100, 100, 100})

	require.Equal(t, []EntityID{1}, o.EntitiesInRadius(mgl32.Vec3{100, 100, 100}, 1))
	require.Empty(t, o.EntitiesInRadius(mgl32.Vec3{0, 0, 0}, 1))
}

func TestOctreeLooseUpdateStaysInPlace(t *testing.T) {
	o := NewOctree(DefaultOctreeConfig())
	o.Prepare(worldWithNEntities(1_000))

	leafBefore := o.entityLeaf[1]
	pos := mgl32.Vec3{}
	for _, e := range o.nodes[leafBefore].bucket {
		if e.ID == 1 {
			pos = e.Position
			break
		}
	}

	// a nudge within the loose padding must not reindex the entity
	o.UpdateEntity(1, pos.Add(mgl32.Vec3{0.01, 0.01, 0.01}))
	require.Equal(t, leafBefore, o.entityLeaf[1])
	requireReverseMapConsistent(t, o)
}

func TestOctreeRemove(t *testing.T) {
	t.Run("removed entities stop matching queries", func(t *testing.T) {
		o := NewOctree(DefaultOctreeConfig())
		o.Prepare([]TrackedEntity{
			{ID: 1, Position: mgl32.Vec3{0, 0, 0}},
			{ID: 2, Position: mgl32.Vec3{0.5, 0, 0}},
		})

		o.RemoveEntity(1)
		require.Equal(t, []EntityID{2}, o.EntitiesInRadius(mgl32.Vec3{}, 1))
		requireReverseMapConsistent(t, o)
	})

	t.Run("removing an unknown entity is a no-op", func(t *testing.T) {
		o := NewOctree(DefaultOctreeConfig())
		o.Prepare(worldWithNEntities(10))

		nodes := o.NodeCount()
		require.NotPanics(t, func() { o.RemoveEntity(9_999) })
		require.Equal(t, nodes, o.NodeCount())
	})

	t.Run("nodes are never merged on removal", func(t *testing.T) {
		o := NewOctree(DefaultOctreeConfig())
		o.Prepare(worldWithNEntities(5_000))

		nodes := o.NodeCount()
		for i := 0; i < 5_000; i++ {
			o.RemoveEntity(EntityID(i))
		}

		require.Equal(t, nodes, o.NodeCount())
		require.Empty(t, o.EntitiesInRadius(mgl32.Vec3{}, worldSize))
	})
}

func TestOctreeUpdateOfUnknownEntityInserts(t *testing.T) {
	o := NewOctree(DefaultOctreeConfig())
	o.Prepare(worldWithNEntities(10))

	o.UpdateEntity(77, mgl32.Vec3{3, 3, 3})
	require.Equal(t, []EntityID{77}, o.EntitiesInRadius(mgl32.Vec3{3, 3, 3}, 0.1))
}

func TestOctreeLeafSplit(t *testing.T) {
	cfg := DefaultOctreeConfig()
	o := NewOctree(cfg)
	o.Prepare(nil)
	require.Equal(t, 1, o.NodeCount())

	// exceed the split threshold with a spread-out batch
	rng := rand.New(rand.NewSource(1))
	for i := 0; i <= cfg.SplitThreshold; i++ {
		o.InsertEntity(EntityID(i), mgl32.Vec3{
			rng.Float32()*4 - 2,
			rng.Float32()*4 - 2,
			rng.Float32()*4 - 2,
		})
	}

	require.False(t, o.nodes[0].isLeaf())
	require.Greater(t, o.NodeCount(), 8)
	requireReverseMapConsistent(t, o)
}

func TestOctreeSplitLimits(t *testing.T) {
	t.Run("coincident points stop splitting at max depth", func(t *testing.T) {
		cfg := DefaultOctreeConfig()
		cfg.MaxDepth = 4
		cfg.MinHalfSize = 1e-6

		o := NewOctree(cfg)
		o.Prepare(nil)

		p := mgl32.Vec3{0.1, 0.1, 0.1}
		for i := 0; i < 200; i++ {
			o.InsertEntity(EntityID(i), p)
		}

		// beyond the depth limit a leaf may exceed its target capacity
		leaf := o.entityLeaf[0]
		require.True(t, o.nodes[leaf].isLeaf())
		require.Greater(t, len(o.nodes[leaf].bucket), cfg.BucketCapacity)
		require.Equal(t, 200, len(o.EntitiesInRadius(p, 0.5)))
	})

	t.Run("min half size stops splitting", func(t *testing.T) {
		cfg := DefaultOctreeConfig()
		cfg.MinHalfSize = 10

		o := NewOctree(cfg)
		o.Prepare(worldWithNEntities(500))

		// the root cube cannot split below the minimum half size, so the tree
		// stays a single bucket
		require.True(t, o.nodes[0].isLeaf())
		require.Equal(t, 1, o.NodeCount())
	})
}

func TestOctreePrepareBuildsOnlyOnce(t *testing.T) {
	o := NewOctree(DefaultOctreeConfig())
	o.Prepare(worldWithNEntities(100))

	nodes := o.NodeCount()
	o.Prepare(worldWithNEntities(50_000))

	// subsequent prepares are no-ops, consistency is maintained incrementally
	require.Equal(t, nodes, o.NodeCount())
}
