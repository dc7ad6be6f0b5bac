package lookup

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"
)

// requireSlotsConsistent checks that the id index always agrees with the dense
// entity slice.
func requireSlotsConsistent(t *testing.T, s *State) {
	t.Helper()

	require.Len(t, s.slots, len(s.entities))
	for i, e := range s.entities {
		slot, ok := s.slots[e.ID]
		require.True(t, ok)
		require.Equal(t, i, slot)
	}
}

func TestStateUpsert(t *testing.T) {
	t.Run("new entities are appended", func(t *testing.T) {
		s := NewState()

		s.Upsert(1, mgl32.Vec3{1, 0, 0})
		s.Upsert(2, mgl32.Vec3{2, 0, 0})

		require.Equal(t, 2, s.Len())
		requireSlotsConsistent(t, s)
	})

	t.Run("upserting a tracked entity overwrites its position", func(t *testing.T) {
		s := NewState()

		s.Upsert(1, mgl32.Vec3{1, 0, 0})
		s.Upsert(1, mgl32.Vec3{5, 0, 0})

		require.Equal(t, 1, s.Len())
		require.Equal(t, mgl32.Vec3{5, 0, 0}, s.entities[0].Position)
	})
}

func TestStateRemove(t *testing.T) {
	t.Run("removal swaps the last entity into the vacated slot", func(t *testing.T) {
		s := NewState()

		s.Upsert(1, mgl32.Vec3{1, 0, 0})
		s.Upsert(2, mgl32.Vec3{2, 0, 0})
		s.Upsert(3, mgl32.Vec3{3, 0, 0})

		s.Remove(1)

		require.Equal(t, 2, s.Len())
		require.Equal(t, EntityID(3), s.entities[0].ID)
		requireSlotsConsistent(t, s)
	})

	t.Run("removing the last entity", func(t *testing.T) {
		s := NewState()

		s.Upsert(1, mgl32.Vec3{1, 0, 0})
		s.Upsert(2, mgl32.Vec3{2, 0, 0})

		s.Remove(2)

		require.Equal(t, 1, s.Len())
		requireSlotsConsistent(t, s)
	})

	t.Run("removing an untracked entity is a no-op", func(t *testing.T) {
		s := NewState()
		s.Upsert(1, mgl32.Vec3{1, 0, 0})

		require.NotPanics(t, func() { s.Remove(42) })
		require.Equal(t, 1, s.Len())
	})
}

func TestStateQueryBeforePrepare(t *testing.T) {
	s := NewState()
	s.Upsert(1, mgl32.Vec3{})

	require.NotPanics(t, func() {
		require.Empty(t, s.EntitiesInRadius(mgl32.Vec3{}, 1))
	})
}

func TestStateRebuildOnPrepare(t *testing.T) {
	s := NewState()

	s.Upsert(1, mgl32.Vec3{0.5, 0, 0})
	s.Prepare()
	require.Equal(t, []EntityID{1}, s.EntitiesInRadius(mgl32.Vec3{}, 1))

	// naive has no incremental path: the move is visible only after the next
	// prepare
	s.Upsert(1, mgl32.Vec3{10, 0, 0})
	require.Equal(t, []EntityID{1}, s.EntitiesInRadius(mgl32.Vec3{}, 1))

	s.Prepare()
	require.Empty(t, s.EntitiesInRadius(mgl32.Vec3{}, 1))
	require.Equal(t, []EntityID{1}, s.EntitiesInRadius(mgl32.Vec3{10, 0, 0}, 1))
}

func TestStateForwardsMutationsIncrementally(t *testing.T) {
	s := NewStateWithAlgorithm(NewOctree(DefaultOctreeConfig()))

	s.Upsert(1, mgl32.Vec3{0, 0, 0})
	s.Prepare()

	// once initialized, octree mutations are visible without another prepare
	s.Upsert(2, mgl32.Vec3{0.5, 0, 0})
	require.Equal(t, []EntityID{1, 2}, sortedIDs(s.EntitiesInRadius(mgl32.Vec3{}, 1)))

	s.Remove(1)
	require.Equal(t, []EntityID{2}, sortedIDs(s.EntitiesInRadius(mgl32.Vec3{}, 1)))
}

func TestStateRequestFullRebuild(t *testing.T) {
	s := NewState()

	s.Upsert(1, mgl32.Vec3{0, 0, 0})
	s.Prepare()

	s.RequestFullRebuild()
	require.NotPanics(t, s.Prepare)
	require.Equal(t, []EntityID{1}, s.EntitiesInRadius(mgl32.Vec3{}, 1))
}

func TestStateDebugBoxes(t *testing.T) {
	t.Run("naive exposes no boxes", func(t *testing.T) {
		s := preparedState(&Naive{}, worldWithNEntities(10))
		require.Nil(t, s.DebugBoxes())
	})

	t.Run("octree exposes its node bounds", func(t *testing.T) {
		s := preparedState(NewOctree(DefaultOctreeConfig()), worldWithNEntities(10))
		require.NotEmpty(t, s.DebugBoxes())
	})
}
