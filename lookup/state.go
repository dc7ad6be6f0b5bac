package lookup

import (
	"time"

	"github.com/aukilabs/spatial-lookup/geometry"
	"github.com/go-gl/mathgl/mgl32"
)

// State owns the canonical set of tracked entities and the active lookup
// algorithm. It keeps a densely packed entity slice plus an id to slot index,
// so upserts and removals are O(1), and decides whether mutations are
// forwarded to the algorithm incrementally or require a full rebuild on the
// next Prepare.
type State struct {
	entities  []TrackedEntity
	slots     map[EntityID]int
	algorithm Algorithm

	initialized          bool
	fullRebuildRequested bool
}

// NewState returns a State backed by the Naive algorithm, which outperforms
// the tree-based algorithms for small sets with few queries per cycle.
func NewState() *State {
	return NewStateWithAlgorithm(&Naive{})
}

// NewStateWithAlgorithm returns a State backed by the given algorithm.
func NewStateWithAlgorithm(algorithm Algorithm) *State {
	return &State{
		slots:     make(map[EntityID]int),
		algorithm: algorithm,
	}
}

// Len returns the number of tracked entities.
func (s *State) Len() int {
	return len(s.entities)
}

// AlgorithmName returns the name of the active algorithm.
func (s *State) AlgorithmName() string {
	return s.algorithm.Name()
}

// Upsert tracks an entity at the given position, overwriting its previous
// position when it is already tracked.
func (s *State) Upsert(id EntityID, position mgl32.Vec3) {
	if slot, ok := s.slots[id]; ok {
		s.entities[slot].Position = position
	} else {
		s.slots[id] = len(s.entities)
		s.entities = append(s.entities, TrackedEntity{ID: id, Position: position})
	}

	trackedEntities.Set(float64(len(s.entities)))

	if inc, ok := s.algorithm.(IncrementalAlgorithm); ok && s.initialized {
		inc.UpdateEntity(id, position)
		return
	}
	s.fullRebuildRequested = true
}

// Remove stops tracking an entity. Removing an untracked entity is a no-op.
//
// The vacated slot is filled by swapping in the last entity, whose slot index
// is repaired to keep the id index consistent with the dense slice.
func (s *State) Remove(id EntityID) {
	slot, ok := s.slots[id]
	if !ok {
		return
	}

	last := len(s.entities) - 1
	s.entities[slot] = s.entities[last]
	s.entities = s.entities[:last]
	delete(s.slots, id)

	if slot < last {
		s.slots[s.entities[slot].ID] = slot
	}

	trackedEntities.Set(float64(len(s.entities)))

	if inc, ok := s.algorithm.(IncrementalAlgorithm); ok && s.initialized {
		inc.RemoveEntity(id)
		return
	}
	s.fullRebuildRequested = true
}

// Prepare materializes the index. The full O(n) rebuild is paid only when the
// state was never prepared or a full rebuild is pending; otherwise the active
// algorithm is already consistent through incremental calls and Prepare is a
// no-op.
//
// Call it once per update cycle, before the cycle's queries.
func (s *State) Prepare() {
	if s.initialized && !s.fullRebuildRequested {
		return
	}

	start := time.Now()
	s.algorithm.Prepare(s.entities)

	s.fullRebuildRequested = false
	s.initialized = true

	name := s.algorithm.Name()
	fullRebuilds.WithLabelValues(name).Inc()
	prepareDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
}

// RequestFullRebuild forces the next Prepare to rebuild the index from the
// current entity set, regardless of the active algorithm's incremental
// support.
func (s *State) RequestFullRebuild() {
	s.fullRebuildRequested = true
}

// EntitiesInRadius returns the identifiers of all tracked entities within
// radius (inclusive) of the sample point. The result carries no ordering
// guarantee.
func (s *State) EntitiesInRadius(samplePoint mgl32.Vec3, radius float32) []EntityID {
	start := time.Now()
	found := s.algorithm.EntitiesInRadius(samplePoint, radius)

	name := s.algorithm.Name()
	queries.WithLabelValues(name).Inc()
	queryDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	return found
}

// DebugBoxes returns the active algorithm's internal bounding volumes, or nil
// when the algorithm does not expose them.
func (s *State) DebugBoxes() []geometry.AABB {
	if d, ok := s.algorithm.(DebugDrawer); ok {
		return d.DebugBoxes()
	}
	return nil
}
