// Package lookup answers "which tracked entities lie within radius r of a
// point" over a set of (identifier, position) pairs that changes over time.
//
// The package is built around pluggable algorithms. Naive is the default and
// the correctness oracle; Bvh trades rebuild cost for fast queries on large
// static sets; Octree absorbs per-entity mutations incrementally. State owns
// the canonical entity set and decides when the active algorithm needs a full
// rebuild.
//
// State and the algorithms assume a single logical writer per update cycle:
// one owner applies mutations and calls Prepare, queries are read-only and may
// run concurrently with each other between updates. No internal locking is
// performed.
package lookup

import (
	"github.com/aukilabs/spatial-lookup/geometry"
	"github.com/go-gl/mathgl/mgl32"
)

// EntityID names a tracked entity. IDs are supplied by the caller and are
// opaque to this package, which never allocates them.
type EntityID uint64

// TrackedEntity pairs an entity identifier with its tracked position.
type TrackedEntity struct {
	ID       EntityID
	Position mgl32.Vec3
}

// Algorithm is the interface that describes a spatial lookup algorithm usable
// with State.
type Algorithm interface {
	// Returns the algorithm name, used in logs and metrics.
	Name() string

	// Prepares the algorithm with a fresh snapshot of entities and their
	// positions. The slice is owned by the caller; implementations must copy
	// whatever they retain.
	Prepare(entities []TrackedEntity)

	// Returns the identifiers of all entities within the given radius
	// (inclusive) of the sample point, in no particular order.
	//
	// Implementations MUST return every entity within the radius and MUST NOT
	// return any entity outside of it.
	EntitiesInRadius(samplePoint mgl32.Vec3, radius float32) []EntityID
}

// IncrementalAlgorithm is implemented by algorithms that can absorb
// per-entity mutations without a full rebuild. State forwards mutations to
// such algorithms instead of flagging rebuilds.
type IncrementalAlgorithm interface {
	Algorithm

	// Inserts an entity at the given position.
	InsertEntity(id EntityID, position mgl32.Vec3)

	// Moves an entity to the given position. Updating an unknown entity is an
	// implicit insert.
	UpdateEntity(id EntityID, position mgl32.Vec3)

	// Removes an entity. Removing an unknown entity is a no-op.
	RemoveEntity(id EntityID)
}

// DebugDrawer is implemented by algorithms that can expose their internal
// bounding volumes to an external renderer. Diagnostic only, has no effect on
// query results.
type DebugDrawer interface {
	DebugBoxes() []geometry.AABB
}
