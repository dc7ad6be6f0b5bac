// Package system bridges an EngoEngine entity world to a lookup.State.
//
// The host framework owns entity lifecycles and positions; SpatialSystem is
// the boundary that feeds them into the spatial lookup once per frame and
// joins query results back to entity data.
package system

import (
	"github.com/EngoEngine/ecs"
	"github.com/aukilabs/spatial-lookup/lookup"
	"github.com/go-gl/mathgl/mgl32"
)

// SpatialEntity is an entity tracked by the SpatialSystem. Position points at
// the entity's position component and is re-read on every update, so the host
// moves entities by mutating the component as usual.
type SpatialEntity struct {
	*ecs.BasicEntity
	Position *mgl32.Vec3
}

// SpatialSystem keeps a lookup.State in sync with the spatially tracked
// entities of an ecs.World.
//
// Schedule it before any system that queries: every Update pushes the current
// positions into the lookup and prepares it for the frame.
type SpatialSystem struct {
	// Lookup is the state fed by this system. Left nil, it is initialized
	// with the default algorithm when the system is added to a world.
	Lookup *lookup.State

	entities map[lookup.EntityID]SpatialEntity
}

var _ ecs.System = (*SpatialSystem)(nil)

// New implements ecs.Initializer.
func (ss *SpatialSystem) New(*ecs.World) {
	if ss.Lookup == nil {
		ss.Lookup = lookup.NewState()
	}
	if ss.entities == nil {
		ss.entities = make(map[lookup.EntityID]SpatialEntity)
	}
}

// Add starts tracking an entity. Adding an already tracked entity overwrites
// its registration.
func (ss *SpatialSystem) Add(e *ecs.BasicEntity, position *mgl32.Vec3) {
	ss.New(nil)
	ss.entities[lookup.EntityID(e.ID())] = SpatialEntity{BasicEntity: e, Position: position}
	ss.Lookup.Upsert(lookup.EntityID(e.ID()), *position)
}

// Remove implements ecs.System. Removing an untracked entity is a no-op.
func (ss *SpatialSystem) Remove(e ecs.BasicEntity) {
	if ss.entities == nil {
		return
	}

	id := lookup.EntityID(e.ID())
	if _, ok := ss.entities[id]; !ok {
		return
	}

	delete(ss.entities, id)
	ss.Lookup.Remove(id)
}

// Update implements ecs.System: it pushes every tracked entity's current
// position into the lookup and prepares it for this frame's queries.
func (ss *SpatialSystem) Update(dt float32) {
	ss.New(nil)

	for id, e := range ss.entities {
		ss.Lookup.Upsert(id, *e.Position)
	}
	ss.Lookup.Prepare()
}

// InRadius queries the prepared lookup and returns an iterator over the
// tracked entities within radius (inclusive) of the sample point.
func (ss *SpatialSystem) InRadius(samplePoint mgl32.Vec3, radius float32) *Iterator {
	ss.New(nil)

	return &Iterator{
		ids:      ss.Lookup.EntitiesInRadius(samplePoint, radius),
		entities: ss.entities,
	}
}

// Iterator walks a radius query result, joining identifiers back to their
// entity data. Identifiers whose entity was removed after the query are
// skipped.
type Iterator struct {
	ids      []lookup.EntityID
	entities map[lookup.EntityID]SpatialEntity
}

// Next returns the next matched entity. The second return value is false once
// the result set is exhausted.
func (it *Iterator) Next() (SpatialEntity, bool) {
	for len(it.ids) > 0 {
		id := it.ids[len(it.ids)-1]
		it.ids = it.ids[:len(it.ids)-1]

		if e, ok := it.entities[id]; ok {
			return e, true
		}
	}
	return SpatialEntity{}, false
}
