package lookup

import "github.com/go-gl/mathgl/mgl32"

// Naive is a linear scan over a snapshot of the tracked entities.
//
// It is the reference algorithm for correctness and the default choice: tree
// overhead does not pay off below roughly a million entities or a hundred
// queries per cycle.
type Naive struct {
	entities []TrackedEntity
}

func (*Naive) Name() string {
	return "naive"
}

func (n *Naive) Prepare(entities []TrackedEntity) {
	n.entities = append(n.entities[:0], entities...)
}

func (n *Naive) EntitiesInRadius(samplePoint mgl32.Vec3, radius float32) []EntityID {
	var found []EntityID

	for _, e := range n.entities {
		if e.Position.Sub(samplePoint).Len() <= radius {
			found = append(found, e.ID)
		}
	}

	return found
}
