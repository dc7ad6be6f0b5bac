package lookup

import (
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/spatial-lookup/geometry"
	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/sync/semaphore"
)

const (
	// DefaultEntitiesPerLeaf is the default maximum number of entities stored
	// per BVH leaf node.
	DefaultEntitiesPerLeaf = 10_000

	// DefaultMaxSplitSamplesPerAxis is the default number of candidate splits
	// evaluated per axis when building the BVH.
	DefaultMaxSplitSamplesPerAxis = 10
)

// Bvh is a Bounding Volume Hierarchy built from scratch on every Prepare.
// It has no incremental path: State flags a full rebuild for every mutation.
//
// The tree is built with the Surface Area Heuristic: on each split, up to
// MaxSplitSamplesPerAxis candidate split points are evaluated per axis and the
// axis/index pair with the lowest cost wins. The two halves of a split are
// disjoint and are built concurrently, bounded by a worker pool local to the
// instance; the resulting tree is identical to a sequential build.
//
// A lookup is two phases: traversal prunes every subtree whose box does not
// intersect the query sphere, then surviving leaves are filtered entity by
// entity to drop the false positives the box test admits.
type Bvh struct {
	// Maximum number of entities per leaf node. More entities per leaf means a
	// smaller tree, faster building and traversal, but slower final filtering.
	EntitiesPerLeaf int

	// Maximum number of test splits performed per axis. A larger number
	// results in a better (=faster) tree structure but makes tree generation
	// slower.
	MaxSplitSamplesPerAxis int

	root      *bvhNode
	prepared  bool
	treeDepth int
	workers   *semaphore.Weighted
}

// NewBvh returns a Bvh with default tuning. The zero value is also usable:
// Prepare falls back to the same defaults.
func NewBvh() *Bvh {
	return &Bvh{
		EntitiesPerLeaf:        DefaultEntitiesPerLeaf,
		MaxSplitSamplesPerAxis: DefaultMaxSplitSamplesPerAxis,
	}
}

func (*Bvh) Name() string {
	return "bvh"
}

// TreeDepth returns the realized depth of the last built tree.
func (b *Bvh) TreeDepth() int {
	return b.treeDepth
}

func (b *Bvh) Prepare(entities []TrackedEntity) {
	if b.EntitiesPerLeaf <= 0 {
		b.EntitiesPerLeaf = DefaultEntitiesPerLeaf
	}
	if b.MaxSplitSamplesPerAxis <= 0 {
		b.MaxSplitSamplesPerAxis = DefaultMaxSplitSamplesPerAxis
	}
	if b.workers == nil {
		b.workers = semaphore.NewWeighted(int64(runtime.GOMAXPROCS(0)))
	}

	if len(entities) == 0 {
		b.root = nil
		b.treeDepth = 0
		b.prepared = true
		return
	}

	root := b.splitNode(entities)

	b.treeDepth = root.depth()
	b.root = root
	b.prepared = true

	bvhTreeDepth.Set(float64(b.treeDepth))
}

func (b *Bvh) EntitiesInRadius(samplePoint mgl32.Vec3, radius float32) []EntityID {
	if b.root == nil {
		if !b.prepared {
			logs.WithTag("algorithm", b.Name()).
				Warn("entities in radius called before prepare, no entities will be returned")
		}
		return nil
	}

	return b.root.entitiesInRadius(samplePoint, radius, nil)
}

// DebugBoxes returns the bounding boxes of the tree's leaf nodes.
func (b *Bvh) DebugBoxes() []geometry.AABB {
	if b.root == nil {
		return nil
	}
	return b.root.appendLeafBoxes(nil)
}

// splitNode recursively splits a slice of entities into BVH nodes using the
// Surface Area Heuristic.
func (b *Bvh) splitNode(entities []TrackedEntity) *bvhNode {
	if len(entities) == 0 {
		panic("lookup: bvh cannot split an empty entity set")
	}

	// work on a copy, finding the axis of best split sorts the slice
	entities = append([]TrackedEntity(nil), entities...)
	aabb := calculateAABB(entities)

	if len(entities) <= b.EntitiesPerLeaf {
		return &bvhNode{aabb: aabb, entities: entities}
	}

	bestAxis := 0
	bestSplit := 1
	bestCost := float32(math.Inf(1))

	for axis := 0; axis < 3; axis++ {
		sortByAxis(axis, entities)
		splitAt, cost := findSplitIndexAndCost(entities, b.MaxSplitSamplesPerAxis)
		if cost < bestCost {
			bestAxis = axis
			bestSplit = splitAt
			bestCost = cost
		}
	}

	sortByAxis(bestAxis, entities)
	left := entities[:bestSplit]
	right := entities[bestSplit:]

	// The halves are disjoint, so they can be built concurrently. Build the
	// left half on a pooled worker when one is free, otherwise inline.
	var leftNode, rightNode *bvhNode

	if b.workers.TryAcquire(1) {
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer b.workers.Release(1)
			leftNode = b.splitNode(left)
		}()

		rightNode = b.splitNode(right)
		wg.Wait()
	} else {
		leftNode = b.splitNode(left)
		rightNode = b.splitNode(right)
	}

	return &bvhNode{aabb: aabb, left: leftNode, right: rightNode}
}

func sortByAxis(axis int, entities []TrackedEntity) {
	sort.Slice(entities, func(i, j int) bool {
		return entities[i].Position[axis] < entities[j].Position[axis]
	})
}

// findSplitIndexAndCost returns the best split index and the resulting cost
// for the sorted entities slice.
//
// Candidate indexes stride through the slice with an integer-division step,
// excluding both ends. The cadence can undersample when the entity count is
// just above the sample count.
func findSplitIndexAndCost(entities []TrackedEntity, maxSplitSamplesPerAxis int) (int, float32) {
	if len(entities) < 2 {
		panic("lookup: bvh split sampling needs at least two entities")
	}

	samples := min(len(entities), maxSplitSamplesPerAxis)
	step := len(entities) / samples

	bestIndex := 1
	bestCost := float32(math.Inf(1))

	for i := 1; i < len(entities)-1; i += step {
		if cost := splitCost(entities, i); cost < bestCost {
			bestIndex = i
			bestCost = cost
		}
	}

	return bestIndex, bestCost
}

// splitCost is the Surface Area Heuristic: surface area of each half's
// bounding box weighted by the number of entities in that half.
func splitCost(entities []TrackedEntity, index int) float32 {
	left := entities[:index]
	right := entities[index:]

	return calculateAABB(left).SurfaceArea()*float32(len(left)) +
		calculateAABB(right).SurfaceArea()*float32(len(right))
}

// calculateAABB returns the tight bounding box of the entities' positions.
func calculateAABB(entities []TrackedEntity) geometry.AABB {
	if len(entities) == 0 {
		panic("lookup: cannot compute the bounding box of an empty entity set")
	}

	box := geometry.AABB{Min: entities[0].Position, Max: entities[0].Position}
	for _, e := range entities[1:] {
		box = box.Extend(e.Position)
	}
	return box
}

// bvhNode is a node of the BVH tree: an AABB tightly enclosing its subtree,
// and either a list of entities (leaf) or exactly two children (branch).
type bvhNode struct {
	aabb     geometry.AABB
	entities []TrackedEntity
	left     *bvhNode
	right    *bvhNode
}

func (n *bvhNode) isLeaf() bool {
	return n.left == nil
}

func (n *bvhNode) entitiesInRadius(samplePoint mgl32.Vec3, radius float32, found []EntityID) []EntityID {
	if !n.aabb.IntersectsSphere(samplePoint, radius) {
		return found
	}

	if n.isLeaf() {
		for _, e := range n.entities {
			if e.Position.Sub(samplePoint).Len() <= radius {
				found = append(found, e.ID)
			}
		}
		return found
	}

	found = n.left.entitiesInRadius(samplePoint, radius, found)
	return n.right.entitiesInRadius(samplePoint, radius, found)
}

func (n *bvhNode) depth() int {
	if n.isLeaf() {
		return 1
	}
	return 1 + max(n.left.depth(), n.right.depth())
}

func (n *bvhNode) appendLeafBoxes(boxes []geometry.AABB) []geometry.AABB {
	if n.isLeaf() {
		return append(boxes, n.aabb)
	}
	boxes = n.left.appendLeafBoxes(boxes)
	return n.right.appendLeafBoxes(boxes)
}
