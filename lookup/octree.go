package lookup

import (
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/spatial-lookup/geometry"
	"github.com/go-gl/mathgl/mgl32"
)

// OctreeConfig holds the tuning parameters for the Octree.
//
// The octree uses leaf buckets that store entities until splitting. Splitting
// is triggered only when a bucket exceeds SplitThreshold, so small
// fluctuations (insertions and removals) do not constantly re-split.
type OctreeConfig struct {
	// Target maximum number of entities per leaf before splitting is
	// considered.
	BucketCapacity int

	// Soft threshold above BucketCapacity that must be exceeded before a leaf
	// splits. The cushion keeps small changes from thrashing the structure.
	SplitThreshold int

	// Maximum depth of the tree. Prevents infinite splitting.
	MaxDepth int

	// Minimum half extent of a node. Prevents over-splitting when bounds
	// become tiny.
	MinHalfSize float32

	// Extra padding on node bounds used for "still fits" checks during
	// updates. Larger values reduce reinserts for moving entities but increase
	// false positives.
	LoosePadding float32

	// Extra padding added when deriving the initial root bounds from a
	// snapshot.
	InitialPadding float32
}

// DefaultOctreeConfig returns the default Octree tuning.
func DefaultOctreeConfig() OctreeConfig {
	return OctreeConfig{
		BucketCapacity: 16,
		SplitThreshold: 32,
		MaxDepth:       16,
		MinHalfSize:    0.25,
		LoosePadding:   0.5,
		InitialPadding: 1.0,
	}
}

// octreeNode is a node in the octree arena. A node is a leaf (children is
// nil, entities live in bucket) or an interior node with exactly 8 children
// addressed by arena index.
type octreeNode struct {
	bounds   geometry.Cube
	depth    int
	children *[8]int
	bucket   []TrackedEntity
}

func (n *octreeNode) isLeaf() bool {
	return n.children == nil
}

// Octree is an incrementally maintained loose octree.
//
// Nodes live in an index-addressed arena with the current root always at
// index 0, which keeps node identities cheap to swap during root growth. A
// reverse map from entity id to owning leaf index makes updates and removals
// O(1) amortized. Node bounds are treated as loose: an entity whose position
// still fits its leaf's cube inflated by LoosePadding is moved in place
// without reindexing.
//
// The expensive from-scratch build happens on the first Prepare only;
// afterwards the tree is maintained through the incremental entry points and
// further Prepare calls are no-ops.
type Octree struct {
	cfg        OctreeConfig
	built      bool
	nodes      []octreeNode
	entityLeaf map[EntityID]int
}

// NewOctree returns an Octree with the given configuration.
func NewOctree(cfg OctreeConfig) *Octree {
	return &Octree{
		cfg:        cfg,
		entityLeaf: make(map[EntityID]int),
	}
}

func (*Octree) Name() string {
	return "octree"
}

// NodeCount returns the number of nodes in the arena, including vacated
// leaves that are kept for reuse.
func (o *Octree) NodeCount() int {
	return len(o.nodes)
}

func (o *Octree) Prepare(entities []TrackedEntity) {
	if o.built {
		return
	}
	o.buildFromEntities(entities)
}

func (o *Octree) EntitiesInRadius(samplePoint mgl32.Vec3, radius float32) []EntityID {
	if !o.built || len(o.nodes) == 0 {
		logs.WithTag("algorithm", o.Name()).
			Warn("entities in radius called before prepare, no entities will be returned")
		return nil
	}

	var found []EntityID
	stack := []int{0}

	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := &o.nodes[idx]
		if !n.bounds.IntersectsSphere(samplePoint, radius) {
			continue
		}

		if n.isLeaf() {
			// exact distance check: loose bounds and never-merged leaves admit
			// false positives
			for _, e := range n.bucket {
				if e.Position.Sub(samplePoint).Len() <= radius {
					found = append(found, e.ID)
				}
			}
			continue
		}

		for _, c := range n.children {
			stack = append(stack, c)
		}
	}

	return found
}

func (o *Octree) InsertEntity(id EntityID, position mgl32.Vec3) {
	if !o.built {
		// not initialized through Prepare yet, bootstrap a root
		o.buildFromEntities([]TrackedEntity{{ID: id, Position: position}})
		return
	}
	o.insert(id, position)
}

func (o *Octree) UpdateEntity(id EntityID, position mgl32.Vec3) {
	if !o.built {
		o.buildFromEntities([]TrackedEntity{{ID: id, Position: position}})
		return
	}
	o.update(id, position)
}

func (o *Octree) RemoveEntity(id EntityID) {
	if !o.built {
		return
	}
	o.remove(id)
}

// DebugBoxes returns the bounds of every node in the arena.
func (o *Octree) DebugBoxes() []geometry.AABB {
	if !o.built {
		return nil
	}

	boxes := make([]geometry.AABB, 0, len(o.nodes))
	for i := range o.nodes {
		boxes = append(boxes, o.nodes[i].bounds.AABB())
	}
	return boxes
}

func (o *Octree) buildFromEntities(entities []TrackedEntity) {
	o.nodes = o.nodes[:0]
	if o.entityLeaf == nil {
		o.entityLeaf = make(map[EntityID]int, len(entities))
	}
	clear(o.entityLeaf)

	if len(entities) == 0 {
		// tiny root so later inserts have somewhere to land
		o.nodes = append(o.nodes, octreeNode{
			bounds: geometry.Cube{Half: 1},
		})
		o.built = true
		octreeNodes.Set(float64(len(o.nodes)))
		return
	}

	box := geometry.AABB{Min: entities[0].Position, Max: entities[0].Position}
	for _, e := range entities[1:] {
		box = box.Extend(e.Position)
	}

	extents := box.Size().Mul(0.5)
	half := max(extents.X(), extents.Y(), extents.Z())
	half = max(half+o.cfg.InitialPadding, o.cfg.MinHalfSize)

	o.nodes = append(o.nodes, octreeNode{
		bounds: geometry.Cube{Center: box.Center(), Half: half},
	})

	for _, e := range entities {
		o.insert(e.ID, e.Position)
	}

	o.built = true
	octreeNodes.Set(float64(len(o.nodes)))
}

func (o *Octree) insert(id EntityID, p mgl32.Vec3) {
	o.ensureRootContains(p)
	o.insertInto(0, id, p)
	octreeNodes.Set(float64(len(o.nodes)))
}

// ensureRootContains grows the tree until the root volume, inflated by the
// loose padding, contains p. Each round doubles the root's half extent toward
// p's octant and demotes the old root into the matching child slot of the new
// root, swapping arena slots so the root stays at index 0.
func (o *Octree) ensureRootContains(p mgl32.Vec3) {
	for !o.nodes[0].bounds.Contains(p, o.cfg.LoosePadding) {
		old := o.nodes[0].bounds

		offset := mgl32.Vec3{-old.Half, -old.Half, -old.Half}
		d := p.Sub(old.Center)
		for axis := 0; axis < 3; axis++ {
			if d[axis] >= 0 {
				offset[axis] = old.Half
			}
		}

		newRoot := len(o.nodes)
		o.nodes = append(o.nodes, octreeNode{
			bounds: geometry.Cube{Center: old.Center.Add(offset), Half: old.Half * 2},
		})

		// make the new node the actual root by swapping it into slot 0
		o.nodes[0], o.nodes[newRoot] = o.nodes[newRoot], o.nodes[0]
		o.nodes[0].depth = 0

		o.splitLeaf(0)
		if o.nodes[0].isLeaf() {
			panic("lookup: octree root failed to split during growth")
		}

		// the old root now sits at the end of the arena; swap it into the
		// child octant that covers its volume
		childIdx := geometry.OctantIndex(o.nodes[0].bounds.Center, old.Center)
		childNode := o.nodes[0].children[childIdx]

		o.nodes[childNode], o.nodes[newRoot] = o.nodes[newRoot], o.nodes[childNode]
		o.fixLeafIndicesAfterSwap(childNode, newRoot)
	}
}

// fixLeafIndicesAfterSwap repairs the entity to leaf mapping for entities held
// by either of two swapped arena slots.
func (o *Octree) fixLeafIndicesAfterSwap(a, b int) {
	for _, idx := range [2]int{a, b} {
		if o.nodes[idx].isLeaf() {
			for _, e := range o.nodes[idx].bucket {
				o.entityLeaf[e.ID] = idx
			}
		}
	}
}

// splitLeaf converts a leaf into an interior node with 8 fresh child leaves
// and redistributes its bucket. It refuses to split past MaxDepth or below
// MinHalfSize, in which case the leaf may legitimately exceed its target
// capacity.
func (o *Octree) splitLeaf(nodeIdx int) {
	bounds := o.nodes[nodeIdx].bounds
	depth := o.nodes[nodeIdx].depth

	if depth >= o.cfg.MaxDepth || bounds.Half*0.5 < o.cfg.MinHalfSize {
		return
	}

	var children [8]int
	for i := 0; i < 8; i++ {
		children[i] = len(o.nodes)
		o.nodes = append(o.nodes, octreeNode{
			bounds: bounds.Octant(i),
			depth:  depth + 1,
		})
	}

	bucket := o.nodes[nodeIdx].bucket
	o.nodes[nodeIdx].bucket = nil
	o.nodes[nodeIdx].children = &children

	for _, e := range bucket {
		o.insertInto(nodeIdx, e.ID, e.Position)
	}
}

func (o *Octree) insertInto(nodeIdx int, id EntityID, p mgl32.Vec3) {
	for o.nodes[nodeIdx].children != nil {
		ci := geometry.OctantIndex(o.nodes[nodeIdx].bounds.Center, p)
		nodeIdx = o.nodes[nodeIdx].children[ci]
	}

	o.nodes[nodeIdx].bucket = append(o.nodes[nodeIdx].bucket, TrackedEntity{ID: id, Position: p})
	o.entityLeaf[id] = nodeIdx

	if len(o.nodes[nodeIdx].bucket) > o.cfg.SplitThreshold {
		o.splitLeaf(nodeIdx)
	}
}

func (o *Octree) remove(id EntityID) {
	leaf, ok := o.entityLeaf[id]
	if !ok {
		return
	}
	delete(o.entityLeaf, id)

	bucket := o.nodes[leaf].bucket
	for i := range bucket {
		if bucket[i].ID == id {
			bucket[i] = bucket[len(bucket)-1]
			o.nodes[leaf].bucket = bucket[:len(bucket)-1]
			break
		}
	}
	// nodes are intentionally never merged on removal: removal stays cheap and
	// stable, sparse leaves only affect query cost
}

func (o *Octree) update(id EntityID, p mgl32.Vec3) {
	leaf, ok := o.entityLeaf[id]
	if !ok {
		o.insert(id, p)
		return
	}

	// still fits the leaf's loose bounds: move in place without reindexing
	if o.nodes[leaf].bounds.Contains(p, o.cfg.LoosePadding) {
		bucket := o.nodes[leaf].bucket
		for i := range bucket {
			if bucket[i].ID == id {
				bucket[i].Position = p
				break
			}
		}
		return
	}

	o.remove(id)
	o.insert(id, p)
}
