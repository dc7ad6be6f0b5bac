// Package geometry holds the bounding volume primitives shared by the spatial
// lookup algorithms: axis-aligned boxes, cubes and their sphere intersection
// tests.
package geometry

import "github.com/go-gl/mathgl/mgl32"

// MinElem returns the componentwise minimum of two vectors.
func MinElem(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{
		min(a[0], b[0]),
		min(a[1], b[1]),
		min(a[2], b[2]),
	}
}

// MaxElem returns the componentwise maximum of two vectors.
func MaxElem(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{
		max(a[0], b[0]),
		max(a[1], b[1]),
		max(a[2], b[2]),
	}
}

// AABB is an axis-aligned bounding box. Min is componentwise lesser or equal
// than Max.
type AABB struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// Extend returns the box grown to also enclose p.
func (b AABB) Extend(p mgl32.Vec3) AABB {
	return AABB{
		Min: MinElem(b.Min, p),
		Max: MaxElem(b.Max, p),
	}
}

func (b AABB) Center() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

func (b AABB) Size() mgl32.Vec3 {
	return b.Max.Sub(b.Min)
}

// SurfaceArea returns the total surface area of the box.
func (b AABB) SurfaceArea() float32 {
	extents := b.Max.Sub(b.Min)
	return extents.X()*extents.Y()*2 +
		extents.X()*extents.Z()*2 +
		extents.Y()*extents.Z()*2
}

// IntersectsSphere reports whether the box intersects the sphere centered at c
// with radius r.
//
// Implementation is based on Jim Arvo's algorithm from "Graphics Gems": the
// squared distance from c to the closest point on the box is accumulated per
// axis, adding the squared distance to the nearest face when c lies outside
// the box span on that axis.
func (b AABB) IntersectsSphere(c mgl32.Vec3, r float32) bool {
	var dmin float32

	for axis := 0; axis < 3; axis++ {
		if c[axis] < b.Min[axis] {
			d := c[axis] - b.Min[axis]
			dmin += d * d
		} else if c[axis] > b.Max[axis] {
			d := c[axis] - b.Max[axis]
			dmin += d * d
		}
	}

	return dmin <= r*r
}

// Cube is an axis-aligned cube described by its center and half extent.
type Cube struct {
	Center mgl32.Vec3
	Half   float32
}

func (c Cube) Min() mgl32.Vec3 {
	return c.Center.Sub(mgl32.Vec3{c.Half, c.Half, c.Half})
}

func (c Cube) Max() mgl32.Vec3 {
	return c.Center.Add(mgl32.Vec3{c.Half, c.Half, c.Half})
}

// AABB returns the cube as a min/max box.
func (c Cube) AABB() AABB {
	return AABB{Min: c.Min(), Max: c.Max()}
}

// Contains reports whether p lies within the cube inflated by padding on every
// side.
func (c Cube) Contains(p mgl32.Vec3, padding float32) bool {
	h := c.Half + padding
	d := p.Sub(c.Center)
	return abs(d.X()) <= h && abs(d.Y()) <= h && abs(d.Z()) <= h
}

// IntersectsSphere reports whether the cube intersects the sphere centered at
// p with radius r.
func (c Cube) IntersectsSphere(p mgl32.Vec3, r float32) bool {
	return c.AABB().IntersectsSphere(p, r)
}

// OctantIndex returns the 3-bit child selector for p relative to center: bit 0
// is set when p.X >= center.X, bit 1 for Y, bit 2 for Z.
func OctantIndex(center, p mgl32.Vec3) int {
	idx := 0
	if p.X() >= center.X() {
		idx |= 1
	}
	if p.Y() >= center.Y() {
		idx |= 2
	}
	if p.Z() >= center.Z() {
		idx |= 4
	}
	return idx
}

// Octant returns the i-th child cube, with i interpreted as the 3-bit selector
// produced by OctantIndex.
func (c Cube) Octant(i int) Cube {
	half := c.Half * 0.5

	offset := mgl32.Vec3{-half, -half, -half}
	if i&1 != 0 {
		offset[0] = half
	}
	if i&2 != 0 {
		offset[1] = half
	}
	if i&4 != 0 {
		offset[2] = half
	}

	return Cube{Center: c.Center.Add(offset), Half: half}
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
