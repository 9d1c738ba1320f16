package forest

// The eight rigid transforms of a square's coordinate frame: four
// rotations (0°, -90°, 180°, 90°) followed by four axis reflections
// (0°, 45°, 90°, 135°). Together they form the dihedral group D4 of
// order 8, matching the shape of p4est_transform_table (kept general
// here for the octree face case, where a face is itself 2D and needs
// the full group; our 2D quadtree faces are edges and only ever
// realize transformIdentity or transformFlipTangential, computed by
// Connectivity.FindFaceTransform).
const (
	transformRotate0 = iota
	transformRotateM90
	transformRotate180
	transformRotate90
	transformReflect0
	transformReflect45
	transformReflect90
	transformReflect135

	transformIdentity       = transformRotate0
	transformFlipTangential = transformReflect90
)

// transformInverse returns the index whose composition with idx is the
// identity. Rotations invert to their opposite rotation; every
// reflection in D4 has order 2 and is its own inverse.
func transformInverse(idx int) int {
	switch idx {
	case transformRotate0:
		return transformRotate0
	case transformRotateM90:
		return transformRotate90
	case transformRotate180:
		return transformRotate180
	case transformRotate90:
		return transformRotateM90
	default:
		return idx // reflections are involutions
	}
}

// applyTransform applies transform idx to a point (u,v) inside the
// [0,RootLen)x[0,RootLen) square, pivoting on the square's center.
func applyTransform(idx int, u, v uint32) (uint32, uint32) {
	center := int64(RootLen / 2)
	pu := int64(u) - center
	pv := int64(v) - center

	var ru, rv int64
	switch idx {
	case transformRotate0:
		ru, rv = pu, pv
	case transformRotateM90:
		ru, rv = pv, -pu
	case transformRotate180:
		ru, rv = -pu, -pv
	case transformRotate90:
		ru, rv = -pv, pu
	case transformReflect0:
		ru, rv = pu, -pv
	case transformReflect45:
		ru, rv = pv, pu
	case transformReflect90:
		ru, rv = -pu, pv
	case transformReflect135:
		ru, rv = -pv, -pu
	default:
		panic("forest: invalid transform index")
	}
	return uint32(ru + center), uint32(rv + center)
}
