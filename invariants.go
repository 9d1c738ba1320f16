package forest

// IsValidTree reports whether t's quadrants are sorted, form a tiling
// of the root extent, and carry a payload slot of the right size for
// every entry — the per-tree form of universal properties 1-2.
func IsValidTree(t *Tree) bool {
	if len(t.Quadrants) != len(t.Data) {
		return false
	}
	for _, d := range t.Data {
		if len(d) != t.DataSize {
			return false
		}
	}
	return t.IsSorted() && t.IsTiling()
}

// IsValidForest reports whether every locally owned tree is valid and
// the forest's local quadrant count bookkeeping matches the trees'
// actual contents.
func IsValidForest(f *Forest) bool {
	if f.FirstLocalTree < 0 {
		return f.LastLocalTree == NoLastLocalTree && f.LocalNumQuadrants == 0
	}
	var count int64
	for t := f.FirstLocalTree; t <= f.LastLocalTree; t++ {
		if !IsValidTree(f.Trees[t]) {
			return false
		}
		count += int64(len(f.Trees[t].Quadrants))
	}
	return count == f.LocalNumQuadrants
}

// IsBalanced reports whether every leaf of every local tree has, across
// every face and corner neighbor (within the tree or across a
// connectivity transform into a neighboring tree), no neighbor more
// than one level finer — the 2:1 balance invariant. Only meaningful to
// call after a full (non-local-only) Balance, since it checks
// inter-tree neighbors too.
func IsBalanced(f *Forest) bool {
	for t := f.FirstLocalTree; t >= 0 && t <= f.LastLocalTree; t++ {
		qs := f.Trees[t].Quadrants
		for _, q := range qs {
			for face := 0; face < 4; face++ {
				if !faceNeighborsWithinOneLevel(f, t, face, q) {
					return false
				}
			}
			for corner := 0; corner < 4; corner++ {
				if !cornerNeighborsWithinOneLevel(f, t, corner, q) {
					return false
				}
			}
		}
	}
	return true
}

// cornerNeighborsWithinOneLevel checks the diagonal neighbor across a
// quadrant's corner, whether it lies within the same tree or must be
// reached through a connectivity corner transform.
func cornerNeighborsWithinOneLevel(f *Forest, t, corner int, q Quadrant) bool {
	length := quadrantLen(q.Level)
	if !onCorner(q, corner, length) {
		nq, ok := neighborAcrossCorner(q, corner, length)
		if !ok {
			return true
		}
		finest := finestOverlapping(f.Trees[t], nq)
		return int(q.Level)-finest <= 1
	}
	for _, ct := range f.Connectivity.TransformCornerQuadrant(t, corner, q.Level) {
		if ct.Tree < f.FirstLocalTree || ct.Tree > f.LastLocalTree {
			continue // remote tree: checked by that rank's own IsBalanced
		}
		finest := finestOverlapping(f.Trees[ct.Tree], ct.Quad)
		if int(q.Level)-finest > 1 {
			return false
		}
	}
	return true
}

// neighborAcrossCorner returns the same-level, same-tree diagonal
// neighbor across corner c, or ok=false if q is at its tree's own
// extreme position on that diagonal (a cross-tree case).
func neighborAcrossCorner(q Quadrant, corner int, length uint32) (Quadrant, bool) {
	x, y := int64(q.X), int64(q.Y)
	if corner&1 != 0 {
		x += int64(length)
	} else {
		x -= int64(length)
	}
	if corner&2 != 0 {
		y += int64(length)
	} else {
		y -= int64(length)
	}
	if x < 0 || y < 0 || x+int64(length) > int64(RootLen) || y+int64(length) > int64(RootLen) {
		return Quadrant{}, false
	}
	return Quadrant{X: uint32(x), Y: uint32(y), Level: q.Level}, true
}

func faceNeighborsWithinOneLevel(f *Forest, t, face int, q Quadrant) bool {
	length := quadrantLen(q.Level)
	if !onFace(q, face, length) {
		nq, ok := neighborAcrossFace(q, face, length)
		if !ok {
			return true // same-tree interior face has no neighbor (shouldn't happen once onFace is false)
		}
		// Only a neighbor two or more levels coarser is a violation seen
		// from q: finer leaves inside nq need not touch q, and those that
		// do are checked from their own side.
		finest := finestOverlapping(f.Trees[t], nq)
		return int(q.Level)-finest <= 1
	}
	nt, nq, ok := f.Connectivity.TransformQuadrant(t, face, q)
	if !ok {
		return true // no neighbor across this face
	}
	if nt < f.FirstLocalTree || nt > f.LastLocalTree {
		return true // remote tree: checked by that rank's own IsBalanced
	}
	finest := finestOverlapping(f.Trees[nt], nq)
	return int(q.Level)-finest <= 1
}

// onFace reports whether q touches face f of its tree's root.
func onFace(q Quadrant, f int, length uint32) bool {
	switch f {
	case FaceWest:
		return q.X == 0
	case FaceEast:
		return q.X+length == RootLen
	case FaceSouth:
		return q.Y == 0
	default:
		return q.Y+length == RootLen
	}
}

// finestOverlapping returns the deepest level among t's leaves that
// overlaps anchor's footprint (anchor and every overlapping entry share
// an ancestor/descendant relationship by construction of a valid
// tiling). t.FirstDesc/LastDesc bound the tree's leaf range, so a probe
// entirely outside them is rejected without walking t.Quadrants at all
// — IsBalanced probes every leaf's face and corner neighbors this way.
func finestOverlapping(t *Tree, anchor Quadrant) int {
	qs := t.Quadrants
	if len(qs) == 0 {
		return -1
	}
	anchorFirst := FirstDescendant(anchor, MaxLevel)
	anchorLast := LastDescendant(anchor, MaxLevel)
	if Less(t.LastDesc, anchorFirst) || Less(anchorLast, t.FirstDesc) {
		return -1
	}
	best := -1
	for _, q := range qs {
		if q == anchor || IsAncestor(q, anchor) || IsAncestor(anchor, q) {
			if int(q.Level) > best {
				best = int(q.Level)
			}
		}
	}
	return best
}
