package forest

import "fmt"

// Face indices around a tree's root, in right-hand-rule order.
const (
	FaceWest = iota
	FaceEast
	FaceSouth
	FaceNorth
)

// Corner indices, matching the quadrant child-index convention:
// 0=(-,-), 1=(+,-), 2=(-,+), 3=(+,+).
const (
	CornerSW = iota
	CornerSE
	CornerNW
	CornerNE
)

// Connectivity is the immutable fixed adjacency graph of root trees. It is
// read-only after construction and may be shared by multiple forests.
//
// TreeToTree[t][f] / TreeToFace[t][f] describe the face neighbor of tree t
// across face f: a self-loop (TreeToTree[t][f]==t && TreeToFace[t][f]==f)
// means face f has no neighbor. TreeToFace values are 0..3 for matching
// orientation, 4..7 for reversed orientation (face-code mod 4 is the
// neighbor's face index, face-code/4 is the orientation bit).
//
// The corner CSR (VttOffset/VertexToTree/VertexToVertex) follows
// original_source/src/p4est_connectivity.h exactly: for vertex v, entries
// [VttOffset[v], VttOffset[v+1]) of VertexToTree/VertexToVertex list every
// (tree, corner) pair incident to v.
type Connectivity struct {
	NumTrees    int
	NumVertices int

	TreeToVertex [][4]int
	TreeToTree   [][4]int
	TreeToFace   [][4]int8

	VttOffset      []int
	VertexToTree   []int
	VertexToVertex []int
}

// NewConnectivity allocates a connectivity for the given tree and vertex
// counts, with every face defaulted to a self-loop (no neighbor) and an
// empty corner CSR. Callers fill in TreeToTree/TreeToFace/TreeToVertex and
// the CSR arrays before use.
func NewConnectivity(numTrees, numVertices int) *Connectivity {
	c := &Connectivity{
		NumTrees:     numTrees,
		NumVertices:  numVertices,
		TreeToVertex: make([][4]int, numTrees),
		TreeToTree:   make([][4]int, numTrees),
		TreeToFace:   make([][4]int8, numTrees),
		VttOffset:    make([]int, numVertices+1),
	}
	for t := 0; t < numTrees; t++ {
		for f := 0; f < 4; f++ {
			c.TreeToTree[t][f] = t
			c.TreeToFace[t][f] = int8(f)
		}
	}
	return c
}

// cornerFaces returns the two faces of a tree's root incident to a corner.
func cornerFaces(corner int) (faceX, faceY int) {
	if corner&1 == 0 {
		faceX = FaceWest
	} else {
		faceX = FaceEast
	}
	if corner&2 == 0 {
		faceY = FaceSouth
	} else {
		faceY = FaceNorth
	}
	return
}

// FindFaceTransform returns the transform index (0..7) for face f of tree
// itree, or -1 if that face has no neighbor.
func (c *Connectivity) FindFaceTransform(itree, f int) int {
	nt := c.TreeToTree[itree][f]
	nf := c.TreeToFace[itree][f]
	if nt == itree && int(nf) == f {
		return -1
	}
	orientation := int(nf) / 4
	if orientation == 0 {
		return int(transformIdentity)
	}
	return int(transformFlipTangential)
}

// CornerInfo describes one neighbor of a tree's corner.
type CornerInfo struct {
	Tree   int
	Corner int
}

// FindCornerInfo enumerates the neighbors of corner c of tree itree via
// the vertex CSR, excluding neighbors already discoverable as a face
// neighbor of one of the two faces incident to c.
func (c *Connectivity) FindCornerInfo(itree, corner int) []CornerInfo {
	v := c.TreeToVertex[itree][corner]
	faceX, faceY := cornerFaces(corner)
	excludeX, excludeOkX := c.faceNeighborTree(itree, faceX)
	excludeY, excludeOkY := c.faceNeighborTree(itree, faceY)

	var out []CornerInfo
	for pos := c.VttOffset[v]; pos < c.VttOffset[v+1]; pos++ {
		nt := c.VertexToTree[pos]
		nc := c.VertexToVertex[pos]
		if nt == itree && nc == corner {
			continue
		}
		if excludeOkX && nt == excludeX {
			continue
		}
		if excludeOkY && nt == excludeY {
			continue
		}
		out = append(out, CornerInfo{Tree: nt, Corner: nc})
	}
	return out
}

func (c *Connectivity) faceNeighborTree(itree, f int) (int, bool) {
	nt := c.TreeToTree[itree][f]
	nf := c.TreeToFace[itree][f]
	if nt == itree && int(nf) == f {
		return 0, false
	}
	return nt, true
}

// TransformQuadrant maps a quadrant q of tree itree that touches face f
// into the coordinate frame of the neighbor tree across that face,
// anchored at depth zero from the neighbor's corresponding face. Returns
// ok=false if face f has no neighbor.
func (c *Connectivity) TransformQuadrant(itree, f int, q Quadrant) (nbrTree int, nbrQuad Quadrant, ok bool) {
	nt := c.TreeToTree[itree][f]
	nfCode := c.TreeToFace[itree][f]
	if nt == itree && int(nfCode) == f {
		return 0, Quadrant{}, false
	}
	nf := int(nfCode) % 4
	orientation := int(nfCode) / 4

	length := quadrantLen(q.Level)
	tangential := faceTangential(q, f)
	if orientation != 0 {
		tangential = RootLen - tangential - length
	}
	return nt, faceAnchor(nf, tangential, length, q.Level), true
}

// faceTangential returns the coordinate of q that varies along face f.
func faceTangential(q Quadrant, f int) uint32 {
	switch f {
	case FaceWest, FaceEast:
		return q.Y
	default:
		return q.X
	}
}

// faceAnchor places a quadrant of the given level at depth zero from face
// f, with the given tangential coordinate.
func faceAnchor(f int, tangential, length uint32, level int8) Quadrant {
	switch f {
	case FaceWest:
		return Quadrant{X: 0, Y: tangential, Level: level}
	case FaceEast:
		return Quadrant{X: RootLen - length, Y: tangential, Level: level}
	case FaceSouth:
		return Quadrant{X: tangential, Y: 0, Level: level}
	default:
		return Quadrant{X: tangential, Y: RootLen - length, Level: level}
	}
}

// CornerTransform is one neighbor's view of a corner-anchored quadrant,
// returned by TransformCornerQuadrant.
type CornerTransform struct {
	Tree int
	Quad Quadrant
}

// TransformCornerQuadrant maps a same-level corner-anchored quadrant
// into the frame of every tree sharing corner `corner` of tree itree
// (as enumerated by FindCornerInfo), anchoring it at the matching
// corner in each neighbor — the corner-only counterpart of
// TransformQuadrant, needed because two trees can share nothing but a
// single vertex (no common face), e.g. a "pinwheel" corner junction.
func (c *Connectivity) TransformCornerQuadrant(itree, corner int, level int8) []CornerTransform {
	infos := c.FindCornerInfo(itree, corner)
	length := quadrantLen(level)
	out := make([]CornerTransform, 0, len(infos))
	for _, info := range infos {
		out = append(out, CornerTransform{Tree: info.Tree, Quad: cornerAnchor(info.Corner, length, level)})
	}
	return out
}

// onCorner reports whether q occupies the extreme position of corner
// `corner` of its tree's root.
func onCorner(q Quadrant, corner int, length uint32) bool {
	xOk := q.X == 0
	if corner&1 != 0 {
		xOk = q.X+length == RootLen
	}
	yOk := q.Y == 0
	if corner&2 != 0 {
		yOk = q.Y+length == RootLen
	}
	return xOk && yOk
}

// cornerAnchor places a quadrant of the given level and length at the
// extreme position of root corner `corner`.
func cornerAnchor(corner int, length uint32, level int8) Quadrant {
	x, y := uint32(0), uint32(0)
	if corner&1 != 0 {
		x = RootLen - length
	}
	if corner&2 != 0 {
		y = RootLen - length
	}
	return Quadrant{X: x, Y: y, Level: level}
}

// IsValid checks bidirectionality of face and corner links and that every
// listed vertex-tree pair references the corner whose vertex it is.
func (c *Connectivity) IsValid() bool {
	if c.NumTrees < 0 || c.NumVertices < 0 {
		return false
	}
	for t := 0; t < c.NumTrees; t++ {
		for f := 0; f < 4; f++ {
			nt := c.TreeToTree[t][f]
			nfCode := c.TreeToFace[t][f]
			if nt < 0 || nt >= c.NumTrees {
				return false
			}
			if nt == t && int(nfCode) == f {
				continue // self-loop: no neighbor
			}
			nf := int(nfCode) % 4
			orientation := int(nfCode) / 4
			if orientation != 0 && orientation != 1 {
				return false
			}
			// Bidirectional: neighbor's view of (nf) must point back to (t,f).
			backTree := c.TreeToTree[nt][nf]
			backFaceCode := c.TreeToFace[nt][nf]
			if backTree != t || int(backFaceCode)%4 != f {
				return false
			}
			if int(backFaceCode)/4 != orientation {
				return false
			}
		}
	}
	if len(c.VttOffset) != c.NumVertices+1 {
		return false
	}
	for v := 0; v < c.NumVertices; v++ {
		if c.VttOffset[v] > c.VttOffset[v+1] {
			return false
		}
	}
	n := c.VttOffset[c.NumVertices]
	if len(c.VertexToTree) != n || len(c.VertexToVertex) != n {
		return false
	}
	for v := 0; v < c.NumVertices; v++ {
		for pos := c.VttOffset[v]; pos < c.VttOffset[v+1]; pos++ {
			nt := c.VertexToTree[pos]
			nc := c.VertexToVertex[pos]
			if nt < 0 || nt >= c.NumTrees || nc < 0 || nc >= 4 {
				return false
			}
			if c.TreeToVertex[nt][nc] != v {
				return false
			}
		}
	}
	return true
}

func mustValidConnectivity(c *Connectivity) {
	if !c.IsValid() {
		panic(fmt.Sprintf("forest: invalid connectivity"))
	}
}
