package forest

// NewUnitSquare returns the trivial single-tree connectivity: one tree,
// every face a boundary (no neighbor), four distinct corners.
func NewUnitSquare() *Connectivity {
	c := NewConnectivity(1, 4)
	c.TreeToVertex[0] = [4]int{0, 1, 2, 3}
	buildVertexCSR(c, [][4]int{{0, 1, 2, 3}})
	return c
}

// NewCorner returns three trees sharing a single common corner vertex,
// each tree otherwise independent (no face neighbors), modeling a
// non-manifold corner junction. Tree t occupies corner slot t (CornerSW
// for tree 0, CornerSE for tree 1, CornerNW for tree 2) at the shared vertex 0; every tree's
// other three corners get distinct private vertices.
func NewCorner() *Connectivity {
	c := NewConnectivity(3, 1+3*3)
	nextVertex := 1
	for t := 0; t < 3; t++ {
		var tv [4]int
		shared := t % 4
		for corner := 0; corner < 4; corner++ {
			if corner == shared {
				tv[corner] = 0
			} else {
				tv[corner] = nextVertex
				nextVertex++
			}
		}
		c.TreeToVertex[t] = tv
	}
	var incidences [][4]int
	for t := 0; t < 3; t++ {
		incidences = append(incidences, c.TreeToVertex[t])
	}
	buildVertexCSR(c, incidences)
	return c
}

// NewMoebius returns a band of 5 trees glued edge to edge around a
// loop, with the final seam reversed in orientation (tree 4's east
// face glues back to tree 0's west face with orientation 1), giving
// the band its twist.
func NewMoebius() *Connectivity {
	const n = 5
	c := NewConnectivity(n, 4*n)
	for t := 0; t < n; t++ {
		c.TreeToVertex[t] = [4]int{4 * t, 4*t + 1, 4*t + 2, 4*t + 3}
	}
	for t := 0; t < n; t++ {
		next := (t + 1) % n
		orientation := int8(0)
		if next == 0 {
			orientation = 1 // the seam that closes the band is twisted
		}
		linkFaces(c, t, FaceEast, next, FaceWest, orientation)
	}
	var incidences [][4]int
	for t := 0; t < n; t++ {
		incidences = append(incidences, c.TreeToVertex[t])
	}
	buildVertexCSR(c, incidences)
	return c
}

// NewStar returns 6 trees arranged around one shared central vertex
// (corner NE of each tree), each also face-connected to its two
// neighbors in the ring on its east/west faces — a "pie slice" star.
func NewStar() *Connectivity {
	const n = 6
	c := NewConnectivity(n, 1+3*n)
	nextVertex := 1
	for t := 0; t < n; t++ {
		var tv [4]int
		for corner := 0; corner < 4; corner++ {
			if corner == CornerNE {
				tv[corner] = 0
			} else {
				tv[corner] = nextVertex
				nextVertex++
			}
		}
		c.TreeToVertex[t] = tv
	}
	for t := 0; t < n; t++ {
		linkFaces(c, t, FaceEast, (t+1)%n, FaceWest, 0)
	}
	var incidences [][4]int
	for t := 0; t < n; t++ {
		incidences = append(incidences, c.TreeToVertex[t])
	}
	buildVertexCSR(c, incidences)
	return c
}

// NewPeriodic returns a single tree whose opposite faces are identified
// with each other (both axes periodic), the fully periodic unit
// square.
func NewPeriodic() *Connectivity {
	c := NewConnectivity(1, 4)
	c.TreeToVertex[0] = [4]int{0, 1, 2, 3}
	linkFaces(c, 0, FaceWest, 0, FaceEast, 0)
	linkFaces(c, 0, FaceSouth, 0, FaceNorth, 0)
	buildVertexCSR(c, [][4]int{{0, 1, 2, 3}})
	return c
}

// linkFaces sets tree a's face fa to point at tree b's face fb (and the
// reverse link), with the given orientation.
func linkFaces(c *Connectivity, a, fa, b, fb int, orientation int8) {
	c.TreeToTree[a][fa] = b
	c.TreeToFace[a][fa] = int8(fb) + 4*orientation
	c.TreeToTree[b][fb] = a
	c.TreeToFace[b][fb] = int8(fa) + 4*orientation
}

// buildVertexCSR derives the VttOffset/VertexToTree/VertexToVertex
// arrays from each tree's TreeToVertex row.
func buildVertexCSR(c *Connectivity, treeToVertex [][4]int) {
	counts := make([]int, c.NumVertices)
	for _, tv := range treeToVertex {
		for _, v := range tv {
			counts[v]++
		}
	}
	c.VttOffset[0] = 0
	for v := 0; v < c.NumVertices; v++ {
		c.VttOffset[v+1] = c.VttOffset[v] + counts[v]
	}
	fill := append([]int{}, c.VttOffset...)
	n := c.VttOffset[c.NumVertices]
	c.VertexToTree = make([]int, n)
	c.VertexToVertex = make([]int, n)
	for t, tv := range treeToVertex {
		for corner, v := range tv {
			pos := fill[v]
			c.VertexToTree[pos] = t
			c.VertexToVertex[pos] = corner
			fill[v]++
		}
	}
}
