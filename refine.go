package forest

// RefineFn decides whether a leaf should be subdivided. It receives the
// leaf's current payload but must not mutate the forest; it is
// consulted purely as a predicate, mirroring original_source's
// p4est_refine_t contract ("the quadrant's level must not exceed a
// given maximum" is the caller's responsibility, not the callback's).
type RefineFn func(treeIdx int, q Quadrant, data []byte) bool

// InitFn initializes the payload of a newly created quadrant (a
// refine's child or a coarsen's parent). A nil InitFn leaves new
// payloads at their zero value.
type InitFn func(treeIdx int, q Quadrant) []byte

// Refine subdivides every leaf of every tree for which fn returns true,
// replacing it with its four children, down to maxLevel. If recursive
// is true, newly created children are re-offered to fn and may be
// subdivided again in the same call; if false, only the original
// leaves are ever tested. init assigns each new child's payload.
func Refine(trees []*Tree, fn RefineFn, init InitFn, maxLevel int8, recursive bool) {
	for ti, t := range trees {
		qs, ds := refineTree(ti, t.Quadrants, t.Data, fn, init, maxLevel, recursive)
		t.Quadrants = qs
		t.Data = ds
		t.rebuildHistogram()
	}
}

func refineTree(ti int, qs []Quadrant, ds [][]byte, fn RefineFn, init InitFn, maxLevel int8, recursive bool) ([]Quadrant, [][]byte) {
	outQ := make([]Quadrant, 0, len(qs))
	outD := make([][]byte, 0, len(qs))
	for i, q := range qs {
		rq, rd := refineOne(ti, q, ds[i], fn, init, maxLevel, recursive)
		outQ = append(outQ, rq...)
		outD = append(outD, rd...)
	}
	return outQ, outD
}

func refineOne(ti int, q Quadrant, data []byte, fn RefineFn, init InitFn, maxLevel int8, recursive bool) ([]Quadrant, [][]byte) {
	if q.Level >= maxLevel || !fn(ti, q, data) {
		return []Quadrant{q}, [][]byte{data}
	}
	var outQ []Quadrant
	var outD [][]byte
	for c := 0; c < Children; c++ {
		child := Child(q, c)
		childData := initData(init, ti, child)
		if recursive {
			rq, rd := refineOne(ti, child, childData, fn, init, maxLevel, recursive)
			outQ = append(outQ, rq...)
			outD = append(outD, rd...)
		} else {
			outQ = append(outQ, child)
			outD = append(outD, childData)
		}
	}
	return outQ, outD
}

func initData(init InitFn, ti int, q Quadrant) []byte {
	if init == nil {
		return []byte{}
	}
	return init(ti, q)
}
