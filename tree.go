package forest

// Tree is the sorted leaf array for one root tree: the fine-grained
// partition of that tree's extent into non-overlapping quadrants,
// ordered by the Morton total order. Mirrors original_source's
// p4est_tree_t, minus the geometric bounding-box fields spec.md's
// non-goals exclude.
type Tree struct {
	Quadrants []Quadrant

	// Data holds one payload slice per entry of Quadrants, same length
	// and order at all times. A quadrant's data_size may be zero, in
	// which case its slot is a non-nil zero-length slice rather than
	// being omitted — see payload.go's null-handle convention.
	Data [][]byte

	// DataSize is the forest-wide per-leaf payload size in bytes.
	DataSize int

	// QuadrantsPerLevel[l] is the count of quadrants at level l,
	// maintained incrementally; index RootLevel is unused (cell data
	// never lives at the coordinate-only sentinel level).
	QuadrantsPerLevel [RootLevel + 1]int

	// MaxLevel is the deepest level with at least one quadrant, or -1
	// for an empty tree.
	MaxLevel int8

	// FirstDesc/LastDesc are the finest (level MaxLevel) descendants of
	// Quadrants[0] and Quadrants[len-1] respectively: the extreme cells
	// bounding this tree's local leaf range. IsBalanced's neighbor probe
	// (finestOverlapping) uses them to reject a candidate neighbor that
	// falls outside the range without walking Quadrants, and migration's merge keeps them
	// current through every arrival (see updateDesc).
	FirstDesc Quadrant
	LastDesc  Quadrant
}

// NewTree returns a tree holding a single level-0 quadrant spanning the
// whole root extent, with a freshly allocated zero payload.
func NewTree(dataSize int) *Tree {
	t := &Tree{
		Quadrants: []Quadrant{{X: 0, Y: 0, Level: 0}},
		Data:      [][]byte{NewPayload(dataSize)},
		DataSize:  dataSize,
	}
	t.rebuildHistogram()
	return t
}

// EmptyTree returns a tree with no quadrants at all: the placeholder New
// puts in every tree slot outside this rank's local window, and a
// starting point for building a tree up through Insert.
func EmptyTree(dataSize int) *Tree {
	t := &Tree{DataSize: dataSize}
	t.rebuildHistogram()
	return t
}

// rebuildHistogram recomputes QuadrantsPerLevel, MaxLevel and
// FirstDesc/LastDesc from Quadrants. Called after any bulk mutation
// (refine, coarsen, balance, migration receive) rather than maintained
// incrementally through every internal helper, matching the teacher's
// rebuild-after-batch pattern in NextGen rather than fine-grained
// bookkeeping on every append.
func (t *Tree) rebuildHistogram() {
	for l := range t.QuadrantsPerLevel {
		t.QuadrantsPerLevel[l] = 0
	}
	t.MaxLevel = -1
	for _, q := range t.Quadrants {
		t.QuadrantsPerLevel[q.Level]++
		if q.Level > t.MaxLevel {
			t.MaxLevel = q.Level
		}
	}
	t.updateDesc()
}

// updateDesc recomputes FirstDesc/LastDesc from the current sorted
// Quadrants slice, or zero values on an empty tree (a transient
// mid-rebuild state; callers must not read them until the tree is
// non-empty again).
func (t *Tree) updateDesc() {
	if len(t.Quadrants) == 0 {
		t.FirstDesc, t.LastDesc = Quadrant{}, Quadrant{}
		return
	}
	t.FirstDesc = FirstDescendant(t.Quadrants[0], MaxLevel)
	t.LastDesc = LastDescendant(t.Quadrants[len(t.Quadrants)-1], MaxLevel)
}

// IsSorted reports whether Quadrants is strictly ascending in Morton
// order, with no duplicates — the invariant every mutating operation
// must restore before returning.
func (t *Tree) IsSorted() bool {
	for i := 1; i < len(t.Quadrants); i++ {
		if !Less(t.Quadrants[i-1], t.Quadrants[i]) {
			return false
		}
	}
	return true
}

// IsTiling reports whether Quadrants exactly partitions the tree's root
// extent, checked recursively: a sorted run tiles a cell if it is
// exactly that one cell, or if it splits via SplitArray into four
// nonempty buckets that each tile the corresponding child. This avoids
// any need to pack a full RootLevel-resolution Morton index (which does
// not fit in a uint64, see LinearID).
func (t *Tree) IsTiling() bool {
	if len(t.Quadrants) == 0 {
		return false
	}
	return tiles(t.Quadrants, Quadrant{Level: 0})
}

func tiles(qs []Quadrant, cell Quadrant) bool {
	if len(qs) == 1 {
		return qs[0] == cell
	}
	if cell.Level >= RootLevel || qs[0].Level <= cell.Level {
		return false
	}
	offsets := SplitArray(qs, cell.Level)
	for c := 0; c < Children; c++ {
		bucket := qs[offsets[c]:offsets[c+1]]
		if len(bucket) == 0 {
			return false
		}
		if !tiles(bucket, Child(cell, c)) {
			return false
		}
	}
	return true
}

// Insert adds q with the given payload into the sorted slice, preserving
// order. It does not check for overlap with existing quadrants; callers
// (refine/coarsen/migration) are responsible for only inserting
// quadrants that restore a valid tiling.
func (t *Tree) Insert(q Quadrant, payload []byte) {
	idx := LowerBound(t.Quadrants, q, -1)
	t.Quadrants = append(t.Quadrants, Quadrant{})
	copy(t.Quadrants[idx+1:], t.Quadrants[idx:])
	t.Quadrants[idx] = q
	t.Data = append(t.Data, nil)
	copy(t.Data[idx+1:], t.Data[idx:])
	t.Data[idx] = payload
	t.QuadrantsPerLevel[q.Level]++
	if q.Level > t.MaxLevel {
		t.MaxLevel = q.Level
	}
	t.updateDesc()
}

// Replace swaps the quadrants and payloads in [start,end) for
// replacementQ/replacementD, keeping the slice sorted (the replacement
// must itself be sorted and fit exactly between Quadrants[start-1] and
// Quadrants[end], which refine/coarsen guarantee by construction).
// Rebuilds the histogram afterward.
func (t *Tree) Replace(start, end int, replacementQ []Quadrant, replacementD [][]byte) {
	tailQ := append([]Quadrant{}, t.Quadrants[end:]...)
	tailD := append([][]byte{}, t.Data[end:]...)
	t.Quadrants = append(t.Quadrants[:start], replacementQ...)
	t.Quadrants = append(t.Quadrants, tailQ...)
	t.Data = append(t.Data[:start], replacementD...)
	t.Data = append(t.Data, tailD...)
	t.rebuildHistogram()
}
