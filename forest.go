package forest

import "github.com/noctilu/forest/comm"

// Position anchors a rank's first local quadrant within the global
// Morton-ordered sequence: which tree it belongs to and its coordinate
// within that tree. Mirrors p4est_t's global_first_position array
// (see Forest.GlobalFirstPosition); migration and partition neither
// read nor write it.
type Position struct {
	Tree int
	Quad Quadrant
}

// Forest is one rank's local view of a distributed forest: a fixed
// Connectivity shared read-only by every rank, the subrange of trees
// this rank owns, and the bookkeeping p4est_t carries to avoid global
// recomputation (local/global quadrant counts, this rank's slice of
// the global Morton order).
type Forest struct {
	Connectivity *Connectivity
	Comm         comm.Comm
	DataSize     int

	// UserPtr is caller-owned bookkeeping attached at creation, mirroring
	// p4est_t's user_pointer; the forest never reads or mutates it.
	UserPtr interface{}

	// Trees holds an entry for every tree in Connectivity; only
	// [FirstLocalTree, LastLocalTree] are populated with quadrants on
	// this rank (others are empty placeholders), matching p4est_t's
	// convention of a full-length tree array with only the local
	// window materialized.
	Trees []*Tree

	// FirstLocalTree/LastLocalTree are -1/-2 (sentinels matching
	// original_source) when this rank owns no trees at all.
	FirstLocalTree int
	LastLocalTree  int

	LocalNumQuadrants  int64
	GlobalNumQuadrants int64

	// GlobalFirstPosition[r] is rank r's first local quadrant position;
	// GlobalFirstPosition[Comm.Size()] is one-past-the-end, matching
	// p4est_t's (size+1)-length sentinel array. Neither New nor
	// Partition fills it: it stays nil unless the caller sets it, and
	// Copy copies it as it is.
	GlobalFirstPosition []Position
}

// NoFirstLocalTree/NoLastLocalTree are the sentinels used for FirstLocalTree/LastLocalTree
// when a rank owns no trees (original_source's -1 and -2 respectively).
const (
	NoFirstLocalTree = -1
	NoLastLocalTree  = -2
)

// New builds a forest over conn, distributed evenly across c's ranks by
// tree index (a uniform initial partition; Partition is used later for
// weighted redistribution). Every owned tree starts as a single level-0
// root, initialized via init, then is uniformly refined until the
// forest holds at least minQuadrants leaves per rank — original_source's
// p4est_new contract ("minimum initial number of quadrants per
// processor"). The target level is computed analytically (the smallest
// L with conn.NumTrees*4^L >= minQuadrants*size) rather than by
// refining one level at a time and polling a collective count, since
// every rank already knows conn.NumTrees and c.Size() without needing
// one. dataSize is the fixed per-leaf payload size; userPtr is stored
// on the forest for the caller's own bookkeeping (see Forest.UserPtr)
// and is available before init is ever called, matching
// p4est_new's "assign user_pointer before init_fn is called the first
// time".
func New(conn *Connectivity, c comm.Comm, dataSize int, minQuadrants int64, init InitFn, userPtr interface{}) *Forest {
	mustValidConnectivity(conn)
	f := &Forest{
		Connectivity: conn,
		Comm:         c,
		DataSize:     dataSize,
		UserPtr:      userPtr,
		Trees:        make([]*Tree, conn.NumTrees),
	}
	for i := range f.Trees {
		f.Trees[i] = EmptyTree(dataSize)
	}

	rank, size := c.Rank(), c.Size()
	if conn.NumTrees == 0 {
		f.FirstLocalTree, f.LastLocalTree = NoFirstLocalTree, NoLastLocalTree
		return f
	}
	level := uniformRefineLevel(conn.NumTrees, minQuadrants, size)
	first, last := treeRangeForRank(conn.NumTrees, size, rank)
	if first > last {
		f.FirstLocalTree, f.LastLocalTree = NoFirstLocalTree, NoLastLocalTree
	} else {
		f.FirstLocalTree, f.LastLocalTree = first, last
		for t := first; t <= last; t++ {
			ti := t
			treeInit := func(_ int, q Quadrant) []byte {
				if init == nil {
					return NewPayload(dataSize)
				}
				return init(ti, q)
			}
			root := Quadrant{X: 0, Y: 0, Level: 0}
			tr := &Tree{
				Quadrants: []Quadrant{root},
				Data:      [][]byte{treeInit(t, root)},
				DataSize:  dataSize,
			}
			tr.rebuildHistogram()
			f.Trees[t] = tr
			if level > 0 {
				Refine([]*Tree{tr}, alwaysRefine, treeInit, level, true)
			}
		}
	}
	f.recomputeCounts()
	return f
}

func alwaysRefine(int, Quadrant, []byte) bool { return true }

// uniformRefineLevel returns the smallest level L such that
// numTrees*4^L >= minQuadrants*size, capped at MaxLevel. minQuadrants
// <= 0 means "no minimum", i.e. level 0.
func uniformRefineLevel(numTrees int, minQuadrants int64, size int) int8 {
	if minQuadrants <= 0 {
		return 0
	}
	target := minQuadrants * int64(size)
	count := int64(numTrees)
	var level int8
	for count < target && level < MaxLevel {
		count *= 4
		level++
	}
	return level
}

// treeRangeForRank splits numTrees as evenly as possible across size
// ranks by tree index, the same "divide the index space, remainder to
// the low ranks" scheme Partition generalizes to weighted quadrants.
func treeRangeForRank(numTrees, size, rank int) (first, last int) {
	base := numTrees / size
	rem := numTrees % size
	if rank < rem {
		first = rank * (base + 1)
		last = first + base
	} else {
		first = rem*(base+1) + (rank-rem)*base
		last = first + base - 1
	}
	return
}

func (f *Forest) recomputeCounts() {
	var local int64
	if f.FirstLocalTree >= 0 {
		for t := f.FirstLocalTree; t <= f.LastLocalTree; t++ {
			local += int64(len(f.Trees[t].Quadrants))
		}
	}
	f.LocalNumQuadrants = local
}

// Copy returns a deep copy of f sharing the same Connectivity (which is
// immutable) and Comm (a live communicator is never duplicated). When
// copyPayloads is false the clone's payloads are dropped and its
// DataSize becomes 0, matching original_source's p4est_copy ("If false,
// data_size is set to 0") — useful when the caller wants an independent
// copy of the geometry alone, e.g. as a scratch forest for a trial
// refine/balance pass it intends to discard.
func (f *Forest) Copy(copyPayloads bool) *Forest {
	dataSize := f.DataSize
	if !copyPayloads {
		dataSize = 0
	}
	out := &Forest{
		Connectivity:   f.Connectivity,
		Comm:           f.Comm,
		DataSize:       dataSize,
		UserPtr:        f.UserPtr,
		Trees:          make([]*Tree, len(f.Trees)),
		FirstLocalTree: f.FirstLocalTree,
		LastLocalTree:  f.LastLocalTree,
	}
	for i, t := range f.Trees {
		nt := &Tree{
			Quadrants:         append([]Quadrant{}, t.Quadrants...),
			Data:              make([][]byte, len(t.Data)),
			DataSize:          dataSize,
			QuadrantsPerLevel: t.QuadrantsPerLevel,
			MaxLevel:          t.MaxLevel,
		}
		for j, d := range t.Data {
			if copyPayloads {
				nt.Data[j] = append([]byte{}, d...)
			} else {
				nt.Data[j] = NewPayload(0)
			}
		}
		nt.updateDesc()
		out.Trees[i] = nt
	}
	out.recomputeCounts()
	out.GlobalNumQuadrants = f.GlobalNumQuadrants
	out.GlobalFirstPosition = append([]Position{}, f.GlobalFirstPosition...)
	return out
}

// LocalTrees returns the slice of this rank's owned trees (possibly
// empty), in tree-index order.
func (f *Forest) LocalTrees() []*Tree {
	if f.FirstLocalTree < 0 {
		return nil
	}
	return f.Trees[f.FirstLocalTree : f.LastLocalTree+1]
}
