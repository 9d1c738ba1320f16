package forest

import (
	"context"
	"encoding/binary"
	"math/big"

	"github.com/noctilu/forest/comm"
	"github.com/noctilu/forest/telemetry"
)

// WeightFn assigns a positive weight to a leaf for load balancing. A
// nil WeightFn is treated as uniform weight 1 per quadrant (the "equal
// quadrant count" partition), matching original_source's
// p4est_weight_t default.
type WeightFn func(treeIdx int, q Quadrant, data []byte) int64

// Partition redistributes quadrants across ranks so that each rank's
// share of the cumulative weight is as close as possible to 1/size of
// the global total, preserving global Morton order across rank
// boundaries (rank r's quadrants remain exactly those whose cumulative
// weight falls in [idealBoundary(r), idealBoundary(r+1))). Boundaries
// are computed with exact integer division (via math/big, so a large
// total weight never loses precision the way a naive float64
// multiply-then-divide would) — for uniform weights this reduces to
// cutting the sequence into the most even possible integer counts,
// spec.md's "exact-integer tie-break" requirement.
func Partition(ctx context.Context, f *Forest, weight WeightFn) error {
	if weight == nil {
		weight = func(int, Quadrant, []byte) int64 { return 1 }
	}
	ctx, end := telemetry.StartCollective(ctx, "forest.Partition", f.Comm.Rank(), f.Comm.Size())
	defer end()

	type item struct {
		tree   int
		idx    int
		weight int64
	}
	var items []item
	var localSum int64
	for t := f.FirstLocalTree; t >= 0 && t <= f.LastLocalTree; t++ {
		tr := f.Trees[t]
		for i, q := range tr.Quadrants {
			w := weight(t, q, tr.Data[i])
			if w <= 0 {
				w = 1
			}
			if localSum > maxInt64-w {
				return ErrWeightOverflow
			}
			localSum += w
			items = append(items, item{tree: t, idx: i, weight: w})
		}
	}

	inclusive, err := f.Comm.Scan(ctx, localSum, comm.OpSum)
	if err != nil {
		return ErrTransport
	}
	total, err := f.Comm.AllReduce(ctx, localSum, comm.OpSum)
	if err != nil {
		return ErrTransport
	}
	if total < 0 {
		return ErrWeightOverflow
	}
	offset := inclusive - localSum

	size := f.Comm.Size()
	if total > maxInt64/int64(size) {
		return ErrWeightOverflow
	}
	boundary := make([]int64, size+1)
	for r := 0; r <= size; r++ {
		boundary[r] = idealBoundary(total, r, size)
	}

	newOwnerOf := func(globalStart int64) int {
		lo, hi := 0, size
		for lo < hi {
			mid := lo + (hi-lo)/2
			if boundary[mid+1] <= globalStart {
				lo = mid + 1
			} else {
				hi = mid
			}
		}
		return lo
	}

	outgoing := make(map[int][]treeGroup)
	var running int64 = offset
	me := f.Comm.Rank()
	groupBuf := map[int]*treeGroup{} // tree -> in-progress group for the current destination
	curDest := -1

	flush := func() {
		if curDest == -1 {
			return
		}
		for _, g := range groupBuf {
			if len(g.quads) > 0 {
				outgoing[curDest] = append(outgoing[curDest], *g)
			}
		}
		groupBuf = map[int]*treeGroup{}
	}

	for _, it := range items {
		dest := newOwnerOf(running)
		if dest != curDest {
			flush()
			curDest = dest
		}
		g, ok := groupBuf[it.tree]
		if !ok {
			g = &treeGroup{tree: it.tree}
			groupBuf[it.tree] = g
		}
		tr := f.Trees[it.tree]
		g.quads = append(g.quads, tr.Quadrants[it.idx])
		g.data = append(g.data, tr.Data[it.idx])
		running += it.weight
	}
	flush()

	// Sizes exchange: tell every rank how many groups/quadrants every
	// other rank is sending it, so each rank knows exactly which
	// sources to Recv from and in what order (migrate's incomingFrom).
	row := make([]byte, 4*size)
	for r := 0; r < size; r++ {
		count := 0
		for _, g := range outgoing[r] {
			count += len(g.quads)
		}
		binary.BigEndian.PutUint32(row[r*4:r*4+4], uint32(count))
	}
	parts, err := f.Comm.AllGather(ctx, row)
	if err != nil {
		return ErrTransport
	}
	var incomingFrom []int
	var shipOut int
	for _, groups := range outgoing {
		for _, g := range groups {
			shipOut += len(g.quads)
		}
	}
	for src, part := range parts {
		cnt := binary.BigEndian.Uint32(part[me*4 : me*4+4])
		if cnt > 0 {
			incomingFrom = append(incomingFrom, src)
		}
	}
	defaultLogger.withFields(map[string]interface{}{
		"rank": me, "quadrants_out": shipOut, "dests": len(outgoing), "sources": len(incomingFrom),
	}).Info("partition shipment sizes")

	// Remove every shipped quadrant locally before merging arrivals in,
	// the self-shipment outgoing[me] included: migrate merges that one
	// back into this rank's trees along with the arrivals.
	toRemove := map[int]map[int]bool{}
	for _, groups := range outgoing {
		for _, g := range groups {
			if toRemove[g.tree] == nil {
				toRemove[g.tree] = map[int]bool{}
			}
			for _, q := range g.quads {
				toRemove[g.tree][encodeQuadrantKey(q)] = true
			}
		}
	}
	for t := f.FirstLocalTree; t >= 0 && t <= f.LastLocalTree; t++ {
		tr := f.Trees[t]
		removed := toRemove[t]
		if len(removed) == 0 {
			continue
		}
		var nq []Quadrant
		var nd [][]byte
		for i, q := range tr.Quadrants {
			if removed[encodeQuadrantKey(q)] {
				continue
			}
			nq = append(nq, q)
			nd = append(nd, tr.Data[i])
		}
		tr.Quadrants = nq
		tr.Data = nd
		tr.rebuildHistogram()
	}

	if err := migrate(ctx, f, outgoing, incomingFrom); err != nil {
		return err
	}

	f.FirstLocalTree, f.LastLocalTree = NoFirstLocalTree, NoLastLocalTree
	for t, tr := range f.Trees {
		if len(tr.Quadrants) == 0 {
			continue
		}
		if f.FirstLocalTree == NoFirstLocalTree {
			f.FirstLocalTree = t
		}
		f.LastLocalTree = t
	}
	f.recomputeCounts()
	f.GlobalNumQuadrants = total
	return nil
}

const maxInt64 = 1<<63 - 1

func idealBoundary(total int64, r, size int) int64 {
	bt := new(big.Int).Mul(big.NewInt(total), big.NewInt(int64(r)))
	bt.Div(bt, big.NewInt(int64(size)))
	return bt.Int64()
}

// encodeQuadrantKey gives Quadrant a comparable map key without
// exporting one from quadrant.go (Quadrant is already comparable via
// ==, but map[Quadrant]bool would also work; this keeps the key type a
// plain int built from LinearIDSafe).
func encodeQuadrantKey(q Quadrant) int {
	return int(LinearIDSafe(q))
}

// LinearIDSafe returns LinearID(q) when defined, or a level-qualified
// fallback hash for RootLevel-only bookkeeping quadrants, so internal
// map-keying code never has to special-case the sentinel level.
func LinearIDSafe(q Quadrant) uint64 {
	if q.Level <= MaxLevel {
		return LinearID(q)
	}
	return interleaveBits(q.X, q.Y, 16) // coarse fallback, only used for identity-keying, never for ordering
}
