package forest

// CoarsenFn decides whether a complete family of four siblings should
// be merged into their parent, given each sibling's payload. Called
// only on families — four consecutive quadrants already verified by
// IsFamily — matching original_source's p4est_coarsen_t contract.
type CoarsenFn func(treeIdx int, family [Children]Quadrant, data [Children][]byte) bool

// Coarsen scans every tree for consecutive complete sibling families
// and replaces each family fn accepts with its parent, whose payload is
// assigned by init. Level-0 quadrants are never merged (there is no
// coarser level). If recursive is true, a newly created parent is
// itself re-examined against its own siblings for further coarsening
// in the same call.
func Coarsen(trees []*Tree, fn CoarsenFn, init InitFn, recursive bool) {
	for ti, t := range trees {
		qs, ds := coarsenTree(ti, t.Quadrants, t.Data, fn, init, recursive)
		t.Quadrants = qs
		t.Data = ds
		t.rebuildHistogram()
	}
}

func coarsenTree(ti int, qs []Quadrant, ds [][]byte, fn CoarsenFn, init InitFn, recursive bool) ([]Quadrant, [][]byte) {
	changed := true
	for changed {
		changed = false
		outQ := make([]Quadrant, 0, len(qs))
		outD := make([][]byte, 0, len(ds))
		i := 0
		for i < len(qs) {
			if i+Children <= len(qs) && qs[i].Level > 0 {
				var fam [Children]Quadrant
				var famData [Children][]byte
				copy(fam[:], qs[i:i+Children])
				copy(famData[:], ds[i:i+Children])
				if IsFamily(fam) && fn(ti, fam, famData) {
					parent := Parent(fam[0])
					outQ = append(outQ, parent)
					outD = append(outD, initData(init, ti, parent))
					i += Children
					changed = true
					continue
				}
			}
			outQ = append(outQ, qs[i])
			outD = append(outD, ds[i])
			i++
		}
		qs, ds = outQ, outD
		if !recursive {
			break
		}
	}
	return qs, ds
}
