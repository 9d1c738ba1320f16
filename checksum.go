package forest

import (
	"context"
	"encoding/binary"
	"hash/crc32"
	"sort"

	"github.com/noctilu/forest/telemetry"
)

// checksumRecord is one quadrant's contribution to the global checksum:
// its owning tree id plus coordinates, encoded in a fixed 16-byte
// layout so the checksum is independent of in-memory struct layout and
// only depends on the logical (tree_id, x, y, level) tuple, matching
// original_source's p4est_checksum doc comment ("the checksum does not
// depend on the parallel partition").
type checksumRecord struct {
	tree  int32
	x, y  uint32
	level int8
}

func (r checksumRecord) encode() []byte {
	b := make([]byte, 16)
	binary.BigEndian.PutUint32(b[0:4], uint32(r.tree))
	binary.BigEndian.PutUint32(b[4:8], r.x)
	binary.BigEndian.PutUint32(b[8:12], r.y)
	b[12] = byte(r.level)
	return b
}

// Checksum computes a CRC-32 over every quadrant in the forest, visited
// in (tree id, Morton order) across the whole connectivity regardless
// of how quadrants are currently distributed among ranks: every rank's
// local records are gathered to all ranks, globally sorted, and folded
// in that canonical order so the result never depends on the partition.
func Checksum(ctx context.Context, f *Forest) (uint32, error) {
	ctx, end := telemetry.StartCollective(ctx, "forest.Checksum", f.Comm.Rank(), f.Comm.Size())
	defer end()

	var local []byte
	for t := f.FirstLocalTree; t >= 0 && t <= f.LastLocalTree; t++ {
		for _, q := range f.Trees[t].Quadrants {
			rec := checksumRecord{tree: int32(t), x: q.X, y: q.Y, level: q.Level}
			local = append(local, rec.encode()...)
		}
	}

	parts, err := f.Comm.AllGather(ctx, local)
	if err != nil {
		return 0, ErrTransport
	}

	var all []checksumRecord
	for _, part := range parts {
		for i := 0; i+16 <= len(part); i += 16 {
			all = append(all, decodeChecksumRecord(part[i:i+16]))
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].tree != all[j].tree {
			return all[i].tree < all[j].tree
		}
		return Less(Quadrant{X: all[i].x, Y: all[i].y, Level: all[i].level},
			Quadrant{X: all[j].x, Y: all[j].y, Level: all[j].level})
	})

	var buf []byte
	for _, r := range all {
		buf = append(buf, r.encode()...)
	}
	return crc32.ChecksumIEEE(buf), nil
}

func decodeChecksumRecord(b []byte) checksumRecord {
	return checksumRecord{
		tree:  int32(binary.BigEndian.Uint32(b[0:4])),
		x:     binary.BigEndian.Uint32(b[4:8]),
		y:     binary.BigEndian.Uint32(b[8:12]),
		level: int8(b[12]),
	}
}
