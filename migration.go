package forest

import (
	"context"
	"encoding/binary"

	"github.com/noctilu/forest/telemetry"
)

// treeGroup bundles one shipment's quadrants for a single destination
// tree, used by both Partition's rebalancing shipments and any future
// caller that needs to move leaves between ranks.
type treeGroup struct {
	tree  int
	quads []Quadrant
	data  [][]byte
}

const migrationTag = 9000

// encodeShipment serializes groups into a single buffer: a metadata
// blob (tree id, count, and each quadrant's X/Y/level) followed by a
// payload blob (each quadrant's data_size bytes), matching
// original_source's split of piggy-backed coordinate fields from bulk
// user data — kept as two contiguous regions in one message rather
// than two separate messages, since comm.Comm here has no scatter-
// gather send and concatenating is cheaper than an extra round trip.
func encodeShipment(groups []treeGroup, dataSize int) []byte {
	var meta []byte
	var payload []byte
	hdr := make([]byte, 4)
	binary.BigEndian.PutUint32(hdr, uint32(len(groups)))
	meta = append(meta, hdr...)
	for _, g := range groups {
		gh := make([]byte, 8)
		binary.BigEndian.PutUint32(gh[0:4], uint32(int32(g.tree)))
		binary.BigEndian.PutUint32(gh[4:8], uint32(len(g.quads)))
		meta = append(meta, gh...)
		for i, q := range g.quads {
			qb := make([]byte, 9)
			binary.BigEndian.PutUint32(qb[0:4], q.X)
			binary.BigEndian.PutUint32(qb[4:8], q.Y)
			qb[8] = byte(q.Level)
			meta = append(meta, qb...)
			payload = append(payload, g.data[i]...)
		}
	}
	sizeHdr := make([]byte, 4)
	binary.BigEndian.PutUint32(sizeHdr, uint32(len(meta)))
	out := append([]byte{}, sizeHdr...)
	out = append(out, meta...)
	out = append(out, payload...)
	return out
}

func decodeShipment(buf []byte, dataSize int) []treeGroup {
	metaLen := binary.BigEndian.Uint32(buf[0:4])
	meta := buf[4 : 4+metaLen]
	payload := buf[4+metaLen:]

	numGroups := binary.BigEndian.Uint32(meta[0:4])
	pos := 4
	ppos := 0
	groups := make([]treeGroup, 0, numGroups)
	for i := uint32(0); i < numGroups; i++ {
		tree := int(int32(binary.BigEndian.Uint32(meta[pos : pos+4])))
		count := binary.BigEndian.Uint32(meta[pos+4 : pos+8])
		pos += 8
		g := treeGroup{tree: tree, quads: make([]Quadrant, count), data: make([][]byte, count)}
		for j := uint32(0); j < count; j++ {
			x := binary.BigEndian.Uint32(meta[pos : pos+4])
			y := binary.BigEndian.Uint32(meta[pos+4 : pos+8])
			level := int8(meta[pos+8])
			pos += 9
			g.quads[j] = Quadrant{X: x, Y: y, Level: level}
			g.data[j] = append([]byte{}, payload[ppos:ppos+dataSize]...)
			ppos += dataSize
		}
		groups = append(groups, g)
	}
	return groups
}

// migrate sends outgoing[dest] to every rank with a nonempty shipment
// and receives this rank's incoming shipments from the ranks listed in
// incomingFrom, in that order, merging every received group into the
// matching local tree. Both outgoing and incomingFrom are expected to
// already be agreed globally (Partition computes them from the shared
// weight-boundary plan, so every rank independently derives the same
// routing without an extra round trip to ask "who is sending to me").
func migrate(ctx context.Context, f *Forest, outgoing map[int][]treeGroup, incomingFrom []int) error {
	ctx, end := telemetry.StartCollective(ctx, "forest.Migrate", f.Comm.Rank(), f.Comm.Size())
	defer end()

	var bytesSent, bytesRecv int
	for dest, groups := range outgoing {
		if dest == f.Comm.Rank() || len(groups) == 0 {
			continue
		}
		buf := encodeShipment(groups, f.DataSize)
		bytesSent += len(buf)
		if err := f.Comm.Send(ctx, dest, migrationTag, buf); err != nil {
			return ErrTransport
		}
	}

	for _, src := range incomingFrom {
		if src == f.Comm.Rank() {
			continue
		}
		buf, err := f.Comm.Recv(ctx, src, migrationTag)
		if err != nil {
			return ErrTransport
		}
		bytesRecv += len(buf)
		for _, g := range decodeShipment(buf, f.DataSize) {
			mergeGroupIntoTree(f.Trees[g.tree], g)
		}
	}
	defaultLogger.withFields(map[string]interface{}{
		"rank": f.Comm.Rank(), "bytes_sent": bytesSent, "bytes_received": bytesRecv,
	}).Info("migration complete")
	if local, ok := outgoing[f.Comm.Rank()]; ok {
		for _, g := range local {
			mergeGroupIntoTree(f.Trees[g.tree], g)
		}
	}
	return nil
}

// mergeGroupIntoTree inserts every quadrant of g into t, preserving
// sort order; used both for cross-rank arrivals and the same-rank
// "shipment to self" case partition produces when a tree's new owner
// equals its old owner for part of its quadrants.
func mergeGroupIntoTree(t *Tree, g treeGroup) {
	for i, q := range g.quads {
		t.Insert(q, g.data[i])
	}
}
