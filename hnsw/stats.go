package hnsw

// Stats is a point-in-time summary of graph shape and occupancy.
type Stats struct {
	// Nodes counts stored nodes, tombstones included.
	Nodes     int
	LiveNodes int
	Deleted   int

	// MaxLayer is the entry point's layer, -1 when empty. Tombstoned nodes
	// may sit above it after the entry point was re-targeted.
	MaxLayer int

	Dimension int

	// Connections is the total number of directed edges across all layers.
	Connections int

	// LayerHistogram counts nodes by their top layer.
	LayerHistogram []int

	// AvgOutDegree is the mean layer-0 out-degree over stored nodes.
	AvgOutDegree float64
}

// Stats walks the whole graph; cost is linear in nodes plus edges.
func (g *Graph) Stats() Stats {
	total := uint32(g.size.Load())

	st := Stats{
		Nodes:     int(total),
		LiveNodes: int(g.live.Load()),
		Dimension: int(g.dim.Load()),
		MaxLayer:  -1,
	}
	st.Deleted = st.Nodes - st.LiveNodes

	if total == 0 {
		return st
	}

	_, entryLayer := g.entry()
	st.MaxLayer = int(entryLayer)

	var (
		layer0Edges int
		buf         []uint32
	)

	for slot := uint32(0); slot < total; slot++ {
		n := g.node(slot)

		top := int(n.layer)
		for len(st.LayerHistogram) <= top {
			st.LayerHistogram = append(st.LayerHistogram, 0)
		}
		st.LayerHistogram[top]++

		for l := 0; l <= top; l++ {
			buf = g.copyNeighbors(slot, l, buf)
			st.Connections += len(buf)
			if l == 0 {
				layer0Edges += len(buf)
			}
		}
	}

	st.AvgOutDegree = float64(layer0Edges) / float64(total)
	return st
}
