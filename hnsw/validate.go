package hnsw

import (
	"fmt"
	"slices"
)

// Validate checks the structural invariants of the graph: the id map is a
// bijection onto slots, every adjacency list respects its cap and layer, every
// edge points at a node present on that layer, and every edge has its reverse
// edge. Intended for tests and debugging; cost is quadratic in the neighbor
// cap per node. Mutations are blocked while it runs.
func (g *Graph) Validate() error {
	g.writeMu.Lock()
	defer g.writeMu.Unlock()

	total := uint32(g.size.Load())

	g.idMu.RLock()
	mapped := len(g.byID)
	g.idMu.RUnlock()

	if mapped != int(total) {
		return fmt.Errorf("id map holds %d entries for %d nodes", mapped, total)
	}

	if total == 0 {
		return nil
	}

	epSlot, epLayer := g.entry()
	if epSlot >= total {
		return fmt.Errorf("entry point slot %d out of range (%d nodes)", epSlot, total)
	}
	if l := g.node(epSlot).layer; l != epLayer {
		return fmt.Errorf("entry point layer %d does not match node layer %d", epLayer, l)
	}

	for slot := uint32(0); slot < total; slot++ {
		n := g.node(slot)

		g.idMu.RLock()
		back, ok := g.byID[n.id]
		g.idMu.RUnlock()
		if !ok || back != slot {
			return fmt.Errorf("node %d: id %d maps to slot %d", slot, n.id, back)
		}

		if len(n.neighbors) != int(n.layer)+1 {
			return fmt.Errorf("node %d: %d adjacency lists for layer %d", slot, len(n.neighbors), n.layer)
		}

		for l := 0; l <= int(n.layer); l++ {
			list := n.neighbors[l]

			maxConn := g.opts.M
			if l == 0 {
				maxConn = g.opts.M0
			}
			if len(list) > maxConn {
				return fmt.Errorf("node %d layer %d: %d edges exceeds cap %d", slot, l, len(list), maxConn)
			}

			seen := make(map[uint32]struct{}, len(list))
			for _, nb := range list {
				if nb == slot {
					return fmt.Errorf("node %d layer %d: self edge", slot, l)
				}
				if nb >= total {
					return fmt.Errorf("node %d layer %d: edge to out-of-range slot %d", slot, l, nb)
				}
				if _, dup := seen[nb]; dup {
					return fmt.Errorf("node %d layer %d: duplicate edge to %d", slot, l, nb)
				}
				seen[nb] = struct{}{}

				tn := g.node(nb)
				if int(tn.layer) < l {
					return fmt.Errorf("node %d layer %d: edge to %d which tops out at layer %d", slot, l, nb, tn.layer)
				}
				if !slices.Contains(tn.neighbors[l], slot) {
					return fmt.Errorf("node %d layer %d: edge to %d lacks its reverse", slot, l, nb)
				}
			}
		}
	}

	return nil
}
