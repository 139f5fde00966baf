package hnsw

import "github.com/gannet-io/gannet/internal/queue"

// selectNeighbors picks up to m edges from cands (ascending by distance to
// base) with the diversity heuristic: a candidate is kept only when it is
// closer to base than to every candidate kept before it. Edges that merely
// point deeper into an already-covered cluster lose to edges that open a new
// direction, which is what keeps the graph navigable on clustered data.
//
// The returned slice aliases scratch storage; callers that retain it must
// copy.
func (g *Graph) selectNeighbors(base []float32, cands []queue.Item, m, layer int, extend bool, sc *searchScratch) []uint32 {
	if extend {
		cands = g.extendCandidates(base, cands, layer, sc)
	}

	sc.selected = sc.selected[:0]

	if len(cands) <= m {
		for _, c := range cands {
			sc.selected = append(sc.selected, c.Node)
		}
		return sc.selected
	}

	sc.accepted = sc.accepted[:0]
	sc.rejected = sc.rejected[:0]

	for _, c := range cands {
		if len(sc.accepted) >= m {
			break
		}

		keep := true
		for _, a := range sc.accepted {
			if g.distFunc(g.node(c.Node).vector, g.node(a.Node).vector) < c.Dist {
				keep = false
				break
			}
		}

		if keep {
			sc.accepted = append(sc.accepted, c)
		} else {
			sc.rejected = append(sc.rejected, c)
		}
	}

	// Backfill with the nearest rejects so sparse regions still reach m
	// edges. Rejected stays ascending because cands was.
	if g.opts.KeepPruned {
		for _, r := range sc.rejected {
			if len(sc.accepted) >= m {
				break
			}
			sc.accepted = append(sc.accepted, r)
		}
	}

	for _, a := range sc.accepted {
		sc.selected = append(sc.selected, a.Node)
	}
	return sc.selected
}

// extendCandidates widens the candidate pool with the layer neighbors of each
// candidate before selection.
func (g *Graph) extendCandidates(base []float32, cands []queue.Item, layer int, sc *searchScratch) []queue.Item {
	vis := sc.visited
	vis.EnsureCapacity(int(g.size.Load()))
	vis.Reset()

	sc.extendBuf = append(sc.extendBuf[:0], cands...)
	for _, c := range cands {
		vis.Visit(c.Node)
	}

	for _, c := range cands {
		sc.neighbors = g.copyNeighbors(c.Node, layer, sc.neighbors)
		for _, nb := range sc.neighbors {
			if !vis.TryVisit(nb) {
				continue
			}
			sc.extendBuf = append(sc.extendBuf, queue.Item{
				Node: nb,
				Dist: g.distFunc(base, g.node(nb).vector),
			})
		}
	}

	sortItemsAscending(sc.extendBuf)
	return sc.extendBuf
}
