package hnsw

import (
	"context"
	"slices"

	"github.com/gannet-io/gannet/filter"
	"github.com/gannet-io/gannet/internal/queue"
	"github.com/gannet-io/gannet/internal/visited"
)

// searchScratch bundles the reusable buffers of a single traversal: the two
// beam heaps, the visited set and assorted slices. Pooled per graph so
// searches allocate only their result slice.
type searchScratch struct {
	candidates *queue.Queue // min-heap frontier
	results    *queue.Queue // bounded max-heap
	visited    *visited.Set
	neighbors  []uint32
	drain      []queue.Item
	pruneBuf   []queue.Item
	extendBuf  []queue.Item
	accepted   []queue.Item
	rejected   []queue.Item
	selected   []uint32
}

func newSearchScratch(opts *Options) *searchScratch {
	ef := max(opts.EFConstruction, opts.EFSearch)
	return &searchScratch{
		candidates: queue.NewMin(ef + opts.M0),
		results:    queue.NewMax(ef + 1),
		visited:    visited.New(opts.InitialCapacity),
		neighbors:  make([]uint32, 0, opts.M0+1),
		drain:      make([]queue.Item, 0, ef+1),
		extendBuf:  make([]queue.Item, 0, ef*2),
		accepted:   make([]queue.Item, 0, opts.M0+1),
		rejected:   make([]queue.Item, 0, ef+1),
		selected:   make([]uint32, 0, opts.M0+1),
	}
}

// drainResultsAscending empties the result heap into a reusable slice sorted
// by ascending distance, ties broken by slot for reproducibility.
func (sc *searchScratch) drainResultsAscending() []queue.Item {
	sc.drain = sc.drain[:0]
	for sc.results.Len() > 0 {
		it, _ := sc.results.Pop()
		sc.drain = append(sc.drain, it)
	}
	sortItemsAscending(sc.drain)
	return sc.drain
}

func sortItemsAscending(items []queue.Item) {
	slices.SortFunc(items, func(a, b queue.Item) int {
		switch {
		case a.Dist < b.Dist:
			return -1
		case a.Dist > b.Dist:
			return 1
		case a.Node < b.Node:
			return -1
		case a.Node > b.Node:
			return 1
		default:
			return 0
		}
	})
}

func (g *Graph) getScratch() *searchScratch {
	return g.scratchPool.Get().(*searchScratch)
}

func (g *Graph) putScratch(sc *searchScratch) {
	g.scratchPool.Put(sc)
}

// KNNSearch returns the k nearest live vectors to q, ascending by distance.
// ef is the beam width; values below k are raised to k and ef <= 0 selects
// the configured EFSearch. Returns ErrEmptyIndex when no live vectors exist.
func (g *Graph) KNNSearch(ctx context.Context, q []float32, k, ef int) ([]SearchResult, error) {
	return g.knnSearch(ctx, q, k, ef, nil)
}

// SearchWithFilter is KNNSearch restricted to ids present in allow. The graph
// is traversed through excluded nodes, so a highly selective filter reduces
// recall rather than reachability; raise ef to compensate.
func (g *Graph) SearchWithFilter(ctx context.Context, q []float32, k, ef int, allow *filter.Bitmap) ([]SearchResult, error) {
	return g.knnSearch(ctx, q, k, ef, allow)
}

func (g *Graph) knnSearch(ctx context.Context, q []float32, k, ef int, allow *filter.Bitmap) ([]SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if k < 1 {
		return nil, ErrInvalidK
	}

	if g.live.Load() == 0 {
		return nil, ErrEmptyIndex
	}

	if dim := int(g.dim.Load()); len(q) != dim {
		return nil, &ErrDimensionMismatch{Expected: dim, Actual: len(q)}
	}

	if ef < 1 {
		ef = g.opts.EFSearch
	}
	if ef < k {
		ef = k
	}

	epSlot, maxLayer := g.entry()

	sc := g.getScratch()
	defer g.putScratch(sc)

	curr := epSlot
	currDist := g.distFunc(q, g.node(epSlot).vector)

	var err error
	for l := int(maxLayer); l >= 1; l-- {
		curr, currDist, err = g.greedyClosest(ctx, q, curr, currDist, l, sc)
		if err != nil {
			return nil, err
		}
	}

	if err := g.searchLayer(ctx, q, queue.Item{Node: curr, Dist: currDist}, 0, ef, allow, false, sc); err != nil {
		return nil, err
	}

	items := sc.drainResultsAscending()
	if len(items) > k {
		items = items[:k]
	}

	out := make([]SearchResult, len(items))
	for i, it := range items {
		out[i] = SearchResult{ID: g.node(it.Node).id, Distance: it.Dist}
	}
	return out, nil
}

// BruteSearch linearly scans every live vector and returns the exact k
// nearest, ascending. It honors allow the same way SearchWithFilter does.
// Meant for ground truth and tiny graphs; cost is linear in the vector count.
func (g *Graph) BruteSearch(ctx context.Context, q []float32, k int, allow *filter.Bitmap) ([]SearchResult, error) {
	if k < 1 {
		return nil, ErrInvalidK
	}

	if g.live.Load() == 0 {
		return nil, ErrEmptyIndex
	}

	if dim := int(g.dim.Load()); len(q) != dim {
		return nil, &ErrDimensionMismatch{Expected: dim, Actual: len(q)}
	}

	best := queue.NewMax(k + 1)
	total := uint32(g.size.Load())

	for slot := uint32(0); slot < total; slot++ {
		if slot%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		if !g.emittable(slot, allow, false) {
			continue
		}

		best.PushBounded(queue.Item{Node: slot, Dist: g.distFunc(q, g.node(slot).vector)}, k)
	}

	items := make([]queue.Item, 0, best.Len())
	for best.Len() > 0 {
		it, _ := best.Pop()
		items = append(items, it)
	}
	sortItemsAscending(items)

	out := make([]SearchResult, len(items))
	for i, it := range items {
		out[i] = SearchResult{ID: g.node(it.Node).id, Distance: it.Dist}
	}
	return out, nil
}

// greedyClosest walks the layer toward q until no neighbor improves on the
// current position. Equal distances resolve toward the lower slot, so a fixed
// graph always yields the same local minimum.
func (g *Graph) greedyClosest(ctx context.Context, q []float32, start uint32, startDist float32, layer int, sc *searchScratch) (uint32, float32, error) {
	curr, currDist := start, startDist

	for {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}

		bestSlot, bestDist := curr, currDist

		sc.neighbors = g.copyNeighbors(curr, layer, sc.neighbors)
		for _, nb := range sc.neighbors {
			d := g.distFunc(q, g.node(nb).vector)
			if d < bestDist || (d == bestDist && nb < bestSlot) {
				bestSlot, bestDist = nb, d
			}
		}

		if bestSlot == curr {
			return curr, currDist, nil
		}
		curr, currDist = bestSlot, bestDist
	}
}

// searchLayer runs the beam search at a single layer, seeded by entry. It
// leaves up to ef results in sc.results. Nodes outside allow, and tombstoned
// nodes unless includeDeleted is set, are traversed but never emitted. Inserts
// pass includeDeleted so new nodes keep linking into heavily-deleted regions.
func (g *Graph) searchLayer(ctx context.Context, q []float32, entry queue.Item, layer, ef int, allow *filter.Bitmap, includeDeleted bool, sc *searchScratch) error {
	sc.candidates.Reset()
	sc.results.Reset()

	vis := sc.visited
	vis.EnsureCapacity(int(g.size.Load()))
	vis.Reset()

	vis.Visit(entry.Node)
	sc.candidates.Push(entry)
	if g.emittable(entry.Node, allow, includeDeleted) {
		sc.results.Push(entry)
	}

	var steps int
	for sc.candidates.Len() > 0 {
		steps++
		if steps%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		c, _ := sc.candidates.Pop()

		// Beam termination: the closest frontier node is farther than
		// the worst kept result and the result set is full, so nothing
		// reachable can improve the results.
		if sc.results.Len() >= ef {
			if worst, ok := sc.results.Peek(); ok && c.Dist > worst.Dist {
				break
			}
		}

		sc.neighbors = g.copyNeighbors(c.Node, layer, sc.neighbors)
		for _, nb := range sc.neighbors {
			if !vis.TryVisit(nb) {
				continue
			}

			d := g.distFunc(q, g.node(nb).vector)

			if sc.results.Len() >= ef {
				if worst, ok := sc.results.Peek(); ok && d >= worst.Dist {
					continue
				}
			}

			it := queue.Item{Node: nb, Dist: d}
			sc.candidates.Push(it)
			if g.emittable(nb, allow, includeDeleted) {
				sc.results.PushBounded(it, ef)
			}
		}
	}

	return nil
}

func (g *Graph) emittable(slot uint32, allow *filter.Bitmap, includeDeleted bool) bool {
	if !includeDeleted && g.isDeleted(slot) {
		return false
	}
	if allow != nil && !allow.Contains(uint64(g.node(slot).id)) {
		return false
	}
	return true
}
