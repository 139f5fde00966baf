package hnsw

import "context"

// Compact builds a new graph holding only the live vectors, dropping
// tombstones and their edges. The receiver is left unchanged and stays fully
// usable; the caller swaps references once the rebuild finishes.
//
// The rebuild reuses the original seed and options and inserts in slot order,
// so compacting the same graph twice yields identical results.
func (g *Graph) Compact(ctx context.Context) (*Graph, error) {
	g.writeMu.Lock()
	defer g.writeMu.Unlock()

	opts := g.opts
	opts.Dimension = int(g.dim.Load())
	seed := g.seed
	opts.RandomSeed = &seed
	if live := int(g.live.Load()); live > opts.InitialCapacity {
		opts.InitialCapacity = live
	}

	ng, err := New(func(o *Options) { *o = opts })
	if err != nil {
		return nil, err
	}

	total := uint32(g.size.Load())
	for slot := uint32(0); slot < total; slot++ {
		if g.isDeleted(slot) {
			continue
		}
		n := g.node(slot)
		if err := ng.Insert(ctx, n.id, n.vector); err != nil {
			return nil, err
		}
	}

	return ng, nil
}
