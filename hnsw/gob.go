package hnsw

import (
	"encoding/gob"
	"fmt"
	"io"
	"slices"

	"github.com/bits-and-blooms/bitset"
	"github.com/gannet-io/gannet/distance"
)

// stateVersion tags the gob layout of graphState.
const stateVersion = 1

// graphState is the persisted form of a graph. Slot numbers are preserved, so
// adjacency lists round-trip untouched.
type graphState struct {
	Version int

	Dimension      int32
	M              int
	M0             int
	EFConstruction int
	EFSearch       int
	Metric         uint8
	ExtendCands    bool
	KeepPruned     bool
	InitialCap     int

	Seed  int64
	Draws uint64

	EntryPacked uint64
	Live        int64
	DeletedBits []uint64

	Nodes []nodeRecord
}

type nodeRecord struct {
	ID        uint64
	Layer     int32
	Vector    []float32
	Neighbors [][]uint32
}

// Save writes the graph as a gob stream readable by Load. Writes are blocked
// for the duration; searches are not. Graphs using a custom DistanceFunc
// return ErrNotPersistable, since a function cannot be serialized.
func (g *Graph) Save(w io.Writer) error {
	if g.custom {
		return ErrNotPersistable
	}

	g.writeMu.Lock()
	defer g.writeMu.Unlock()

	g.rngMu.Lock()
	draws := g.draws
	g.rngMu.Unlock()

	g.delMu.RLock()
	bits := slices.Clone(g.deleted.Bytes())
	g.delMu.RUnlock()

	total := uint32(g.size.Load())
	nodes := make([]nodeRecord, total)

	// writeMu freezes all adjacency, so the lists are read directly.
	for slot := uint32(0); slot < total; slot++ {
		n := g.node(slot)
		nodes[slot] = nodeRecord{
			ID:        uint64(n.id),
			Layer:     n.layer,
			Vector:    n.vector,
			Neighbors: n.neighbors,
		}
	}

	st := graphState{
		Version:        stateVersion,
		Dimension:      g.dim.Load(),
		M:              g.opts.M,
		M0:             g.opts.M0,
		EFConstruction: g.opts.EFConstruction,
		EFSearch:       g.opts.EFSearch,
		Metric:         uint8(g.opts.Metric),
		ExtendCands:    g.opts.ExtendCandidates,
		KeepPruned:     g.opts.KeepPruned,
		InitialCap:     g.opts.InitialCapacity,
		Seed:           g.seed,
		Draws:          draws,
		EntryPacked:    g.ep.Load(),
		Live:           g.live.Load(),
		DeletedBits:    bits,
		Nodes:          nodes,
	}

	if err := gob.NewEncoder(w).Encode(&st); err != nil {
		return fmt.Errorf("encode graph state: %w", err)
	}
	return nil
}

// Load reconstructs a graph from a stream written by Save.
func Load(r io.Reader) (*Graph, error) {
	var st graphState
	if err := gob.NewDecoder(r).Decode(&st); err != nil {
		return nil, fmt.Errorf("decode graph state: %w", err)
	}

	if st.Version != stateVersion {
		return nil, fmt.Errorf("unsupported graph state version %d", st.Version)
	}

	seed := st.Seed
	g, err := New(func(o *Options) {
		o.Dimension = int(st.Dimension)
		o.M = st.M
		o.M0 = st.M0
		o.EFConstruction = st.EFConstruction
		o.EFSearch = st.EFSearch
		o.Metric = distance.Metric(st.Metric)
		o.DistanceFunc = nil
		o.ExtendCandidates = st.ExtendCands
		o.KeepPruned = st.KeepPruned
		o.RandomSeed = &seed
		o.InitialCapacity = max(st.InitialCap, len(st.Nodes))
	})
	if err != nil {
		return nil, err
	}

	for slot, rec := range st.Nodes {
		if len(rec.Neighbors) != int(rec.Layer)+1 {
			return nil, fmt.Errorf("corrupt graph state: node %d has %d adjacency lists for layer %d", slot, len(rec.Neighbors), rec.Layer)
		}

		n := &node{
			id:        ID(rec.ID),
			vector:    rec.Vector,
			layer:     rec.Layer,
			neighbors: rec.Neighbors,
		}
		g.byID[n.id] = g.appendNode(n)
	}

	if len(st.DeletedBits) > 0 {
		g.deleted = bitset.From(st.DeletedBits)
	}

	g.live.Store(st.Live)
	g.ep.Store(st.EntryPacked)
	g.dim.Store(st.Dimension)

	// Replay the layer draws so future inserts continue the stream the
	// saved graph was on.
	for i := uint64(0); i < st.Draws; i++ {
		_ = g.rng.Float64()
	}
	g.draws = st.Draws

	return g, nil
}
