// Package hnsw implements a Hierarchical Navigable Small World graph for
// approximate nearest-neighbor search over float32 vectors.
//
// The graph is a stack of progressively sparser layers. Every vector lives at
// layer 0; a vector participates in layer L with probability e^(-L/mL), so the
// expected height is logarithmic in the number of vectors. Searches descend
// greedily through the upper layers and run a beam search at layer 0, giving
// sub-linear query cost at the price of exactness: result quality depends
// monotonically on the beam width ef and the connectivity M. That trade-off is
// the contract, not a defect.
//
// Writes are serialized; searches run in parallel with each other and with a
// writer, synchronized through sharded neighbor-list locks.
package hnsw

import (
	"context"
	"math"
	"math/rand"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bits-and-blooms/bitset"
	"github.com/gannet-io/gannet/distance"
	"github.com/gannet-io/gannet/internal/queue"
)

// ID is the caller-supplied identifier of a vector. IDs are arbitrary uint64
// values; the graph never allocates them.
type ID uint64

// SearchResult pairs a vector id with its distance to the query.
type SearchResult struct {
	ID       ID
	Distance float32
}

const (
	// minimumM is the smallest usable connectivity; mL = 1/ln(M) is
	// undefined below it.
	minimumM = 2

	// maxAssignableLayer bounds the layer drawn for a new node so a
	// pathological random draw cannot produce an absurd tower height.
	maxAssignableLayer = 63

	// segmentShift sizes the node directory segments (4096 nodes each).
	segmentShift = 12
	segmentSize  = 1 << segmentShift
	segmentMask  = segmentSize - 1

	// lockShards is the number of neighbor-list lock stripes. Power of two.
	lockShards = 64

	// ctxCheckInterval is how many beam expansions happen between
	// context-cancellation checks.
	ctxCheckInterval = 128
)

// Options configures a Graph. Fixed at construction.
type Options struct {
	// Dimension is the vector dimensionality. Zero means the graph adopts
	// the dimension of the first inserted vector.
	Dimension int

	// M is the maximum number of connections per node at layers above 0.
	// Higher M improves recall on high-dimensional data at the cost of
	// memory and construction time; 12-48 suits most workloads.
	M int

	// M0 is the maximum number of connections at layer 0. Zero means 2*M.
	M0 int

	// EFConstruction is the beam width used while linking a new node.
	// Larger values build a higher-quality graph more slowly.
	EFConstruction int

	// EFSearch is the default beam width for searches that do not supply
	// their own. Must be >= 1; searches clamp it up to k.
	EFSearch int

	// Metric selects the distance function. Ignored when DistanceFunc is
	// set.
	Metric distance.Metric

	// DistanceFunc overrides Metric with a custom distance function.
	// Graphs built with a custom function cannot be persisted.
	DistanceFunc distance.Func

	// ExtendCandidates widens neighbor selection with the neighbors of
	// candidates before filtering. Slower construction, helps clustered
	// data.
	ExtendCandidates bool

	// KeepPruned backfills neighbor selection with the nearest rejected
	// candidates until the target count is reached.
	KeepPruned bool

	// RandomSeed seeds layer assignment. Nil seeds from the clock; set it
	// for reproducible graphs.
	RandomSeed *int64

	// InitialCapacity pre-sizes internal storage for the expected number
	// of vectors.
	InitialCapacity int
}

// DefaultOptions holds the default configuration.
var DefaultOptions = Options{
	M:               16,
	EFConstruction:  200,
	EFSearch:        50,
	Metric:          distance.MetricEuclidean,
	KeepPruned:      true,
	InitialCapacity: 1024,
}

type node struct {
	id     ID
	vector []float32 // immutable once stored
	layer  int32
	// neighbors[l] is the adjacency list at layer l, 0 <= l <= layer.
	// Guarded by the node's lock shard.
	neighbors [][]uint32
}

type segment [segmentSize]*node

// Graph is an HNSW index. All methods are safe for concurrent use: mutations
// are serialized internally, searches proceed in parallel.
type Graph struct {
	opts     Options
	distFunc distance.Func
	custom   bool // DistanceFunc override in use
	mL       float64

	// writeMu serializes Insert, Delete and Compact.
	writeMu sync.Mutex

	// dir is the segmented node directory. Slots are allocated
	// sequentially; a slot becomes visible to readers when size is
	// advanced past it. Segments are never reallocated, so a loaded
	// directory snapshot stays valid.
	dir  atomic.Pointer[[]*segment]
	size atomic.Int64
	live atomic.Int64

	dim atomic.Int32

	// ep packs the entry point slot (high 32 bits) and the top layer
	// (low 32 bits) so both are read consistently. Valid when size > 0.
	ep atomic.Uint64

	locks [lockShards]sync.RWMutex

	delMu   sync.RWMutex
	deleted *bitset.BitSet

	idMu sync.RWMutex
	byID map[ID]uint32

	// rng drives layer assignment. seed is the effective seed and draws the
	// number of layer draws made, both persisted so a restored graph
	// continues the same draw stream.
	rngMu sync.Mutex
	rng   *rand.Rand
	seed  int64
	draws uint64

	scratchPool sync.Pool
}

// New creates an empty graph. Option validation failures return
// *ErrInvalidConfiguration.
func New(optFns ...func(o *Options)) (*Graph, error) {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if err := validateOptions(&opts); err != nil {
		return nil, err
	}

	distFunc := opts.DistanceFunc
	custom := distFunc != nil
	if !custom {
		fn, err := distance.Provider(opts.Metric)
		if err != nil {
			return nil, &ErrInvalidConfiguration{Param: "Metric", Value: opts.Metric, Reason: err.Error()}
		}
		distFunc = fn
	}

	seed := time.Now().UnixNano()
	if opts.RandomSeed != nil {
		seed = *opts.RandomSeed
	}

	g := &Graph{
		opts:     opts,
		distFunc: distFunc,
		custom:   custom,
		mL:       1 / math.Log(float64(opts.M)),
		deleted:  bitset.New(uint(opts.InitialCapacity)),
		byID:     make(map[ID]uint32, opts.InitialCapacity),
		rng:      rand.New(rand.NewSource(seed)), //nolint:gosec // layer draws need reproducibility, not crypto
		seed:     seed,
	}
	g.dim.Store(int32(opts.Dimension))

	segs := make([]*segment, 0, (opts.InitialCapacity+segmentSize-1)/segmentSize)
	g.dir.Store(&segs)

	g.scratchPool.New = func() any { return newSearchScratch(&opts) }

	return g, nil
}

func validateOptions(opts *Options) error {
	if opts.Dimension < 0 {
		return &ErrInvalidConfiguration{Param: "Dimension", Value: opts.Dimension, Reason: "must not be negative"}
	}

	if opts.M < minimumM {
		return &ErrInvalidConfiguration{Param: "M", Value: opts.M, Reason: "must be at least 2"}
	}

	if opts.M0 == 0 {
		opts.M0 = 2 * opts.M
	}

	if opts.M0 < opts.M {
		return &ErrInvalidConfiguration{Param: "M0", Value: opts.M0, Reason: "must be at least M"}
	}

	if opts.EFConstruction < 1 {
		return &ErrInvalidConfiguration{Param: "EFConstruction", Value: opts.EFConstruction, Reason: "must be positive"}
	}

	if opts.EFSearch < 1 {
		return &ErrInvalidConfiguration{Param: "EFSearch", Value: opts.EFSearch, Reason: "must be positive"}
	}

	if opts.InitialCapacity < 0 {
		return &ErrInvalidConfiguration{Param: "InitialCapacity", Value: opts.InitialCapacity, Reason: "must not be negative"}
	}
	if opts.InitialCapacity == 0 {
		opts.InitialCapacity = DefaultOptions.InitialCapacity
	}

	return nil
}

// Options returns a copy of the effective configuration.
func (g *Graph) Options() Options { return g.opts }

// Dimension returns the vector dimensionality, or 0 before the first insert
// of a dimension-adopting graph.
func (g *Graph) Dimension() int { return int(g.dim.Load()) }

// Len returns the number of live (not deleted) vectors.
func (g *Graph) Len() int { return int(g.live.Load()) }

// MaxLayer returns the top layer of the current entry point, or -1 when the
// graph is empty.
func (g *Graph) MaxLayer() int {
	if g.size.Load() == 0 {
		return -1
	}
	_, layer := g.entry()
	return int(layer)
}

// Contains reports whether id maps to a live vector.
func (g *Graph) Contains(id ID) bool {
	g.idMu.RLock()
	slot, ok := g.byID[id]
	g.idMu.RUnlock()
	if !ok {
		return false
	}
	return !g.isDeleted(slot)
}

// Vector returns a copy of the stored vector for id.
func (g *Graph) Vector(id ID) ([]float32, error) {
	g.idMu.RLock()
	slot, ok := g.byID[id]
	g.idMu.RUnlock()
	if !ok || g.isDeleted(slot) {
		return nil, &ErrUnknownID{ID: id}
	}
	return slices.Clone(g.node(slot).vector), nil
}

// Insert adds a vector under the given id.
//
// A validation failure (duplicate id, dimension mismatch) or context
// cancellation during the search phase leaves the graph unchanged; once
// linking begins the insert always completes.
func (g *Graph) Insert(ctx context.Context, id ID, vec []float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	g.writeMu.Lock()
	defer g.writeMu.Unlock()

	dim := int(g.dim.Load())
	if dim == 0 {
		if len(vec) == 0 {
			return &ErrDimensionMismatch{Expected: 1, Actual: 0}
		}
		dim = len(vec)
		g.dim.Store(int32(dim))
	}
	if len(vec) != dim {
		return &ErrDimensionMismatch{Expected: dim, Actual: len(vec)}
	}

	if _, dup := g.byID[id]; dup {
		return &ErrDuplicateID{ID: id}
	}

	vector := slices.Clone(vec)
	layer := g.assignLayer()

	n := &node{
		id:        id,
		vector:    vector,
		layer:     int32(layer),
		neighbors: make([][]uint32, layer+1),
	}

	// First node: it becomes the entry point at its assigned layer.
	if g.size.Load() == 0 {
		slot := g.appendNode(n)
		g.setID(id, slot)
		g.setEntry(slot, int32(layer))
		g.live.Add(1)
		return nil
	}

	epSlot, maxLayer := g.entry()

	sc := g.getScratch()
	defer g.putScratch(sc)

	curr := epSlot
	currDist := g.distFunc(vector, g.node(epSlot).vector)

	// Phase 1 (read-only): descend to the insertion layer, then collect
	// the neighbor set for every layer the node joins. Cancellation here
	// aborts with the graph untouched.
	for l := int(maxLayer); l > layer; l-- {
		var err error
		curr, currDist, err = g.greedyClosest(ctx, vector, curr, currDist, l, sc)
		if err != nil {
			return err
		}
	}

	top := min(layer, int(maxLayer))
	planned := make([][]uint32, top+1)

	for l := top; l >= 0; l-- {
		if err := g.searchLayer(ctx, vector, queue.Item{Node: curr, Dist: currDist}, l, g.opts.EFConstruction, nil, true, sc); err != nil {
			return err
		}

		cands := sc.drainResultsAscending()
		if len(cands) > 0 {
			curr, currDist = cands[0].Node, cands[0].Dist
		}

		m := g.opts.M
		if l == 0 {
			m = g.opts.M0
		}

		planned[l] = slices.Clone(g.selectNeighbors(vector, cands, m, l, g.opts.ExtendCandidates, sc))
	}

	// Phase 2 (mutation): publish the node, then make it reachable by
	// linking back from its neighbors.
	for l, selected := range planned {
		n.neighbors[l] = selected
	}

	slot := g.appendNode(n)
	g.setID(id, slot)

	for l := top; l >= 0; l-- {
		for _, nb := range planned[l] {
			g.addConnection(nb, slot, vector, l, sc)
		}
	}

	if layer > int(maxLayer) {
		g.setEntry(slot, int32(layer))
	}

	g.live.Add(1)
	return nil
}

// Delete tombstones the vector with the given id. The node stays in the
// graph as a traversal waypoint until Compact reclaims it, but it is excluded
// from all results. Returns *ErrUnknownID for absent or already-deleted ids.
func (g *Graph) Delete(ctx context.Context, id ID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	g.writeMu.Lock()
	defer g.writeMu.Unlock()

	slot, ok := g.byID[id]
	if !ok {
		return &ErrUnknownID{ID: id}
	}
	if g.isDeleted(slot) {
		return &ErrUnknownID{ID: id}
	}

	g.delMu.Lock()
	g.deleted.Set(uint(slot))
	g.delMu.Unlock()

	g.live.Add(-1)

	// Re-target the entry point when the deleted node held it, preferring
	// the highest-layered live node.
	if epSlot, _ := g.entry(); epSlot == slot {
		if next, layer, ok := g.highestLiveNode(); ok {
			g.setEntry(next, layer)
		}
	}

	return nil
}

// assignLayer draws the top layer for a new node: floor(-ln(r) * mL) with r
// uniform in (0,1], giving P(layer >= L) = e^(-L/mL).
func (g *Graph) assignLayer() int {
	g.rngMu.Lock()
	r := 1 - g.rng.Float64()
	g.draws++
	g.rngMu.Unlock()

	layer := int(math.Floor(-math.Log(r) * g.mL))
	if layer > maxAssignableLayer {
		layer = maxAssignableLayer
	}
	return layer
}

// node returns the node at slot. The slot must have been published: observed
// below size at some earlier point.
func (g *Graph) node(slot uint32) *node {
	dir := *g.dir.Load()
	return dir[slot>>segmentShift][slot&segmentMask]
}

// appendNode stores n at the next slot and publishes it. Caller holds
// writeMu.
func (g *Graph) appendNode(n *node) uint32 {
	slot := uint32(g.size.Load())
	segIdx := int(slot >> segmentShift)

	dir := *g.dir.Load()
	if segIdx >= len(dir) {
		grown := make([]*segment, len(dir)+1)
		copy(grown, dir)
		grown[len(dir)] = new(segment)
		g.dir.Store(&grown)
		dir = grown
	}

	dir[segIdx][slot&segmentMask] = n
	g.size.Add(1)
	return slot
}

func (g *Graph) setID(id ID, slot uint32) {
	g.idMu.Lock()
	g.byID[id] = slot
	g.idMu.Unlock()
}

func (g *Graph) entry() (uint32, int32) {
	packed := g.ep.Load()
	return uint32(packed >> 32), int32(uint32(packed))
}

func (g *Graph) setEntry(slot uint32, layer int32) {
	g.ep.Store(uint64(slot)<<32 | uint64(uint32(layer)))
}

func (g *Graph) lockFor(slot uint32) *sync.RWMutex {
	return &g.locks[slot&(lockShards-1)]
}

func (g *Graph) isDeleted(slot uint32) bool {
	g.delMu.RLock()
	d := g.deleted.Test(uint(slot))
	g.delMu.RUnlock()
	return d
}

// copyNeighbors snapshots the neighbor list of slot at layer into buf. The
// lock is held only for the copy, never across distance computations.
func (g *Graph) copyNeighbors(slot uint32, layer int, buf []uint32) []uint32 {
	n := g.node(slot)
	mu := g.lockFor(slot)

	mu.RLock()
	if layer < len(n.neighbors) {
		buf = append(buf[:0], n.neighbors[layer]...)
	} else {
		buf = buf[:0]
	}
	mu.RUnlock()

	return buf
}

// highestLiveNode scans for the live node with the greatest top layer,
// breaking ties toward the lowest slot. Caller holds writeMu.
func (g *Graph) highestLiveNode() (uint32, int32, bool) {
	total := uint32(g.size.Load())

	var (
		bestSlot  uint32
		bestLayer int32 = -1
	)

	for slot := uint32(0); slot < total; slot++ {
		if g.isDeleted(slot) {
			continue
		}
		if l := g.node(slot).layer; l > bestLayer {
			bestSlot, bestLayer = slot, l
		}
	}

	if bestLayer < 0 {
		return 0, 0, false
	}
	return bestSlot, bestLayer, true
}

// addConnection links target -> newSlot at layer, pruning the target's list
// back under its cap with the selection heuristic when it overflows. Pruned
// edges are removed from both endpoints to keep the graph symmetric. Caller
// holds writeMu.
func (g *Graph) addConnection(target, newSlot uint32, newVec []float32, layer int, sc *searchScratch) {
	tn := g.node(target)
	maxConn := g.opts.M
	if layer == 0 {
		maxConn = g.opts.M0
	}

	mu := g.lockFor(target)
	mu.Lock()

	if layer >= len(tn.neighbors) {
		mu.Unlock()
		return
	}

	list := tn.neighbors[layer]
	if slices.Contains(list, newSlot) {
		mu.Unlock()
		return
	}

	if len(list) < maxConn {
		tn.neighbors[layer] = append(list, newSlot)
		mu.Unlock()
		return
	}

	// Overflow: re-select the best maxConn edges among existing plus new.
	cands := sc.pruneBuf[:0]
	cands = append(cands, queue.Item{Node: newSlot, Dist: g.distFunc(tn.vector, newVec)})
	for _, nb := range list {
		cands = append(cands, queue.Item{Node: nb, Dist: g.distFunc(tn.vector, g.node(nb).vector)})
	}
	sc.pruneBuf = cands

	sortItemsAscending(cands)

	selected := g.selectNeighbors(tn.vector, cands, maxConn, layer, false, sc)
	kept := slices.Clone(selected)

	var dropped []uint32
	for _, c := range cands {
		if !slices.Contains(kept, c.Node) {
			dropped = append(dropped, c.Node)
		}
	}

	tn.neighbors[layer] = kept
	mu.Unlock()

	// Mirror the removals outside the target's lock; a dropped neighbor
	// may share the target's lock shard.
	for _, d := range dropped {
		g.removeConnection(d, target, layer)
	}
}

// removeConnection drops rem from the neighbor list of slot at layer.
func (g *Graph) removeConnection(slot, rem uint32, layer int) {
	n := g.node(slot)
	mu := g.lockFor(slot)

	mu.Lock()
	defer mu.Unlock()

	if layer >= len(n.neighbors) {
		return
	}

	list := n.neighbors[layer]
	for i, nb := range list {
		if nb == rem {
			n.neighbors[layer] = append(list[:i], list[i+1:]...)
			return
		}
	}
}
