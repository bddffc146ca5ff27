// Package index implements a Hierarchical Navigable Small World (HNSW)
// approximate nearest-neighbor index over vector-store snapshots.
//
// An Index is a derived, disposable structure: Build constructs it once from
// a snapshot and it is never kept in sync with later store mutations. Rebuild
// when the backing store changes. Construction is deterministic for a fixed
// Config.Seed, which the test vectors rely on.
//
// Like the vector store, an Index is not internally thread-safe; callers
// serialize externally.
package index

import (
	"container/heap"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/engramdb/engram/pkg/embedding"
	"github.com/engramdb/engram/pkg/logging"
)

// ErrDimensionMismatch is returned by Build when the snapshot contains
// embeddings of differing dimensions.
var ErrDimensionMismatch = errors.New("snapshot embeddings have differing dimensions")

// Config holds HNSW construction parameters.
type Config struct {
	M               int     // Max connections per node on upper layers
	MMax            int     // Max connections per node on layer 0
	EfConstruction  int     // Candidate list size during construction
	EfSearch        int     // Candidate list size during search
	MaxLayer        int     // Cap on randomly drawn layers
	LevelMultiplier float64 // Layer draw multiplier, 1/ln(2) by default
	Seed            int64   // RNG seed; construction is deterministic per seed
}

// DefaultConfig returns the standard HNSW parameters.
func DefaultConfig() Config {
	return Config{
		M:               16,
		MMax:            32,
		EfConstruction:  200,
		EfSearch:        50,
		MaxLayer:        16,
		LevelMultiplier: 1.0 / math.Ln2,
		Seed:            1,
	}
}

// neighbor is one bounded-list entry: an arena node id with its cached
// distance.
type neighbor struct {
	id   int
	dist float32
}

// node is one graph node. Both the node id and the embedding reference are
// arena-style indices, never raw pointers, so a rebuilt or discarded index
// can never dangle.
type node struct {
	id        int
	emb       int
	level     int
	neighbors [][]neighbor // one bounded list per layer, 0..level
}

// Result is one approximate search hit.
type Result struct {
	RecordID string
	Distance float32
}

// Index is the HNSW graph: the node arena, the embedding snapshot it indexes,
// one entry point and the current maximum layer.
type Index struct {
	cfg        Config
	embeddings []*embedding.Embedding
	nodes      []*node
	entry      int // -1 while empty
	maxLayer   int
	rng        *rand.Rand
	logger     logging.Logger
}

// Option configures an Index.
type Option func(*Index)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l logging.Logger) Option {
	return func(i *Index) { i.logger = l }
}

// Build constructs an index from a vector-store snapshot. The snapshot slice
// is retained; the embeddings it references are immutable and shared with the
// store.
func Build(snapshot []*embedding.Embedding, cfg Config, opts ...Option) (*Index, error) {
	if cfg.M <= 0 || cfg.MMax <= 0 || cfg.EfConstruction <= 0 {
		return nil, fmt.Errorf("index: invalid config: M=%d MMax=%d efConstruction=%d",
			cfg.M, cfg.MMax, cfg.EfConstruction)
	}
	if cfg.EfSearch <= 0 {
		cfg.EfSearch = DefaultConfig().EfSearch
	}
	if cfg.MaxLayer <= 0 {
		cfg.MaxLayer = DefaultConfig().MaxLayer
	}
	if cfg.LevelMultiplier <= 0 {
		cfg.LevelMultiplier = 1.0 / math.Ln2
	}

	idx := &Index{
		cfg:        cfg,
		embeddings: snapshot,
		nodes:      make([]*node, 0, len(snapshot)),
		entry:      -1,
		rng:        rand.New(rand.NewSource(cfg.Seed)),
		logger:     logging.Nop(),
	}
	for _, opt := range opts {
		opt(idx)
	}

	for i := range snapshot {
		if snapshot[i].Dimensions() != snapshot[0].Dimensions() {
			return nil, ErrDimensionMismatch
		}
		idx.insert(i)
	}

	idx.logger.Info("built hnsw index", "nodes", len(idx.nodes), "maxLayer", idx.maxLayer)
	return idx, nil
}

// Size returns the number of indexed embeddings.
func (i *Index) Size() int { return len(i.nodes) }

// MaxLayer returns the current maximum layer.
func (i *Index) MaxLayer() int { return i.maxLayer }

// Connections returns the total number of neighbor-list entries across all
// nodes and layers.
func (i *Index) Connections() int {
	total := 0
	for _, n := range i.nodes {
		for _, layer := range n.neighbors {
			total += len(layer)
		}
	}
	return total
}

// distance is the navigation metric: 1 - cosine similarity, a proper
// non-negative distance for normalized embeddings.
func (i *Index) distance(query *embedding.Embedding, nodeID int) float32 {
	return 1 - embedding.Cosine(query, i.embeddings[i.nodes[nodeID].emb])
}

// randomLevel draws the layer for a new node: floor(-ln(U) * multiplier),
// capped at MaxLayer.
func (i *Index) randomLevel() int {
	u := i.rng.Float64()
	for u == 0 {
		u = i.rng.Float64()
	}
	level := int(-math.Log(u) * i.cfg.LevelMultiplier)
	if level > i.cfg.MaxLayer {
		level = i.cfg.MaxLayer
	}
	return level
}

// bound returns the neighbor-list capacity for a layer.
func (i *Index) bound(layer int) int {
	if layer == 0 {
		return i.cfg.MMax
	}
	return i.cfg.M
}

// connect adds to as a neighbor of from at layer, respecting the bounded
// list. At capacity, the current farthest neighbor is evicted when the new
// connection is strictly closer. The greedy eviction is a deliberate local
// approximation; the deterministic test vectors depend on it.
func (i *Index) connect(from, to int, dist float32, layer int) {
	n := i.nodes[from]
	if layer > n.level {
		return
	}
	for _, nb := range n.neighbors[layer] {
		if nb.id == to {
			return
		}
	}

	if len(n.neighbors[layer]) < i.bound(layer) {
		n.neighbors[layer] = append(n.neighbors[layer], neighbor{id: to, dist: dist})
		return
	}

	farthest := 0
	for j := 1; j < len(n.neighbors[layer]); j++ {
		if n.neighbors[layer][j].dist > n.neighbors[layer][farthest].dist {
			farthest = j
		}
	}
	if dist < n.neighbors[layer][farthest].dist {
		n.neighbors[layer][farthest] = neighbor{id: to, dist: dist}
	}
}

// greedyClosest hill-climbs at one layer from start to the single nearest
// node, following any strictly improving neighbor until none remains.
func (i *Index) greedyClosest(query *embedding.Embedding, start int, layer int) int {
	curr := start
	currDist := i.distance(query, curr)

	for changed := true; changed; {
		changed = false
		n := i.nodes[curr]
		if layer > n.level {
			break
		}
		for _, nb := range n.neighbors[layer] {
			if d := i.distance(query, nb.id); d < currDist {
				curr = nb.id
				currDist = d
				changed = true
			}
		}
	}
	return curr
}

// searchLayer runs a bounded best-first beam expansion at one layer starting
// from entry, returning up to ef node ids sorted ascending by distance.
func (i *Index) searchLayer(query *embedding.Embedding, entry int, ef int, layer int) []neighbor {
	visited := make(map[int]bool, ef*2)
	visited[entry] = true

	entryDist := i.distance(query, entry)
	candidates := &minHeap{{id: entry, dist: entryDist}}
	found := &maxHeap{{id: entry, dist: entryDist}}

	for candidates.Len() > 0 {
		curr := heap.Pop(candidates).(neighbor)
		if curr.dist > (*found)[0].dist && found.Len() >= ef {
			break
		}

		n := i.nodes[curr.id]
		if layer > n.level {
			continue
		}
		for _, nb := range n.neighbors[layer] {
			if visited[nb.id] {
				continue
			}
			visited[nb.id] = true

			d := i.distance(query, nb.id)
			if found.Len() < ef || d < (*found)[0].dist {
				heap.Push(candidates, neighbor{id: nb.id, dist: d})
				heap.Push(found, neighbor{id: nb.id, dist: d})
				if found.Len() > ef {
					heap.Pop(found)
				}
			}
		}
	}

	result := make([]neighbor, found.Len())
	for j := len(result) - 1; j >= 0; j-- {
		result[j] = heap.Pop(found).(neighbor)
	}
	return result
}

// insert adds the snapshot embedding at index emb to the graph.
func (i *Index) insert(emb int) {
	level := i.randomLevel()

	n := &node{
		id:        len(i.nodes),
		emb:       emb,
		level:     level,
		neighbors: make([][]neighbor, level+1),
	}
	i.nodes = append(i.nodes, n)

	if i.entry < 0 {
		i.entry = n.id
		i.maxLayer = level
		return
	}

	query := i.embeddings[emb]

	// Descend through layers above the drawn level, hill-climbing to the
	// single nearest node at each.
	curr := i.entry
	for lc := i.maxLayer; lc > level; lc-- {
		curr = i.greedyClosest(query, curr, lc)
	}

	// Connect bidirectionally at each layer from min(level, maxLayer) down
	// to 0, using an ef-bounded candidate expansion per layer.
	top := level
	if top > i.maxLayer {
		top = i.maxLayer
	}
	for lc := top; lc >= 0; lc-- {
		candidates := i.searchLayer(query, curr, i.cfg.EfConstruction, lc)

		m := i.bound(lc)
		if m > len(candidates) {
			m = len(candidates)
		}
		for _, c := range candidates[:m] {
			i.connect(n.id, c.id, c.dist, lc)
			i.connect(c.id, n.id, c.dist, lc)
		}

		if len(candidates) > 0 {
			curr = candidates[0].id
		}
	}

	// A node drawn above the current maximum layer becomes the new entry
	// point.
	if level > i.maxLayer {
		i.entry = n.id
		i.maxLayer = level
	}
}

// Search returns up to k approximate nearest neighbors of query, ascending
// by distance. An empty index yields an empty result, not an error; a
// single-node index always yields that node.
func (i *Index) Search(query *embedding.Embedding, k int) []Result {
	if len(i.nodes) == 0 || query == nil || k <= 0 {
		return nil
	}

	curr := i.entry
	for lc := i.maxLayer; lc > 0; lc-- {
		curr = i.greedyClosest(query, curr, lc)
	}

	ef := i.cfg.EfSearch
	if ef < k {
		ef = k
	}
	candidates := i.searchLayer(query, curr, ef, 0)

	if k > len(candidates) {
		k = len(candidates)
	}
	results := make([]Result, k)
	for j := 0; j < k; j++ {
		results[j] = Result{
			RecordID: i.embeddings[i.nodes[candidates[j].id].emb].RecordID,
			Distance: candidates[j].dist,
		}
	}
	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Distance < results[b].Distance
	})
	return results
}

// minHeap pops the closest candidate first.
type minHeap []neighbor

func (h minHeap) Len() int            { return len(h) }
func (h minHeap) Less(a, b int) bool  { return h[a].dist < h[b].dist }
func (h minHeap) Swap(a, b int)       { h[a], h[b] = h[b], h[a] }
func (h *minHeap) Push(x interface{}) { *h = append(*h, x.(neighbor)) }
func (h *minHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// maxHeap pops the farthest kept result first, bounding the beam.
type maxHeap []neighbor

func (h maxHeap) Len() int            { return len(h) }
func (h maxHeap) Less(a, b int) bool  { return h[a].dist > h[b].dist }
func (h maxHeap) Swap(a, b int)       { h[a], h[b] = h[b], h[a] }
func (h *maxHeap) Push(x interface{}) { *h = append(*h, x.(neighbor)) }
func (h *maxHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
