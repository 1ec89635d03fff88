package vector

import (
	"container/heap"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
)

const maxLevel = 16

// HNSWConfig holds graph construction and default search parameters.
type HNSWConfig struct {
	M              int   // links per node on upper layers; layer 0 allows 2*M
	EfConstruction int   // candidate list size while inserting
	EfSearch       int   // default candidate list size for queries
	Seed           int64 // level assignment seed
}

func (c HNSWConfig) withDefaults() HNSWConfig {
	if c.M < 2 {
		c.M = 16
	}
	if c.EfConstruction <= 0 {
		c.EfConstruction = 200
	}
	if c.EfSearch <= 0 {
		c.EfSearch = 32
	}
	return c
}

func (c HNSWConfig) maxConnections(level int) int {
	if level == 0 {
		return 2 * c.M
	}
	return c.M
}

type hnswNode struct {
	id        int64
	vector    []float32 // normalized
	neighbors [][]int32 // neighbors[level] holds node positions
}

// hnswGraph is immutable once built; searches read it without copying.
type hnswGraph struct {
	nodes    []hnswNode
	entry    int32 // -1 when empty
	topLevel int
}

// HNSWIndex is a hierarchical navigable small world graph over cosine similarity.
type HNSWIndex struct {
	dims   int
	cfg    HNSWConfig
	graph  *hnswGraph
	closed bool
	mu     sync.RWMutex
}

// NewHNSWIndex creates an empty, unbuilt HNSW index.
func NewHNSWIndex(dimensions int, cfg HNSWConfig) (*HNSWIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &HNSWIndex{dims: dimensions, cfg: cfg.withDefaults()}, nil
}

// Type returns the index type identifier.
func (h *HNSWIndex) Type() string {
	return string(IndexTypeHNSW)
}

// Dimensions returns the vector dimension.
func (h *HNSWIndex) Dimensions() int {
	return h.dims
}

// Config returns the effective construction parameters.
func (h *HNSWIndex) Config() HNSWConfig {
	return h.cfg
}

// Built reports whether Build has completed.
func (h *HNSWIndex) Built() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.graph != nil
}

// Len returns the number of indexed vectors.
func (h *HNSWIndex) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.graph == nil {
		return 0
	}
	return len(h.graph.nodes)
}

// Build constructs a new graph over entries and swaps it in.
// Entries are inserted in ascending id order so the graph depends only on the set and the seed.
func (h *HNSWIndex) Build(entries []Entry) error {
	if err := checkDimensions(entries, h.dims); err != nil {
		return err
	}
	sortedEntries := make([]Entry, len(entries))
	copy(sortedEntries, entries)
	sort.Slice(sortedEntries, func(i, j int) bool { return sortedEntries[i].ID < sortedEntries[j].ID })

	g := buildGraph(sortedEntries, h.cfg)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	h.graph = g
	return nil
}

func buildGraph(entries []Entry, cfg HNSWConfig) *hnswGraph {
	g := &hnswGraph{nodes: make([]hnswNode, 0, len(entries)), entry: -1}
	rng := rand.New(rand.NewSource(cfg.Seed))
	levelMult := 1 / math.Log(float64(cfg.M))
	for _, e := range entries {
		level := int(math.Floor(-math.Log(1-rng.Float64()) * levelMult))
		if level > maxLevel {
			level = maxLevel
		}
		g.insert(e, level, cfg)
	}
	return g
}

func (g *hnswGraph) insert(e Entry, level int, cfg HNSWConfig) {
	pos := int32(len(g.nodes))
	g.nodes = append(g.nodes, hnswNode{
		id:        e.ID,
		vector:    normalized(e.Vector),
		neighbors: make([][]int32, level+1),
	})
	if g.entry < 0 {
		g.entry = pos
		g.topLevel = level
		return
	}

	vec := g.nodes[pos].vector
	ep := g.entry
	for l := g.topLevel; l > level; l-- {
		ep = g.greedy(vec, ep, l)
	}
	for l := min(level, g.topLevel); l >= 0; l-- {
		candidates := g.searchLayer(vec, ep, cfg.EfConstruction, l)
		selected := g.selectNeighbors(vec, candidates, cfg.maxConnections(l))
		links := make([]int32, len(selected))
		for i, s := range selected {
			links[i] = s.node
		}
		g.nodes[pos].neighbors[l] = links
		for _, n := range links {
			g.link(n, pos, l, cfg.maxConnections(l))
		}
		if len(candidates) > 0 {
			ep = candidates[0].node
		}
	}
	if level > g.topLevel {
		g.topLevel = level
		g.entry = pos
	}
}

// link adds a back edge from node to target, pruning node's list with the neighbour heuristic when over cap.
func (g *hnswGraph) link(node, target int32, level, maxConn int) {
	n := &g.nodes[node]
	n.neighbors[level] = append(n.neighbors[level], target)
	if len(n.neighbors[level]) <= maxConn {
		return
	}
	candidates := make([]scored, len(n.neighbors[level]))
	for i, nb := range n.neighbors[level] {
		candidates[i] = g.score(n.vector, nb)
	}
	sort.Slice(candidates, func(i, j int) bool { return better(candidates[i].hit, candidates[j].hit) })
	selected := g.selectNeighbors(n.vector, candidates, maxConn)
	links := make([]int32, len(selected))
	for i, s := range selected {
		links[i] = s.node
	}
	n.neighbors[level] = links
}

// selectNeighbors applies the relative neighbourhood heuristic: a candidate is kept only if it is
// closer to the base vector than to every neighbour already kept. Remaining slots are filled with
// the best discarded candidates. candidates must be sorted best-first.
func (g *hnswGraph) selectNeighbors(base []float32, candidates []scored, m int) []scored {
	if len(candidates) <= m {
		return candidates
	}
	selected := make([]scored, 0, m)
	var discarded []scored
	for _, c := range candidates {
		if len(selected) >= m {
			break
		}
		keep := true
		for _, s := range selected {
			if similarity(g.nodes[c.node].vector, g.nodes[s.node].vector) > c.hit.Similarity {
				keep = false
				break
			}
		}
		if keep {
			selected = append(selected, c)
		} else {
			discarded = append(discarded, c)
		}
	}
	for _, c := range discarded {
		if len(selected) >= m {
			break
		}
		selected = append(selected, c)
	}
	return selected
}

func (g *hnswGraph) score(query []float32, node int32) scored {
	n := &g.nodes[node]
	return scored{node: node, hit: Hit{ID: n.id, Similarity: similarity(query, n.vector)}}
}

// greedy walks to the neighbour most similar to query until no neighbour improves.
func (g *hnswGraph) greedy(query []float32, ep int32, level int) int32 {
	cur := g.score(query, ep)
	for {
		changed := false
		for _, nb := range g.nodes[cur.node].neighbors[level] {
			if s := g.score(query, nb); better(s.hit, cur.hit) {
				cur = s
				changed = true
			}
		}
		if !changed {
			return cur.node
		}
	}
}

// searchLayer is the bounded best-first search of one layer. It returns up to ef nodes best-first.
func (g *hnswGraph) searchLayer(query []float32, ep int32, ef, level int) []scored {
	visited := make(map[int32]struct{}, ef*4)
	candidates := &candidateHeap{}
	results := &resultHeap{}

	start := g.score(query, ep)
	visited[ep] = struct{}{}
	heap.Push(candidates, start)
	heap.Push(results, start)

	for candidates.Len() > 0 {
		c := heap.Pop(candidates).(scored)
		if results.Len() >= ef && better(results.worst().hit, c.hit) {
			break
		}
		for _, nb := range g.nodes[c.node].neighbors[level] {
			if _, ok := visited[nb]; ok {
				continue
			}
			visited[nb] = struct{}{}
			s := g.score(query, nb)
			if results.Len() < ef || better(s.hit, results.worst().hit) {
				heap.Push(candidates, s)
				heap.Push(results, s)
				if results.Len() > ef {
					heap.Pop(results)
				}
			}
		}
	}
	return results.sorted()
}

// Search returns up to k hits. The candidate list size is max(k, quality.EfSearch or the configured default).
func (h *HNSWIndex) Search(query []float32, k int, quality SearchQuality) ([]Hit, error) {
	if k < 1 {
		return nil, ErrInvalidK
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return nil, ErrClosed
	}
	if h.graph == nil {
		return nil, ErrNotBuilt
	}
	if len(query) != h.dims {
		return nil, &DimensionMismatchError{Expected: h.dims, Actual: len(query)}
	}
	g := h.graph
	if g.entry < 0 {
		return []Hit{}, nil
	}

	ef := quality.EfSearch
	if ef <= 0 {
		ef = h.cfg.EfSearch
	}
	if ef < k {
		ef = k
	}

	q := normalized(query)
	ep := g.entry
	for l := g.topLevel; l > 0; l-- {
		ep = g.greedy(q, ep, l)
	}
	found := g.searchLayer(q, ep, ef, 0)
	if len(found) > k {
		found = found[:k]
	}
	hits := make([]Hit, len(found))
	for i, s := range found {
		hits[i] = s.hit
	}
	return hits, nil
}

// Close releases the graph. Later calls return ErrClosed.
func (h *HNSWIndex) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.graph = nil
	h.closed = true
	return nil
}
