// Package graph provides the canonical graph model shared by the
// call-graph and CFG stages. It normalizes raw toolchain graph dumps into
// a clean node/edge form: node identities stripped of label decoration,
// parallel edges collapsed, node and edge order stable (first seen).
package graph

// Edge is a directed, unweighted edge between two canonical nodes.
type Edge struct {
	From string `msgpack:"from" json:"from"`
	To   string `msgpack:"to" json:"to"`
}

// Graph is a canonical directed graph. Nodes and Edges preserve
// first-seen order; duplicate nodes and parallel edges are collapsed on
// insertion.
type Graph struct {
	// Name identifies the graph (function name for a CFG, module or
	// program name for a call graph).
	Name  string   `msgpack:"name" json:"name"`
	Nodes []string `msgpack:"nodes" json:"nodes"`
	Edges []Edge   `msgpack:"edges" json:"edges"`

	nodeSet map[string]struct{}
	edgeSet map[Edge]struct{}
}

// New creates an empty canonical graph.
func New(name string) *Graph {
	return &Graph{
		Name:    name,
		nodeSet: make(map[string]struct{}),
		edgeSet: make(map[Edge]struct{}),
	}
}

// reindex rebuilds the dedup sets from the exported slices. Called after
// deserialization, when only Nodes/Edges are populated.
func (g *Graph) reindex() {
	g.nodeSet = make(map[string]struct{}, len(g.Nodes))
	for _, n := range g.Nodes {
		g.nodeSet[n] = struct{}{}
	}
	g.edgeSet = make(map[Edge]struct{}, len(g.Edges))
	for _, e := range g.Edges {
		g.edgeSet[e] = struct{}{}
	}
}

// AddNode inserts a node if it is not already present. Empty names are
// ignored.
func (g *Graph) AddNode(name string) {
	if name == "" {
		return
	}
	if g.nodeSet == nil {
		g.reindex()
	}
	if _, ok := g.nodeSet[name]; ok {
		return
	}
	g.nodeSet[name] = struct{}{}
	g.Nodes = append(g.Nodes, name)
}

// AddEdge inserts a directed edge, creating its endpoints as needed.
// Parallel edges collapse to the first occurrence; self-loops are kept.
func (g *Graph) AddEdge(from, to string) {
	if from == "" || to == "" {
		return
	}
	g.AddNode(from)
	g.AddNode(to)
	e := Edge{From: from, To: to}
	if _, ok := g.edgeSet[e]; ok {
		return
	}
	g.edgeSet[e] = struct{}{}
	g.Edges = append(g.Edges, e)
}

// HasNode reports whether the graph contains the named node.
func (g *Graph) HasNode(name string) bool {
	if g.nodeSet == nil {
		g.reindex()
	}
	_, ok := g.nodeSet[name]
	return ok
}

// NodeCount returns the number of canonical nodes.
func (g *Graph) NodeCount() int { return len(g.Nodes) }

// EdgeCount returns the number of canonical edges.
func (g *Graph) EdgeCount() int { return len(g.Edges) }

// Adjacency returns a neighbor map. With undirected set, every edge
// contributes both directions, which is how the distance solver measures
// reachability. Neighbor order follows edge insertion order, so traversals
// over the map values are deterministic.
func (g *Graph) Adjacency(undirected bool) map[string][]string {
	adj := make(map[string][]string, len(g.Nodes))
	seen := make(map[Edge]struct{}, len(g.Edges)*2)
	add := func(from, to string) {
		e := Edge{From: from, To: to}
		if _, ok := seen[e]; ok {
			return
		}
		seen[e] = struct{}{}
		adj[from] = append(adj[from], to)
	}
	for _, e := range g.Edges {
		add(e.From, e.To)
		if undirected {
			add(e.To, e.From)
		}
	}
	return adj
}

// Merge unions the given canonical graphs into one. Nodes with the same
// name are identity-merged; duplicate edges across inputs collapse, so the
// merged edge count never exceeds the sum of the input edge counts.
func Merge(name string, graphs ...*Graph) *Graph {
	merged := New(name)
	for _, g := range graphs {
		if g == nil {
			continue
		}
		for _, n := range g.Nodes {
			merged.AddNode(n)
		}
		for _, e := range g.Edges {
			merged.AddEdge(e.From, e.To)
		}
	}
	return merged
}
