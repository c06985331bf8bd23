package distance

import "github.com/julianzuo526/pathfuzz/pkg/graph"

// Row is one computed distance: a node identity and its aggregate
// distance to the target set. Nodes with no reachable target produce no
// Row at all.
type Row struct {
	Name     string
	Distance float64
}

// Solver runs unweighted shortest-path queries over one canonical graph.
// Edges are treated as undirected for reachability: a function is close to
// a target whether it calls toward it or sits on a path that leads to it.
type Solver struct {
	adj map[string][]string
	agg Aggregator
}

// NewSolver prepares a solver for the given graph and aggregation
// strategy.
func NewSolver(g *graph.Graph, agg Aggregator) *Solver {
	return &Solver{adj: g.Adjacency(true), agg: agg}
}

// fromTarget computes BFS hop counts from one target to every reachable
// node.
func (s *Solver) fromTarget(target string) map[string]int {
	dist := map[string]int{target: 0}
	queue := []string{target}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range s.adj[cur] {
			if _, seen := dist[next]; seen {
				continue
			}
			dist[next] = dist[cur] + 1
			queue = append(queue, next)
		}
	}
	return dist
}

// Solve computes one Row per universe node, in universe order. Target
// nodes get 0 by definition. Every other node aggregates its shortest
// distances to the reachable targets; nodes reaching no target are
// omitted. Identical inputs always produce identical rows.
func (s *Solver) Solve(universe, targets []string) []Row {
	targetSet := make(map[string]struct{}, len(targets))
	perTarget := make([]map[string]int, 0, len(targets))
	for _, t := range targets {
		if _, dup := targetSet[t]; dup {
			continue
		}
		targetSet[t] = struct{}{}
		perTarget = append(perTarget, s.fromTarget(t))
	}

	rows := make([]Row, 0, len(universe))
	seen := make(map[string]struct{}, len(universe))
	for _, n := range universe {
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}

		if _, isTarget := targetSet[n]; isTarget {
			rows = append(rows, Row{Name: n, Distance: 0})
			continue
		}
		var dists []float64
		for _, dm := range perTarget {
			if d, ok := dm[n]; ok {
				dists = append(dists, float64(d))
			}
		}
		if len(dists) == 0 {
			continue
		}
		rows = append(rows, Row{Name: n, Distance: s.agg.Aggregate(dists)})
	}
	return rows
}
