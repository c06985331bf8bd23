package distance

import "github.com/julianzuo526/pathfuzz/pkg/graph"

// CallSite relates a calling basic block to a callee function. It bridges
// the block graph to the program call graph: the callee's function-level
// distance re-enters the block computation as a virtual target one hop
// beyond the call site.
type CallSite struct {
	Block  string
	Callee string
}

// BlockDistances computes per-block distances for one function. universe
// is the set of blocks eligible for output (in emission order), targets
// the in-function target blocks. Each call site whose callee has a defined
// function-level distance d contributes d+1 at the call block, plus the
// path length for blocks that reach the call block. Blocks touching
// neither an in-function target nor a bridged call site are omitted.
func BlockDistances(g *graph.Graph, universe, targets []string, calls []CallSite, funcDist map[string]float64, agg Aggregator) []Row {
	solver := NewSolver(g, agg)

	targetSet := make(map[string]struct{}, len(targets))
	perTarget := make([]map[string]int, 0, len(targets))
	for _, t := range targets {
		if !g.HasNode(t) {
			continue
		}
		if _, dup := targetSet[t]; dup {
			continue
		}
		targetSet[t] = struct{}{}
		perTarget = append(perTarget, solver.fromTarget(t))
	}

	// One BFS per distinct call block; undirected hop counts are
	// symmetric, so distance from the call block equals distance to it.
	type bridge struct {
		reach  map[string]int
		offset float64
	}
	var bridges []bridge
	siteReach := make(map[string]map[string]int)
	for _, c := range calls {
		if !g.HasNode(c.Block) {
			continue
		}
		fd, ok := funcDist[c.Callee]
		if !ok {
			continue
		}
		reach, cached := siteReach[c.Block]
		if !cached {
			reach = solver.fromTarget(c.Block)
			siteReach[c.Block] = reach
		}
		bridges = append(bridges, bridge{reach: reach, offset: fd + 1})
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
		for _, b := range bridges {
			if d, ok := b.reach[n]; ok {
				dists = append(dists, float64(d)+b.offset)
			}
		}
		if len(dists) == 0 {
			continue
		}
		rows = append(rows, Row{Name: n, Distance: agg.Aggregate(dists)})
	}
	return rows
}
