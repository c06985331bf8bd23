package distance

import (
	"errors"

	"github.com/julianzuo526/pathfuzz/pkg/graph"
)

// ErrNoSignal is returned when the call-graph solver produces zero rows.
// A downstream fuzzer cannot operate with no distance signal at all, so an
// empty result is a failure, not an empty-but-valid output.
var ErrNoSignal = errors.New("no function reaches any target: distance map would be empty")

// FunctionDistances computes the aggregate distance of every function in
// the universe to the target functions, over the merged program call
// graph. Rows follow universe order.
func FunctionDistances(g *graph.Graph, fnames, ftargets []string, agg Aggregator) ([]Row, error) {
	solver := NewSolver(g, agg)
	rows := solver.Solve(fnames, ftargets)
	if len(rows) == 0 {
		return nil, ErrNoSignal
	}
	return rows, nil
}
