// Package distance computes target distances over canonical graphs. The
// same shortest-path core serves both the program-wide call graph and each
// function's block graph; a pluggable Aggregator folds the per-target
// distances into the single scalar a fuzzing scheduler consumes.
package distance

import "fmt"

// Aggregator combines the per-target shortest-path distances of one node
// into a single scalar. Inputs are always positive; a node sitting on a
// target is handled before aggregation.
type Aggregator interface {
	Name() string
	Aggregate(dists []float64) float64
}

// HarmonicMean weights closeness to the nearest targets much more heavily
// than to far ones: |R| / sum(1/d). With a single target it reduces to the
// plain shortest-path length.
type HarmonicMean struct{}

func (HarmonicMean) Name() string { return "harmonic" }

func (HarmonicMean) Aggregate(dists []float64) float64 {
	if len(dists) == 0 {
		return 0
	}
	sum := 0.0
	for _, d := range dists {
		sum += 1 / d
	}
	return float64(len(dists)) / sum
}

// ArithmeticMean is the plain average, kept as an alternative strategy for
// validating aggregation choices against reference distance files.
type ArithmeticMean struct{}

func (ArithmeticMean) Name() string { return "arithmetic" }

func (ArithmeticMean) Aggregate(dists []float64) float64 {
	if len(dists) == 0 {
		return 0
	}
	sum := 0.0
	for _, d := range dists {
		sum += d
	}
	return sum / float64(len(dists))
}

// Minimum keeps only the nearest target, discarding the rest of the
// vector.
type Minimum struct{}

func (Minimum) Name() string { return "minimum" }

func (Minimum) Aggregate(dists []float64) float64 {
	if len(dists) == 0 {
		return 0
	}
	min := dists[0]
	for _, d := range dists[1:] {
		if d < min {
			min = d
		}
	}
	return min
}

// AggregatorByName resolves a configured strategy name.
func AggregatorByName(name string) (Aggregator, error) {
	switch name {
	case "", "harmonic":
		return HarmonicMean{}, nil
	case "arithmetic":
		return ArithmeticMean{}, nil
	case "minimum":
		return Minimum{}, nil
	default:
		return nil, fmt.Errorf("unknown aggregation strategy: %s (use 'harmonic', 'arithmetic' or 'minimum')", name)
	}
}
