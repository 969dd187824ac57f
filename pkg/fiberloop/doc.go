package fiberloop

import "fmt"

// DefaultAggregationMode parses cfg's DefaultAggregationMode string
// ("auto", "single", or "group") into an AggregationMode, for callers
// that want Run's mode argument driven by runtimeconfig rather than
// hardcoded at the call site.
func DefaultAggregationMode(mode string) (AggregationMode, error) {
	switch mode {
	case "", "auto":
		return AggregationAuto, nil
	case "single":
		return AggregationSingle, nil
	case "group":
		return AggregationGroup, nil
	default:
		return AggregationAuto, fmt.Errorf("fiberloop: unknown aggregation mode %q", mode)
	}
}
