// internal/scoring/scoring.go
// Package scoring defines the evidence-combination framework: scoring
// functions compute per-(gene, cluster) score matrices for an iteration,
// weight schedules phase their influence in and out, and the Combiner folds
// all registered functions into one combined matrix per iteration.
package scoring

import (
	"context"
	"errors"
)

// ErrInconsistent indicates a scoring function returned entries for genes or
// clusters that are not part of the current membership. Silent misalignment
// would corrupt the clustering, so this fails loudly.
var ErrInconsistent = errors.New("scoring: result inconsistent with membership")

// WeightSchedule maps an iteration index to the scalar weight of a scoring
// function. Must be total over the run and side-effect free; it is evaluated
// every iteration for every registered function.
type WeightSchedule func(iteration int) float64

// ConstantWeight returns w for every iteration.
func ConstantWeight(w float64) WeightSchedule {
	return func(int) float64 { return w }
}

// StepWeight returns 0 before activateAt and w from activateAt on, for
// phased evidence introduction.
func StepWeight(activateAt int, w float64) WeightSchedule {
	return func(iteration int) float64 {
		if iteration < activateAt {
			return 0
		}
		return w
	}
}

// RunPredicate decides whether a scoring function actually computes in a
// given iteration, independently of its weight.
type RunPredicate func(iteration int) bool

// Always runs the function in every iteration.
func Always(int) bool { return true }

// EveryNth runs from iteration start on, every n-th iteration.
func EveryNth(start, n int) RunPredicate {
	return func(iteration int) bool {
		return iteration >= start && (iteration-start)%n == 0
	}
}

// Default schedules for the expensive evidence sources: motif discovery
// starts once expression clusters have stabilized, network scoring runs on a
// shorter cycle from the beginning.
var (
	DefaultMotifIterations   = EveryNth(100, 10)
	DefaultNetworkIterations = EveryNth(0, 7)
)

// Function is one source of clustering evidence. Compute must be
// deterministic for identical membership and iteration, must not mutate any
// shared input, and must degrade external failures to a neutral (empty)
// result instead of returning an error. Errors are reserved for contract
// violations and cancellation.
type Function interface {
	Name() string
	Compute(ctx context.Context, iteration int) (*ScoreMatrix, error)
	Weight(iteration int) float64
	RunsIn(iteration int) bool
}

// FunctionBase carries the name, weight schedule and run predicate shared by
// all Function implementations.
type FunctionBase struct {
	name   string
	weight WeightSchedule
	runsIn RunPredicate
}

// NewFunctionBase builds a FunctionBase; a nil predicate means "always".
func NewFunctionBase(name string, weight WeightSchedule, runsIn RunPredicate) FunctionBase {
	if runsIn == nil {
		runsIn = Always
	}
	return FunctionBase{name: name, weight: weight, runsIn: runsIn}
}

// Name returns the function's registration name.
func (b FunctionBase) Name() string { return b.name }

// Weight evaluates the weight schedule for an iteration.
func (b FunctionBase) Weight(iteration int) float64 { return b.weight(iteration) }

// RunsIn evaluates the run predicate for an iteration.
func (b FunctionBase) RunsIn(iteration int) bool { return b.runsIn(iteration) }
