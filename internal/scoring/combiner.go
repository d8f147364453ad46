// internal/scoring/combiner.go
package scoring

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"biclust/internal/membership"
)

// Combiner aggregates the weighted outputs of the registered scoring
// functions into one combined score matrix per iteration. Functions are
// evaluated concurrently; accumulation always happens in registration order
// so floating-point rounding is reproducible across runs and across resume.
type Combiner struct {
	mem        *membership.ClusterMembership
	fns        []Function
	log        *zap.Logger
	sequential bool
}

// CombinerOption configures a Combiner.
type CombinerOption func(*Combiner)

// WithCombinerLogger attaches a logger.
func WithCombinerLogger(l *zap.Logger) CombinerOption {
	return func(c *Combiner) { c.log = l }
}

// Sequential disables concurrent evaluation. The combined result must be
// identical either way; the switch exists for debugging and for the tests
// that assert exactly that.
func Sequential() CombinerOption {
	return func(c *Combiner) { c.sequential = true }
}

// NewCombiner registers the scoring functions in the order given; that order
// is the fixed logical combination order.
func NewCombiner(mem *membership.ClusterMembership, fns []Function, opts ...CombinerOption) *Combiner {
	c := &Combiner{mem: mem, fns: fns, log: zap.NewNop()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Combine computes the combined score matrix for the iteration. Functions
// whose run predicate is false or whose weight is exactly zero are skipped
// without being invoked; by the Function contract a skipped zero-weight
// function contributes exactly what invoking it and scaling by zero would.
func (c *Combiner) Combine(ctx context.Context, iteration int) (*ScoreMatrix, error) {
	type slot struct {
		fn     Function
		weight float64
		out    *ScoreMatrix
	}

	var slots []*slot
	for _, fn := range c.fns {
		if !fn.RunsIn(iteration) {
			continue
		}
		w := fn.Weight(iteration)
		if w == 0 {
			c.log.Debug("skipping zero-weight scoring function",
				zap.String("function", fn.Name()), zap.Int("iteration", iteration))
			continue
		}
		slots = append(slots, &slot{fn: fn, weight: w})
	}

	compute := func(ctx context.Context, s *slot) error {
		out, err := s.fn.Compute(ctx, iteration)
		if err != nil {
			return fmt.Errorf("scoring function %s: %w", s.fn.Name(), err)
		}
		if err := c.validate(out); err != nil {
			return fmt.Errorf("scoring function %s: %w", s.fn.Name(), err)
		}
		s.out = out
		return nil
	}

	if c.sequential {
		for _, s := range slots {
			if err := compute(ctx, s); err != nil {
				return nil, err
			}
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		for _, s := range slots {
			s := s
			g.Go(func() error { return compute(gctx, s) })
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	// Fold in registration order, independent of completion order.
	result := NewScoreMatrix(c.mem.GeneNames(), c.mem.NumClusters())
	for _, s := range slots {
		for _, gene := range s.out.genes {
			base := s.out.index[gene] * s.out.clusters
			for cluster := 0; cluster < s.out.clusters; cluster++ {
				if v := s.out.data[base+cluster]; v != 0 {
					_ = result.Add(gene, cluster, s.weight*v)
				}
			}
		}
	}
	return result, nil
}

func (c *Combiner) validate(out *ScoreMatrix) error {
	if out.NumClusters() != c.mem.NumClusters() {
		return fmt.Errorf("%w: cluster count %d, membership has %d",
			ErrInconsistent, out.NumClusters(), c.mem.NumClusters())
	}
	for _, gene := range out.genes {
		if !c.mem.HasGene(gene) {
			return fmt.Errorf("%w: gene %s not in membership", ErrInconsistent, gene)
		}
	}
	return nil
}
