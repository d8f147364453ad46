// internal/network/scoring.go
package network

import (
	"context"

	"go.uber.org/zap"

	"biclust/internal/membership"
	"biclust/internal/scoring"
)

// Source supplies the organism-derived inputs the network scoring needs.
// Satisfied by *organism.Organism.
type Source interface {
	Networks() []*Network
	CanonicalName(gene string) string
}

// ScoringFunction scores each gene against each cluster by the summed edge
// weight from the gene to the cluster's members across all networks,
// normalized by cluster size.
type ScoringFunction struct {
	scoring.FunctionBase
	src Source
	mem *membership.ClusterMembership
	log *zap.Logger
}

// NewScoring creates the network evidence source. A nil runsIn defaults to
// the standard network iteration cycle.
func NewScoring(src Source, mem *membership.ClusterMembership, weight scoring.WeightSchedule, runsIn scoring.RunPredicate, logger *zap.Logger) *ScoringFunction {
	if runsIn == nil {
		runsIn = scoring.DefaultNetworkIterations
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScoringFunction{
		FunctionBase: scoring.NewFunctionBase("network", weight, runsIn),
		src:          src,
		mem:          mem,
		log:          logger,
	}
}

// Compute scores co-membership consistency for the iteration. Gene names in
// the networks are canonicalized through the organism thesaurus before the
// edge lookup.
func (f *ScoringFunction) Compute(ctx context.Context, iteration int) (*scoring.ScoreMatrix, error) {
	genes := f.mem.GeneNames()
	k := f.mem.NumClusters()
	result := scoring.NewScoreMatrix(genes, k)

	networks := f.src.Networks()
	if len(networks) == 0 {
		f.log.Warn("no networks configured, network evidence is neutral",
			zap.Int("iteration", iteration))
		return result, nil
	}

	canonical := make(map[string]string, len(genes))
	for _, g := range genes {
		canonical[g] = f.src.CanonicalName(g)
	}

	for cluster := 0; cluster < k; cluster++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		members := f.mem.GenesInCluster(cluster)
		if len(members) == 0 {
			continue
		}
		for _, gene := range genes {
			var sum float64
			cg := canonical[gene]
			for _, nw := range networks {
				for _, m := range members {
					if m == gene {
						continue
					}
					sum += nw.EdgeWeight(cg, canonical[m])
				}
			}
			if sum != 0 {
				_ = result.Set(gene, cluster, sum/float64(len(members)))
			}
		}
	}
	return result, nil
}
