// internal/motif/scoring.go
package motif

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"biclust/internal/membership"
	"biclust/internal/scoring"
)

// SequenceSource resolves member sequences for a sequence region type.
// Satisfied by *organism.Organism.
type SequenceSource interface {
	SequencesFor(seqType string, genes []string) (map[string]string, error)
}

// ScoringFunction is the motif evidence source for one sequence region type
// (one instance per region, e.g. upstream and p3utr). External tool failures
// and timeouts degrade to a neutral contribution with a warning; they never
// abort the combiner.
type ScoringFunction struct {
	scoring.FunctionBase
	seqs        SequenceSource
	mem         *membership.ClusterMembership
	suite       Suite
	seqType     string
	pvalueFloor float64
	cacheDir    string
	log         *zap.Logger
}

// NewScoring creates a motif scoring function for the given sequence type.
// pvalueFloor is a log10 p-value; only hits at least that significant
// (LogPValue <= pvalueFloor) survive the filter. A nil runsIn defaults to
// the standard motif iteration cycle.
func NewScoring(seqs SequenceSource, mem *membership.ClusterMembership, suite Suite,
	seqType string, pvalueFloor float64, cacheDir string,
	weight scoring.WeightSchedule, runsIn scoring.RunPredicate, logger *zap.Logger) *ScoringFunction {
	if runsIn == nil {
		runsIn = scoring.DefaultMotifIterations
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScoringFunction{
		FunctionBase: scoring.NewFunctionBase("motif-"+seqType, weight, runsIn),
		seqs:         seqs,
		mem:          mem,
		suite:        suite,
		seqType:      seqType,
		pvalueFloor:  pvalueFloor,
		cacheDir:     cacheDir,
		log:          logger,
	}
}

// Compute runs the motif search per cluster over the members' sequences for
// this function's region type and emits -LogPValue for the surviving hits.
func (f *ScoringFunction) Compute(ctx context.Context, iteration int) (*scoring.ScoreMatrix, error) {
	genes := f.mem.GeneNames()
	k := f.mem.NumClusters()
	result := scoring.NewScoreMatrix(genes, k)

	for cluster := 0; cluster < k; cluster++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		members := f.mem.GenesInCluster(cluster)
		if len(members) < 2 {
			continue // motif discovery needs more than one sequence
		}

		seqs, err := f.seqs.SequencesFor(f.seqType, members)
		if err != nil {
			f.log.Warn("sequence resolution failed, motif evidence is neutral for cluster",
				zap.String("function", f.Name()), zap.Int("cluster", cluster), zap.Error(err))
			continue
		}
		if len(seqs) < 2 {
			continue
		}

		fastaPath, err := f.writeFasta(cluster, iteration, seqs)
		if err != nil {
			f.log.Warn("could not stage cluster sequences",
				zap.String("function", f.Name()), zap.Int("cluster", cluster), zap.Error(err))
			continue
		}

		hits, err := f.suite.RunMotifSearch(ctx, fastaPath)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			f.log.Warn("motif tool failed, substituting neutral contribution",
				zap.String("function", f.Name()), zap.Int("cluster", cluster),
				zap.Int("iteration", iteration), zap.Error(err))
			continue
		}

		for _, h := range hits {
			if h.LogPValue > f.pvalueFloor {
				continue // not significant enough
			}
			if !f.mem.HasGene(h.Gene) {
				// The tool can report a name the thesaurus did not map back;
				// dropping it here keeps the scoring contract intact.
				f.log.Debug("motif hit for gene outside membership",
					zap.String("gene", h.Gene))
				continue
			}
			_ = result.Set(h.Gene, cluster, -h.LogPValue)
		}
	}
	return result, nil
}

// writeFasta stages the member sequences for the external tool. The file
// name is deterministic per (seqtype, cluster, iteration) so reruns of an
// iteration overwrite instead of piling up.
func (f *ScoringFunction) writeFasta(cluster, iteration int, seqs map[string]string) (string, error) {
	if err := os.MkdirAll(f.cacheDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(f.cacheDir,
		fmt.Sprintf("motif_%s_c%d_i%d.fasta", f.seqType, cluster, iteration))

	names := make([]string, 0, len(seqs))
	for g := range seqs {
		names = append(names, g)
	}
	sort.Strings(names)

	fh, err := os.Create(path)
	if err != nil {
		return "", err
	}
	for _, g := range names {
		if _, err := fmt.Fprintf(fh, ">%s\n%s\n", g, seqs[g]); err != nil {
			_ = fh.Close()
			return "", err
		}
	}
	if err := fh.Close(); err != nil {
		return "", err
	}
	return path, nil
}
