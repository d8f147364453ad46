// internal/microarray/row_scoring.go
// Package microarray scores genes against clusters by within-cluster
// expression similarity on the shared matrix.
package microarray

import (
	"context"
	"math"

	"go.uber.org/zap"

	"biclust/internal/datamatrix"
	"biclust/internal/membership"
	"biclust/internal/scoring"
)

const logEps = 1e-99 // floor before the log so empty deviations stay finite

// RowScoringFunction scores every gene against every cluster: the mean
// squared deviation of the gene's values from the cluster's column-mean
// profile over the cluster's member conditions, log-damped and negated so
// that larger is better, in line with the other evidence sources.
type RowScoringFunction struct {
	scoring.FunctionBase
	mem *membership.ClusterMembership
	mat *datamatrix.DataMatrix
	log *zap.Logger
}

// New creates the expression scoring function. The matrix and membership are
// read-only inputs and are never mutated.
func New(mem *membership.ClusterMembership, mat *datamatrix.DataMatrix, weight scoring.WeightSchedule, logger *zap.Logger) *RowScoringFunction {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RowScoringFunction{
		FunctionBase: scoring.NewFunctionBase("expression", weight, nil),
		mem:          mem,
		mat:          mat,
		log:          logger,
	}
}

// Compute scores all membership genes against each cluster for the
// iteration. Deterministic: depends only on the matrix and the membership.
func (f *RowScoringFunction) Compute(ctx context.Context, iteration int) (*scoring.ScoreMatrix, error) {
	genes := f.mem.GeneNames()
	k := f.mem.NumClusters()
	result := scoring.NewScoreMatrix(genes, k)

	colIndex := make(map[string]int, f.mat.NumColumns())
	for i, name := range f.mat.ColumnNames() {
		colIndex[name] = i
	}

	for cluster := 0; cluster < k; cluster++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var cols []int
		for _, cond := range f.mem.ConditionsInCluster(cluster) {
			if ci, ok := colIndex[cond]; ok {
				cols = append(cols, ci)
			}
		}
		members := f.mem.GenesInCluster(cluster)
		if len(cols) == 0 || len(members) == 0 {
			continue // empty cluster contributes nothing
		}

		means := f.columnMeans(members, cols)
		for _, gene := range genes {
			var ssd float64
			var n int
			for i, ci := range cols {
				v, ok := f.mat.Value(gene, ci)
				if !ok || math.IsNaN(v) {
					continue
				}
				d := v - means[i]
				ssd += d * d
				n++
			}
			if n == 0 {
				continue
			}
			score := -math.Log(ssd/float64(n) + logEps)
			_ = result.Set(gene, cluster, score)
		}
	}
	return result, nil
}

// columnMeans averages the member genes' finite values per selected column.
func (f *RowScoringFunction) columnMeans(members []string, cols []int) []float64 {
	means := make([]float64, len(cols))
	for i, ci := range cols {
		var sum float64
		var n int
		for _, gene := range members {
			v, ok := f.mat.Value(gene, ci)
			if !ok || math.IsNaN(v) {
				continue
			}
			sum += v
			n++
		}
		if n > 0 {
			means[i] = sum / float64(n)
		}
	}
	return means
}
