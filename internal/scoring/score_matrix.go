// internal/scoring/score_matrix.go
package scoring

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownGene indicates a Set on a gene outside the matrix.
	ErrUnknownGene = errors.New("scoring: unknown gene")
	// ErrBadCluster indicates a cluster index outside [0, NumClusters).
	ErrBadCluster = errors.New("scoring: cluster index out of range")
)

// ScoreMatrix holds one score per (gene, cluster) pair. Pairs never written
// read as exactly zero, which the Combiner treats as "no contribution".
type ScoreMatrix struct {
	genes    []string
	index    map[string]int
	clusters int
	data     []float64 // row-major, len == len(genes)*clusters
}

// NewScoreMatrix creates a zero matrix over the given genes and cluster
// count. The gene slice is copied; its order is preserved.
func NewScoreMatrix(genes []string, clusters int) *ScoreMatrix {
	idx := make(map[string]int, len(genes))
	for i, g := range genes {
		idx[g] = i
	}
	return &ScoreMatrix{
		genes:    append([]string(nil), genes...),
		index:    idx,
		clusters: clusters,
		data:     make([]float64, len(genes)*clusters),
	}
}

// NumClusters returns the cluster dimension.
func (m *ScoreMatrix) NumClusters() int { return m.clusters }

// Genes returns the gene names in matrix order.
func (m *ScoreMatrix) Genes() []string { return append([]string(nil), m.genes...) }

// HasGene reports whether the matrix carries a row for the gene.
func (m *ScoreMatrix) HasGene(gene string) bool {
	_, ok := m.index[gene]
	return ok
}

// Set stores a score for (gene, cluster).
func (m *ScoreMatrix) Set(gene string, cluster int, v float64) error {
	row, ok := m.index[gene]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownGene, gene)
	}
	if cluster < 0 || cluster >= m.clusters {
		return fmt.Errorf("%w: %d", ErrBadCluster, cluster)
	}
	m.data[row*m.clusters+cluster] = v
	return nil
}

// Add accumulates v onto the existing score for (gene, cluster).
func (m *ScoreMatrix) Add(gene string, cluster int, v float64) error {
	row, ok := m.index[gene]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownGene, gene)
	}
	if cluster < 0 || cluster >= m.clusters {
		return fmt.Errorf("%w: %d", ErrBadCluster, cluster)
	}
	m.data[row*m.clusters+cluster] += v
	return nil
}

// Score returns the score for (gene, cluster), zero when the pair is absent.
// Satisfies membership.Scores.
func (m *ScoreMatrix) Score(gene string, cluster int) float64 {
	row, ok := m.index[gene]
	if !ok || cluster < 0 || cluster >= m.clusters {
		return 0
	}
	return m.data[row*m.clusters+cluster]
}
