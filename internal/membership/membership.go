// internal/membership/membership.go
// Package membership tracks the assignment of genes and conditions to
// clusters. Scoring functions read it; only the iteration driver's update
// step mutates it, strictly between scoring passes.
package membership

import (
	"errors"
	"fmt"

	"biclust/internal/datamatrix"
)

var (
	// ErrBadClusterCount is returned for a non-positive cluster count.
	ErrBadClusterCount = errors.New("membership: cluster count must be > 0")
	// ErrUnknownGene indicates a gene that is not part of the membership.
	ErrUnknownGene = errors.New("membership: unknown gene")
)

// RowSeeder produces the initial gene-to-cluster assignment.
type RowSeeder func(genes []string, numClusters int) map[string][]int

// ColumnSeeder produces the initial condition-to-cluster assignment.
type ColumnSeeder func(conditions []string, numClusters int) map[string][]int

// ModuloRowSeeder assigns gene i (in the given order) to cluster i mod k.
// Deterministic stand-in for a kmeans-based seeder.
func ModuloRowSeeder(genes []string, numClusters int) map[string][]int {
	out := make(map[string][]int, len(genes))
	for i, g := range genes {
		out[g] = []int{i % numClusters}
	}
	return out
}

// ModuloColumnSeeder assigns every condition to all clusters in rotation,
// so each cluster starts with a usable condition subset.
func ModuloColumnSeeder(conditions []string, numClusters int) map[string][]int {
	out := make(map[string][]int, len(conditions))
	for i, c := range conditions {
		out[c] = []int{i % numClusters}
	}
	return out
}

// ClusterMembership is the current cluster assignment. Gene and condition
// order is fixed at creation so every traversal is deterministic.
type ClusterMembership struct {
	numClusters int
	geneOrder   []string
	condOrder   []string
	rowMembers  map[string][]int
	colMembers  map[string][]int
}

// Create seeds a membership from a matrix sorted by row name.
func Create(m *datamatrix.DataMatrix, rows RowSeeder, cols ColumnSeeder, numClusters int) (*ClusterMembership, error) {
	if numClusters <= 0 {
		return nil, ErrBadClusterCount
	}
	genes := m.RowNames()
	conds := m.ColumnNames()
	return &ClusterMembership{
		numClusters: numClusters,
		geneOrder:   genes,
		condOrder:   conds,
		rowMembers:  rows(genes, numClusters),
		colMembers:  cols(conds, numClusters),
	}, nil
}

// NumClusters returns the configured cluster count.
func (m *ClusterMembership) NumClusters() int { return m.numClusters }

// GeneNames returns the genes in their fixed order.
func (m *ClusterMembership) GeneNames() []string { return append([]string(nil), m.geneOrder...) }

// ConditionNames returns the conditions in their fixed order.
func (m *ClusterMembership) ConditionNames() []string { return append([]string(nil), m.condOrder...) }

// HasGene reports whether the gene is part of this membership.
func (m *ClusterMembership) HasGene(gene string) bool {
	_, ok := m.rowMembers[gene]
	return ok
}

// ClustersForGene returns the clusters the gene is assigned to.
func (m *ClusterMembership) ClustersForGene(gene string) []int {
	return append([]int(nil), m.rowMembers[gene]...)
}

// GenesInCluster returns the member genes of a cluster in gene order.
func (m *ClusterMembership) GenesInCluster(cluster int) []string {
	var out []string
	for _, g := range m.geneOrder {
		for _, c := range m.rowMembers[g] {
			if c == cluster {
				out = append(out, g)
				break
			}
		}
	}
	return out
}

// ConditionsInCluster returns the member conditions of a cluster.
func (m *ClusterMembership) ConditionsInCluster(cluster int) []string {
	var out []string
	for _, cond := range m.condOrder {
		for _, c := range m.colMembers[cond] {
			if c == cluster {
				out = append(out, cond)
				break
			}
		}
	}
	return out
}

// Scores is the read surface the update step needs from a combined score
// matrix.
type Scores interface {
	NumClusters() int
	Score(gene string, cluster int) float64
}

// Update reassigns every gene to its highest-scoring cluster. Ties resolve
// to the lowest cluster index so repeated runs stay bit-identical.
// Must never run concurrently with scoring for the same iteration.
func (m *ClusterMembership) Update(s Scores) error {
	if s.NumClusters() != m.numClusters {
		return fmt.Errorf("membership: score cluster count %d != %d", s.NumClusters(), m.numClusters)
	}
	for _, gene := range m.geneOrder {
		best, bestScore := 0, s.Score(gene, 0)
		for c := 1; c < m.numClusters; c++ {
			if v := s.Score(gene, c); v > bestScore {
				best, bestScore = c, v
			}
		}
		m.rowMembers[gene] = []int{best}
	}
	return nil
}

// State is the serializable form of a membership, used by checkpoints.
type State struct {
	NumClusters int              `json:"num_clusters"`
	GeneOrder   []string         `json:"gene_order"`
	CondOrder   []string         `json:"condition_order"`
	RowMembers  map[string][]int `json:"row_members"`
	ColMembers  map[string][]int `json:"column_members"`
}

// State captures the membership for persistence.
func (m *ClusterMembership) State() State {
	rows := make(map[string][]int, len(m.rowMembers))
	for g, cs := range m.rowMembers {
		rows[g] = append([]int(nil), cs...)
	}
	cols := make(map[string][]int, len(m.colMembers))
	for c, cs := range m.colMembers {
		cols[c] = append([]int(nil), cs...)
	}
	return State{
		NumClusters: m.numClusters,
		GeneOrder:   append([]string(nil), m.geneOrder...),
		CondOrder:   append([]string(nil), m.condOrder...),
		RowMembers:  rows,
		ColMembers:  cols,
	}
}

// FromState restores a membership from a checkpointed state.
func FromState(s State) (*ClusterMembership, error) {
	if s.NumClusters <= 0 {
		return nil, ErrBadClusterCount
	}
	known := make(map[string]struct{}, len(s.GeneOrder))
	for _, g := range s.GeneOrder {
		known[g] = struct{}{}
	}
	for g := range s.RowMembers {
		if _, ok := known[g]; !ok {
			return nil, fmt.Errorf("%w: %s not in gene order", ErrUnknownGene, g)
		}
	}
	m := &ClusterMembership{
		numClusters: s.NumClusters,
		geneOrder:   append([]string(nil), s.GeneOrder...),
		condOrder:   append([]string(nil), s.CondOrder...),
		rowMembers:  make(map[string][]int, len(s.RowMembers)),
		colMembers:  make(map[string][]int, len(s.ColMembers)),
	}
	for g, cs := range s.RowMembers {
		m.rowMembers[g] = append([]int(nil), cs...)
	}
	for c, cs := range s.ColMembers {
		m.colMembers[c] = append([]int(nil), cs...)
	}
	return m, nil
}
