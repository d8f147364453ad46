package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"biclust/internal/datamatrix"
	"biclust/internal/membership"
	"biclust/internal/organism"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_RequiresOrganism(t *testing.T) {
	_, err := NewBuilder().WithMatrixFilenames([]string{"ratios.tsv"}).Build()
	assert.ErrorIs(t, err, ErrMissingOrganism)
}

func TestBuild_RequiresMatrixFiles(t *testing.T) {
	_, err := NewBuilder().WithOrganism("hsa").Build()
	assert.ErrorIs(t, err, ErrMissingMatrixFiles)
}

func TestBuild_AppliesDefaults(t *testing.T) {
	cfg, err := NewBuilder().
		WithOrganism("hsa").
		WithMatrixFilenames([]string{"ratios.tsv"}).
		Build()
	require.NoError(t, err)

	p := cfg.Params()
	assert.Equal(t, DefaultNumIterations, p.NumIterations)
	assert.Equal(t, DefaultCheckpointInterval, p.CheckpointInterval)
	assert.Equal(t, DefaultRowWeight, p.RowWeight)
	assert.Equal(t, DefaultPValueFloor, p.PValueFloor)
	assert.Equal(t, DefaultMotifTimeout, p.MotifTimeout)
}

func TestLazyAccessors_ComputedExactlyOnce(t *testing.T) {
	matrixCalls, orgCalls, memCalls := 0, 0, 0

	cfg, err := NewBuilder().
		WithOrganism("hsa").
		WithMatrixFilenames([]string{"unused"}).
		WithNumClusters(2).
		WithFactories(Factories{
			Matrix: func(c *Configuration) (*datamatrix.DataMatrix, error) {
				matrixCalls++
				return datamatrix.New([]string{"g1", "g2"}, []string{"c1"})
			},
			Organism: func(c *Configuration) (*organism.Organism, error) {
				orgCalls++
				return organism.New(organism.Params{Code: "hsa"})
			},
			Membership: func(c *Configuration) (*membership.ClusterMembership, error) {
				memCalls++
				mat, err := c.Matrix()
				if err != nil {
					return nil, err
				}
				return membership.Create(mat.SortedByRowName(),
					membership.ModuloRowSeeder, membership.ModuloColumnSeeder, 2)
			},
		}).
		Build()
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = cfg.Matrix()
		require.NoError(t, err)
		_, err = cfg.Organism()
		require.NoError(t, err)
		_, err = cfg.Membership()
		require.NoError(t, err)
	}

	assert.Equal(t, 1, matrixCalls)
	assert.Equal(t, 1, orgCalls)
	assert.Equal(t, 1, memCalls)
}

func TestLazyAccessor_MemoizesErrors(t *testing.T) {
	calls := 0
	cfg, err := NewBuilder().
		WithOrganism("hsa").
		WithMatrixFilenames([]string{"unused"}).
		WithFactories(Factories{
			Matrix: func(c *Configuration) (*datamatrix.DataMatrix, error) {
				calls++
				return nil, os.ErrNotExist
			},
		}).
		Build()
	require.NoError(t, err)

	_, err1 := cfg.Matrix()
	_, err2 := cfg.Matrix()
	assert.ErrorIs(t, err1, os.ErrNotExist)
	assert.ErrorIs(t, err2, os.ErrNotExist)
	assert.Equal(t, 1, calls)
}

func TestDefaultRowScoring_ExpressionOnly(t *testing.T) {
	ratio := filepath.Join(t.TempDir(), "ratios.tsv")
	require.NoError(t, os.WriteFile(ratio,
		[]byte("GENE\tc1\tc2\ng1\t1.0\t2.0\ng2\t-1.0\t-2.0\n"), 0o644))

	cfg, err := NewBuilder().
		WithOrganism("hsa").
		WithMatrixFilenames([]string{ratio}).
		WithNumClusters(2).
		Build()
	require.NoError(t, err)

	comb, err := cfg.RowScoring()
	require.NoError(t, err)
	require.NotNil(t, comb)

	again, err := cfg.RowScoring()
	require.NoError(t, err)
	assert.Same(t, comb, again, "combiner is memoized")
}

func TestDigest_ReflectsSemanticOptions(t *testing.T) {
	build := func(clusters int) *Configuration {
		cfg, err := NewBuilder().
			WithOrganism("hsa").
			WithMatrixFilenames([]string{"r.tsv"}).
			WithNumClusters(clusters).
			Build()
		require.NoError(t, err)
		return cfg
	}
	assert.Equal(t, build(4).Digest(), build(4).Digest())
	assert.NotEqual(t, build(4).Digest(), build(5).Digest())
}

func TestLoadRunFile_AndApply(t *testing.T) {
	yml := `
organism: hsa
num_clusters: 267
num_iterations: 500
cache_dir: parkinson_cache
checkpoint_interval: 5
row_weight: 6.0
thesaurus_file: synonyms.csv.gz
sequence_types:
  upstream:
    file: promoterSeqs.csv.gz
    search: [0, 700]
    scan: [0, 700]
  p3utr:
    file: p3utrSeqs.csv.gz
    search: [0, 831]
    scan: [0, 831]
sequence_type_order: [upstream, p3utr]
motif:
  weight: 1.0
  activate_at: 100
  pvalue_floor: -20.0
  meme_binary: meme
  max_width: 12
  timeout_seconds: 60
network:
  weight: 0.5
  files: [human_links.csv]
  sep: ";"
`
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	rf, err := LoadRunFile(path)
	require.NoError(t, err)

	cfg, err := NewBuilder().
		ApplyRunFile(rf).
		WithMatrixFilenames([]string{"ratios.tsv"}).
		Build()
	require.NoError(t, err)

	p := cfg.Params()
	assert.Equal(t, "hsa", p.Organism)
	assert.Equal(t, 267, p.NumClusters)
	assert.Equal(t, 500, p.NumIterations)
	assert.Equal(t, 5, p.CheckpointInterval)
	assert.Equal(t, []string{"upstream", "p3utr"}, p.SequenceTypes)
	assert.Equal(t, organism.Distance{Start: 0, End: 831}, p.SearchDistances["p3utr"])
	assert.Equal(t, "promoterSeqs.csv.gz", p.SeqFiles["upstream"])
	assert.Equal(t, 1.0, p.MotifWeight)
	assert.Equal(t, 100, p.MotifActivateAt)
	assert.Equal(t, "meme", p.MemeBinary)
	assert.Equal(t, time.Minute, p.MotifTimeout)
	assert.Equal(t, 0.5, p.NetworkWeight)
	assert.Equal(t, []string{"human_links.csv"}, p.NetworkFiles)
}

func TestLoadRunFile_Missing(t *testing.T) {
	_, err := LoadRunFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
