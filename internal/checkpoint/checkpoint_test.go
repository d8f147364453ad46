package checkpoint

import (
	"os"
	"path/filepath"
	"testing"

	"biclust/internal/membership"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleState() *State {
	return &State{
		RunID:        NewRunID(),
		Iteration:    42,
		ConfigDigest: Digest("hsa|2|files"),
		Membership: membership.State{
			NumClusters: 2,
			GeneOrder:   []string{"g1", "g2"},
			CondOrder:   []string{"c1"},
			RowMembers:  map[string][]int{"g1": {0}, "g2": {1}},
			ColMembers:  map[string][]int{"c1": {0}},
		},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.checkpoint")
	s := sampleState()
	require.NoError(t, Save(path, s))

	got, err := Load(path, s.ConfigDigest)
	require.NoError(t, err)
	assert.Equal(t, s.RunID, got.RunID)
	assert.Equal(t, 42, got.Iteration)
	assert.Equal(t, s.Membership, got.Membership)

	// Restored membership is usable.
	m, err := membership.FromState(got.Membership)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, m.ClustersForGene("g2"))
}

func TestLoad_DigestMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.checkpoint")
	require.NoError(t, Save(path, sampleState()))

	_, err := Load(path, Digest("different config"))
	assert.ErrorIs(t, err, ErrDigestMismatch)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope"), "x")
	assert.Error(t, err)
}

func TestSave_NoTempFileLeftBehind(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Save(filepath.Join(dir, "run.checkpoint"), sampleState()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "run.checkpoint", entries[0].Name())
}

func TestDigest_StableAndDistinct(t *testing.T) {
	assert.Equal(t, Digest("a"), Digest("a"))
	assert.NotEqual(t, Digest("a"), Digest("b"))
}
