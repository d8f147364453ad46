package motif

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"biclust/internal/datamatrix"
	"biclust/internal/membership"
	"biclust/internal/scoring"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHits(t *testing.T) {
	buf := bytes.NewBufferString("# comment\ngA\t-25.5\n\ngB\t-3.0\n")
	hits, err := ParseHits(buf)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, Hit{Gene: "gA", LogPValue: -25.5}, hits[0])
	assert.Equal(t, Hit{Gene: "gB", LogPValue: -3.0}, hits[1])
}

func TestParseHits_BadLine(t *testing.T) {
	_, err := ParseHits(bytes.NewBufferString("gA\tnot-a-number\n"))
	assert.Error(t, err)
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fakememe.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestMemeSuite_RunsBinary(t *testing.T) {
	bin := writeScript(t, `printf 'gA\t-22.0\ngB\t-19.0\n'`)
	s := &MemeSuite{Binary: bin, Timeout: 10 * time.Second}

	hits, err := s.RunMotifSearch(context.Background(), "unused.fasta")
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, -22.0, hits[0].LogPValue)
}

func TestMemeSuite_Timeout(t *testing.T) {
	bin := writeScript(t, "sleep 10\n")
	s := &MemeSuite{Binary: bin, Timeout: 100 * time.Millisecond}

	_, err := s.RunMotifSearch(context.Background(), "unused.fasta")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemeSuite_Failure(t *testing.T) {
	bin := writeScript(t, "echo boom >&2\nexit 1\n")
	s := &MemeSuite{Binary: bin, Timeout: 10 * time.Second}

	_, err := s.RunMotifSearch(context.Background(), "unused.fasta")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

// --- ScoringFunction ---

type stubSeqs struct {
	seqs map[string]string
	err  error
}

func (s stubSeqs) SequencesFor(seqType string, genes []string) (map[string]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[string]string)
	for _, g := range genes {
		if sq, ok := s.seqs[g]; ok {
			out[g] = sq
		}
	}
	return out, nil
}

type stubSuite struct {
	hits  []Hit
	err   error
	calls int
}

func (s *stubSuite) RunMotifSearch(ctx context.Context, fastaPath string) ([]Hit, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.hits, nil
}

func motifMembership(t *testing.T) *membership.ClusterMembership {
	t.Helper()
	in := "GENE\tc1\tc2\ngA\t1\t2\ngB\t2\t3\ngC\t3\t4\ngD\t4\t5\n"
	dm, err := datamatrix.NewFactory().Create(strings.NewReader(in))
	require.NoError(t, err)
	mem, err := membership.Create(dm.SortedByRowName(), func(genes []string, k int) map[string][]int {
		return map[string][]int{"gA": {0}, "gB": {0}, "gC": {1}, "gD": {1}}
	}, membership.ModuloColumnSeeder, 2)
	require.NoError(t, err)
	return mem
}

func allSeqs() map[string]string {
	return map[string]string{"gA": "ACGT", "gB": "CGTA", "gC": "GTAC", "gD": "TACG"}
}

func TestCompute_PValueFloorFilter(t *testing.T) {
	mem := motifMembership(t)
	suite := &stubSuite{hits: []Hit{
		{Gene: "gA", LogPValue: -25.0}, // significant, kept
		{Gene: "gB", LogPValue: -5.0},  // above the floor, discarded
	}}
	fn := NewScoring(stubSeqs{seqs: allSeqs()}, mem, suite, "upstream",
		-20.0, t.TempDir(), scoring.ConstantWeight(1.0), scoring.Always, nil)

	out, err := fn.Compute(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, 25.0, out.Score("gA", 0))
	assert.Equal(t, 0.0, out.Score("gB", 0))
	assert.Equal(t, 2, suite.calls, "one search per two-member cluster")
}

func TestCompute_ToolFailureIsNeutral(t *testing.T) {
	mem := motifMembership(t)
	suite := &stubSuite{err: errors.New("tool exploded")}
	fn := NewScoring(stubSeqs{seqs: allSeqs()}, mem, suite, "upstream",
		-20.0, t.TempDir(), scoring.ConstantWeight(1.0), scoring.Always, nil)

	out, err := fn.Compute(context.Background(), 0)
	require.NoError(t, err, "external tool failure must degrade, not abort")
	for _, g := range mem.GeneNames() {
		for c := 0; c < 2; c++ {
			assert.Equal(t, 0.0, out.Score(g, c))
		}
	}
}

func TestCompute_SequenceErrorIsNeutral(t *testing.T) {
	mem := motifMembership(t)
	suite := &stubSuite{hits: []Hit{{Gene: "gA", LogPValue: -30}}}
	fn := NewScoring(stubSeqs{err: errors.New("no such file")}, mem, suite, "upstream",
		-20.0, t.TempDir(), scoring.ConstantWeight(1.0), scoring.Always, nil)

	out, err := fn.Compute(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, out.Score("gA", 0))
	assert.Zero(t, suite.calls)
}

func TestCompute_UnknownHitGeneDropped(t *testing.T) {
	mem := motifMembership(t)
	suite := &stubSuite{hits: []Hit{{Gene: "not-a-member", LogPValue: -30}}}
	fn := NewScoring(stubSeqs{seqs: allSeqs()}, mem, suite, "upstream",
		-20.0, t.TempDir(), scoring.ConstantWeight(1.0), scoring.Always, nil)

	out, err := fn.Compute(context.Background(), 0)
	require.NoError(t, err)
	assert.False(t, out.HasGene("not-a-member"))
}

func TestCompute_CancelledContextPropagates(t *testing.T) {
	mem := motifMembership(t)
	suite := &stubSuite{err: context.Canceled}
	fn := NewScoring(stubSeqs{seqs: allSeqs()}, mem, suite, "upstream",
		-20.0, t.TempDir(), scoring.ConstantWeight(1.0), scoring.Always, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := fn.Compute(ctx, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWriteFasta_SortedDeterministic(t *testing.T) {
	mem := motifMembership(t)
	dir := t.TempDir()
	fn := NewScoring(stubSeqs{seqs: allSeqs()}, mem, &stubSuite{}, "p3utr",
		-20.0, dir, scoring.ConstantWeight(1.0), scoring.Always, nil)

	path, err := fn.writeFasta(0, 7, map[string]string{"gB": "CGTA", "gA": "ACGT"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "motif_p3utr_c0_i7.fasta"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, ">gA\nACGT\n>gB\nCGTA\n", string(data))
}

func TestDefaultMotifIterations(t *testing.T) {
	mem := motifMembership(t)
	fn := NewScoring(stubSeqs{}, mem, &stubSuite{}, "upstream",
		-20.0, t.TempDir(), scoring.ConstantWeight(1.0), nil, nil)

	assert.False(t, fn.RunsIn(0))
	assert.False(t, fn.RunsIn(99))
	assert.True(t, fn.RunsIn(100))
	assert.True(t, fn.RunsIn(110))
	assert.False(t, fn.RunsIn(111))
}
