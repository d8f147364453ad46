package app

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"biclust/internal/version"
)

const ratios = "GENE\tc1\tc2\tc3\tc4\n" +
	"g1\t1.0\t1.2\t-1.0\t-1.3\n" +
	"g2\t0.9\t1.1\t-1.1\t-1.2\n" +
	"g3\t-2.0\t-2.2\t2.1\t2.0\n" +
	"g4\t-2.1\t-1.9\t2.0\t2.2\n"

func writeRatios(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ratios.tsv")
	require.NoError(t, os.WriteFile(path, []byte(ratios), 0o644))
	return path
}

func runCLI(argv ...string) (code int, stdout, stderr string) {
	var out, errBuf bytes.Buffer
	code = Run(argv, &out, &errBuf)
	return code, out.String(), errBuf.String()
}

func TestRun_NoArgsPrintsUsage(t *testing.T) {
	code, stdout, _ := runCLI()
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stdout, "Usage:")
	assert.Contains(t, stdout, "<ratio-file> [checkpoint-file]")
}

func TestRun_Version(t *testing.T) {
	code, stdout, _ := runCLI("--version")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, version.Version)
}

func TestRun_UnknownFlag(t *testing.T) {
	code, _, stderr := runCLI("--no-such-flag", "ratios.tsv")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "no-such-flag")
}

func TestRun_TooManyArgs(t *testing.T) {
	code, _, stderr := runCLI("a", "b", "c")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "arguments")
}

func TestRun_MissingOrganismIsUsageError(t *testing.T) {
	code, _, stderr := runCLI(writeRatios(t))
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "organism")
}

func TestRun_MissingRatioFileIsRuntimeError(t *testing.T) {
	code, _, _ := runCLI("--organism", "hsa", filepath.Join(t.TempDir(), "absent.tsv"))
	assert.Equal(t, exitRuntime, code)
}

func TestRun_CompletesAndResumes(t *testing.T) {
	ratioFile := writeRatios(t)
	ckpt := filepath.Join(t.TempDir(), "run.checkpoint")

	code, _, _ := runCLI("--organism", "hsa", "--iterations", "4",
		"--checkpoint-interval", "1", ratioFile, ckpt)
	require.Equal(t, exitOK, code)
	_, err := os.Stat(ckpt)
	require.NoError(t, err)

	// A second invocation resumes from the completed checkpoint.
	code, _, _ = runCLI("--organism", "hsa", "--iterations", "4",
		"--checkpoint-interval", "1", ratioFile, ckpt)
	assert.Equal(t, exitOK, code)
}

func TestRun_RunConfigSuppliesOrganism(t *testing.T) {
	ratioFile := writeRatios(t)
	rc := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(rc, []byte("organism: hsa\nnum_clusters: 2\nnum_iterations: 2\n"), 0o644))

	code, _, _ := runCLI("--run-config", rc, "--iterations", "2", ratioFile)
	assert.Equal(t, exitOK, code)
}
