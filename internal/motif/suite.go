// internal/motif/suite.go
// Package motif scores clusters by sequence-motif enrichment, delegating
// motif discovery to an external tool suite.
package motif

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Hit is one scored gene from a motif search. LogPValue is a log10 p-value;
// more negative means more significant.
type Hit struct {
	Gene      string
	LogPValue float64
}

// Suite runs a motif search over a FASTA file of cluster member sequences.
type Suite interface {
	RunMotifSearch(ctx context.Context, fastaPath string) ([]Hit, error)
}

// MemeSuite invokes a MEME-style binary. The tool is expected to print one
// "gene<TAB>log-p-value" line per scored gene on stdout.
type MemeSuite struct {
	Binary         string
	MaxWidth       int
	BackgroundFile string
	Timeout        time.Duration
}

// RunMotifSearch executes the binary against fastaPath, bounded by the
// configured timeout.
func (s *MemeSuite) RunMotifSearch(ctx context.Context, fastaPath string) ([]Hit, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{fastaPath}
	if s.MaxWidth > 0 {
		args = append(args, "-maxw", strconv.Itoa(s.MaxWidth))
	}
	if s.BackgroundFile != "" {
		args = append(args, "-bfile", s.BackgroundFile)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.Binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("motif: %s timed out: %w", s.Binary, ctx.Err())
		}
		return nil, fmt.Errorf("motif: %s failed: %w (stderr: %s)",
			s.Binary, err, strings.TrimSpace(stderr.String()))
	}
	return ParseHits(&stdout)
}

// ParseHits reads "gene<TAB>log-p-value" lines.
func ParseHits(r *bytes.Buffer) ([]Hit, error) {
	var hits []Hit
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 2 {
			return nil, fmt.Errorf("motif: bad output line %q", line)
		}
		logp, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("motif: bad p-value in %q", line)
		}
		hits = append(hits, Hit{Gene: strings.TrimSpace(fields[0]), LogPValue: logp})
	}
	return hits, sc.Err()
}
