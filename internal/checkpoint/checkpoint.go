// internal/checkpoint/checkpoint.go
// Package checkpoint persists run state (membership + iteration counter +
// configuration digest) so an interrupted run can resume and reproduce the
// exact combined scores an uninterrupted run would have produced.
package checkpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"biclust/internal/membership"
)

// ErrDigestMismatch means the checkpoint was written by a run with a
// different configuration; resuming would silently change semantics.
var ErrDigestMismatch = errors.New("checkpoint: configuration digest mismatch")

// State is one persisted snapshot. Iteration is the next iteration to
// execute after resume.
type State struct {
	RunID        string           `json:"run_id"`
	Iteration    int              `json:"iteration"`
	ConfigDigest string           `json:"config_digest"`
	Membership   membership.State `json:"membership"`
}

// NewRunID returns a fresh run identifier.
func NewRunID() string { return uuid.NewString() }

// Digest hashes a canonical configuration summary.
func Digest(summary string) string {
	h := sha256.Sum256([]byte(summary))
	return hex.EncodeToString(h[:])
}

// Save writes the state atomically (temp file + rename), so a crash during
// checkpointing never leaves a torn file behind.
func Save(path string, s *State) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".checkpoint-*.tmp")
	if err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	tmpName := tmp.Name()
	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("checkpoint: encode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("checkpoint: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("checkpoint: %w", err)
	}
	return nil
}

// Load reads a checkpoint and verifies it belongs to the configuration
// identified by wantDigest.
func Load(path, wantDigest string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: %w", err)
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("checkpoint: decode %s: %w", path, err)
	}
	if s.ConfigDigest != wantDigest {
		return nil, fmt.Errorf("%w: file %s", ErrDigestMismatch, path)
	}
	return &s, nil
}
