// internal/run/run.go
// Package run drives the iteration loop: combine evidence, update
// membership, checkpoint at the configured interval. The numeric membership
// update itself is the simple argmax reassignment from the membership
// package; the loop's job is the strict score-then-update barrier and the
// resume contract.
package run

import (
	"context"
	"errors"
	"io/fs"

	"go.uber.org/zap"

	"biclust/internal/checkpoint"
	"biclust/internal/config"
	"biclust/internal/membership"
	"biclust/internal/scoring"
)

// Options carries per-run state that is not part of the configuration.
type Options struct {
	StartIteration int
	RunID          string
	// OnIteration, when set, observes each iteration's combined scores
	// before the membership update. Returning an error aborts the run.
	OnIteration func(iteration int, scores *scoring.ScoreMatrix) error
}

// Prepare builds the configuration and, when a checkpoint file from a
// compatible earlier run exists, rewires the membership factory to restore
// its state instead of reseeding. A missing checkpoint file means a fresh
// run; a digest mismatch is fatal.
func Prepare(b *config.Builder) (*config.Configuration, Options, error) {
	cfg, err := b.Build()
	if err != nil {
		return nil, Options{}, err
	}
	opts := Options{RunID: checkpoint.NewRunID()}

	ckptFile := cfg.Params().CheckpointFile
	if ckptFile == "" {
		return cfg, opts, nil
	}

	st, err := checkpoint.Load(ckptFile, checkpoint.Digest(cfg.Digest()))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return cfg, opts, nil
	case err != nil:
		return nil, Options{}, err
	}

	cfg.Logger().Info("resuming from checkpoint",
		zap.String("file", ckptFile),
		zap.String("run_id", st.RunID),
		zap.Int("iteration", st.Iteration))

	state := st.Membership
	cfg, err = b.WithFactories(config.Factories{
		Membership: func(*config.Configuration) (*membership.ClusterMembership, error) {
			return membership.FromState(state)
		},
	}).Build()
	if err != nil {
		return nil, Options{}, err
	}
	return cfg, Options{StartIteration: st.Iteration, RunID: st.RunID}, nil
}

// Run executes the iteration loop to completion or cancellation.
func Run(ctx context.Context, cfg *config.Configuration, opts Options) error {
	log := cfg.Logger()
	p := cfg.Params()

	mem, err := cfg.Membership()
	if err != nil {
		return err
	}
	comb, err := cfg.RowScoring()
	if err != nil {
		return err
	}

	runID := opts.RunID
	if runID == "" {
		runID = checkpoint.NewRunID()
	}
	digest := checkpoint.Digest(cfg.Digest())

	log.Info("starting run",
		zap.String("run_id", runID),
		zap.String("organism", p.Organism),
		zap.Int("clusters", p.NumClusters),
		zap.Int("start_iteration", opts.StartIteration),
		zap.Int("num_iterations", p.NumIterations))

	for i := opts.StartIteration; i < p.NumIterations; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		scores, err := comb.Combine(ctx, i)
		if err != nil {
			return err
		}
		if opts.OnIteration != nil {
			if err := opts.OnIteration(i, scores); err != nil {
				return err
			}
		}
		// Strict barrier: the update never overlaps scoring.
		if err := mem.Update(scores); err != nil {
			return err
		}
		log.Debug("iteration complete", zap.Int("iteration", i))

		if p.CheckpointFile != "" && (i+1)%p.CheckpointInterval == 0 {
			err := checkpoint.Save(p.CheckpointFile, &checkpoint.State{
				RunID:        runID,
				Iteration:    i + 1,
				ConfigDigest: digest,
				Membership:   mem.State(),
			})
			if err != nil {
				return err
			}
			log.Debug("checkpoint written",
				zap.String("file", p.CheckpointFile), zap.Int("next_iteration", i+1))
		}
	}

	log.Info("run complete", zap.String("run_id", runID))
	return nil
}
