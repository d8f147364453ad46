// internal/app/app.go
// Package app is the CLI entrypoint: flag parsing, logger setup, and the
// translation of run outcomes into process exit codes. Usage and option
// errors exit 2, runtime failures exit 1.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"biclust/internal/config"
	"biclust/internal/run"
	"biclust/internal/version"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitUsage   = 2
)

// errUsage marks outcomes that already printed usage text; errBadFlag marks
// flag and argument problems that still need their message printed.
var (
	errUsage   = errors.New("usage")
	errBadFlag = errors.New("invalid arguments")
)

type options struct {
	organism    string
	iterations  int
	clusters    int
	cacheDir    string
	interval    int
	runConfig   string
	verbose     bool
	showVersion bool
}

// Run executes the CLI against argv and returns the process exit code.
func Run(argv []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return RunContext(ctx, argv, stdout, stderr)
}

// RunContext is Run with a caller-supplied context, for tests and embedding.
func RunContext(ctx context.Context, argv []string, stdout, stderr io.Writer) int {
	var opts options

	cmd := &cobra.Command{
		Use:   "biclust [flags] <ratio-file> [checkpoint-file]",
		Short: "Iterative biclustering of gene expression data",
		Long: `biclust groups genes and conditions into overlapping clusters by
iteratively combining expression coherence, network connectivity, and
upstream motif evidence. When a checkpoint file is given, an existing
compatible checkpoint resumes the run; otherwise checkpoints are written
there as the run progresses.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 2 {
				return fmt.Errorf("%w: expected <ratio-file> [checkpoint-file], got %d arguments", errBadFlag, len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.showVersion {
				fmt.Fprintf(cmd.OutOrStdout(), "biclust %s\n", version.Version)
				return nil
			}
			if len(args) == 0 {
				_ = cmd.Usage()
				return errUsage
			}
			return execute(cmd.Context(), opts, args, cmd.Flags().Changed)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	// A nil argv must mean "no arguments": cobra falls back to os.Args
	// when args are nil, which is wrong under the test runner.
	if argv == nil {
		argv = []string{}
	}
	cmd.SetArgs(argv)
	cmd.SetContext(ctx)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", errBadFlag, err)
	})

	fl := cmd.Flags()
	fl.StringVar(&opts.organism, "organism", "", "organism code (e.g. hal, eco)")
	fl.IntVar(&opts.iterations, "iterations", config.DefaultNumIterations, "number of iterations to run")
	fl.IntVar(&opts.clusters, "clusters", 0, "number of clusters (default genes/20, min 2)")
	fl.StringVar(&opts.cacheDir, "cache-dir", "cache", "directory for cached intermediate files")
	fl.IntVar(&opts.interval, "checkpoint-interval", config.DefaultCheckpointInterval, "iterations between checkpoints")
	fl.StringVar(&opts.runConfig, "run-config", "", "YAML run configuration file")
	fl.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")
	fl.BoolVar(&opts.showVersion, "version", false, "print version and exit")

	if err := cmd.Execute(); err != nil {
		if errors.Is(err, errUsage) {
			return exitUsage
		}
		fmt.Fprintf(stderr, "biclust: %v\n", err)
		if isUsageError(err) {
			return exitUsage
		}
		return exitRuntime
	}
	return exitOK
}

// isUsageError reports whether err is an option problem rather than a
// runtime failure.
func isUsageError(err error) bool {
	return errors.Is(err, errBadFlag) ||
		errors.Is(err, config.ErrMissingOrganism) ||
		errors.Is(err, config.ErrMissingMatrixFiles)
}

// execute wires the builder from the run file and flags, in that order, so
// explicitly set flags win over run file values. changed reports whether a
// flag was set on the command line.
func execute(ctx context.Context, opts options, args []string, changed func(string) bool) error {
	log, err := newLogger(opts.verbose)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	b := config.NewBuilder().WithLogger(log)
	fileCacheDir := ""
	if opts.runConfig != "" {
		rf, err := config.LoadRunFile(opts.runConfig)
		if err != nil {
			return err
		}
		b.ApplyRunFile(rf)
		fileCacheDir = rf.CacheDir
	}
	b.WithMatrixFilenames(args[:1])
	if opts.organism != "" {
		b.WithOrganism(opts.organism)
	}
	if changed("iterations") {
		b.WithNumIterations(opts.iterations)
	}
	if changed("cache-dir") || fileCacheDir == "" {
		b.WithCacheDir(opts.cacheDir)
	}
	if changed("checkpoint-interval") {
		b.WithCheckpointInterval(opts.interval)
	}
	if opts.clusters > 0 {
		b.WithNumClusters(opts.clusters)
	}
	if len(args) == 2 {
		b.WithCheckpointFile(args[1])
	}

	// The cluster count must be fixed before checkpoint resolution so the
	// configuration digest matches a checkpoint from an earlier run. When
	// unset, size it from the filtered matrix.
	probe, err := b.Build()
	if err != nil {
		return err
	}
	if probe.Params().NumClusters == 0 {
		mat, err := probe.Matrix()
		if err != nil {
			return err
		}
		k := mat.NumRows() / 20
		if k < 2 {
			k = 2
		}
		log.Info("cluster count derived from matrix", zap.Int("clusters", k))
		b.WithNumClusters(k)
	}

	cfg, runOpts, err := run.Prepare(b)
	if err != nil {
		return err
	}
	return run.Run(ctx, cfg, runOpts)
}

func newLogger(verbose bool) (*zap.Logger, error) {
	c := zap.NewProductionConfig()
	if verbose {
		c.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return c.Build()
}
