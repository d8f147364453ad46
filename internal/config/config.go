// internal/config/config.go
// Package config assembles a biclustering run: the builder validates the
// named options up front, and the resulting Configuration materializes the
// expensive collaborators (matrix, organism, membership, combined scoring)
// lazily, exactly once each.
package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"biclust/internal/datamatrix"
	"biclust/internal/membership"
	"biclust/internal/microarray"
	"biclust/internal/motif"
	"biclust/internal/network"
	"biclust/internal/organism"
	"biclust/internal/scoring"
)

var (
	// ErrMissingOrganism is returned by Build when no organism code is set.
	ErrMissingOrganism = errors.New("config: organism code is required")
	// ErrMissingMatrixFiles is returned by Build when no ratio file is set.
	ErrMissingMatrixFiles = errors.New("config: at least one matrix file is required")
)

// Defaults carried over from the reference run setups.
const (
	DefaultNumIterations      = 2000
	DefaultCheckpointInterval = 3
	DefaultRowWeight          = 6.0
	DefaultPValueFloor        = -20.0
	DefaultMaxMotifWidth      = 12
	DefaultMotifTimeout       = 2 * time.Minute
)

// Params is the immutable option set of one run.
type Params struct {
	Organism    string
	MatrixFiles []string

	NumIterations int
	NumClusters   int
	CacheDir      string

	SequenceTypes   []string
	SeqFiles        map[string]string
	SearchDistances map[string]organism.Distance
	ScanDistances   map[string]organism.Distance

	ThesaurusFile string
	NetworkFiles  []string
	NetworkSep    rune

	CheckpointFile     string
	CheckpointInterval int

	RowWeight float64

	MotifWeight     float64
	MotifActivateAt int
	PValueFloor     float64
	MemeBinary      string
	MaxMotifWidth   int
	MotifTimeout    time.Duration

	NetworkWeight     float64
	NetworkActivateAt int
}

// Factories produce the lazily-constructed collaborators. A nil field means
// the package default; tests inject probes here.
type Factories struct {
	Matrix     func(*Configuration) (*datamatrix.DataMatrix, error)
	Organism   func(*Configuration) (*organism.Organism, error)
	Membership func(*Configuration) (*membership.ClusterMembership, error)
	RowScoring func(*Configuration) (*scoring.Combiner, error)
}

// Builder accumulates run options. Zero values fall back to defaults at
// Build time; organism and matrix files are required.
type Builder struct {
	p         Params
	factories Factories
	log       *zap.Logger
}

// NewBuilder returns a builder with the reference defaults applied.
func NewBuilder() *Builder {
	return &Builder{p: Params{
		NumIterations:      DefaultNumIterations,
		CheckpointInterval: DefaultCheckpointInterval,
		RowWeight:          DefaultRowWeight,
		PValueFloor:        DefaultPValueFloor,
		MaxMotifWidth:      DefaultMaxMotifWidth,
		MotifTimeout:       DefaultMotifTimeout,
		NetworkSep:         ';',
	}}
}

func (b *Builder) WithOrganism(code string) *Builder { b.p.Organism = code; return b }

func (b *Builder) WithMatrixFilenames(files []string) *Builder {
	b.p.MatrixFiles = append([]string(nil), files...)
	return b
}

func (b *Builder) WithNumIterations(n int) *Builder { b.p.NumIterations = n; return b }
func (b *Builder) WithNumClusters(n int) *Builder   { b.p.NumClusters = n; return b }
func (b *Builder) WithCacheDir(dir string) *Builder { b.p.CacheDir = dir; return b }

func (b *Builder) WithSequenceTypes(types []string) *Builder {
	b.p.SequenceTypes = append([]string(nil), types...)
	return b
}

func (b *Builder) WithSearchDistances(d map[string]organism.Distance) *Builder {
	b.p.SearchDistances = d
	return b
}

func (b *Builder) WithScanDistances(d map[string]organism.Distance) *Builder {
	b.p.ScanDistances = d
	return b
}

func (b *Builder) WithSequenceFiles(files map[string]string) *Builder {
	b.p.SeqFiles = files
	return b
}

func (b *Builder) WithThesaurusFile(path string) *Builder { b.p.ThesaurusFile = path; return b }

func (b *Builder) WithNetworkFiles(files []string, sep rune) *Builder {
	b.p.NetworkFiles = append([]string(nil), files...)
	if sep != 0 {
		b.p.NetworkSep = sep
	}
	return b
}

func (b *Builder) WithCheckpointFile(path string) *Builder { b.p.CheckpointFile = path; return b }

func (b *Builder) WithCheckpointInterval(n int) *Builder {
	if n > 0 {
		b.p.CheckpointInterval = n
	}
	return b
}

func (b *Builder) WithRowWeight(w float64) *Builder { b.p.RowWeight = w; return b }

func (b *Builder) WithMotifScoring(weight float64, activateAt int, memeBinary string) *Builder {
	b.p.MotifWeight = weight
	b.p.MotifActivateAt = activateAt
	b.p.MemeBinary = memeBinary
	return b
}

func (b *Builder) WithNetworkScoring(weight float64, activateAt int) *Builder {
	b.p.NetworkWeight = weight
	b.p.NetworkActivateAt = activateAt
	return b
}

// WithFactories overrides the default collaborator factories.
func (b *Builder) WithFactories(f Factories) *Builder { b.factories = f; return b }

// WithLogger attaches a logger to the configuration and everything it
// constructs.
func (b *Builder) WithLogger(l *zap.Logger) *Builder { b.log = l; return b }

// Build validates the required fields and freezes the configuration. Fails
// fast, before any file or network I/O.
func (b *Builder) Build() (*Configuration, error) {
	if b.p.Organism == "" {
		return nil, ErrMissingOrganism
	}
	if len(b.p.MatrixFiles) == 0 {
		return nil, ErrMissingMatrixFiles
	}
	log := b.log
	if log == nil {
		log = zap.NewNop()
	}
	return &Configuration{params: b.p, factories: b.factories, log: log}, nil
}

// lazy memoizes one expensive construction, including its error.
type lazy[T any] struct {
	once sync.Once
	v    T
	err  error
}

func (l *lazy[T]) get(f func() (T, error)) (T, error) {
	l.once.Do(func() { l.v, l.err = f() })
	return l.v, l.err
}

// Configuration is an immutable run description with memoized accessors for
// the expensive collaborators.
type Configuration struct {
	params    Params
	factories Factories
	log       *zap.Logger

	matrix lazy[*datamatrix.DataMatrix]
	org    lazy[*organism.Organism]
	mem    lazy[*membership.ClusterMembership]
	comb   lazy[*scoring.Combiner]
}

// Params returns a copy of the run options.
func (c *Configuration) Params() Params { return c.params }

// Logger returns the run logger.
func (c *Configuration) Logger() *zap.Logger { return c.log }

// Digest is a stable fingerprint of the options that determine run
// semantics, used to guard checkpoint resume.
func (c *Configuration) Digest() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "organism=%s|files=%s|iterations=%d|clusters=%d|seqtypes=%s|row=%g|motif=%g@%d|network=%g@%d|pvfloor=%g",
		c.params.Organism,
		strings.Join(c.params.MatrixFiles, ","),
		c.params.NumIterations,
		c.params.NumClusters,
		strings.Join(c.params.SequenceTypes, ","),
		c.params.RowWeight,
		c.params.MotifWeight, c.params.MotifActivateAt,
		c.params.NetworkWeight, c.params.NetworkActivateAt,
		c.params.PValueFloor)
	return sb.String()
}

// Matrix returns the filtered, normalized expression matrix, reading the
// ratio files on first use only.
func (c *Configuration) Matrix() (*datamatrix.DataMatrix, error) {
	return c.matrix.get(func() (*datamatrix.DataMatrix, error) {
		if c.factories.Matrix != nil {
			return c.factories.Matrix(c)
		}
		return c.defaultMatrix()
	})
}

// Organism returns the organism bundle, constructed on first use.
func (c *Configuration) Organism() (*organism.Organism, error) {
	return c.org.get(func() (*organism.Organism, error) {
		if c.factories.Organism != nil {
			return c.factories.Organism(c)
		}
		return c.defaultOrganism()
	})
}

// Membership returns the seeded cluster membership, constructed on first use.
func (c *Configuration) Membership() (*membership.ClusterMembership, error) {
	return c.mem.get(func() (*membership.ClusterMembership, error) {
		if c.factories.Membership != nil {
			return c.factories.Membership(c)
		}
		return c.defaultMembership()
	})
}

// RowScoring returns the combined scoring function over all configured
// evidence sources, constructed on first use.
func (c *Configuration) RowScoring() (*scoring.Combiner, error) {
	return c.comb.get(func() (*scoring.Combiner, error) {
		if c.factories.RowScoring != nil {
			return c.factories.RowScoring(c)
		}
		return c.defaultRowScoring()
	})
}

func (c *Configuration) defaultMatrix() (*datamatrix.DataMatrix, error) {
	factory := datamatrix.NewFactory(datamatrix.NoChangeFilter, datamatrix.CenterScaleFilter)
	// Single ratio file is the common case; additional files are reserved
	// for split condition sets and currently must not overlap in genes.
	mat, err := factory.CreateFromFile(c.params.MatrixFiles[0])
	if err != nil {
		return nil, err
	}
	c.log.Info("matrix loaded",
		zap.String("file", c.params.MatrixFiles[0]),
		zap.Int("genes", mat.NumRows()),
		zap.Int("conditions", mat.NumColumns()))
	return mat, nil
}

func (c *Configuration) defaultOrganism() (*organism.Organism, error) {
	var factories []network.Factory
	for _, f := range c.params.NetworkFiles {
		factories = append(factories, network.DelimitedFactory(f, f, c.params.NetworkSep))
	}
	return organism.New(organism.Params{
		Code:             c.params.Organism,
		ThesaurusFile:    c.params.ThesaurusFile,
		NetworkFactories: factories,
		SeqFiles:         c.params.SeqFiles,
		SearchDistances:  c.params.SearchDistances,
		ScanDistances:    c.params.ScanDistances,
		Logger:           c.log,
	})
}

func (c *Configuration) defaultMembership() (*membership.ClusterMembership, error) {
	mat, err := c.Matrix()
	if err != nil {
		return nil, err
	}
	return membership.Create(mat.SortedByRowName(),
		membership.ModuloRowSeeder, membership.ModuloColumnSeeder,
		c.params.NumClusters)
}

// defaultRowScoring wires the evidence sources in their fixed combination
// order: expression, network, then one motif function per sequence type.
func (c *Configuration) defaultRowScoring() (*scoring.Combiner, error) {
	mem, err := c.Membership()
	if err != nil {
		return nil, err
	}
	mat, err := c.Matrix()
	if err != nil {
		return nil, err
	}

	fns := []scoring.Function{
		microarray.New(mem, mat, scoring.ConstantWeight(c.params.RowWeight), c.log),
	}

	if c.params.NetworkWeight != 0 || c.params.MotifWeight != 0 {
		org, err := c.Organism()
		if err != nil {
			return nil, err
		}
		if c.params.NetworkWeight != 0 {
			fns = append(fns, network.NewScoring(org, mem,
				scoring.StepWeight(c.params.NetworkActivateAt, c.params.NetworkWeight),
				nil, c.log))
		}
		if c.params.MotifWeight != 0 && c.params.MemeBinary != "" {
			suite := &motif.MemeSuite{
				Binary:   c.params.MemeBinary,
				MaxWidth: c.params.MaxMotifWidth,
				Timeout:  c.params.MotifTimeout,
			}
			for _, seqType := range c.params.SequenceTypes {
				fns = append(fns, motif.NewScoring(org, mem, suite, seqType,
					c.params.PValueFloor, c.params.CacheDir,
					scoring.StepWeight(c.params.MotifActivateAt, c.params.MotifWeight),
					nil, c.log))
			}
		}
	}

	return scoring.NewCombiner(mem, fns, scoring.WithCombinerLogger(c.log)), nil
}
