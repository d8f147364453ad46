// internal/config/runfile.go
package config

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"biclust/internal/organism"
)

// RunFile is the YAML description of an organism-specific run setup, the
// declarative counterpart of wiring a Builder by hand.
type RunFile struct {
	Organism           string                      `yaml:"organism"`
	NumClusters        int                         `yaml:"num_clusters"`
	NumIterations      int                         `yaml:"num_iterations"`
	CacheDir           string                      `yaml:"cache_dir"`
	CheckpointInterval int                         `yaml:"checkpoint_interval"`
	RowWeight          *float64                    `yaml:"row_weight"`
	ThesaurusFile      string                      `yaml:"thesaurus_file"`
	SequenceTypes      map[string]SequenceTypeSpec `yaml:"sequence_types"`
	SequenceTypeOrder  []string                    `yaml:"sequence_type_order"`
	Motif              MotifSpec                   `yaml:"motif"`
	Network            NetworkSpec                 `yaml:"network"`
}

// SequenceTypeSpec binds a sequence region type to its file and windows.
type SequenceTypeSpec struct {
	File   string `yaml:"file"`
	Search [2]int `yaml:"search"`
	Scan   [2]int `yaml:"scan"`
}

// MotifSpec configures the motif evidence source.
type MotifSpec struct {
	Weight         float64  `yaml:"weight"`
	ActivateAt     int      `yaml:"activate_at"`
	PValueFloor    *float64 `yaml:"pvalue_floor"`
	MemeBinary     string   `yaml:"meme_binary"`
	MaxWidth       int      `yaml:"max_width"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// NetworkSpec configures the network evidence source.
type NetworkSpec struct {
	Weight     float64  `yaml:"weight"`
	ActivateAt int      `yaml:"activate_at"`
	Files      []string `yaml:"files"`
	Sep        string   `yaml:"sep"`
}

// LoadRunFile parses a YAML run file.
func LoadRunFile(path string) (*RunFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read run file: %w", err)
	}
	var rf RunFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("config: parse run file %s: %w", path, err)
	}
	return &rf, nil
}

// ApplyRunFile folds a run file into the builder. CLI flags applied after
// this call override the run file's values.
func (b *Builder) ApplyRunFile(rf *RunFile) *Builder {
	if rf.Organism != "" {
		b.WithOrganism(rf.Organism)
	}
	if rf.NumClusters > 0 {
		b.WithNumClusters(rf.NumClusters)
	}
	if rf.NumIterations > 0 {
		b.WithNumIterations(rf.NumIterations)
	}
	if rf.CacheDir != "" {
		b.WithCacheDir(rf.CacheDir)
	}
	b.WithCheckpointInterval(rf.CheckpointInterval)
	if rf.RowWeight != nil {
		b.WithRowWeight(*rf.RowWeight)
	}
	if rf.ThesaurusFile != "" {
		b.WithThesaurusFile(rf.ThesaurusFile)
	}

	if len(rf.SequenceTypes) > 0 {
		order := rf.SequenceTypeOrder
		if len(order) == 0 {
			order = sortedKeys(rf.SequenceTypes)
		}
		files := make(map[string]string, len(rf.SequenceTypes))
		search := make(map[string]organism.Distance, len(rf.SequenceTypes))
		scan := make(map[string]organism.Distance, len(rf.SequenceTypes))
		for name, st := range rf.SequenceTypes {
			files[name] = st.File
			search[name] = organism.Distance{Start: st.Search[0], End: st.Search[1]}
			scan[name] = organism.Distance{Start: st.Scan[0], End: st.Scan[1]}
		}
		b.WithSequenceTypes(order).
			WithSequenceFiles(files).
			WithSearchDistances(search).
			WithScanDistances(scan)
	}

	if rf.Motif.Weight != 0 {
		b.WithMotifScoring(rf.Motif.Weight, rf.Motif.ActivateAt, rf.Motif.MemeBinary)
	}
	if rf.Motif.PValueFloor != nil {
		b.p.PValueFloor = *rf.Motif.PValueFloor
	}
	if rf.Motif.MaxWidth > 0 {
		b.p.MaxMotifWidth = rf.Motif.MaxWidth
	}
	if rf.Motif.TimeoutSeconds > 0 {
		b.p.MotifTimeout = time.Duration(rf.Motif.TimeoutSeconds) * time.Second
	}

	if rf.Network.Weight != 0 {
		b.WithNetworkScoring(rf.Network.Weight, rf.Network.ActivateAt)
		sep := ';'
		if rf.Network.Sep != "" {
			sep = rune(rf.Network.Sep[0])
		}
		b.WithNetworkFiles(rf.Network.Files, sep)
	}
	return b
}

func sortedKeys(m map[string]SequenceTypeSpec) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
