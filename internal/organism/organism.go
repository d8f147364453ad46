// internal/organism/organism.go
// Package organism bundles the per-species reference data: the synonym
// thesaurus, interaction networks, and per-region sequence files with their
// distance windows.
package organism

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"biclust/internal/datamatrix"
	"biclust/internal/network"
	"biclust/internal/rsat"
)

var (
	// ErrUnknownSequenceType indicates a sequence region type with no
	// configured sequence file.
	ErrUnknownSequenceType = errors.New("organism: unknown sequence type")
)

// Distance is a (start, end) offset window into a region sequence.
type Distance struct {
	Start int
	End   int
}

// Organism is constructed once per configuration and read-only thereafter.
type Organism struct {
	code            string
	thesaurus       map[string]string // alternative -> canonical
	networks        []*network.Network
	seqFiles        map[string]string
	searchDistances map[string]Distance
	scanDistances   map[string]Distance
	log             *zap.Logger
}

// Params collects the inputs for constructing an Organism.
type Params struct {
	Code             string
	ThesaurusFile    string // optional; empty means identity thesaurus
	NetworkFactories []network.Factory
	SeqFiles         map[string]string
	SearchDistances  map[string]Distance
	ScanDistances    map[string]Distance
	Logger           *zap.Logger
}

// New builds the organism: loads the thesaurus and materializes every
// network factory. Expensive, which is why the configuration defers it
// behind a memoized accessor.
func New(p Params) (*Organism, error) {
	log := p.Logger
	if log == nil {
		log = zap.NewNop()
	}

	thesaurus := map[string]string{}
	if p.ThesaurusFile != "" {
		var err error
		if thesaurus, err = ReadThesaurus(p.ThesaurusFile); err != nil {
			return nil, fmt.Errorf("organism %s: %w", p.Code, err)
		}
	}

	var networks []*network.Network
	for _, factory := range p.NetworkFactories {
		nw, err := factory()
		if err != nil {
			return nil, fmt.Errorf("organism %s: %w", p.Code, err)
		}
		log.Info("loaded network",
			zap.String("organism", p.Code),
			zap.String("network", nw.Name()),
			zap.Int("edges", nw.NumEdges()))
		networks = append(networks, nw)
	}

	return &Organism{
		code:            p.Code,
		thesaurus:       thesaurus,
		networks:        networks,
		seqFiles:        p.SeqFiles,
		searchDistances: p.SearchDistances,
		scanDistances:   p.ScanDistances,
		log:             log,
	}, nil
}

// Code returns the organism code (e.g. "hsa").
func (o *Organism) Code() string { return o.code }

// Networks returns the loaded interaction networks.
func (o *Organism) Networks() []*network.Network { return o.networks }

// CanonicalName resolves a gene identifier through the thesaurus, falling
// back to the identifier itself.
func (o *Organism) CanonicalName(gene string) string {
	if c, ok := o.thesaurus[gene]; ok {
		return c
	}
	return gene
}

// SearchDistance returns the search window for a sequence type.
func (o *Organism) SearchDistance(seqType string) (Distance, bool) {
	d, ok := o.searchDistances[seqType]
	return d, ok
}

// ScanDistance returns the scan window for a sequence type.
func (o *Organism) ScanDistance(seqType string) (Distance, bool) {
	d, ok := o.scanDistances[seqType]
	return d, ok
}

// SequencesFor reads the region sequences for the given genes, clipped to
// the sequence type's search distance window. Genes without a sequence are
// simply absent from the result.
func (o *Organism) SequencesFor(seqType string, genes []string) (map[string]string, error) {
	path, ok := o.seqFiles[seqType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSequenceType, seqType)
	}
	all, err := readSequenceFile(path)
	if err != nil {
		return nil, err
	}

	window, haveWindow := o.searchDistances[seqType]
	out := make(map[string]string, len(genes))
	for _, gene := range genes {
		seq, ok := all[o.CanonicalName(gene)]
		if !ok {
			seq, ok = all[gene]
		}
		if !ok {
			continue
		}
		if haveWindow {
			seq = clip(seq, window)
		}
		if seq != "" {
			out[gene] = seq
		}
	}
	return out, nil
}

func clip(seq string, d Distance) string {
	start, end := d.Start, d.End
	if start < 0 {
		start = 0
	}
	if end > len(seq) || end <= 0 {
		end = len(seq)
	}
	if start >= end {
		return ""
	}
	return seq[start:end]
}

// readSequenceFile parses "gene,sequence" lines (gzip transparent).
func readSequenceFile(path string) (map[string]string, error) {
	rc, err := datamatrix.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("organism: open %s: %w", path, err)
	}
	defer func() { _ = rc.Close() }()

	out := make(map[string]string)
	sc := bufio.NewScanner(rc)
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		gene, seq, ok := strings.Cut(line, ",")
		if !ok {
			return nil, fmt.Errorf("organism: %s: bad sequence line %q", path, line)
		}
		out[strings.Trim(gene, `"`)] = strings.Trim(seq, `"`)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadThesaurus parses a synonym file (gzip transparent) with lines of the
// form "canonical,alt1;alt2;...". Both the canonical name and every
// alternative map to the canonical name.
func ReadThesaurus(path string) (map[string]string, error) {
	rc, err := datamatrix.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("organism: open thesaurus %s: %w", path, err)
	}
	defer func() { _ = rc.Close() }()

	out := make(map[string]string)
	sc := bufio.NewScanner(rc)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		canonical, alts, ok := strings.Cut(line, ",")
		if !ok {
			return nil, fmt.Errorf("organism: bad thesaurus line %q", line)
		}
		canonical = strings.Trim(canonical, `"`)
		out[canonical] = canonical
		for _, alt := range strings.Split(alts, ";") {
			if alt = strings.Trim(strings.TrimSpace(alt), `"`); alt != "" {
				out[alt] = canonical
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ResolveNames fetches the organism names table from the RSAT mirror.
// A plain not-found retries once with the EnsEMBL naming convention; any
// other error is fatal for the resolution attempt.
func (o *Organism) ResolveNames(ctx context.Context, db *rsat.Database) ([]byte, error) {
	data, err := db.OrganismNamesFile(ctx, o.code)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, rsat.ErrDocumentNotFound) {
		return nil, err
	}
	o.log.Info("organism names not found, retrying with EnsEMBL path",
		zap.String("organism", o.code))
	return db.EnsemblOrganismNamesFile(ctx, o.code)
}
