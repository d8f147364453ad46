// internal/network/network.go
// Package network loads gene-interaction edge sets and scores clusters by
// co-membership consistency against them.
package network

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"biclust/internal/datamatrix"
)

// ErrNoEdges is returned when an edge file contains no usable edges.
var ErrNoEdges = errors.New("network: no edges")

// Edge is one undirected weighted interaction between two genes.
type Edge struct {
	A, B   string
	Weight float64
}

// Network is an undirected weighted edge set.
type Network struct {
	name string
	adj  map[string]map[string]float64
}

// NewNetwork builds a network from edges; duplicate edges keep the larger
// weight.
func NewNetwork(name string, edges []Edge) *Network {
	n := &Network{name: name, adj: make(map[string]map[string]float64)}
	for _, e := range edges {
		n.addEdge(e.A, e.B, e.Weight)
		n.addEdge(e.B, e.A, e.Weight)
	}
	return n
}

func (n *Network) addEdge(from, to string, w float64) {
	m, ok := n.adj[from]
	if !ok {
		m = make(map[string]float64)
		n.adj[from] = m
	}
	if w > m[to] {
		m[to] = w
	}
}

// Name returns the network's source name.
func (n *Network) Name() string { return n.name }

// NumEdges returns the number of undirected edges.
func (n *Network) NumEdges() int {
	total := 0
	for _, m := range n.adj {
		total += len(m)
	}
	return total / 2
}

// EdgeWeight returns the weight between two genes, zero when unconnected.
func (n *Network) EdgeWeight(a, b string) float64 { return n.adj[a][b] }

// Factory produces a network on demand, so edge files are only parsed when
// an organism is actually constructed.
type Factory func() (*Network, error)

// DelimitedFactory returns a factory reading a delimited edge file
// (gzip transparent) with lines "geneA<sep>geneB<sep>weight". Lines with a
// missing or unparsable weight default to 1. Header lines whose weight field
// is non-numeric are skipped.
func DelimitedFactory(name, path string, sep rune) Factory {
	return func() (*Network, error) {
		rc, err := datamatrix.OpenReader(path)
		if err != nil {
			return nil, fmt.Errorf("network: open %s: %w", path, err)
		}
		defer func() { _ = rc.Close() }()

		var edges []Edge
		sc := bufio.NewScanner(rc)
		sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		first := true
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			fields := strings.Split(line, string(sep))
			if len(fields) < 2 {
				return nil, fmt.Errorf("network: %s: bad line %q", path, line)
			}
			w := 1.0
			if len(fields) >= 3 {
				parsed, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
				if err != nil {
					if first {
						first = false
						continue // header
					}
					return nil, fmt.Errorf("network: %s: bad weight in %q", path, line)
				}
				w = parsed
			}
			first = false
			edges = append(edges, Edge{
				A:      strings.TrimSpace(fields[0]),
				B:      strings.TrimSpace(fields[1]),
				Weight: w,
			})
		}
		if err := sc.Err(); err != nil {
			return nil, err
		}
		if len(edges) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrNoEdges, path)
		}
		return NewNetwork(name, edges), nil
	}
}
