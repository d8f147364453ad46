// internal/rsat/rsat.go
// Package rsat fetches organism reference files from an RSAT mirror over
// HTTP. A 404 from the mirror is reported as ErrDocumentNotFound so callers
// can retry with an alternate path convention; every other failure is a
// *TransportError and is fatal for that fetch.
package rsat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	dirPath           = "data/genomes"
	organismFilePath  = "genome/organism.tab"
	organismNamesPath = "genome/organism_names.tab"
	ensemblSuffix     = "_EnsEMBL"
)

// ErrDocumentNotFound is returned when the mirror reports HTTP 404 for a
// requested document.
var ErrDocumentNotFound = errors.New("rsat: document not found")

// TransportError covers every remote failure that is not a 404: connection
// errors, timeouts and unexpected HTTP status codes.
type TransportError struct {
	URL        string
	StatusCode int // 0 when the request never got a response
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("rsat: fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("rsat: fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Database is a client for one RSAT mirror. It keeps no connection state
// beyond the base URL and is safe for concurrent use.
type Database struct {
	baseURL string
	client  *http.Client
	log     *zap.Logger
}

// Option configures a Database.
type Option func(*Database)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Database) { d.client = c }
}

// WithLogger attaches a logger for fetch diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(d *Database) { d.log = l }
}

// New creates a Database for the given mirror base URL.
func New(baseURL string, opts ...Option) *Database {
	d := &Database{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 60 * time.Second},
		log:     zap.NewNop(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Fetch retrieves the document at baseURL joined with the given path
// segments and returns its body unmodified.
func (d *Database) Fetch(ctx context.Context, segments ...string) ([]byte, error) {
	url := strings.Join(append([]string{d.baseURL}, segments...), "/")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		d.log.Debug("document not found", zap.String("url", url))
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, url)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &TransportError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	return body, nil
}

// DirectoryListing returns the HTML page listing the genome directory.
func (d *Database) DirectoryListing(ctx context.Context) ([]byte, error) {
	return d.Fetch(ctx, dirPath)
}

// OrganismFile returns the organism table for the given organism code.
func (d *Database) OrganismFile(ctx context.Context, organism string) ([]byte, error) {
	return d.Fetch(ctx, dirPath, organism, organismFilePath)
}

// OrganismNamesFile returns the organism names table for the given code.
func (d *Database) OrganismNamesFile(ctx context.Context, organism string) ([]byte, error) {
	return d.Fetch(ctx, dirPath, organism, organismNamesPath)
}

// EnsemblOrganismNamesFile returns the organism names table using the
// EnsEMBL directory naming convention.
func (d *Database) EnsemblOrganismNamesFile(ctx context.Context, organism string) ([]byte, error) {
	return d.Fetch(ctx, dirPath, organism+ensemblSuffix, organismNamesPath)
}
