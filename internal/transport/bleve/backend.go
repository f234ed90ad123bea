// Package bleve serves portal documents from an in-memory bleve index,
// for development and demos without a running portal.
package bleve

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"go.uber.org/zap"

	"github.com/kailas-cloud/rhokp/internal/domain"
	"github.com/kailas-cloud/rhokp/internal/transport/solr"
)

// Name identifies this backend in metrics and logs.
const Name = "local"

const (
	fieldTitle   = "title"
	fieldContent = "main_content"

	facetSize        = 50
	snippetFragments = 2
	maxFragmentRunes = 500
	maxLineBytes     = 4 << 20
)

// record is one line of a portal JSONL export. Field names follow the portal schema.
type record struct {
	ID           string   `json:"id"`
	ResourceName string   `json:"resourceName"`
	Title        string   `json:"title"`
	MainContent  string   `json:"main_content"`
	Product      string   `json:"product"`
	Version      string   `json:"documentation_version"`
	Kind         string   `json:"documentKind"`
	Subtype      string   `json:"portal_content_subtype"`
	ViewURI      string   `json:"view_uri"`
	URLSlug      string   `json:"url_slug"`
	Summary      string   `json:"portal_summary"`
	Severity     string   `json:"portal_severity"`
	AdvisoryType string   `json:"portal_advisory_type"`
	Synopsis     string   `json:"portal_synopsis"`
	Headings     []string `json:"heading_h2"`
	LastModified string   `json:"lastModifiedDate"`
}

// Backend is a SearchBackend over a bleve mem-only index.
type Backend struct {
	index  bleve.Index
	mu     sync.RWMutex
	docs   map[string]domain.Document
	bodies map[string]string
	logger *zap.Logger
}

// New creates an empty Backend.
func New(logger *zap.Logger) (*Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	idx, err := bleve.NewMemOnly(indexMapping())
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	return &Backend{
		index:  idx,
		docs:   make(map[string]domain.Document),
		bodies: make(map[string]string),
		logger: logger,
	}, nil
}

// Open creates a Backend and loads the JSONL export at path.
func Open(path string, logger *zap.Logger) (*Backend, error) {
	f, err := os.Open(path) //nolint:gosec // operator-supplied export path
	if err != nil {
		return nil, fmt.Errorf("open export: %w", err)
	}
	defer func() { _ = f.Close() }()

	b, err := New(logger)
	if err != nil {
		return nil, err
	}
	n, err := b.Load(f)
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	b.logger.Info("local index loaded", zap.String("path", path), zap.Int("documents", n))
	return b, nil
}

func indexMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	dm := bleve.NewDocumentStaticMapping()

	dm.AddFieldMappingsAt(fieldTitle, bleve.NewTextFieldMapping())
	dm.AddFieldMappingsAt(fieldContent, bleve.NewTextFieldMapping())

	for _, dim := range domain.FacetDimensions {
		dm.AddFieldMappingsAt(dim, bleve.NewKeywordFieldMapping())
	}

	im.DefaultMapping = dm
	return im
}

// Load indexes every JSONL record from r and returns how many were added.
// Blank lines are skipped. A malformed line aborts the load.
func (b *Backend) Load(r io.Reader) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxLineBytes)

	batch := b.index.NewBatch()
	docs := make(map[string]domain.Document)
	bodies := make(map[string]string)
	line := 0
	for sc.Scan() {
		line++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}
		var rec record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return 0, fmt.Errorf("line %d: %w", line, err)
		}
		doc, err := rec.document()
		if err != nil {
			return 0, fmt.Errorf("line %d: %w", line, err)
		}
		if err := batch.Index(doc.ID, map[string]any{
			fieldTitle:                 rec.Title,
			fieldContent:               rec.MainContent,
			domain.FacetProduct:        rec.Product,
			domain.FacetDocumentKind:   rec.Kind,
			domain.FacetVersion:        rec.Version,
			domain.FacetContentSubtype: rec.Subtype,
		}); err != nil {
			return 0, fmt.Errorf("line %d: index: %w", line, err)
		}
		docs[doc.ID] = doc
		bodies[doc.ID] = rec.MainContent
	}
	if err := sc.Err(); err != nil {
		return 0, fmt.Errorf("read export: %w", err)
	}
	if err := b.index.Batch(batch); err != nil {
		return 0, fmt.Errorf("index batch: %w", err)
	}

	b.mu.Lock()
	for id, d := range docs {
		b.docs[id] = d
		b.bodies[id] = bodies[id]
	}
	b.mu.Unlock()
	return len(docs), nil
}

func (r record) document() (domain.Document, error) {
	d := domain.Document{
		ID:           r.ID,
		ResourceName: r.ResourceName,
		Title:        r.Title,
		URLSlug:      r.URLSlug,
		URL:          domain.SourceURL(r.ViewURI, r.URLSlug),
		Product:      r.Product,
		Version:      r.Version,
		Kind:         r.Kind,
		Summary:      r.Summary,
		Headings:     r.Headings,
		Severity:     r.Severity,
		AdvisoryType: r.AdvisoryType,
		Synopsis:     r.Synopsis,
	}
	if d.ID == "" {
		d.ID = d.ResourceName
	}
	if d.ID == "" {
		return d, errors.New("missing id")
	}
	if d.Title == "" {
		return d, errors.New("missing title")
	}
	if r.LastModified != "" {
		t, err := time.Parse(time.RFC3339, r.LastModified)
		if err != nil {
			return d, fmt.Errorf("lastModifiedDate: %w", err)
		}
		d.LastModified = t
	}
	return d, nil
}

// Name implements the named-backend hook used for metrics labels.
func (b *Backend) Name() string { return Name }

// Search runs a match query over title and content, restricted by keyword filters.
func (b *Backend) Search(ctx context.Context, req domain.SearchRequest) (domain.SearchResponse, error) {
	text := unescape(req.Query)
	title := bleve.NewMatchQuery(text)
	title.SetField(fieldTitle)
	content := bleve.NewMatchQuery(text)
	content.SetField(fieldContent)

	var q query.Query = bleve.NewDisjunctionQuery(title, content)
	if clauses := filterQueries(req.Filters); len(clauses) > 0 {
		q = bleve.NewConjunctionQuery(append([]query.Query{q}, clauses...)...)
	}

	sr := bleve.NewSearchRequestOptions(q, req.Rows, 0, false)
	sr.Highlight = bleve.NewHighlightWithStyle("html")
	sr.Highlight.AddField(fieldContent)
	sr.Highlight.AddField(fieldTitle)
	addFacets(sr)

	return b.run(ctx, "search", sr)
}

// Probe reports the index size and product facet values.
func (b *Backend) Probe(ctx context.Context) (domain.ProbeResult, error) {
	sr := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), 0, 0, false)
	addFacets(sr)
	resp, err := b.run(ctx, "probe", sr)
	if err != nil {
		return domain.ProbeResult{}, err
	}
	return domain.ProbeResult{
		NumIndexed: resp.NumFound,
		Products:   resp.Facets.Values(domain.FacetProduct),
	}, nil
}

// Close closes the index.
func (b *Backend) Close() error {
	if err := b.index.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}
	return nil
}

func (b *Backend) run(ctx context.Context, op string, sr *bleve.SearchRequest) (domain.SearchResponse, error) {
	res, err := b.index.SearchInContext(ctx, sr)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.SearchResponse{}, domain.NewError(domain.KindTimeout, op, ctxErr)
		}
		return domain.SearchResponse{}, domain.NewError(domain.KindResponse, op, err)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	docs := make([]domain.Document, 0, len(res.Hits))
	for _, hit := range res.Hits {
		d, ok := b.docs[hit.ID]
		if !ok {
			continue
		}
		d = d.Clone()
		d.Score = hit.Score
		d.SetSnippet(snippet(hit.Fragments, b.bodies[hit.ID]))
		docs = append(docs, d)
	}

	facets := domain.FacetCounts{}
	for _, dim := range domain.FacetDimensions {
		fr, ok := res.Facets[dim]
		if !ok || fr == nil || fr.Terms == nil {
			continue
		}
		for _, tf := range fr.Terms.Terms() {
			facets.Add(dim, tf.Term, tf.Count)
		}
	}

	return domain.SearchResponse{Docs: docs, NumFound: int(res.Total), Facets: facets}, nil //nolint:gosec // bounded by index size
}

func addFacets(sr *bleve.SearchRequest) {
	for _, dim := range domain.FacetDimensions {
		sr.AddFacet(dim, bleve.NewFacetRequest(dim, facetSize))
	}
}

func filterQueries(f domain.Filters) []query.Query {
	var out []query.Query
	add := func(field, value string) {
		if value == "" {
			return
		}
		tq := bleve.NewTermQuery(value)
		tq.SetField(field)
		out = append(out, tq)
	}
	add(domain.FacetProduct, f.Product)
	add(domain.FacetVersion, f.Version)
	add(domain.FacetDocumentKind, f.Kind)
	return out
}

// snippet mirrors the portal's choice: content highlights, then title, then stored content.
func snippet(frags map[string][]string, body string) string {
	var candidates []string
	switch {
	case len(frags[fieldContent]) > 0:
		candidates = frags[fieldContent]
		if len(candidates) > snippetFragments {
			candidates = candidates[:snippetFragments]
		}
	case len(frags[fieldTitle]) > 0:
		candidates = frags[fieldTitle]
	case body != "":
		candidates = []string{body}
	}
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		c, _ = domain.TruncateRunes(strings.TrimSpace(solr.CleanHighlight(c)), maxFragmentRunes)
		if c != "" {
			out = append(out, c)
		}
	}
	return strings.Join(out, " ")
}

// unescape drops the backslashes added by query sanitizing; bleve match
// queries take the text literally.
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s))
	escaped := false
	for _, r := range s {
		if r == '\\' && !escaped {
			escaped = true
			continue
		}
		escaped = false
		sb.WriteRune(r)
	}
	return sb.String()
}
