package domain

import (
	"maps"
	"slices"
	"time"
	"unicode/utf8"
)

// MaxSnippetRunes bounds Document.Snippet; longer text is cut and flagged.
const MaxSnippetRunes = 1000

// Facet dimensions reported by the portal.
const (
	FacetProduct        = "product"
	FacetDocumentKind   = "documentKind"
	FacetVersion        = "documentation_version"
	FacetContentSubtype = "portal_content_subtype"
)

// FacetDimensions lists the dimensions in report order.
var FacetDimensions = []string{FacetProduct, FacetDocumentKind, FacetVersion, FacetContentSubtype}

// Document is a single portal hit.
type Document struct {
	ID           string
	Title        string
	Snippet      string
	URL          string
	URLSlug      string
	ResourceName string
	Product      string
	Version      string
	Kind         string
	Score        float64
	LastModified time.Time
	Summary      string
	Headings     []string

	// Security advisory fields; empty for regular documentation.
	Severity     string
	AdvisoryType string
	Synopsis     string

	SnippetTruncated bool
}

// SetSnippet stores s, cutting it at MaxSnippetRunes and flagging the cut.
func (d *Document) SetSnippet(s string) {
	d.Snippet, d.SnippetTruncated = TruncateRunes(s, MaxSnippetRunes)
}

// SourceURL returns the citation link: view_uri when present, otherwise /<url_slug>.
func SourceURL(viewURI, slug string) string {
	if viewURI != "" {
		return viewURI
	}
	if slug == "" {
		return ""
	}
	if slug[0] == '/' {
		return slug
	}
	return "/" + slug
}

// TruncateRunes cuts s to at most n runes and reports whether it did.
func TruncateRunes(s string, n int) (string, bool) {
	if utf8.RuneCountInString(s) <= n {
		return s, false
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos], true
		}
		i++
	}
	return s, false
}

// Clone returns a copy that shares no slices with d.
func (d Document) Clone() Document {
	d.Headings = slices.Clone(d.Headings)
	return d
}

// FacetCounts maps a facet dimension to value → count.
type FacetCounts map[string]map[string]int

// Add records a positive count; zero and negative counts are dropped.
func (f FacetCounts) Add(dimension, value string, count int) {
	if count <= 0 {
		return
	}
	m, ok := f[dimension]
	if !ok {
		m = make(map[string]int)
		f[dimension] = m
	}
	m[value] = count
}

// Values returns the values of a dimension sorted by count descending, then name.
func (f FacetCounts) Values(dimension string) []string {
	m := f[dimension]
	out := slices.Collect(maps.Keys(m))
	slices.SortFunc(out, func(a, b string) int {
		if m[a] != m[b] {
			return m[b] - m[a]
		}
		if a < b {
			return -1
		}
		if a > b {
			return 1
		}
		return 0
	})
	return out
}

// Clone returns a deep copy.
func (f FacetCounts) Clone() FacetCounts {
	if f == nil {
		return nil
	}
	out := make(FacetCounts, len(f))
	for dim, m := range f {
		out[dim] = maps.Clone(m)
	}
	return out
}

// RetrieveResult is what a retrieve call hands back to its caller.
type RetrieveResult struct {
	Query    string
	NumFound int
	Docs     []Document
	Facets   FacetCounts
	Context  string
	Elapsed  time.Duration
}

// Clone returns a deep copy so cached results never alias caller-owned data.
func (r RetrieveResult) Clone() RetrieveResult {
	out := r
	if r.Docs != nil {
		out.Docs = make([]Document, len(r.Docs))
		for i, d := range r.Docs {
			out.Docs[i] = d.Clone()
		}
	}
	out.Facets = r.Facets.Clone()
	return out
}
