package solr

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/kailas-cloud/rhokp/internal/domain"
)

// maxFragmentRunes caps each highlight fragment before fragments are joined.
const maxFragmentRunes = 500

// snippetFragments is how many main_content highlight fragments make a snippet.
const snippetFragments = 2

// highlightTags are the markers the portal's highlighter wraps matches in.
// Only these are stripped; any other markup in the text is left as is.
var highlightTags = strings.NewReplacer(
	"<b>", "", "</b>", "",
	"<em>", "", "</em>", "",
	"<mark>", "", "</mark>", "",
)

// CleanHighlight strips the highlighter's tags and decodes HTML entities
// (the portal encodes highlight text with hl.encoder=html).
func CleanHighlight(s string) string {
	return html.UnescapeString(highlightTags.Replace(s))
}

// schemaError is a shape mismatch at a JSON path.
type schemaError struct {
	path string
	msg  string
}

func (e *schemaError) Error() string { return e.path + ": " + e.msg }

func mismatch(path, format string, args ...any) error {
	return &schemaError{path: path, msg: fmt.Sprintf(format, args...)}
}

// Parse validates a select-handler JSON payload and converts it into documents
// and facet counts. Any deviation from the expected shape is a Response error
// carrying the raw payload.
func Parse(raw []byte) (domain.SearchResponse, error) {
	resp, err := parse(raw)
	if err != nil {
		return domain.SearchResponse{}, domain.ResponseError("parse", 0, raw, err)
	}
	return resp, nil
}

func parse(raw []byte) (domain.SearchResponse, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var top any
	if err := dec.Decode(&top); err != nil {
		return domain.SearchResponse{}, fmt.Errorf("decode: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return domain.SearchResponse{}, errors.New("decode: trailing data after JSON document")
	}

	root, ok := top.(map[string]any)
	if !ok {
		return domain.SearchResponse{}, mismatch("$", "expected object, got %s", typeName(top))
	}
	response, err := object(root, "response", "$.response", true)
	if err != nil {
		return domain.SearchResponse{}, err
	}

	numFound, err := integer(response["numFound"], "$.response.numFound")
	if err != nil {
		return domain.SearchResponse{}, err
	}

	highlighting, err := parseHighlighting(root)
	if err != nil {
		return domain.SearchResponse{}, err
	}

	rawDocs, ok := response["docs"].([]any)
	if !ok {
		return domain.SearchResponse{}, mismatch("$.response.docs", "expected array, got %s", typeName(response["docs"]))
	}

	docs := make([]domain.Document, 0, len(rawDocs))
	byID := make(map[string]int, len(rawDocs))
	for i, rd := range rawDocs {
		path := fmt.Sprintf("$.response.docs[%d]", i)
		m, ok := rd.(map[string]any)
		if !ok {
			return domain.SearchResponse{}, mismatch(path, "expected object, got %s", typeName(rd))
		}
		doc, frags, err := parseDoc(m, path, highlighting)
		if err != nil {
			return domain.SearchResponse{}, err
		}
		if at, dup := byID[doc.ID]; dup {
			mergeFragments(&docs[at], frags)
			continue
		}
		doc.SetSnippet(strings.Join(frags, " "))
		byID[doc.ID] = len(docs)
		docs = append(docs, doc)
	}

	facets, err := parseFacets(root)
	if err != nil {
		return domain.SearchResponse{}, err
	}

	return domain.SearchResponse{Docs: docs, NumFound: numFound, Facets: facets}, nil
}

func parseDoc(m map[string]any, path string, hl map[string]map[string][]string) (domain.Document, []string, error) {
	var (
		d   domain.Document
		err error
	)
	str := func(field string) string {
		if err != nil {
			return ""
		}
		var s string
		s, err = optString(m, field, path)
		return s
	}
	first := func(field string) string {
		if err != nil {
			return ""
		}
		var s string
		s, err = stringOrFirst(m, field, path)
		return s
	}

	d.ID = str("id")
	d.ResourceName = str("resourceName")
	d.Title = CleanHighlight(str("title"))
	d.URLSlug = str("url_slug")
	viewURI := str("view_uri")
	d.Kind = first("documentKind")
	d.Product = first("product")
	d.Version = first("documentation_version")
	d.Summary = CleanHighlight(str("portal_summary"))
	d.Severity = str("portal_severity")
	cveSeverity := str("cve_threatSeverity")
	d.AdvisoryType = str("portal_advisory_type")
	d.Synopsis = CleanHighlight(str("portal_synopsis"))
	mainContent := str("main_content")
	modified := str("lastModifiedDate")
	if err != nil {
		return d, nil, err
	}

	if d.ID == "" {
		d.ID = d.ResourceName
	}
	if d.ID == "" {
		return d, nil, mismatch(path, "missing required field id (or resourceName)")
	}
	if v, ok := m["title"]; !ok || v == nil {
		return d, nil, mismatch(path+".title", "missing required field")
	}
	if d.Severity == "" {
		d.Severity = cveSeverity
	}
	d.URL = domain.SourceURL(viewURI, d.URLSlug)

	if v, ok := m["score"]; ok {
		if d.Score, err = number(v, path+".score"); err != nil {
			return d, nil, err
		}
	}
	if modified != "" {
		if d.LastModified, err = time.Parse(time.RFC3339, modified); err != nil {
			return d, nil, mismatch(path+".lastModifiedDate", "expected RFC 3339 date, got %q", modified)
		}
	}
	if d.Headings, err = optStrings(m, "heading_h2", path); err != nil {
		return d, nil, err
	}

	return d, snippetFragmentsFor(hl[d.ID], mainContent), nil
}

// snippetFragmentsFor picks main_content highlights, then the title highlight,
// then the stored main_content, and dedupes them.
func snippetFragmentsFor(hl map[string][]string, mainContent string) []string {
	var candidates []string
	switch {
	case len(hl["main_content"]) > 0:
		candidates = hl["main_content"]
		if len(candidates) > snippetFragments {
			candidates = candidates[:snippetFragments]
		}
	case len(hl["title"]) > 0:
		candidates = hl["title"]
	case mainContent != "":
		candidates = []string{mainContent}
	}

	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		c, _ = domain.TruncateRunes(strings.TrimSpace(CleanHighlight(c)), maxFragmentRunes)
		if c == "" || slices.Contains(out, c) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// mergeFragments folds fragments of a repeated document into its first occurrence.
func mergeFragments(d *domain.Document, frags []string) {
	existing := d.Snippet
	var extra []string
	for _, f := range frags {
		if !strings.Contains(existing, f) && !slices.Contains(extra, f) {
			extra = append(extra, f)
		}
	}
	if len(extra) == 0 {
		return
	}
	if existing != "" {
		extra = append([]string{existing}, extra...)
	}
	truncated := d.SnippetTruncated
	d.SetSnippet(strings.Join(extra, " "))
	d.SnippetTruncated = d.SnippetTruncated || truncated
}

func parseHighlighting(root map[string]any) (map[string]map[string][]string, error) {
	raw, ok := root["highlighting"]
	if !ok || raw == nil {
		return nil, nil
	}
	top, ok := raw.(map[string]any)
	if !ok {
		return nil, mismatch("$.highlighting", "expected object, got %s", typeName(raw))
	}
	out := make(map[string]map[string][]string, len(top))
	for id, v := range top {
		path := "$.highlighting." + id
		fields, ok := v.(map[string]any)
		if !ok {
			return nil, mismatch(path, "expected object, got %s", typeName(v))
		}
		hl := make(map[string][]string, len(fields))
		for field, fv := range fields {
			frags, err := stringArray(fv, path+"."+field)
			if err != nil {
				return nil, err
			}
			hl[field] = frags
		}
		out[id] = hl
	}
	return out, nil
}

func parseFacets(root map[string]any) (domain.FacetCounts, error) {
	facets := domain.FacetCounts{}
	fc, err := object(root, "facet_counts", "$.facet_counts", false)
	if err != nil || fc == nil {
		return facets, err
	}
	fields, err := object(fc, "facet_fields", "$.facet_counts.facet_fields", false)
	if err != nil || fields == nil {
		return facets, err
	}
	for _, dim := range domain.FacetDimensions {
		raw, ok := fields[dim]
		if !ok {
			continue
		}
		path := "$.facet_counts.facet_fields." + dim
		list, ok := raw.([]any)
		if !ok {
			return nil, mismatch(path, "expected array, got %s", typeName(raw))
		}
		if len(list)%2 != 0 {
			return nil, mismatch(path, "expected [name, count, ...] pairs, got odd length %d", len(list))
		}
		for i := 0; i < len(list); i += 2 {
			name, ok := list[i].(string)
			if !ok {
				return nil, mismatch(fmt.Sprintf("%s[%d]", path, i), "expected string, got %s", typeName(list[i]))
			}
			count, err := integer(list[i+1], fmt.Sprintf("%s[%d]", path, i+1))
			if err != nil {
				return nil, err
			}
			facets.Add(dim, name, count)
		}
	}
	return facets, nil
}

// --- shape helpers ---

func object(m map[string]any, key, path string, required bool) (map[string]any, error) {
	v, ok := m[key]
	if !ok || v == nil {
		if required {
			return nil, mismatch(path, "missing required object")
		}
		return nil, nil
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, mismatch(path, "expected object, got %s", typeName(v))
	}
	return obj, nil
}

func integer(v any, path string) (int, error) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, mismatch(path, "expected integer, got %s", typeName(v))
	}
	i, err := n.Int64()
	if err != nil || i < 0 {
		return 0, mismatch(path, "expected non-negative integer, got %s", n)
	}
	return int(i), nil
}

func number(v any, path string) (float64, error) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, mismatch(path, "expected number, got %s", typeName(v))
	}
	f, err := n.Float64()
	if err != nil {
		return 0, mismatch(path, "expected number, got %s", n)
	}
	return f, nil
}

func optString(m map[string]any, field, path string) (string, error) {
	v, ok := m[field]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", mismatch(path+"."+field, "expected string, got %s", typeName(v))
	}
	return s, nil
}

// stringOrFirst accepts a single-valued or multi-valued string field.
func stringOrFirst(m map[string]any, field, path string) (string, error) {
	v, ok := m[field]
	if !ok || v == nil {
		return "", nil
	}
	if s, ok := v.(string); ok {
		return s, nil
	}
	list, err := stringArray(v, path+"."+field)
	if err != nil {
		return "", mismatch(path+"."+field, "expected string or array of strings, got %s", typeName(v))
	}
	if len(list) == 0 {
		return "", nil
	}
	return list[0], nil
}

func optStrings(m map[string]any, field, path string) ([]string, error) {
	v, ok := m[field]
	if !ok || v == nil {
		return nil, nil
	}
	return stringArray(v, path+"."+field)
}

func stringArray(v any, path string) ([]string, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, mismatch(path, "expected array, got %s", typeName(v))
	}
	out := make([]string, len(list))
	for i, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, mismatch(fmt.Sprintf("%s[%d]", path, i), "expected string, got %s", typeName(item))
		}
		out[i] = s
	}
	return out, nil
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}
