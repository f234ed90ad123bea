package rescache

import (
	"time"

	"github.com/kailas-cloud/rhokp/internal/domain"
)

// resultDTO is the serialized form kept in the shared store.
type resultDTO struct {
	Query     string                    `json:"query"`
	NumFound  int                       `json:"num_found"`
	Docs      []documentDTO             `json:"docs"`
	Facets    map[string]map[string]int `json:"facets,omitempty"`
	Context   string                    `json:"context"`
	ElapsedMS int64                     `json:"elapsed_ms"`
}

type documentDTO struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Snippet          string    `json:"snippet,omitempty"`
	SnippetTruncated bool      `json:"snippet_truncated,omitempty"`
	URL              string    `json:"url,omitempty"`
	URLSlug          string    `json:"url_slug,omitempty"`
	ResourceName     string    `json:"resource_name,omitempty"`
	Product          string    `json:"product,omitempty"`
	Version          string    `json:"version,omitempty"`
	Kind             string    `json:"kind,omitempty"`
	Score            float64   `json:"score"`
	LastModified     time.Time `json:"last_modified,omitzero"`
	Summary          string    `json:"summary,omitempty"`
	Headings         []string  `json:"headings,omitempty"`
	Severity         string    `json:"severity,omitempty"`
	AdvisoryType     string    `json:"advisory_type,omitempty"`
	Synopsis         string    `json:"synopsis,omitempty"`
}

func toDTO(r domain.RetrieveResult) resultDTO {
	docs := make([]documentDTO, len(r.Docs))
	for i, d := range r.Docs {
		docs[i] = documentDTO{
			ID: d.ID, Title: d.Title, Snippet: d.Snippet, SnippetTruncated: d.SnippetTruncated,
			URL: d.URL, URLSlug: d.URLSlug, ResourceName: d.ResourceName,
			Product: d.Product, Version: d.Version, Kind: d.Kind, Score: d.Score,
			LastModified: d.LastModified, Summary: d.Summary, Headings: d.Headings,
			Severity: d.Severity, AdvisoryType: d.AdvisoryType, Synopsis: d.Synopsis,
		}
	}
	return resultDTO{
		Query:     r.Query,
		NumFound:  r.NumFound,
		Docs:      docs,
		Facets:    r.Facets,
		Context:   r.Context,
		ElapsedMS: r.Elapsed.Milliseconds(),
	}
}

func fromDTO(d resultDTO) domain.RetrieveResult {
	docs := make([]domain.Document, len(d.Docs))
	for i, x := range d.Docs {
		docs[i] = domain.Document{
			ID: x.ID, Title: x.Title, Snippet: x.Snippet, SnippetTruncated: x.SnippetTruncated,
			URL: x.URL, URLSlug: x.URLSlug, ResourceName: x.ResourceName,
			Product: x.Product, Version: x.Version, Kind: x.Kind, Score: x.Score,
			LastModified: x.LastModified, Summary: x.Summary, Headings: x.Headings,
			Severity: x.Severity, AdvisoryType: x.AdvisoryType, Synopsis: x.Synopsis,
		}
	}
	return domain.RetrieveResult{
		Query:    d.Query,
		NumFound: d.NumFound,
		Docs:     docs,
		Facets:   domain.FacetCounts(d.Facets),
		Context:  d.Context,
		Elapsed:  time.Duration(d.ElapsedMS) * time.Millisecond,
	}
}
