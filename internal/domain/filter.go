package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Filter keys accepted from callers.
const (
	FilterProduct = "product"
	FilterVersion = "version"
	FilterKind    = "kind"
)

var filterAliases = map[string]string{
	FilterProduct:   FilterProduct,
	FilterVersion:   FilterVersion,
	FilterKind:      FilterKind,
	"document_kind": FilterKind,
	"documentKind":  FilterKind,
}

// Filters restricts a search to a product, version and/or document kind.
type Filters struct {
	Product string
	Version string
	Kind    string
}

// IsZero reports whether no filter is set.
func (f Filters) IsZero() bool {
	return f == Filters{}
}

// Set assigns a filter by key; unknown keys are a Validation error.
func (f *Filters) Set(key, value string) error {
	canonical, ok := filterAliases[strings.TrimSpace(key)]
	if !ok {
		return Validation("filters", fmt.Errorf("%w %q (supported: product, version, kind)", ErrUnknownFilter, key))
	}
	value = strings.TrimSpace(value)
	switch canonical {
	case FilterProduct:
		f.Product = value
	case FilterVersion:
		f.Version = value
	case FilterKind:
		f.Kind = value
	}
	return nil
}

// ParseFilters builds Filters from a key/value map. Empty values are ignored.
func ParseFilters(m map[string]string) (Filters, error) {
	var f Filters
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := f.Set(k, m[k]); err != nil {
			return Filters{}, err
		}
	}
	return f, nil
}
