package mcp

import "strings"

// ResolveProduct maps an approximate product name ("OpenShift", "rhel",
// "Ansible Automation Platform") to the exact indexed name. Models tend to
// drop the "Red Hat" prefix or shorten names. Matching order:
// case-insensitive equality, then products containing every word (best word
// overlap wins, ties keep list order), then plain substring. Unmatched names
// are returned unchanged.
func ResolveProduct(name string, known []string) string {
	if name == "" || len(known) == 0 {
		return name
	}
	lower := strings.ToLower(strings.TrimSpace(name))

	for _, p := range known {
		if strings.ToLower(p) == lower {
			return p
		}
	}

	words := strings.Fields(lower)
	var candidates []string
	for _, p := range known {
		pl := strings.ToLower(p)
		all := true
		for _, w := range words {
			if !strings.Contains(pl, w) {
				all = false
				break
			}
		}
		if all {
			candidates = append(candidates, p)
		}
	}
	switch len(candidates) {
	case 0:
	case 1:
		return candidates[0]
	default:
		best, bestScore := candidates[0], -1.0
		for _, c := range candidates {
			if s := overlap(words, c); s > bestScore {
				best, bestScore = c, s
			}
		}
		return best
	}

	for _, p := range known {
		if strings.Contains(strings.ToLower(p), lower) {
			return p
		}
	}
	return name
}

// overlap is the share of the product's words that appear in the query words.
func overlap(words []string, product string) float64 {
	pw := strings.Fields(strings.ToLower(product))
	if len(pw) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(pw))
	for _, w := range pw {
		set[w] = struct{}{}
	}
	n := 0
	for _, w := range words {
		if _, ok := set[w]; ok {
			n++
		}
	}
	return float64(n) / float64(len(pw))
}
