// Package tagset normalizes SavedModel tag sets. MetaGraphs are selected
// by tag-set equality, not subset matching, so every comparison and cache
// key in this module goes through one canonical form: sorted, deduplicated,
// with empty entries dropped.
package tagset

import (
	"sort"
	"strings"
)

// Normalize returns the canonical form of a tag list: trimmed, with empty
// entries and duplicates removed, sorted ascending. The input is not
// modified.
func Normalize(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(tags))
	normalized := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		normalized = append(normalized, tag)
	}

	if len(normalized) == 0 {
		return nil
	}
	sort.Strings(normalized)
	return normalized
}

// Equal reports whether two tag lists denote the same tag set, ignoring
// order, duplicates, and surrounding whitespace.
func Equal(a, b []string) bool {
	na := Normalize(a)
	nb := Normalize(b)
	if len(na) != len(nb) {
		return false
	}
	for i := range na {
		if na[i] != nb[i] {
			return false
		}
	}
	return true
}

// Join returns the deterministic comma-joined form of a tag set. Two lists
// denoting the same set always join to the same string, which makes the
// result usable as a cache key.
func Join(tags []string) string {
	return strings.Join(Normalize(tags), ",")
}

// Parse splits a comma-separated tag string into its canonical tag set.
func Parse(raw string) []string {
	return Normalize(strings.Split(raw, ","))
}
