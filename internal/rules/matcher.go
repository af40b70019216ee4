package rules

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// minContainsRunes is the shortest key eligible for substring matching.
const minContainsRunes = 4

// SupplierEntry maps one supplier name to a category.
type SupplierEntry struct {
	Name     string
	Category string
}

type matchKey struct {
	key      string
	category string
	runes    int
}

// SupplierMatcher resolves free-text supplier names to categories.
//
// Matching is exact on the normalized name first. Otherwise the input is
// scanned for configured keys of at least four runes; when several keys
// are contained the longest wins, and among equal lengths the one
// configured first. A matcher is immutable after construction.
type SupplierMatcher struct {
	exact    map[string]string
	contains []matchKey
	all      []matchKey
}

// NormalizeName trims and lower-cases; no other folding is applied.
func NormalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func NewSupplierMatcher(entries []SupplierEntry) *SupplierMatcher {
	m := &SupplierMatcher{exact: make(map[string]string, len(entries))}
	for _, e := range entries {
		key := NormalizeName(e.Name)
		if key == "" {
			continue
		}
		if _, dup := m.exact[key]; dup {
			continue
		}
		m.exact[key] = e.Category
		mk := matchKey{key: key, category: e.Category, runes: utf8.RuneCountInString(key)}
		m.all = append(m.all, mk)
		if mk.runes >= minContainsRunes {
			m.contains = append(m.contains, mk)
		}
	}
	sort.SliceStable(m.contains, func(i, j int) bool {
		return m.contains[i].runes > m.contains[j].runes
	})
	return m
}

// Match returns the category for name, or false when nothing matches.
func (m *SupplierMatcher) Match(name string) (string, bool) {
	n := NormalizeName(name)
	if n == "" {
		return "", false
	}
	if cat, ok := m.exact[n]; ok {
		return cat, true
	}
	for _, k := range m.contains {
		if strings.Contains(n, k.key) {
			return k.category, true
		}
	}
	return "", false
}

// Suggest returns the category of the closest configured name by edit
// distance, when that distance is within a third of the name's length.
// It never influences classification.
func (m *SupplierMatcher) Suggest(name string) (string, bool) {
	n := NormalizeName(name)
	if n == "" {
		return "", false
	}
	if cat, ok := m.Match(name); ok {
		return cat, true
	}
	best, bestDist := "", -1
	for _, k := range m.all {
		limit := k.runes / 3
		if limit < 1 {
			limit = 1
		}
		d := levenshtein.ComputeDistance(n, k.key)
		if d > limit {
			continue
		}
		if bestDist < 0 || d < bestDist {
			best, bestDist = k.category, d
		}
	}
	return best, bestDist >= 0
}

// Len reports the number of distinct configured names.
func (m *SupplierMatcher) Len() int {
	return len(m.all)
}
