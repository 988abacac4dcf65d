// Package strings provides slice normalisation helpers for string lists coming
// from requests, config and storage.
package strings

import (
	"slices"
	"strings"
)

// DedupeAndTrim drops blanks and duplicates after trimming. Order of first
// appearance is preserved.
//
//	DedupeAndTrim([]string{" gemini-2.5-pro ", "gemini-2.5-flash", "gemini-2.5-pro"})
//	// []string{"gemini-2.5-pro", "gemini-2.5-flash"}
func DedupeAndTrim(values []string) []string {
	return dedupe(values, strings.TrimSpace)
}

// FlagSet canonicalises a set of flag names: trimmed, lower-cased, deduplicated
// and sorted, so two sets with the same members compare equal. Returns an empty
// non-nil slice for empty input.
//
//	FlagSet([]string{"PEP_match", " sanctions", "pep_match"})
//	// []string{"pep_match", "sanctions"}
func FlagSet(values []string) []string {
	out := dedupe(values, func(s string) string {
		return strings.ToLower(strings.TrimSpace(s))
	})
	if out == nil {
		return []string{}
	}
	slices.Sort(out)
	return out
}

// ParseList splits a comma-separated value (env vars, query params) and trims
// each entry.
func ParseList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return DedupeAndTrim(strings.Split(raw, ","))
}

func dedupe(values []string, norm func(string) string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		n := norm(v)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		result = append(result, n)
	}
	return result
}
