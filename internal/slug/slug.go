// Package slug converts employer, job title and city names into URL slugs and back.
// This package is storage-agnostic; the SQL twin of Slugify lives in SQLExpr so the
// database can apply the identical transform when resolving a slug to a stored name.
package slug

import (
	"regexp"
	"strings"
)

// nonSlugRe matches every run of characters outside the slug alphabet.
var nonSlugRe = regexp.MustCompile(`[^a-z0-9]+`)

// validRe is the canonical slug shape.
var validRe = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// expansions lists short tokens that lose information when slugified ("U.S." -> "us").
// Each is expanded back into hyphen-joined letters when matching. Other abbreviations
// are not covered and will not resolve if the stored name spells them out letter by letter.
var expansions = map[string]string{
	"us":  "u-s",
	"usa": "u-s-a",
	"uk":  "u-k",
}

// maxExpandable caps the number of segments considered for expansion so the
// variant set stays small (2^4 = 16 at most).
const maxExpandable = 4

// Slugify lowercases name and collapses every run of non [a-z0-9] characters into a
// single hyphen, trimming hyphens at both ends. Empty input gives an empty slug.
func Slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = nonSlugRe.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// IsValid reports whether s is a well-formed slug.
func IsValid(s string) bool {
	return validRe.MatchString(s)
}

// Variants returns the slug itself followed by every combination of expanding the
// us/usa/uk segments it contains. The original slug is always first.
func Variants(s string) []string {
	segments := strings.Split(s, "-")

	var positions []int
	for i, seg := range segments {
		if _, ok := expansions[seg]; ok {
			positions = append(positions, i)
			if len(positions) == maxExpandable {
				break
			}
		}
	}

	out := []string{s}
	if len(positions) == 0 {
		return out
	}

	seen := map[string]bool{s: true}
	for mask := 1; mask < 1<<len(positions); mask++ {
		parts := make([]string, len(segments))
		copy(parts, segments)
		for bit, pos := range positions {
			if mask&(1<<bit) != 0 {
				parts[pos] = expansions[segments[pos]]
			}
		}
		v := strings.Join(parts, "-")
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// SQLExpr returns the Postgres expression applying Slugify to column.
// column must come from a fixed allow-list, never from user input.
func SQLExpr(column string) string {
	return "trim(both '-' from regexp_replace(lower(" + column + "), '[^a-z0-9]+', '-', 'g'))"
}
