// Package caseid allocates human-readable, category-scoped case
// identifiers of the form <PREFIX>-<NNN>, assigned when a case request is
// approved.
package caseid

import (
	"fmt"
	"strconv"
	"strings"
)

// prefixes is a closed table. Categories outside it deliberately collapse
// into one shared OTH sequence instead of minting new prefixes.
var prefixes = map[string]string{
	"civil":    "CIV",
	"criminal": "CRI",
	"family":   "FAM",
	"property": "PRO",
}

// FallbackPrefix is the shared prefix for every unmapped category.
const FallbackPrefix = "OTH"

// PrefixFor maps a case category to its id prefix.
func PrefixFor(category string) string {
	if p, ok := prefixes[strings.ToLower(strings.TrimSpace(category))]; ok {
		return p
	}
	return FallbackPrefix
}

// sequenceOf extracts the numeric suffix of an existing case id. A missing
// hyphen or unparsable suffix counts as 0, never an error: legacy or
// hand-entered ids must not block new allocations.
func sequenceOf(id, prefix string) int {
	if !strings.HasPrefix(id, prefix) {
		return 0
	}
	i := strings.Index(id, "-")
	if i < 0 {
		return 0
	}
	n, err := strconv.Atoi(id[i+1:])
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Next computes the next case id for a category against a snapshot of
// existing ids: max sequence among ids sharing the prefix, plus one
// (gaps are not backfilled), starting at 1, zero-padded to three digits.
//
// Uniqueness holds only against the supplied snapshot. Two concurrent
// approvals in the same category can compute the same id; callers must
// persist under a unique constraint and recompute on conflict.
func Next(category string, existing []string) string {
	prefix := PrefixFor(category)
	max := 0
	for _, id := range existing {
		if n := sequenceOf(id, prefix); n > max {
			max = n
		}
	}
	return fmt.Sprintf("%s-%03d", prefix, max+1)
}
