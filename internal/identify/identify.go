// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package identify classifies raw record identifiers and derives the
// deterministic filenames the download cache is keyed on.
package identify

import (
	"regexp"
	"strings"
)

// Kind classifies an input identifier.
type Kind int

const (
	KindUnknown Kind = iota
	KindDOI
	KindPMID
	KindPMC
)

func (k Kind) String() string {
	switch k {
	case KindDOI:
		return "doi"
	case KindPMID:
		return "pmid"
	case KindPMC:
		return "pmc"
	default:
		return "unknown"
	}
}

// doiPattern matches DOIs: "10.1038/nature12373". The registrant is 4-9
// digits; the suffix allows the characters DOI registration agencies use.
var doiPattern = regexp.MustCompile(`(?i)^10\.\d{4,9}/[-._;()/:a-z0-9]+$`)

// pmcPattern matches PMC IDs with the literal prefix: "PMC5176308".
// The prefix is required; a digit-only string is a PMID, never a PMC ID.
var pmcPattern = regexp.MustCompile(`(?i)^PMC\d+$`)

// pmidPattern matches PubMed IDs: digits only.
var pmidPattern = regexp.MustCompile(`^\d+$`)

// Classify determines the identifier kind and returns the normalized form.
// Checks run in order — DOI shape, then PMC prefix, then digits-only PMID —
// and the first match wins. It is total: any string classifies, and an
// unrecognized one comes back as KindUnknown.
func Classify(identifier string) (Kind, string) {
	identifier = strings.TrimSpace(identifier)

	if doiPattern.MatchString(identifier) {
		return KindDOI, identifier
	}

	if pmcPattern.MatchString(identifier) {
		// Normalize the prefix casing so slugs and URLs are stable.
		return KindPMC, "PMC" + identifier[3:]
	}

	if pmidPattern.MatchString(identifier) {
		return KindPMID, identifier
	}

	return KindUnknown, identifier
}

// Slug returns a filesystem-safe filename stem for the identifier. The
// mapping is deterministic and injective enough for the cache: DOI slashes
// and colons become dashes, PMIDs and PMC IDs pass through.
func Slug(kind Kind, normalized string) string {
	switch kind {
	case KindDOI:
		return strings.NewReplacer("/", "-", ":", "-").Replace(normalized)
	case KindPMID, KindPMC:
		return normalized
	default:
		return "unknown"
	}
}

// DOIPrefix returns the registrant prefix of a DOI ("10.1056" for
// "10.1056/NEJMoa2034577"), or the empty string when the input has no
// slash.
func DOIPrefix(doi string) string {
	idx := strings.Index(doi, "/")
	if idx < 0 {
		return ""
	}
	return doi[:idx]
}

// DOISuffix returns the part after the first slash, or the empty string.
func DOISuffix(doi string) string {
	idx := strings.Index(doi, "/")
	if idx < 0 || idx == len(doi)-1 {
		return ""
	}
	return doi[idx+1:]
}
