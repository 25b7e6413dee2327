// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"strings"

	"github.com/meshintel/fulltext-engine/internal/identify"
)

// JournalPattern pairs a DOI predicate with a URL constructor for a
// publisher whose PDF paths are predictable. The table is ordered data:
// adding a publisher is a new row, not new control flow.
type JournalPattern struct {
	// Name identifies the publisher for logging.
	Name string

	// Match reports whether the pattern applies to the DOI.
	Match func(doi string) bool

	// Build constructs the PDF URL from the DOI.
	Build func(doi string) string
}

// prefixMatch builds a predicate matching a DOI registrant prefix.
func prefixMatch(prefix string) func(string) bool {
	return func(doi string) bool {
		return identify.DOIPrefix(doi) == prefix
	}
}

// doiPDFPath builds a constructor for the common <host>/doi/pdf/<doi>
// layout.
func doiPDFPath(host string) func(string) string {
	return func(doi string) string {
		return host + "/doi/pdf/" + doi
	}
}

// JournalPatterns is the static ordered table of constructable journals,
// tried only after every discovery strategy came up empty.
var JournalPatterns = []JournalPattern{
	{
		Name:  "nejm",
		Match: prefixMatch("10.1056"),
		Build: doiPDFPath("https://www.nejm.org"),
	},
	{
		Name:  "acpjournals",
		Match: prefixMatch("10.7326"),
		Build: doiPDFPath("https://www.acpjournals.org"),
	},
	{
		Name:  "sage",
		Match: prefixMatch("10.1177"),
		Build: doiPDFPath("https://journals.sagepub.com"),
	},
	{
		Name:  "tandfonline",
		Match: prefixMatch("10.1080"),
		Build: doiPDFPath("https://www.tandfonline.com"),
	},
	{
		Name:  "atsjournals",
		Match: prefixMatch("10.1164"),
		Build: doiPDFPath("https://www.atsjournals.org"),
	},
}

// JournalURL walks the pattern table in order and returns the first
// constructed candidate, if any. Pure URL construction, no network.
func JournalURL(doi string) (Candidate, bool) {
	if !strings.HasPrefix(doi, "10.") {
		return Candidate{}, false
	}
	for _, p := range JournalPatterns {
		if p.Match(doi) {
			return Candidate{PDFURL: p.Build(doi)}, true
		}
	}
	return Candidate{}, false
}
