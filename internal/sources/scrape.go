// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/meshintel/fulltext-engine/internal/fetchclient"
)

// DOIResolverBase is the DOI redirect service. Declared as a var so tests
// can substitute an httptest server.
var DOIResolverBase = "https://doi.org/"

// DOIScrape resolves a DOI through the redirect service and, when the
// resolved URL is not itself a PDF, scrapes the landing page for one:
// citation_pdf_url meta tag first, then anchors ending in .pdf, then
// publisher-specific href patterns. Relative hrefs resolve against the
// landing-page URL.
type DOIScrape struct {
	Client *fetchclient.Client
}

// Name returns the method name recorded in the log.
func (s *DOIScrape) Name() string { return "doi_scrape" }

// Lookup follows the DOI redirect chain and inspects where it lands.
func (s *DOIScrape) Lookup(ctx context.Context, doi string) (Candidate, error) {
	resp, err := s.Client.Get(ctx, DOIResolverBase+doi, map[string]string{
		"Accept": "text/html,application/xhtml+xml",
	})
	if err != nil {
		return Candidate{}, faultFromErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Candidate{}, faultFromStatus(resp.StatusCode, DOIResolverBase+doi)
	}

	final := resp.Request.URL
	landing := final.String()

	if strings.HasSuffix(strings.ToLower(final.Path), ".pdf") {
		return Candidate{PDFURL: landing, LandingURL: landing}, nil
	}

	pdfURL, ok := ExtractPDFLink(resp.Body, final)
	if !ok {
		return Candidate{}, nil
	}
	return Candidate{PDFURL: pdfURL, LandingURL: landing}, nil
}

// ExtractPDFLink parses an HTML landing page and returns the best PDF
// link, resolved against base. Precedence: citation_pdf_url meta tag,
// anchors whose href ends in .pdf, then hrefs matching publisher patterns
// ("article-pdf" or a /pdf/ path segment).
func ExtractPDFLink(r io.Reader, base *url.URL) (string, bool) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", false
	}

	var metaPDF, anchorPDF, patternPDF string

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "meta":
				if attrVal(n, "name") == "citation_pdf_url" {
					if content := attrVal(n, "content"); content != "" && metaPDF == "" {
						metaPDF = content
					}
				}
			case "a":
				href := attrVal(n, "href")
				if href == "" {
					break
				}
				switch {
				case strings.HasSuffix(strings.ToLower(hrefPath(href)), ".pdf"):
					if anchorPDF == "" {
						anchorPDF = href
					}
				case matchesPublisherPattern(href):
					if patternPDF == "" {
						patternPDF = href
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	for _, raw := range []string{metaPDF, anchorPDF, patternPDF} {
		if raw == "" {
			continue
		}
		if resolved := resolveHref(base, raw); resolved != "" {
			return resolved, true
		}
	}
	return "", false
}

// matchesPublisherPattern reports whether href looks like a publisher PDF
// endpoint even without a .pdf extension.
func matchesPublisherPattern(href string) bool {
	lower := strings.ToLower(hrefPath(href))
	if strings.Contains(lower, "article-pdf") {
		return true
	}
	return strings.Contains(lower, "/pdf/") || strings.HasSuffix(lower, "/pdf")
}

// hrefPath strips query and fragment so extension checks see the path only.
func hrefPath(href string) string {
	if i := strings.IndexAny(href, "?#"); i >= 0 {
		return href[:i]
	}
	return href
}

// resolveHref resolves a possibly-relative href against the landing URL.
func resolveHref(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

// attrVal returns the value of the named attribute, or "".
func attrVal(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val
		}
	}
	return ""
}
