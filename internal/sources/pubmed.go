// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/meshintel/fulltext-engine/internal/fetchclient"
)

// PubMedBase is the PubMed record page root. Declared as a var so tests
// can substitute an httptest server.
var PubMedBase = "https://pubmed.ncbi.nlm.nih.gov/"

// pmcLinkPattern matches PMC article links on a PubMed record page, both
// the legacy and current hosts.
var pmcLinkPattern = regexp.MustCompile(`(?i)(?:pmc\.ncbi\.nlm\.nih\.gov/articles|ncbi\.nlm\.nih\.gov/pmc/articles)/(PMC\d+)`)

// doiTextPattern finds a DOI anywhere in page text, as a fallback when the
// citation_doi meta tag is absent.
var doiTextPattern = regexp.MustCompile(`10\.\d{4,9}/[-._;()/:a-zA-Z0-9]+`)

// PubMedPage is what one fetch of a PMID's bibliographic landing page
// yields. The PMID chain reads all of its fields from this single fetch —
// the page is requested once per identifier.
type PubMedPage struct {
	// URL is the landing-page URL, used as Referer for downstream requests.
	URL string

	// DOI is the article DOI recovered from the page, when present.
	DOI string

	// PMCID is the repository ID discovered from a PMC link, when present.
	PMCID string

	// CitationPDF is the citation_pdf_url meta tag content, when present.
	CitationPDF string
}

// PubMedFetcher retrieves and parses a PMID's landing page.
type PubMedFetcher struct {
	Client *fetchclient.Client
}

// Fetch requests the PubMed record page for pmid and extracts the DOI,
// any PMC repository link, and any citation PDF URL.
func (f *PubMedFetcher) Fetch(ctx context.Context, pmid string) (*PubMedPage, error) {
	pageURL := PubMedBase + pmid + "/"

	resp, err := f.Client.Get(ctx, pageURL, map[string]string{
		"Accept": "text/html,application/xhtml+xml",
	})
	if err != nil {
		return nil, faultFromErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, faultFromStatus(resp.StatusCode, pageURL)
	}

	final := resp.Request.URL
	page := parsePubMedPage(resp.Body, final)
	page.URL = final.String()
	return page, nil
}

func parsePubMedPage(r io.Reader, base *url.URL) *PubMedPage {
	page := &PubMedPage{}

	doc, err := html.Parse(r)
	if err != nil {
		return page
	}

	var textBuf strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			switch n.Data {
			case "meta":
				switch attrVal(n, "name") {
				case "citation_doi":
					if page.DOI == "" {
						page.DOI = strings.TrimSpace(attrVal(n, "content"))
					}
				case "citation_pdf_url":
					if page.CitationPDF == "" {
						page.CitationPDF = resolveHref(base, attrVal(n, "content"))
					}
				}
			case "a":
				if m := pmcLinkPattern.FindStringSubmatch(attrVal(n, "href")); m != nil && page.PMCID == "" {
					page.PMCID = strings.ToUpper(m[1][:3]) + m[1][3:]
				}
			}
		case html.TextNode:
			textBuf.WriteString(n.Data)
			textBuf.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if page.DOI == "" {
		if m := doiTextPattern.FindString(textBuf.String()); m != "" {
			page.DOI = strings.TrimRight(m, ".,;:)")
		}
	}
	return page
}
