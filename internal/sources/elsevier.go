// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"net/url"

	"github.com/meshintel/fulltext-engine/internal/identify"
)

// ElsevierArticleBase is the Elsevier text-mining article endpoint.
// Declared as a var so tests can substitute an httptest server.
var ElsevierArticleBase = "https://api.elsevier.com/content/article/doi/"

// elsevierPrefixes are the DOI registrant prefixes served by the Elsevier
// text-mining API.
var elsevierPrefixes = map[string]bool{
	"10.1016": true,
	"10.1006": true,
	"10.1053": true,
	"10.1067": true,
}

// ElsevierTDM constructs key-gated download candidates from the publisher
// text-mining API. When no key is configured, or the DOI prefix is not an
// Elsevier prefix, the strategy is a silent no-op — it never counts as a
// failed attempt. Entitlement errors (401/403) surface at download time.
type ElsevierTDM struct {
	APIKey    string
	InstToken string
}

// Name returns the method name recorded in the log.
func (e *ElsevierTDM) Name() string { return "elsevier_tdm" }

// Lookup returns the article endpoint as a trusted candidate, or
// ErrNotApplicable.
func (e *ElsevierTDM) Lookup(ctx context.Context, doi string) (Candidate, error) {
	if e.APIKey == "" || !elsevierPrefixes[identify.DOIPrefix(doi)] {
		return Candidate{}, ErrNotApplicable
	}

	headers := map[string]string{
		"X-ELS-APIKey": e.APIKey,
		"Accept":       "application/pdf",
	}
	if e.InstToken != "" {
		headers["X-ELS-Insttoken"] = e.InstToken
	}

	return Candidate{
		PDFURL:  ElsevierArticleBase + url.PathEscape(doi) + "?httpAccept=application%2Fpdf",
		Headers: headers,
		Trusted: true,
	}, nil
}
