// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/meshintel/fulltext-engine/internal/fetchclient"
)

// NCBI endpoints. Declared as vars so tests can substitute httptest
// servers.
var (
	IDConvBase     = "https://www.ncbi.nlm.nih.gov/pmc/utils/idconv/v1.0/"
	PMCArticleBase = "https://pmc.ncbi.nlm.nih.gov/articles/"
)

const idConvTool = "fulltext-engine"

// idConvResponse mirrors the NCBI ID converter JSON.
type idConvResponse struct {
	Records []struct {
		PMCID string `json:"pmcid"`
		PMID  string `json:"pmid"`
		DOI   string `json:"doi"`
	} `json:"records"`
}

// PMCFallback resolves a DOI or PMID to a PMC repository ID via the NCBI
// linking API and constructs the direct PDF endpoint. PMC is a trusted
// source: its PDFs are often small but genuine, so the pipeline accepts
// its 200 responses and revalidates later with the lenient threshold.
type PMCFallback struct {
	Client *fetchclient.Client

	// APIKey raises the NCBI rate limit when set. Optional.
	APIKey string
}

// Name returns the method name recorded in the log.
func (p *PMCFallback) Name() string { return "pmc_fallback" }

// Lookup converts the identifier (DOI or PMID) to a PMCID. An identifier
// with no PMC record yields an empty candidate with no error.
func (p *PMCFallback) Lookup(ctx context.Context, identifier string) (Candidate, error) {
	apiURL := fmt.Sprintf("%s?ids=%s&format=json&tool=%s&email=%s",
		IDConvBase, url.QueryEscape(identifier), idConvTool, url.QueryEscape(p.Client.Email()))
	if p.APIKey != "" {
		apiURL += "&api_key=" + url.QueryEscape(p.APIKey)
	}

	resp, err := p.Client.Get(ctx, apiURL, nil)
	if err != nil {
		return Candidate{}, faultFromErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Candidate{}, faultFromStatus(resp.StatusCode, apiURL)
	}

	var conv idConvResponse
	if err := json.NewDecoder(resp.Body).Decode(&conv); err != nil {
		return Candidate{}, faultFromErr(fmt.Errorf("parsing ID converter response: %w", err))
	}

	if len(conv.Records) == 0 || conv.Records[0].PMCID == "" {
		return Candidate{}, nil
	}
	return PMCCandidate(conv.Records[0].PMCID), nil
}

// PMCCandidate constructs the direct PDF endpoint for a PMC ID. Used both
// by the fallback lookup and by the pipeline's direct PMC-identifier path.
func PMCCandidate(pmcid string) Candidate {
	landing := PMCArticleBase + pmcid + "/"
	return Candidate{
		PDFURL:     landing + "pdf/",
		LandingURL: landing,
		Trusted:    true,
	}
}
