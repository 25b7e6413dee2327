// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/meshintel/fulltext-engine/internal/fetchclient"
	"github.com/meshintel/fulltext-engine/pkg/types"
)

// UnpaywallBase is the Unpaywall works endpoint. Declared as a var so
// tests can substitute an httptest server.
var UnpaywallBase = "https://api.unpaywall.org/v2/"

// unpaywallResponse captures the fields we need from an Unpaywall record.
type unpaywallResponse struct {
	BestOALocation *unpaywallLocation  `json:"best_oa_location"`
	OALocations    []unpaywallLocation `json:"oa_locations"`
}

type unpaywallLocation struct {
	URLForPDF     string `json:"url_for_pdf"`
	URLForLanding string `json:"url_for_landing_page"`
}

// Unpaywall looks up the best open-access location for a DOI. It is the
// only strategy that retries automatically on transient failure.
type Unpaywall struct {
	Client  *fetchclient.Client
	Retries int
}

// Name returns the method name recorded in the log.
func (u *Unpaywall) Name() string { return "unpaywall" }

// Lookup queries Unpaywall for doi. A record with no open-access PDF, or
// an unknown DOI, yields an empty candidate with no error; transport and
// server faults come back as *Fault.
func (u *Unpaywall) Lookup(ctx context.Context, doi string) (Candidate, error) {
	apiURL := fmt.Sprintf("%s%s?email=%s",
		UnpaywallBase, url.PathEscape(doi), url.QueryEscape(u.Client.Email()))

	retries := u.Retries
	if retries <= 0 {
		retries = 3
	}

	resp, err := u.Client.GetWithRetry(ctx, apiURL, retries)
	if err != nil {
		return Candidate{}, faultFromErr(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		// DOI not indexed; not a hard failure, the next strategy runs.
		return Candidate{}, nil
	case resp.StatusCode != http.StatusOK:
		return Candidate{}, faultFromStatus(resp.StatusCode, apiURL)
	}

	var rec unpaywallResponse
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return Candidate{}, &Fault{Reason: types.ReasonNetworkError, Detail: fmt.Sprintf("parsing Unpaywall response: %v", err)}
	}

	if loc := rec.BestOALocation; loc != nil && loc.URLForPDF != "" {
		return Candidate{PDFURL: loc.URLForPDF, LandingURL: loc.URLForLanding}, nil
	}
	for _, loc := range rec.OALocations {
		if loc.URLForPDF != "" {
			return Candidate{PDFURL: loc.URLForPDF, LandingURL: loc.URLForLanding}, nil
		}
	}
	return Candidate{}, nil
}
