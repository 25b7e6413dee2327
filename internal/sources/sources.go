// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sources implements the independent retrieval strategies the
// pipeline tries in priority order: open-access metadata lookup, PMC
// repository fallback, publisher text-mining API, DOI resolution with
// landing-page scraping, and rule-based journal URL construction.
//
// Every strategy returns a tagged result rather than letting faults cross
// its boundary: a Candidate when it found a PDF URL, a *Fault when an
// external call failed, or ErrNotApplicable when the strategy declined to
// run for this identifier (not counted as a failed attempt).
package sources

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/meshintel/fulltext-engine/internal/fetchclient"
	"github.com/meshintel/fulltext-engine/pkg/types"
)

// ErrNotApplicable signals that a strategy does not apply to the given
// identifier (missing API key, non-matching DOI prefix). The pipeline
// moves on silently.
var ErrNotApplicable = errors.New("strategy not applicable")

// Candidate is a strategy's answer: where to download from and, when
// known, the landing page to present as Referer.
type Candidate struct {
	// PDFURL is the direct download URL.
	PDFURL string

	// LandingURL, when non-empty, is sent as the Referer header on the
	// download request. Several publishers reject requests without it.
	LandingURL string

	// Headers carries extra download-request headers (API keys for
	// key-gated endpoints).
	Headers map[string]string

	// Trusted marks sources whose 200 responses are accepted without the
	// strict immediate validation gate; they are revalidated later with
	// the lenient size threshold.
	Trusted bool
}

// Found reports whether the candidate carries a download URL.
func (c Candidate) Found() bool { return c.PDFURL != "" }

// Fault is a typed failure raised at a strategy boundary.
type Fault struct {
	Reason types.FailureReason
	Detail string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%s: %s", f.Reason, f.Detail)
}

// faultFromStatus maps an HTTP response status to a Fault.
func faultFromStatus(code int, url string) *Fault {
	detail := fmt.Sprintf("HTTP %d from %s", code, url)
	switch {
	case code == http.StatusForbidden:
		return &Fault{Reason: types.ReasonPaywalled, Detail: detail}
	case code == http.StatusUnauthorized:
		return &Fault{Reason: types.ReasonUnauthorized, Detail: detail}
	case code == http.StatusNotFound:
		return &Fault{Reason: types.ReasonNotFound, Detail: detail}
	case code >= 500:
		return &Fault{Reason: types.ReasonServerError, Detail: detail}
	default:
		return &Fault{Reason: types.ReasonNetworkError, Detail: detail}
	}
}

// faultFromErr maps a client error to a Fault: retry-exhausted HTTP
// statuses classify by the final status, timeouts stay distinguishable,
// everything else is a network fault.
func faultFromErr(err error) *Fault {
	var statusErr *fetchclient.StatusError
	if errors.As(err, &statusErr) {
		return faultFromStatus(statusErr.Code, statusErr.URL)
	}
	if fetchclient.IsTimeout(err) {
		return &Fault{Reason: types.ReasonTimeout, Detail: err.Error()}
	}
	return &Fault{Reason: types.ReasonNetworkError, Detail: err.Error()}
}
