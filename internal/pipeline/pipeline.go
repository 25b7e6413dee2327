// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline orchestrates full-text retrieval: for each identifier
// it tries the source strategies in fixed priority order until one yields
// a candidate PDF URL, makes exactly one download attempt, validates the
// bytes, and appends exactly one outcome to the acquisition log.
//
// The short-circuit policy is deliberate and load-bearing: once any
// strategy yields a candidate URL, no further discovery strategy runs, and
// a download-phase failure does not fall back to the next strategy. One
// identifier's failure never aborts the batch.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/meshintel/fulltext-engine/internal/acqlog"
	"github.com/meshintel/fulltext-engine/internal/fetchclient"
	"github.com/meshintel/fulltext-engine/internal/identify"
	"github.com/meshintel/fulltext-engine/internal/pdfcheck"
	"github.com/meshintel/fulltext-engine/internal/sources"
	"github.com/meshintel/fulltext-engine/pkg/types"
)

// Pipeline resolves identifiers to stored, validated PDFs. Execution is
// single-threaded and sequential by design: third-party rate limits make
// politeness a correctness concern here.
type Pipeline struct {
	client *fetchclient.Client
	log    *acqlog.Store
	cfg    types.FetchConfig
	runID  string

	unpaywall *sources.Unpaywall
	pmc       *sources.PMCFallback
	elsevier  *sources.ElsevierTDM
	scrape    *sources.DOIScrape
	pubmed    *sources.PubMedFetcher

	validator pdfcheck.Validator
}

// New assembles a pipeline from its collaborators.
func New(client *fetchclient.Client, log *acqlog.Store, cfg types.FetchConfig, runID string) *Pipeline {
	minSize := cfg.MinPDFSize
	if minSize <= 0 {
		minSize = pdfcheck.DefaultMinSize
	}
	return &Pipeline{
		client:    client,
		log:       log,
		cfg:       cfg,
		runID:     runID,
		unpaywall: &sources.Unpaywall{Client: client, Retries: cfg.LookupRetries},
		pmc:       &sources.PMCFallback{Client: client, APIKey: cfg.NCBIAPIKey},
		elsevier:  &sources.ElsevierTDM{APIKey: cfg.ElsevierAPIKey, InstToken: cfg.ElsevierInstToken},
		scrape:    &sources.DOIScrape{Client: client},
		pubmed:    &sources.PubMedFetcher{Client: client},
		validator: pdfcheck.Validator{MinSize: minSize},
	}
}

// BatchResult summarizes one run.
type BatchResult struct {
	Acquired int
	Skipped  int
	Failed   int
}

// Total returns the number of identifiers processed.
func (r BatchResult) Total() int {
	return r.Acquired + r.Skipped + r.Failed
}

// HasFailures reports whether any identifier failed.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// Run processes identifiers sequentially. Every identifier produces
// exactly one outcome row and one human-readable status line; a fixed
// delay follows each identifier regardless of outcome. The run aborts
// only on context cancellation or a log-write error.
func (p *Pipeline) Run(ctx context.Context, identifiers []string, w io.Writer) (BatchResult, error) {
	var result BatchResult

	for _, raw := range identifiers {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		outcome := p.processOne(ctx, raw)
		if err := p.log.Append(ctx, outcome); err != nil {
			return result, err
		}

		switch {
		case outcome.Skipped():
			result.Skipped++
			fmt.Fprintf(w, "skipped: %s (already exists)\n", raw)
		case outcome.Success:
			result.Acquired++
			fmt.Fprintf(w, "ok:      %s via %s (%.1f KB)\n", raw, outcome.Method, outcome.FileSizeKB)
		default:
			result.Failed++
			fmt.Fprintf(w, "failed:  %s (%s)\n", raw, outcome.FailureReason)
		}

		if p.cfg.IdentifierDelay > 0 {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(p.cfg.IdentifierDelay):
			}
		}
	}

	fmt.Fprintf(w, "\nBatch summary: %d acquired, %d skipped, %d failed (total: %d)\n",
		result.Acquired, result.Skipped, result.Failed, result.Total())
	return result, nil
}

// attempt pairs a winning candidate with the strategy that produced it.
type attempt struct {
	method string
	cand   sources.Candidate
}

// processOne resolves a single identifier to its terminal outcome. It
// never returns an error: every fault becomes a structured outcome.
func (p *Pipeline) processOne(ctx context.Context, raw string) types.Outcome {
	outcome := types.Outcome{
		RunID:     p.runID,
		ID:        raw,
		Timestamp: time.Now().UTC(),
		Method:    types.MethodNone,
	}

	kind, normalized := identify.Classify(raw)
	outcome.IDType = kind.String()

	if kind == identify.KindUnknown {
		outcome.FailureReason = types.ReasonUnrecognizedID
		return outcome
	}

	// The skip cache: a deterministic filename that already exists means
	// this identifier was handled by an earlier run. No network calls.
	destPath := filepath.Join(p.cfg.OutputDir, identify.Slug(kind, normalized)+".pdf")
	if info, err := os.Stat(destPath); err == nil {
		outcome.Method = types.MethodSkipped
		outcome.Status = types.StatusExists
		outcome.Success = true
		outcome.FilePath = destPath
		outcome.FileSizeKB = float64(info.Size()) / 1024
		return outcome
	}

	won, firstFault := p.discover(ctx, kind, normalized)
	if !won.cand.Found() {
		if firstFault != nil {
			outcome.FailureReason = firstFault.Reason
		} else {
			outcome.FailureReason = types.ReasonNoPDFFound
		}
		return outcome
	}

	outcome.Method = won.method
	outcome.PDFURL = won.cand.PDFURL

	status, fault := p.download(ctx, won.cand, destPath)
	if status > 0 {
		outcome.Status = strconv.Itoa(status)
	}
	if fault != nil {
		outcome.FailureReason = fault.Reason
		return outcome
	}

	info, err := os.Stat(destPath)
	if err != nil {
		outcome.FailureReason = types.ReasonFileNotFound
		return outcome
	}
	outcome.FilePath = destPath
	outcome.FileSizeKB = float64(info.Size()) / 1024

	if won.cand.Trusted {
		// Trusted sources skip the strict gate; the batch revalidation
		// pass applies the lenient threshold later.
		outcome.Success = true
		return outcome
	}

	res := p.validator.Validate(destPath)
	if !res.Valid {
		os.Remove(destPath)
		outcome.FilePath = ""
		outcome.FileSizeKB = 0
		outcome.Success = false
		outcome.FailureReason = res.Reason
		valid := false
		outcome.PDFValid = &valid
		outcome.PDFInvalidReason = res.Reason
		return outcome
	}

	valid := true
	outcome.PDFValid = &valid
	outcome.Success = true
	return outcome
}

// discover walks the strategy chain for the identifier kind and returns
// the first candidate, plus the first hard fault seen along the way (used
// as the terminal reason when nothing is found).
func (p *Pipeline) discover(ctx context.Context, kind identify.Kind, id string) (attempt, *sources.Fault) {
	switch kind {
	case identify.KindDOI:
		return p.discoverDOI(ctx, id, nil)
	case identify.KindPMID:
		return p.discoverPMID(ctx, id)
	case identify.KindPMC:
		return attempt{method: types.MethodPMCDirect, cand: sources.PMCCandidate(id)}, nil
	default:
		return attempt{}, nil
	}
}

// step is one entry in a discovery chain.
type step struct {
	method string
	run    func(context.Context) (sources.Candidate, error)
}

// runChain executes steps in order, short-circuiting on the first
// candidate. ErrNotApplicable advances silently; any other error is a
// discovery fault that advances to the next step but is remembered.
func runChain(ctx context.Context, steps []step, firstFault *sources.Fault) (attempt, *sources.Fault) {
	for _, st := range steps {
		cand, err := st.run(ctx)
		if err != nil {
			if errors.Is(err, sources.ErrNotApplicable) {
				continue
			}
			var fault *sources.Fault
			if errors.As(err, &fault) && firstFault == nil {
				firstFault = fault
			}
			continue
		}
		if cand.Found() {
			return attempt{method: st.method, cand: cand}, firstFault
		}
	}
	return attempt{}, firstFault
}

// discoverDOI runs the DOI chain: open-access lookup, repository
// fallback, publisher text-mining API, resolution + scraping, and finally
// the journal pattern table. skip marks steps already tried by a caller
// (the PMID chain reuses this with its own leading steps).
func (p *Pipeline) discoverDOI(ctx context.Context, doi string, skip map[string]bool) (attempt, *sources.Fault) {
	all := []step{
		{types.MethodUnpaywall, func(ctx context.Context) (sources.Candidate, error) {
			return p.unpaywall.Lookup(ctx, doi)
		}},
		{types.MethodPMCFallback, func(ctx context.Context) (sources.Candidate, error) {
			return p.pmc.Lookup(ctx, doi)
		}},
		{types.MethodElsevierTDM, func(ctx context.Context) (sources.Candidate, error) {
			return p.elsevier.Lookup(ctx, doi)
		}},
		{types.MethodDOIScrape, func(ctx context.Context) (sources.Candidate, error) {
			return p.scrape.Lookup(ctx, doi)
		}},
		{types.MethodJournalPattern, func(ctx context.Context) (sources.Candidate, error) {
			cand, _ := sources.JournalURL(doi)
			return cand, nil
		}},
	}

	steps := all[:0:0]
	for _, st := range all {
		if !skip[st.method] {
			steps = append(steps, st)
		}
	}
	return runChain(ctx, steps, nil)
}

// discoverPMID runs the PMID chain. The bibliographic landing page is
// fetched once; every page-derived step reads from that single fetch.
func (p *Pipeline) discoverPMID(ctx context.Context, pmid string) (attempt, *sources.Fault) {
	page, err := p.pubmed.Fetch(ctx, pmid)
	if err != nil {
		var fault *sources.Fault
		errors.As(err, &fault)
		return attempt{}, fault
	}

	var steps []step

	if page.DOI != "" {
		doi := page.DOI
		steps = append(steps, step{types.MethodUnpaywall, func(ctx context.Context) (sources.Candidate, error) {
			return p.unpaywall.Lookup(ctx, doi)
		}})
	}
	if page.PMCID != "" {
		pmcid := page.PMCID
		steps = append(steps, step{types.MethodPMCFallback, func(ctx context.Context) (sources.Candidate, error) {
			return sources.PMCCandidate(pmcid), nil
		}})
	}
	if page.CitationPDF != "" {
		cand := sources.Candidate{PDFURL: page.CitationPDF, LandingURL: page.URL}
		steps = append(steps, step{types.MethodPubMedScrape, func(context.Context) (sources.Candidate, error) {
			return cand, nil
		}})
	}

	won, firstFault := runChain(ctx, steps, nil)
	if won.cand.Found() {
		return won, firstFault
	}

	if page.DOI != "" {
		// DOI recovered but the page-derived steps came up empty: run the
		// remainder of the DOI chain (the leading steps already ran).
		won, fault := p.discoverDOI(ctx, page.DOI, map[string]bool{
			types.MethodUnpaywall:   true,
			types.MethodPMCFallback: page.PMCID != "",
		})
		if firstFault == nil {
			firstFault = fault
		}
		return won, firstFault
	}
	return attempt{}, firstFault
}

// download makes the single download attempt for the identifier: temp
// file, rename on success, partials removed on any failure. When the
// landing page is known it is sent as Referer — several publishers reject
// requests without it.
func (p *Pipeline) download(ctx context.Context, cand sources.Candidate, destPath string) (int, *sources.Fault) {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return 0, &sources.Fault{Reason: types.ReasonNetworkError, Detail: fmt.Sprintf("creating output directory: %v", err)}
	}

	headers := map[string]string{"Accept": "application/pdf"}
	for k, v := range cand.Headers {
		headers[k] = v
	}
	if cand.LandingURL != "" {
		headers["Referer"] = cand.LandingURL
	}

	resp, err := p.client.Get(ctx, cand.PDFURL, headers)
	if err != nil {
		if fetchclient.IsTimeout(err) {
			return 0, &sources.Fault{Reason: types.ReasonTimeout, Detail: err.Error()}
		}
		return 0, &sources.Fault{Reason: types.ReasonNetworkError, Detail: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusForbidden && cand.Headers["X-ELS-APIKey"] != "" {
			// A keyed text-mining request that gets 403 is an entitlement
			// gap, not a paywall.
			return resp.StatusCode, &sources.Fault{
				Reason: types.ReasonNoEntitlement,
				Detail: fmt.Sprintf("HTTP 403 from %s", cand.PDFURL),
			}
		}
		return resp.StatusCode, downloadFault(resp.StatusCode, cand.PDFURL)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".fetch-*.tmp")
	if err != nil {
		return resp.StatusCode, &sources.Fault{Reason: types.ReasonNetworkError, Detail: fmt.Sprintf("creating temp file: %v", err)}
	}
	tmpPath := tmpFile.Name()

	_, copyErr := io.Copy(tmpFile, resp.Body)
	closeErr := tmpFile.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(tmpPath)
		detail := fmt.Sprintf("writing download: %v", copyErr)
		if copyErr == nil {
			detail = fmt.Sprintf("closing temp file: %v", closeErr)
		}
		reason := types.ReasonNetworkError
		if fetchclient.IsTimeout(copyErr) {
			reason = types.ReasonTimeout
		}
		return resp.StatusCode, &sources.Fault{Reason: reason, Detail: detail}
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return resp.StatusCode, &sources.Fault{Reason: types.ReasonNetworkError, Detail: fmt.Sprintf("renaming temp file: %v", err)}
	}
	return resp.StatusCode, nil
}

// downloadFault maps a download-phase HTTP status to its failure reason.
func downloadFault(code int, url string) *sources.Fault {
	detail := fmt.Sprintf("HTTP %d from %s", code, url)
	switch {
	case code == http.StatusForbidden:
		return &sources.Fault{Reason: types.ReasonPaywalled, Detail: detail}
	case code == http.StatusUnauthorized:
		return &sources.Fault{Reason: types.ReasonUnauthorized, Detail: detail}
	case code == http.StatusNotFound:
		return &sources.Fault{Reason: types.ReasonNotFound, Detail: detail}
	case code >= 500:
		return &sources.Fault{Reason: types.ReasonServerError, Detail: detail}
	default:
		return &sources.Fault{Reason: types.ReasonNetworkError, Detail: detail}
	}
}
