// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Integration tests: identifier → strategy chain → download → validation
// → log, exercised end to end against httptest servers standing in for
// Unpaywall, the NCBI ID converter, PubMed, the DOI resolver, publisher
// landing pages, and PDF endpoints.

package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/meshintel/fulltext-engine/internal/acqlog"
	"github.com/meshintel/fulltext-engine/internal/fetchclient"
	"github.com/meshintel/fulltext-engine/internal/sources"
	"github.com/meshintel/fulltext-engine/pkg/types"
)

func init() {
	fetchclient.RetryBaseDelay = 1 * time.Millisecond
}

// fakePDF returns a well-formed fake PDF comfortably above the strict
// size floor.
func fakePDF() []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n")
	for buf.Len() < 16*1024 {
		buf.WriteString("stream data padding 0123456789\n")
	}
	buf.WriteString("\n%%EOF\n")
	return buf.Bytes()
}

// smallPDF returns a valid-looking PDF below the strict floor but above
// the lenient one.
func smallPDF() []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n")
	for buf.Len() < 2*1024 {
		buf.WriteString("short stream\n")
	}
	buf.WriteString("\n%%EOF\n")
	return buf.Bytes()
}

// swapBase temporarily redirects an endpoint base var at a test server.
func swapBase(t *testing.T, base *string, url string) {
	t.Helper()
	old := *base
	*base = url
	t.Cleanup(func() { *base = old })
}

// swapJournalTable substitutes the journal pattern table so constructed
// URLs point at the test server.
func swapJournalTable(t *testing.T, table []sources.JournalPattern) {
	t.Helper()
	old := sources.JournalPatterns
	sources.JournalPatterns = table
	t.Cleanup(func() { sources.JournalPatterns = old })
}

// newTestPipeline wires a pipeline against a temp output dir and log.
func newTestPipeline(t *testing.T, cfg types.FetchConfig) (*Pipeline, *acqlog.Store) {
	t.Helper()

	if cfg.OutputDir == "" {
		cfg.OutputDir = t.TempDir()
	}
	cfg.Timeout = 5 * time.Second
	cfg.UserAgent = "fulltext-engine-test/0.1"
	cfg.ContactEmail = "review@example.org"
	cfg.RequestsPerSecond = 1000

	client, err := fetchclient.New(cfg.HTTPConfig)
	if err != nil {
		t.Fatal(err)
	}
	store, err := acqlog.Open(filepath.Join(t.TempDir(), "acquisitions.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	return New(client, store, cfg, "test-run"), store
}

// pointAllBasesAt swaps every endpoint base var at the given server so no
// strategy can escape to the real network.
func pointAllBasesAt(t *testing.T, ts *httptest.Server) {
	t.Helper()
	swapBase(t, &sources.UnpaywallBase, ts.URL+"/unpaywall/")
	swapBase(t, &sources.IDConvBase, ts.URL+"/idconv/")
	swapBase(t, &sources.PMCArticleBase, ts.URL+"/articles/")
	swapBase(t, &sources.DOIResolverBase, ts.URL+"/resolve/")
	swapBase(t, &sources.PubMedBase, ts.URL+"/pubmed/")
	swapBase(t, &sources.ElsevierArticleBase, ts.URL+"/elsevier/")
}

func TestRunAcquiresViaUnpaywall(t *testing.T) {
	var gotReferer atomic.Value
	mux := http.NewServeMux()
	mux.HandleFunc("/unpaywall/", func(w http.ResponseWriter, r *http.Request) {
		host := "http://" + r.Host
		fmt.Fprintf(w, `{"best_oa_location": {"url_for_pdf": "%s/oa/paper.pdf", "url_for_landing_page": "%s/oa/landing"}}`,
			host, host)
	})
	mux.HandleFunc("/oa/paper.pdf", func(w http.ResponseWriter, r *http.Request) {
		gotReferer.Store(r.Header.Get("Referer"))
		w.Write(fakePDF())
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()
	pointAllBasesAt(t, ts)

	p, store := newTestPipeline(t, types.FetchConfig{})
	var out bytes.Buffer
	result, err := p.Run(context.Background(), []string{"10.1038/nature12373"}, &out)
	if err != nil {
		t.Fatal(err)
	}
	if result.Acquired != 1 || result.Failed != 0 {
		t.Fatalf("result = %+v", result)
	}

	rows, err := store.Outcomes(context.Background(), "test-run")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	o := rows[0]
	if o.Method != types.MethodUnpaywall || !o.Success {
		t.Errorf("outcome = %+v", o)
	}
	if o.PDFValid == nil || !*o.PDFValid {
		t.Error("strict-path success must record validity true")
	}
	if _, err := os.Stat(o.FilePath); err != nil {
		t.Errorf("success outcome but file missing: %v", err)
	}
	if got := gotReferer.Load(); got != ts.URL+"/oa/landing" {
		t.Errorf("Referer = %v, want the landing URL", got)
	}
}

func TestRunJournalPatternScenario(t *testing.T) {
	// Every discovery strategy comes up empty; only the rule-based
	// constructor knows this journal.
	mux := http.NewServeMux()
	mux.HandleFunc("/unpaywall/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/idconv/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"records": []}`)
	})
	mux.HandleFunc("/resolve/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/landing/abstract", http.StatusFound)
	})
	mux.HandleFunc("/landing/abstract", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body>abstract only</body></html>`)
	})
	mux.HandleFunc("/doi/pdf/", func(w http.ResponseWriter, _ *http.Request) {
		w.Write(fakePDF())
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()
	pointAllBasesAt(t, ts)

	swapJournalTable(t, []sources.JournalPattern{{
		Name:  "nejm",
		Match: func(doi string) bool { return strings.HasPrefix(doi, "10.1056/") },
		Build: func(doi string) string { return ts.URL + "/doi/pdf/" + doi },
	}})

	p, store := newTestPipeline(t, types.FetchConfig{})
	var out bytes.Buffer
	if _, err := p.Run(context.Background(), []string{"10.1056/NEJMoa2034577"}, &out); err != nil {
		t.Fatal(err)
	}

	rows, _ := store.Outcomes(context.Background(), "test-run")
	if len(rows) != 1 {
		t.Fatalf("rows = %d", len(rows))
	}
	o := rows[0]
	if o.Method != types.MethodJournalPattern {
		t.Errorf("method = %q, want journal_url_pattern", o.Method)
	}
	if !strings.HasSuffix(o.PDFURL, "/doi/pdf/10.1056/NEJMoa2034577") {
		t.Errorf("pdf_url = %q, want /doi/pdf/10.1056/<suffix> tail", o.PDFURL)
	}
	if !o.Success {
		t.Errorf("outcome failed: %s", o.FailureReason)
	}
}

func TestRunSkipsExistingFile(t *testing.T) {
	var strategyCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/unpaywall/", func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&strategyCalls, 1)
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/idconv/", func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&strategyCalls, 1)
		fmt.Fprint(w, `{"records": []}`)
	})
	mux.HandleFunc("/resolve/", func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&strategyCalls, 1)
		w.WriteHeader(http.StatusNotFound)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()
	pointAllBasesAt(t, ts)

	outputDir := t.TempDir()
	// Identifier #2's target file pre-exists.
	if err := os.WriteFile(filepath.Join(outputDir, "10.2000-beta.pdf"), fakePDF(), 0o644); err != nil {
		t.Fatal(err)
	}

	p, store := newTestPipeline(t, types.FetchConfig{OutputDir: outputDir})
	var out bytes.Buffer
	ids := []string{"10.1000/alpha", "10.2000/beta", "10.3000/gamma"}
	result, err := p.Run(context.Background(), ids, &out)
	if err != nil {
		t.Fatal(err)
	}
	if result.Skipped != 1 || result.Failed != 2 {
		t.Fatalf("result = %+v", result)
	}

	rows, _ := store.Outcomes(context.Background(), "test-run")
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3 (one outcome per identifier)", len(rows))
	}
	o := rows[1]
	if o.Method != types.MethodSkipped || o.Status != types.StatusExists {
		t.Errorf("row 2 = method %q status %q, want skipped/exists", o.Method, o.Status)
	}

	callsBefore := atomic.LoadInt32(&strategyCalls)
	// Identifiers 1 and 3 each hit unpaywall, idconv, and the resolver.
	if callsBefore != 6 {
		t.Errorf("strategy calls = %d, want 6 (zero for the skipped identifier)", callsBefore)
	}
}

func TestRunIdempotentRerun(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/unpaywall/", func(w http.ResponseWriter, r *http.Request) {
		host := "http://" + r.Host
		fmt.Fprintf(w, `{"best_oa_location": {"url_for_pdf": "%s/oa/paper.pdf"}}`, host)
	})
	var downloads int32
	mux.HandleFunc("/oa/paper.pdf", func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&downloads, 1)
		w.Write(fakePDF())
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()
	pointAllBasesAt(t, ts)

	outputDir := t.TempDir()
	p, store := newTestPipeline(t, types.FetchConfig{OutputDir: outputDir})
	ctx := context.Background()
	var out bytes.Buffer

	if _, err := p.Run(ctx, []string{"10.1038/nature12373"}, &out); err != nil {
		t.Fatal(err)
	}
	if got := atomic.LoadInt32(&downloads); got != 1 {
		t.Fatalf("downloads = %d", got)
	}

	// Second run: same directory, new run ID.
	client, _ := fetchclient.New(p.cfg.HTTPConfig)
	p2 := New(client, store, p.cfg, "test-run-2")
	result, err := p2.Run(ctx, []string{"10.1038/nature12373"}, &out)
	if err != nil {
		t.Fatal(err)
	}
	if result.Skipped != 1 {
		t.Fatalf("rerun result = %+v, want 1 skipped", result)
	}
	if got := atomic.LoadInt32(&downloads); got != 1 {
		t.Errorf("rerun made %d extra download(s)", got-1)
	}
}

func TestRunDownloadFailureDoesNotFallBack(t *testing.T) {
	var laterStrategies int32
	mux := http.NewServeMux()
	mux.HandleFunc("/unpaywall/", func(w http.ResponseWriter, r *http.Request) {
		host := "http://" + r.Host
		fmt.Fprintf(w, `{"best_oa_location": {"url_for_pdf": "%s/oa/paywalled.pdf"}}`, host)
	})
	mux.HandleFunc("/oa/paywalled.pdf", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	mux.HandleFunc("/idconv/", func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&laterStrategies, 1)
		fmt.Fprint(w, `{"records": []}`)
	})
	mux.HandleFunc("/resolve/", func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&laterStrategies, 1)
		w.WriteHeader(http.StatusNotFound)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()
	pointAllBasesAt(t, ts)

	p, store := newTestPipeline(t, types.FetchConfig{})
	var out bytes.Buffer
	result, err := p.Run(context.Background(), []string{"10.1038/nature12373"}, &out)
	if err != nil {
		t.Fatal(err)
	}
	if result.Failed != 1 {
		t.Fatalf("result = %+v", result)
	}

	rows, _ := store.Outcomes(context.Background(), "test-run")
	o := rows[0]
	if o.FailureReason != types.ReasonPaywalled {
		t.Errorf("failure_reason = %q, want paywalled", o.FailureReason)
	}
	if o.Status != "403" {
		t.Errorf("status = %q, want 403", o.Status)
	}
	if o.FilePath != "" {
		t.Error("failed outcome must not carry a file path")
	}
	if got := atomic.LoadInt32(&laterStrategies); got != 0 {
		t.Errorf("download failure fell back to %d later strategies", got)
	}
}

func TestRunTrustedSourceSkipsStrictGate(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/unpaywall/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/idconv/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"records": [{"pmcid": "PMC5176308"}]}`)
	})
	mux.HandleFunc("/articles/PMC5176308/pdf/", func(w http.ResponseWriter, _ *http.Request) {
		// Below the strict floor; a strict-path download would be rejected.
		w.Write(smallPDF())
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()
	pointAllBasesAt(t, ts)

	p, store := newTestPipeline(t, types.FetchConfig{})
	var out bytes.Buffer
	result, err := p.Run(context.Background(), []string{"10.1038/nature12373"}, &out)
	if err != nil {
		t.Fatal(err)
	}
	if result.Acquired != 1 {
		t.Fatalf("result = %+v\n%s", result, out.String())
	}

	ctx := context.Background()
	rows, _ := store.Outcomes(ctx, "test-run")
	o := rows[0]
	if o.Method != types.MethodPMCFallback || !o.Success {
		t.Fatalf("outcome = %+v", o)
	}
	if o.PDFValid != nil {
		t.Error("trusted-source validity must stay unknown until revalidation")
	}

	// The batch pass applies the lenient threshold and confirms validity.
	if _, err := Revalidate(ctx, store, p.cfg, false, false, &out); err != nil {
		t.Fatal(err)
	}
	rows, _ = store.Outcomes(ctx, "test-run")
	o = rows[0]
	if o.PDFValid == nil || !*o.PDFValid {
		t.Errorf("revalidation verdict = %+v, want valid", o.PDFValid)
	}
	if !o.Success {
		t.Error("valid trusted file must stay a success")
	}
}

func TestRunTrustedSourceInvalidFileCorrectedByRevalidation(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/unpaywall/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/idconv/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"records": [{"pmcid": "PMC999"}]}`)
	})
	mux.HandleFunc("/articles/PMC999/pdf/", func(w http.ResponseWriter, _ *http.Request) {
		body := "<html><head><title>403 Forbidden</title></head><body>Access Denied</body></html>"
		fmt.Fprint(w, body+strings.Repeat(" filler ", 512))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()
	pointAllBasesAt(t, ts)

	p, store := newTestPipeline(t, types.FetchConfig{})
	ctx := context.Background()
	var out bytes.Buffer
	if _, err := p.Run(ctx, []string{"10.1038/nature12373"}, &out); err != nil {
		t.Fatal(err)
	}

	// Accepted on HTTP 200 alone — the known window before revalidation.
	rows, _ := store.Outcomes(ctx, "test-run")
	if !rows[0].Success {
		t.Fatalf("trusted download not accepted: %+v", rows[0])
	}

	if _, err := Revalidate(ctx, store, p.cfg, false, false, &out); err != nil {
		t.Fatal(err)
	}
	rows, _ = store.Outcomes(ctx, "test-run")
	o := rows[0]
	if o.Success {
		t.Error("revalidation must flip the disguised failure to unsuccessful")
	}
	if o.FailureReason != types.ReasonHTMLErrorPage {
		t.Errorf("failure_reason = %q, want html_error_page", o.FailureReason)
	}
	if o.PDFValid == nil || *o.PDFValid {
		t.Error("pdf_valid must be false after revalidation")
	}
}

func TestRunStrictValidationRejectsHTML(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/unpaywall/", func(w http.ResponseWriter, r *http.Request) {
		host := "http://" + r.Host
		fmt.Fprintf(w, `{"best_oa_location": {"url_for_pdf": "%s/oa/fake.pdf"}}`, host)
	})
	mux.HandleFunc("/oa/fake.pdf", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<!DOCTYPE html><html><body>Access Denied</body></html>"+strings.Repeat(" x", 8*1024))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()
	pointAllBasesAt(t, ts)

	outputDir := t.TempDir()
	p, store := newTestPipeline(t, types.FetchConfig{OutputDir: outputDir})
	var out bytes.Buffer
	if _, err := p.Run(context.Background(), []string{"10.1038/nature12373"}, &out); err != nil {
		t.Fatal(err)
	}

	rows, _ := store.Outcomes(context.Background(), "test-run")
	o := rows[0]
	if o.Success {
		t.Fatal("HTML error page counted as success")
	}
	if o.FailureReason != types.ReasonHTMLErrorPage {
		t.Errorf("failure_reason = %q", o.FailureReason)
	}
	if o.FilePath != "" {
		t.Error("invalid download must not keep a file path")
	}

	// The partial file is removed.
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("output dir retains %d file(s) after rejection", len(entries))
	}
}

func TestRunPMIDChain(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/pubmed/30670877/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><meta name="citation_doi" content="10.1038/nature12373"></head><body></body></html>`)
	})
	mux.HandleFunc("/unpaywall/", func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "10.1038") {
			t.Errorf("unpaywall queried with %q, want the recovered DOI", r.URL.Path)
		}
		host := "http://" + r.Host
		fmt.Fprintf(w, `{"best_oa_location": {"url_for_pdf": "%s/oa/paper.pdf"}}`, host)
	})
	mux.HandleFunc("/oa/paper.pdf", func(w http.ResponseWriter, _ *http.Request) {
		w.Write(fakePDF())
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()
	pointAllBasesAt(t, ts)

	p, store := newTestPipeline(t, types.FetchConfig{})
	var out bytes.Buffer
	result, err := p.Run(context.Background(), []string{"30670877"}, &out)
	if err != nil {
		t.Fatal(err)
	}
	if result.Acquired != 1 {
		t.Fatalf("result = %+v\n%s", result, out.String())
	}

	rows, _ := store.Outcomes(context.Background(), "test-run")
	o := rows[0]
	if o.IDType != "pmid" || o.Method != types.MethodUnpaywall {
		t.Errorf("outcome = id_type %q method %q", o.IDType, o.Method)
	}
}

func TestRunPMCDirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/articles/PMC5176308/pdf/", func(w http.ResponseWriter, _ *http.Request) {
		w.Write(fakePDF())
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()
	pointAllBasesAt(t, ts)

	p, store := newTestPipeline(t, types.FetchConfig{})
	var out bytes.Buffer
	result, err := p.Run(context.Background(), []string{"PMC5176308"}, &out)
	if err != nil {
		t.Fatal(err)
	}
	if result.Acquired != 1 {
		t.Fatalf("result = %+v\n%s", result, out.String())
	}

	rows, _ := store.Outcomes(context.Background(), "test-run")
	o := rows[0]
	if o.Method != types.MethodPMCDirect || o.IDType != "pmc" {
		t.Errorf("outcome = %+v", o)
	}
}

func TestRunUnknownIdentifier(t *testing.T) {
	p, store := newTestPipeline(t, types.FetchConfig{})
	var out bytes.Buffer
	result, err := p.Run(context.Background(), []string{"definitely-not-an-id"}, &out)
	if err != nil {
		t.Fatal(err)
	}
	if result.Failed != 1 {
		t.Fatalf("result = %+v", result)
	}

	rows, _ := store.Outcomes(context.Background(), "test-run")
	o := rows[0]
	if o.IDType != "unknown" || o.FailureReason != types.ReasonUnrecognizedID {
		t.Errorf("outcome = %+v", o)
	}
}

func TestRunPersistentLookupServerErrorReason(t *testing.T) {
	// The open-access lookup answers 500 on every attempt; the remaining
	// strategies come up empty, so the lookup fault becomes the terminal
	// reason — and it must classify as a server error, not a transport one.
	mux := http.NewServeMux()
	mux.HandleFunc("/unpaywall/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/idconv/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"records": []}`)
	})
	mux.HandleFunc("/resolve/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/landing", http.StatusFound)
	})
	mux.HandleFunc("/landing", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body>nothing here</body></html>`)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()
	pointAllBasesAt(t, ts)

	p, store := newTestPipeline(t, types.FetchConfig{LookupRetries: 1})
	var out bytes.Buffer
	result, err := p.Run(context.Background(), []string{"10.1038/nature12373"}, &out)
	if err != nil {
		t.Fatal(err)
	}
	if result.Failed != 1 {
		t.Fatalf("result = %+v", result)
	}

	rows, _ := store.Outcomes(context.Background(), "test-run")
	o := rows[0]
	if o.FailureReason != types.ReasonServerError {
		t.Errorf("failure_reason = %q, want server_error", o.FailureReason)
	}
}

func TestRevalidateRemoveInvalidDeletesFile(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/unpaywall/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/idconv/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"records": [{"pmcid": "PMC4242"}]}`)
	})
	mux.HandleFunc("/articles/PMC4242/pdf/", func(w http.ResponseWriter, _ *http.Request) {
		body := "<html><head><title>403 Forbidden</title></head><body>Access Denied</body></html>"
		fmt.Fprint(w, body+strings.Repeat(" filler ", 512))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()
	pointAllBasesAt(t, ts)

	p, store := newTestPipeline(t, types.FetchConfig{})
	ctx := context.Background()
	var out bytes.Buffer
	if _, err := p.Run(ctx, []string{"10.1038/nature12373"}, &out); err != nil {
		t.Fatal(err)
	}

	rows, _ := store.Outcomes(ctx, "test-run")
	filePath := rows[0].FilePath
	if _, err := os.Stat(filePath); err != nil {
		t.Fatalf("trusted download missing before revalidation: %v", err)
	}

	if _, err := Revalidate(ctx, store, p.cfg, false, true, &out); err != nil {
		t.Fatal(err)
	}

	// The file is gone, so the next run retries the identifier instead of
	// treating the bad file as a cache hit.
	if _, err := os.Stat(filePath); !os.IsNotExist(err) {
		t.Errorf("invalid file still on disk after removal pass: %v", err)
	}
	rows, _ = store.Outcomes(ctx, "test-run")
	if rows[0].Success {
		t.Error("log row must be flipped to unsuccessful")
	}
}

func TestRunNoPDFFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/unpaywall/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/idconv/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"records": []}`)
	})
	mux.HandleFunc("/resolve/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/landing", http.StatusFound)
	})
	mux.HandleFunc("/landing", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body>nothing here</body></html>`)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()
	pointAllBasesAt(t, ts)

	p, store := newTestPipeline(t, types.FetchConfig{})
	var out bytes.Buffer
	if _, err := p.Run(context.Background(), []string{"10.9999/unfindable"}, &out); err != nil {
		t.Fatal(err)
	}

	rows, _ := store.Outcomes(context.Background(), "test-run")
	o := rows[0]
	if o.FailureReason != types.ReasonNoPDFFound {
		t.Errorf("failure_reason = %q, want no_pdf_found", o.FailureReason)
	}
	if o.Method != types.MethodNone {
		t.Errorf("method = %q, want none", o.Method)
	}
}
