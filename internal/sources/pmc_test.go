// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/meshintel/fulltext-engine/pkg/types"
)

const idConvHitJSON = `{
  "status": "ok",
  "records": [
    {"pmcid": "PMC5176308", "pmid": "30670877", "doi": "10.1038/nature12373"}
  ]
}`

const idConvMissJSON = `{
  "status": "ok",
  "records": [
    {"pmid": "12345", "live": "false"}
  ]
}`

func TestPMCFallbackResolves(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("ids") != "30670877" {
			t.Errorf("ids = %q", r.URL.Query().Get("ids"))
		}
		if r.URL.Query().Get("format") != "json" {
			t.Errorf("format = %q", r.URL.Query().Get("format"))
		}
		fmt.Fprint(w, idConvHitJSON)
	}))
	defer ts.Close()
	swapBase(t, &IDConvBase, ts.URL+"/")

	p := &PMCFallback{Client: newTestClient(t)}
	cand, err := p.Lookup(context.Background(), "30670877")
	if err != nil {
		t.Fatal(err)
	}
	if cand.PDFURL != PMCArticleBase+"PMC5176308/pdf/" {
		t.Errorf("PDFURL = %q", cand.PDFURL)
	}
	if cand.LandingURL != PMCArticleBase+"PMC5176308/" {
		t.Errorf("LandingURL = %q", cand.LandingURL)
	}
	if !cand.Trusted {
		t.Error("PMC candidates must be trusted")
	}
}

func TestPMCFallbackNoRecord(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, idConvMissJSON)
	}))
	defer ts.Close()
	swapBase(t, &IDConvBase, ts.URL+"/")

	p := &PMCFallback{Client: newTestClient(t)}
	cand, err := p.Lookup(context.Background(), "12345")
	if err != nil {
		t.Fatal(err)
	}
	if cand.Found() {
		t.Errorf("expected empty candidate, got %q", cand.PDFURL)
	}
}

func TestPMCFallbackServerFault(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()
	swapBase(t, &IDConvBase, ts.URL+"/")

	p := &PMCFallback{Client: newTestClient(t)}
	_, err := p.Lookup(context.Background(), "30670877")
	var fault *Fault
	if !errors.As(err, &fault) {
		t.Fatalf("expected *Fault, got %v", err)
	}
	if fault.Reason != types.ReasonServerError {
		t.Errorf("reason = %q, want server_error", fault.Reason)
	}
}

func TestPMCCandidateDirect(t *testing.T) {
	cand := PMCCandidate("PMC7096066")
	if cand.PDFURL != PMCArticleBase+"PMC7096066/pdf/" {
		t.Errorf("PDFURL = %q", cand.PDFURL)
	}
	if !cand.Trusted {
		t.Error("direct PMC candidate must be trusted")
	}
}

func TestPMCFallbackSendsAPIKey(t *testing.T) {
	var gotKey string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("api_key")
		fmt.Fprint(w, idConvHitJSON)
	}))
	defer ts.Close()
	swapBase(t, &IDConvBase, ts.URL+"/")

	p := &PMCFallback{Client: newTestClient(t), APIKey: "nk_123"}
	if _, err := p.Lookup(context.Background(), "30670877"); err != nil {
		t.Fatal(err)
	}
	if gotKey != "nk_123" {
		t.Errorf("api_key = %q", gotKey)
	}
}
