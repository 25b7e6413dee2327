// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// FailureReason classifies why an acquisition attempt did not produce a
// usable PDF. Values fall into four groups: transport, access, absence,
// and content. Content reasons double as PDF invalidity reasons.
type FailureReason string

const (
	// Transport.
	ReasonTimeout      FailureReason = "timeout"
	ReasonServerError  FailureReason = "server_error"
	ReasonNetworkError FailureReason = "network_error"

	// Access.
	ReasonPaywalled     FailureReason = "paywalled"
	ReasonUnauthorized  FailureReason = "unauthorized"
	ReasonNoEntitlement FailureReason = "no_entitlement"

	// Absence.
	ReasonNotFound       FailureReason = "not_found"
	ReasonNoPDFFound     FailureReason = "no_pdf_found"
	ReasonUnrecognizedID FailureReason = "unrecognized_identifier"
	ReasonFileNotFound   FailureReason = "file_not_found"

	// Content.
	ReasonHTMLErrorPage     FailureReason = "html_error_page"
	ReasonFileTooSmall      FailureReason = "file_too_small"
	ReasonInvalidPDFFormat  FailureReason = "invalid_pdf_format"
	ReasonMissingEOFWarned  FailureReason = "missing_eof_marker_warned"
	ReasonCorruptedPDF      FailureReason = "corrupted_pdf"
	ReasonPasswordProtected FailureReason = "password_protected"
	ReasonUnreadablePDF     FailureReason = "unreadable_pdf"
)

// Method names recorded in the acquisition log. One per retrieval
// strategy, plus the synthetic skip method for cache hits.
const (
	MethodUnpaywall      = "unpaywall"
	MethodPMCFallback    = "pmc_fallback"
	MethodElsevierTDM    = "elsevier_tdm"
	MethodDOIScrape      = "doi_scrape"
	MethodJournalPattern = "journal_url_pattern"
	MethodPMCDirect      = "pmc_direct"
	MethodPubMedScrape   = "pubmed_scrape"
	MethodSkipped        = "skipped"
	MethodNone           = "none"
)

// StatusExists is the status recorded for cache-hit (skipped) rows, where
// no HTTP request was made.
const StatusExists = "exists"

// Outcome is the terminal, immutable record of one identifier's
// acquisition in one run. Exactly one Outcome exists per identifier per
// run, including total failures.
type Outcome struct {
	// RunID ties the row to a single batch run.
	RunID string `json:"run_id" yaml:"run_id"`

	// ID is the raw identifier as supplied (DOI, PMID, or PMC ID).
	ID string `json:"id" yaml:"id"`

	// IDType is the classified identifier kind: doi, pmid, pmc, or unknown.
	IDType string `json:"id_type" yaml:"id_type"`

	// Timestamp records when the outcome was produced.
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`

	// Method names the strategy that won (or "skipped"/"none").
	Method string `json:"method" yaml:"method"`

	// Status is the HTTP status of the download attempt as a decimal
	// string, "exists" for cache hits, or empty when no download was made.
	Status string `json:"status" yaml:"status"`

	// Success reports whether a usable PDF was stored at FilePath.
	Success bool `json:"success" yaml:"success"`

	// FailureReason is set iff Success is false.
	FailureReason FailureReason `json:"failure_reason,omitempty" yaml:"failure_reason,omitempty"`

	// PDFURL is the resolved candidate URL, when any strategy produced one.
	PDFURL string `json:"pdf_url,omitempty" yaml:"pdf_url,omitempty"`

	// FilePath is the local path of the stored PDF; empty on failure.
	FilePath string `json:"file_path,omitempty" yaml:"file_path,omitempty"`

	// FileSizeKB is the stored file size in kilobytes; zero when no file.
	FileSizeKB float64 `json:"file_size_kb,omitempty" yaml:"file_size_kb,omitempty"`

	// PDFValid is nil while validity is unknown (trusted sources before
	// the batch revalidation pass).
	PDFValid *bool `json:"pdf_valid,omitempty" yaml:"pdf_valid,omitempty"`

	// PDFInvalidReason is set iff PDFValid is false.
	PDFInvalidReason FailureReason `json:"pdf_invalid_reason,omitempty" yaml:"pdf_invalid_reason,omitempty"`
}

// Skipped reports whether the row is a cache hit rather than a real
// acquisition attempt.
func (o Outcome) Skipped() bool {
	return o.Method == MethodSkipped
}
