// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pdfcheck decides, from raw bytes alone, whether a downloaded
// file is a genuine PDF or a disguised failure (HTML error page, truncated
// download, stub file).
package pdfcheck

import (
	"bytes"
	"io"
	"os"

	"github.com/meshintel/fulltext-engine/pkg/types"
)

const (
	// DefaultMinSize is the strict validation floor. Real article PDFs
	// below 10 KB are effectively nonexistent; stubs and error pages are
	// almost always smaller.
	DefaultMinSize int64 = 10 * 1024

	// TrustedMinSize is the lenient floor used when revalidating files
	// from trusted sources, which legitimately produce small-but-valid
	// files the strict threshold would reject.
	TrustedMinSize int64 = 1024

	headProbeSize  = 1024
	markerScanSize = 500
	tailProbeSize  = 2048
)

var pdfMagic = []byte("%PDF-")

// htmlMarkers are the only byte patterns treated as evidence of an HTML
// error page. Generic words like "Error" are deliberately excluded — they
// occur legitimately inside PDF metadata and object streams. The scan is
// case-insensitive.
var htmlMarkers = [][]byte{
	[]byte("<!doctype"),
	[]byte("<html"),
	[]byte("<head"),
	[]byte("<body"),
	[]byte("access denied"),
	[]byte("403 forbidden"),
	[]byte("404 not found"),
	[]byte("401 unauthorized"),
	[]byte("http/1.0 "),
	[]byte("http/1.1 "),
	[]byte("http/2 "),
}

// Result is the validator's verdict on one local file.
type Result struct {
	// Valid reports whether the file is accepted as a usable PDF.
	Valid bool

	// Reason explains an invalid verdict. It is also set, with Valid
	// still true, for the non-fatal missing-EOF warning.
	Reason types.FailureReason

	// IsPDF reports whether the file starts with the %PDF- magic.
	IsPDF bool

	// IsHTML reports whether an HTML error-page marker was found.
	IsHTML bool

	// Size is the file size in bytes, when the file exists.
	Size int64
}

// Validator inspects downloaded files. The zero value uses DefaultMinSize.
type Validator struct {
	// MinSize is the smallest acceptable file size in bytes.
	MinSize int64
}

// Validate classifies the file at path. Checks run cheap-first: existence,
// size, magic prefix, marker scan, EOF probe. Each failure reason is
// mutually exclusive by construction.
func (v Validator) Validate(path string) Result {
	minSize := v.MinSize
	if minSize <= 0 {
		minSize = DefaultMinSize
	}

	info, err := os.Stat(path)
	if err != nil {
		return Result{Reason: types.ReasonFileNotFound}
	}
	size := info.Size()

	if size < minSize {
		return Result{Reason: types.ReasonFileTooSmall, Size: size}
	}

	f, err := os.Open(path)
	if err != nil {
		return Result{Reason: types.ReasonFileNotFound, Size: size}
	}
	defer f.Close()

	head := make([]byte, headProbeSize)
	n, err := f.Read(head)
	if err != nil && err != io.EOF {
		return Result{Reason: types.ReasonUnreadablePDF, Size: size}
	}
	head = head[:n]

	isPDF := bytes.HasPrefix(head, pdfMagic)
	isHTML := scanHTMLMarkers(head)

	if isHTML {
		return Result{
			Reason: types.ReasonHTMLErrorPage,
			IsPDF:  isPDF,
			IsHTML: true,
			Size:   size,
		}
	}
	if !isPDF {
		return Result{Reason: types.ReasonInvalidPDFFormat, Size: size}
	}

	res := Result{Valid: true, IsPDF: true, Size: size}
	if !hasEOFMarker(f, size) {
		// Many legitimate PDFs omit or relocate %%EOF; rejecting on it
		// alone produces unacceptable false negatives. Warn, accept.
		res.Reason = types.ReasonMissingEOFWarned
	}
	return res
}

// scanHTMLMarkers searches the first markerScanSize bytes for an explicit
// HTML error-page marker. Embedded NUL bytes are stripped first so that
// sparsely-encoded pages still match.
func scanHTMLMarkers(head []byte) bool {
	window := head
	if len(window) > markerScanSize {
		window = window[:markerScanSize]
	}
	cleaned := bytes.ToLower(bytes.ReplaceAll(window, []byte{0}, nil))
	for _, marker := range htmlMarkers {
		if bytes.Contains(cleaned, marker) {
			return true
		}
	}
	return false
}

// hasEOFMarker reports whether %%EOF appears in the last tailProbeSize
// bytes of the file.
func hasEOFMarker(f *os.File, size int64) bool {
	probe := tailProbeSize
	offset := size - int64(probe)
	if offset < 0 {
		offset = 0
		probe = int(size)
	}
	tail := make([]byte, probe)
	if _, err := f.ReadAt(tail, offset); err != nil && err != io.EOF {
		return false
	}
	return bytes.Contains(tail, []byte("%%EOF"))
}
