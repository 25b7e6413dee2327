// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pdfcheck

import (
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/meshintel/fulltext-engine/pkg/types"
)

// Inspect runs the optional deep structural check: open the document,
// count pages, and attempt text extraction from the first page. It layers
// on top of Validate and is independent of it — callers that only need the
// byte-level verdict never pay for parsing.
func Inspect(path string) (res Result) {
	res = Result{IsPDF: true}

	f, r, err := pdf.Open(path)
	if err != nil {
		if isEncryptedErr(err) {
			res.Reason = types.ReasonPasswordProtected
		} else {
			res.Reason = types.ReasonCorruptedPDF
		}
		return res
	}
	defer f.Close()

	if info, err := f.Stat(); err == nil {
		res.Size = info.Size()
	}

	defer func() {
		// The parser panics on some malformed cross-reference tables.
		if recover() != nil {
			res.Valid = false
			res.Reason = types.ReasonCorruptedPDF
		}
	}()

	if r.NumPage() < 1 {
		res.Reason = types.ReasonCorruptedPDF
		return res
	}

	page := r.Page(1)
	if page.V.IsNull() {
		res.Reason = types.ReasonUnreadablePDF
		return res
	}
	if _, err := page.GetPlainText(nil); err != nil {
		res.Reason = types.ReasonUnreadablePDF
		return res
	}

	res.Valid = true
	return res
}

func isEncryptedErr(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "encrypted")
}
