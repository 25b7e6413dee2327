// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/meshintel/fulltext-engine/internal/acqlog"
	"github.com/meshintel/fulltext-engine/internal/pdfcheck"
	"github.com/meshintel/fulltext-engine/pkg/types"
)

// trustedMethods are the sources accepted on HTTP 200 alone at download
// time. Their files get the lenient size threshold here, because these
// sources legitimately produce small-but-valid PDFs.
var trustedMethods = map[string]bool{
	types.MethodPMCFallback: true,
	types.MethodPMCDirect:   true,
	types.MethodElsevierTDM: true,
}

// Revalidate runs the batch validation pass over every logged file and
// merges the verdicts back into the log in place. With deep set, files
// that pass the byte-level check are additionally opened and probed for
// structural damage. With removeInvalid set, files found invalid are
// deleted from disk so the skip cache will not treat them as satisfied
// on the next run.
func Revalidate(ctx context.Context, store *acqlog.Store, cfg types.FetchConfig, deep, removeInvalid bool, w io.Writer) (int, error) {
	rows, err := store.Downloaded(ctx)
	if err != nil {
		return 0, err
	}

	minSize := cfg.MinPDFSize
	if minSize <= 0 {
		minSize = pdfcheck.DefaultMinSize
	}
	trustedMin := cfg.TrustedMinPDFSize
	if trustedMin <= 0 {
		trustedMin = pdfcheck.TrustedMinSize
	}

	seen := make(map[string]bool)
	var verdicts []acqlog.Revalidation

	for _, row := range rows {
		if seen[row.FilePath] {
			continue
		}
		seen[row.FilePath] = true

		floor := minSize
		if trustedMethods[row.Method] {
			floor = trustedMin
		}

		res := pdfcheck.Validator{MinSize: floor}.Validate(row.FilePath)
		if res.Valid && deep {
			if deepRes := pdfcheck.Inspect(row.FilePath); !deepRes.Valid {
				res = deepRes
			}
		}

		if res.Valid {
			verdicts = append(verdicts, acqlog.Revalidation{FilePath: row.FilePath, Valid: true})
			if res.Reason == types.ReasonMissingEOFWarned {
				fmt.Fprintf(w, "warn:    %s (%s)\n", row.ID, res.Reason)
			} else {
				fmt.Fprintf(w, "valid:   %s\n", row.ID)
			}
		} else {
			verdicts = append(verdicts, acqlog.Revalidation{FilePath: row.FilePath, Valid: false, Reason: res.Reason})
			line := fmt.Sprintf("invalid: %s (%s)", row.ID, res.Reason)
			if removeInvalid {
				if err := os.Remove(row.FilePath); err == nil {
					line += " [removed]"
				}
			}
			fmt.Fprintln(w, line)
		}
	}

	updated, err := store.MergeValidation(ctx, verdicts)
	if err != nil {
		return 0, err
	}
	fmt.Fprintf(w, "\nRevalidated %d file(s), updated %d log row(s)\n", len(verdicts), updated)
	return updated, nil
}
