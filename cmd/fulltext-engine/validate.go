package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/meshintel/fulltext-engine/internal/acqlog"
	"github.com/meshintel/fulltext-engine/internal/pipeline"
	"github.com/meshintel/fulltext-engine/pkg/types"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Revalidate downloaded PDFs and merge verdicts into the log",
	Long: `Validate re-checks every file recorded in the acquisition log and
updates the log rows in place. Files from trusted sources (PMC, publisher
text-mining API) get the lenient size threshold; everything else gets the
strict one. Files found invalid flip their log rows to unsuccessful.

An invalid file left on disk still satisfies the fetch skip cache, so its
identifier would not be retried; pass --remove-invalid to delete such
files and make the next fetch run attempt them again.

With --deep, files that pass the byte-level check are additionally opened
with a PDF parser to catch structural corruption, encryption, and
unextractable text.`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().String("log", defaultLogPath, "acquisition log database file")
	validateCmd.Flags().Bool("deep", false, "structurally probe files that pass byte-level checks")
	validateCmd.Flags().Bool("remove-invalid", false, "delete invalid files from disk so the next fetch run retries them instead of skipping")
	validateCmd.Flags().Int64("min-size", 0, "strict size floor in bytes (default 10240)")
	validateCmd.Flags().Int64("trusted-min-size", 0, "lenient size floor for trusted sources (default 1024)")

	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	fileCfg, err := fileConfig()
	if err != nil {
		return err
	}

	logPath, _ := cmd.Flags().GetString("log")
	if !cmd.Flags().Changed("log") && fileCfg.Log.Path != "" {
		logPath = fileCfg.Log.Path
	}
	deep, _ := cmd.Flags().GetBool("deep")
	removeInvalid, _ := cmd.Flags().GetBool("remove-invalid")
	minSize, _ := cmd.Flags().GetInt64("min-size")
	trustedMin, _ := cmd.Flags().GetInt64("trusted-min-size")

	store, err := acqlog.Open(logPath)
	if err != nil {
		return err
	}
	defer store.Close()

	cfg := types.FetchConfig{MinPDFSize: minSize, TrustedMinPDFSize: trustedMin}
	if cfg.MinPDFSize == 0 {
		cfg.MinPDFSize = fileCfg.Fetch.MinPDFSize
	}
	if cfg.TrustedMinPDFSize == 0 {
		cfg.TrustedMinPDFSize = fileCfg.Fetch.TrustedMinPDFSize
	}
	updated, err := pipeline.Revalidate(cmd.Context(), store, cfg, deep, removeInvalid, os.Stdout)
	if err != nil {
		return err
	}
	if updated == 0 {
		fmt.Fprintln(os.Stderr, "No log rows needed updating")
	}
	return nil
}
