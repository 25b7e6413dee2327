package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/meshintel/fulltext-engine/internal/acqlog"
	"github.com/meshintel/fulltext-engine/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report [run-id]",
	Short: "Summarize a run from the acquisition log",
	Long: `Report derives run statistics from the acquisition log: identifiers
sought, acquired, excluded as invalid, and not retrieved, with breakdowns
by method and failure reason. Without a run-id argument the most recent
run is reported.

Formats: markdown (default), yaml, or csv. The csv format exports the raw
log rows rather than the summary.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReport,
}

func init() {
	reportCmd.Flags().String("log", defaultLogPath, "acquisition log database file")
	reportCmd.Flags().String("format", "markdown", "output format: markdown, yaml, or csv")
	reportCmd.Flags().String("output", "", "output file (default stdout)")

	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	fileCfg, err := fileConfig()
	if err != nil {
		return err
	}

	logPath, _ := cmd.Flags().GetString("log")
	if !cmd.Flags().Changed("log") && fileCfg.Log.Path != "" {
		logPath = fileCfg.Log.Path
	}
	format, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		output = fileCfg.Report.OutputPath
	}

	store, err := acqlog.Open(logPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if format == "csv" {
		return store.ExportCSV(ctx, w)
	}

	runID := ""
	if len(args) == 1 {
		runID = args[0]
	} else {
		runID, err = store.LatestRun(ctx)
		if err != nil {
			return err
		}
		if runID == "" {
			return fmt.Errorf("acquisition log is empty")
		}
	}

	outcomes, err := store.Outcomes(ctx, runID)
	if err != nil {
		return err
	}
	if len(outcomes) == 0 {
		return fmt.Errorf("no outcomes recorded for run %q", runID)
	}

	summary := report.Build(runID, outcomes)
	switch format {
	case "markdown", "":
		return report.RenderMarkdown(w, summary)
	case "yaml":
		return report.RenderYAML(w, summary)
	default:
		return fmt.Errorf("unsupported format %q: use markdown, yaml, or csv", format)
	}
}
