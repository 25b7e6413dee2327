package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/meshintel/fulltext-engine/internal/acqlog"
	"github.com/meshintel/fulltext-engine/internal/fetchclient"
	"github.com/meshintel/fulltext-engine/internal/pipeline"
	"github.com/meshintel/fulltext-engine/internal/secrets"
)

const (
	defaultTimeout   = 60 * time.Second
	defaultDelay     = 1 * time.Second
	defaultUserAgent = "fulltext-engine/0.1"
	defaultOutputDir = "pdfs"
	defaultLogPath   = "acquisitions.db"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [identifiers...]",
	Short: "Retrieve full-text PDFs for DOIs, PMIDs, and PMC IDs",
	Long: `Fetch resolves each identifier through the source priority chain,
downloads the first candidate PDF, validates it, and appends one outcome
row per identifier to the acquisition log. Identifiers whose target file
already exists are skipped without any network traffic.

Identifiers come from the arguments, from --file (one per line, blank
lines and # comments ignored), or both.`,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().Duration("timeout", 0, "HTTP request timeout (default 60s)")
	fetchCmd.Flags().Duration("delay", 0, "delay after each identifier (default 1s)")
	fetchCmd.Flags().String("output-dir", defaultOutputDir, "directory for downloaded PDFs")
	fetchCmd.Flags().String("log", defaultLogPath, "acquisition log database file")
	fetchCmd.Flags().String("file", "", "file of identifiers, one per line")
	fetchCmd.Flags().String("email", "", "contact email for polite-pool APIs (default: unpaywall-email secret)")
	fetchCmd.Flags().Float64("rps", 0, "request rate limit across all hosts (default 2)")

	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	file, _ := cmd.Flags().GetString("file")
	identifiers, err := gatherIdentifiers(args, file)
	if err != nil {
		return err
	}
	if len(identifiers) == 0 {
		return fmt.Errorf("provide one or more identifiers (DOIs, PMIDs, or PMC IDs), or --file")
	}

	fileCfg, err := fileConfig()
	if err != nil {
		return err
	}
	cfg := fileCfg.Fetch

	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout > 0 {
		cfg.Timeout = timeout
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	delay, _ := cmd.Flags().GetDuration("delay")
	if delay > 0 {
		cfg.IdentifierDelay = delay
	}
	if cfg.IdentifierDelay == 0 {
		cfg.IdentifierDelay = defaultDelay
	}
	if cmd.Flags().Changed("output-dir") || cfg.OutputDir == "" {
		cfg.OutputDir, _ = cmd.Flags().GetString("output-dir")
	}
	if rps, _ := cmd.Flags().GetFloat64("rps"); rps > 0 {
		cfg.RequestsPerSecond = rps
	}
	email, _ := cmd.Flags().GetString("email")

	cfg.UserAgent = defaultUserAgent
	cfg.ContactEmail = secretDefault(secrets.KeyUnpaywallEmail, firstOf(email, cfg.ContactEmail))
	cfg.ElsevierAPIKey = secretDefault(secrets.KeyElsevierAPIKey, cfg.ElsevierAPIKey)
	cfg.ElsevierInstToken = secretDefault(secrets.KeyElsevierInstToken, cfg.ElsevierInstToken)
	cfg.NCBIAPIKey = secretDefault(secrets.KeyNCBIAPIKey, cfg.NCBIAPIKey)

	logPath, _ := cmd.Flags().GetString("log")
	if !cmd.Flags().Changed("log") && fileCfg.Log.Path != "" {
		logPath = fileCfg.Log.Path
	}

	client, err := fetchclient.New(cfg.HTTPConfig)
	if err != nil {
		return err
	}
	store, err := acqlog.Open(logPath)
	if err != nil {
		return err
	}
	defer store.Close()

	runID := time.Now().UTC().Format("20060102-150405")
	fmt.Fprintf(os.Stderr, "Run %s: %d identifier(s)\n", runID, len(identifiers))

	result, err := pipeline.New(client, store, cfg, runID).Run(cmd.Context(), identifiers, os.Stdout)
	if err != nil {
		return err
	}
	if result.HasFailures() {
		return fmt.Errorf("%d identifier(s) failed", result.Failed)
	}
	return nil
}

// firstOf returns the first non-empty string.
func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// gatherIdentifiers merges command-line identifiers with a --file list.
func gatherIdentifiers(args []string, file string) ([]string, error) {
	identifiers := append([]string(nil), args...)
	if file == "" {
		return identifiers, nil
	}

	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("opening identifier file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		identifiers = append(identifiers, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading identifier file: %w", err)
	}
	return identifiers, nil
}
