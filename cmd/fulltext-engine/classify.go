package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meshintel/fulltext-engine/internal/identify"
)

var classifyCmd = &cobra.Command{
	Use:   "classify [identifiers...]",
	Short: "Show how identifiers would be classified and filed",
	Long: `Classify prints the detected identifier type (doi, pmid, pmc, or
unknown) and the deterministic filename each identifier maps to, without
making any network requests. Useful for checking a batch before fetching.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, args []string) error {
	for _, raw := range args {
		kind, normalized := identify.Classify(raw)
		if kind == identify.KindUnknown {
			fmt.Printf("%-40s %-8s -\n", raw, kind)
			continue
		}
		fmt.Printf("%-40s %-8s %s.pdf\n", raw, kind, identify.Slug(kind, normalized))
	}
	return nil
}
