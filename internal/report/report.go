// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report derives run statistics from the acquisition log and
// renders them as Markdown or YAML.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/meshintel/fulltext-engine/pkg/types"
)

// Summary is the aggregate view of one run's outcomes. Sought excludes
// skipped identifiers: a file already on disk was not sought this run.
// The three buckets Acquired, ExcludedInvalid, and NotRetrieved partition
// Sought.
type Summary struct {
	RunID string `yaml:"run_id"`

	Total   int `yaml:"total"`
	Skipped int `yaml:"skipped"`
	Sought  int `yaml:"sought"`

	Acquired        int `yaml:"acquired"`
	ExcludedInvalid int `yaml:"excluded_invalid"`
	NotRetrieved    int `yaml:"not_retrieved"`

	Unvalidated int `yaml:"unvalidated"`

	ByMethod  []Count `yaml:"by_method,omitempty"`
	ByFailure []Count `yaml:"by_failure,omitempty"`
}

// Count is one breakdown row.
type Count struct {
	Key string `yaml:"key"`
	N   int    `yaml:"n"`
}

// Build derives a Summary from the outcome rows of a single run.
func Build(runID string, outcomes []types.Outcome) Summary {
	s := Summary{RunID: runID}
	methods := map[string]int{}
	failures := map[string]int{}

	for _, o := range outcomes {
		s.Total++
		if o.Skipped() {
			s.Skipped++
			continue
		}
		s.Sought++

		invalid := o.PDFValid != nil && !*o.PDFValid
		switch {
		case invalid:
			// Downloaded but rejected by validation, at download time or
			// by a later revalidation pass.
			s.ExcludedInvalid++
			if o.FailureReason != "" {
				failures[string(o.FailureReason)]++
			}
		case o.Success:
			s.Acquired++
			methods[o.Method]++
			if o.PDFValid == nil {
				s.Unvalidated++
			}
		default:
			s.NotRetrieved++
			if o.FailureReason != "" {
				failures[string(o.FailureReason)]++
			}
		}
	}

	s.ByMethod = sortedCounts(methods)
	s.ByFailure = sortedCounts(failures)
	return s
}

// sortedCounts flattens a count map, largest first, ties by key.
func sortedCounts(m map[string]int) []Count {
	out := make([]Count, 0, len(m))
	for k, n := range m {
		out = append(out, Count{Key: k, N: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].N != out[j].N {
			return out[i].N > out[j].N
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// RenderMarkdown writes the summary as a Markdown report.
func RenderMarkdown(w io.Writer, s Summary) error {
	var b strings.Builder

	fmt.Fprintf(&b, "# Acquisition Report\n\n")
	fmt.Fprintf(&b, "Run: `%s`\n\n", s.RunID)
	fmt.Fprintf(&b, "| | Count |\n|---|---|\n")
	fmt.Fprintf(&b, "| Total identifiers | %d |\n", s.Total)
	fmt.Fprintf(&b, "| Skipped (already on disk) | %d |\n", s.Skipped)
	fmt.Fprintf(&b, "| Sought | %d |\n", s.Sought)
	fmt.Fprintf(&b, "| Acquired | %d |\n", s.Acquired)
	fmt.Fprintf(&b, "| Excluded (invalid PDF) | %d |\n", s.ExcludedInvalid)
	fmt.Fprintf(&b, "| Not retrieved | %d |\n", s.NotRetrieved)
	if s.Unvalidated > 0 {
		fmt.Fprintf(&b, "| Awaiting validation | %d |\n", s.Unvalidated)
	}

	if len(s.ByMethod) > 0 {
		fmt.Fprintf(&b, "\n## Acquisitions by method\n\n| Method | Count |\n|---|---|\n")
		for _, c := range s.ByMethod {
			fmt.Fprintf(&b, "| %s | %d |\n", c.Key, c.N)
		}
	}
	if len(s.ByFailure) > 0 {
		fmt.Fprintf(&b, "\n## Failures by reason\n\n| Reason | Count |\n|---|---|\n")
		for _, c := range s.ByFailure {
			fmt.Fprintf(&b, "| %s | %d |\n", c.Key, c.N)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderYAML writes the summary as YAML.
func RenderYAML(w io.Writer, s Summary) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
