package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"

	"github.com/pdiddy/corpus-clean/pkg/types"
)

// printSummary writes the run summary with the removed count highlighted.
func printSummary(w io.Writer, s types.RunSummary) {
	bold := color.New(color.Bold).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()

	removed := green(s.Removed)
	if s.Removed > 0 {
		removed = red(s.Removed)
	}

	fmt.Fprintf(w, "\n%s %s\n", bold("Run"), s.RunID)
	fmt.Fprintf(w, "  workflow:  %s (num_perm=%d seed=%d threshold=%v)\n", s.Workflow, s.NumPerm, s.Seed, s.Threshold)
	fmt.Fprintf(w, "  documents: %d input, %s removed, %s kept\n", s.Input, removed, green(s.Kept))

	if len(s.PerGroup) > 0 {
		names := make([]string, 0, len(s.PerGroup))
		for name := range s.PerGroup {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "  %-10s %d contaminated\n", name+":", s.PerGroup[name])
		}
	}
	if s.OutputPath != "" {
		fmt.Fprintf(w, "  output:    %s\n", s.OutputPath)
	}
	if s.ReportPath != "" {
		fmt.Fprintf(w, "  report:    %s\n", s.ReportPath)
	}
}
