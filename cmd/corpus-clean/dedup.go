package main

import (
	"github.com/spf13/cobra"
)

var dedupCmd = &cobra.Command{
	Use:   "dedup",
	Short: "Remove near-duplicate documents within the corpus",
	Long: `Dedup compares every document with the ones before it and removes those
whose estimated Jaccard similarity exceeds --threshold. The first document
of each near-duplicate group is kept. The cleaned corpus, a CSV report of
removed documents and a YAML run summary are written.`,
	RunE: runDedup,
}

func init() {
	rootCmd.AddCommand(dedupCmd)
}

func runDedup(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	out, err := s.runner.Deduplicate(cmd.Context())
	if err != nil {
		return err
	}
	printSummary(cmd.OutOrStdout(), out.Summary)
	return nil
}
