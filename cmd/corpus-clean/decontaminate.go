package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var decontaminateCmd = &cobra.Command{
	Use:   "decontaminate",
	Short: "Remove training documents that overlap evaluation sets",
	Long: `Decontaminate indexes each reference group (local JSONL or http(s) URL)
and removes training documents whose similarity to any reference text
exceeds --threshold. Groups are checked in name order and each removed
document is reported against the first group that matched it.`,
	RunE: runDecontaminate,
}

func init() {
	rootCmd.AddCommand(decontaminateCmd)
}

func runDecontaminate(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	if len(s.cfg.ReferenceGroups) == 0 {
		return fmt.Errorf("no reference groups configured (set reference_groups or --groups)")
	}
	out, err := s.runner.Decontaminate(cmd.Context())
	if err != nil {
		return err
	}
	printSummary(cmd.OutOrStdout(), out.Summary)
	return nil
}
