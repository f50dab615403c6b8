package main

import (
	"github.com/spf13/cobra"
)

var applyCmd = &cobra.Command{
	Use:   "apply <report.csv>",
	Short: "Remove the documents listed in an audit report",
	Long: `Apply reads a CSV report written by dedup or decontaminate and writes the
corpus without the listed source documents. Applying the same report again
to its own output changes nothing.`,
	Args: cobra.ExactArgs(1),
	RunE: runApply,
}

func init() {
	rootCmd.AddCommand(applyCmd)
}

func runApply(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	_, err = s.runner.ApplyReport(args[0])
	return err
}
