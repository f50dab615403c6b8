package main

import (
	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build LSH index snapshots",
	Long: `Index builds the LSH index for the training corpus and one per reference
group and saves each as a snapshot next to --snapshot. Later dedup and
decontaminate runs load a snapshot instead of rebuilding when its
parameters match.`,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	_, err = s.runner.BuildSnapshots(cmd.Context())
	return err
}
