package main

import (
	"github.com/spf13/cobra"
)

var signaturesCmd = &cobra.Command{
	Use:   "signatures",
	Short: "Generate and store MinHash signatures",
	Long: `Signatures computes MinHash signatures for the training corpus and every
configured reference group and writes them to the signature store. Rows
whose id and text are unchanged since the last run reuse their stored
signature.`,
	RunE: runSignatures,
}

func init() {
	rootCmd.AddCommand(signaturesCmd)
}

func runSignatures(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	_, err = s.runner.GenerateSignatures(cmd.Context())
	return err
}
