// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the corpus-clean CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/corpus-clean/internal/logging"
)

// version is set at build time via ldflags.
var version = "dev"

// log is created in PersistentPreRunE from --log-mode.
var log = logging.Nop()

// rootCmd is the base command for the corpus-clean CLI.
var rootCmd = &cobra.Command{
	Use:   "corpus-clean",
	Short: "Near-duplicate removal for pretraining corpora",
	Long: `corpus-clean removes near-duplicate documents from a JSONL training corpus
(deduplication) and removes training documents that overlap held-out
evaluation sets (decontamination). Similarity is estimated with MinHash
signatures and candidates are found with a banded LSH index.

Each stage is a subcommand: signatures, index, dedup, decontaminate and
apply. Settings come from corpus-clean.yaml, CORPUS_CLEAN_* environment
variables and flags, in increasing priority.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		mode, _ := cmd.Flags().GetString("log-mode")
		l, err := logging.New(mode)
		if err != nil {
			return err
		}
		log = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		log.Sync()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./corpus-clean.yaml or ~/.config/corpus-clean/corpus-clean.yaml)")
	rootCmd.PersistentFlags().String("log-mode", "prod", "log encoding: dev or prod")
	registerConfigFlags(rootCmd)
}

func initConfig() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "Ignoring .env:", err)
	}

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("corpus-clean")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "corpus-clean"))
		}
	}

	viper.SetEnvPrefix("CORPUS_CLEAN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
