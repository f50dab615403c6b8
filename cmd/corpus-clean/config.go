package main

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/corpus-clean/internal/minhash"
	"github.com/pdiddy/corpus-clean/internal/pipeline"
	"github.com/pdiddy/corpus-clean/internal/segment"
	"github.com/pdiddy/corpus-clean/internal/sigstore"
	"github.com/pdiddy/corpus-clean/pkg/types"
)

// configFlags maps persistent flags to config keys.
var configFlags = map[string]string{
	"input":        "dataset.path",
	"output":       "dataset.output_path",
	"report-dir":   "dataset.report_dir",
	"signature-db": "dataset.signature_db",
	"id-field":     "dataset.id_field",
	"text-field":   "dataset.text_field",
	"num-perm":     "minhash.num_perm",
	"seed":         "minhash.seed",
	"shingle-size": "minhash.shingle_size",
	"dictionary":   "minhash.dictionary_path",
	"threshold":    "index.threshold",
	"snapshot":     "index.snapshot_path",
	"batch-size":   "run.batch_size",
	"workers":      "run.num_workers",
	"cache-dir":    "http.cache_dir",
}

func registerConfigFlags(cmd *cobra.Command) {
	d := types.DefaultPipelineConfig()
	f := cmd.PersistentFlags()
	f.String("input", d.Dataset.Path, "training corpus JSONL file")
	f.String("output", d.Dataset.OutputPath, "where the cleaned JSONL is written")
	f.String("report-dir", d.Dataset.ReportDir, "directory for audit reports and run summaries")
	f.String("signature-db", d.Dataset.SignatureDB, "SQLite signature store (empty disables reuse)")
	f.String("id-field", d.Dataset.IDField, "JSON path of the document id")
	f.String("text-field", d.Dataset.TextField, "JSON path of the document text")
	f.Int("num-perm", d.MinHash.NumPerm, "MinHash signature width")
	f.Int64("seed", d.MinHash.Seed, "MinHash permutation seed")
	f.Int("shingle-size", d.MinHash.ShingleSize, "tokens per shingle")
	f.String("dictionary", d.MinHash.DictionaryPath, "word list for dictionary segmentation")
	f.Float64("threshold", d.Index.Threshold, "similarity a pair must exceed to be a duplicate")
	f.String("snapshot", d.Index.SnapshotPath, "LSH snapshot file (empty rebuilds every run)")
	f.Int("batch-size", d.Run.BatchSize, "documents per batch")
	f.Int("workers", d.Run.NumWorkers, "concurrent batches (default GOMAXPROCS)")
	f.String("cache-dir", d.HTTP.CacheDir, "download cache for remote reference groups")
	f.String("groups", "", "YAML file of reference groups, merged over the config file")
	bindConfigFlags(cmd)
}

// bindConfigFlags binds cmd's persistent flags to their config keys.
func bindConfigFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	for flag, key := range configFlags {
		if err := viper.BindPFlag(key, f.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("binding flag %s: %v", flag, err))
		}
	}
}

// loadConfig merges defaults, config file, environment and flags.
func loadConfig(cmd *cobra.Command) (types.PipelineConfig, error) {
	cfg := types.DefaultPipelineConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	groups, err := configFileGroups(viper.ConfigFileUsed())
	if err != nil {
		return cfg, err
	}
	if groups != nil {
		cfg.ReferenceGroups = groups
	}

	groupsFile, _ := cmd.Flags().GetString("groups")
	if groupsFile != "" {
		groups, err = pipeline.LoadReferenceGroups(groupsFile)
		if err != nil {
			return cfg, err
		}
		if cfg.ReferenceGroups == nil {
			cfg.ReferenceGroups = make(map[string]types.ReferenceGroup, len(groups))
		}
		for name, g := range groups {
			cfg.ReferenceGroups[name] = g
		}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// configFileGroups decodes reference_groups from the config file with
// their keys spelled as written; viper folds map keys to lower case. It
// returns nil when there is no YAML or JSON config file or the file has no
// reference_groups section.
func configFileGroups(path string) (map[string]types.ReferenceGroup, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
	default:
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	var file struct {
		ReferenceGroups map[string]types.ReferenceGroup `yaml:"reference_groups"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing reference_groups in %s: %w", path, err)
	}
	return file.ReferenceGroups, nil
}

// session holds the collaborators shared by the workflow commands.
type session struct {
	cfg    types.PipelineConfig
	runner *pipeline.Runner
	store  *sigstore.Store
}

func (s *session) Close() {
	if s.store != nil {
		s.store.Close()
	}
}

// newSession loads the dictionary once, builds the signature generator and
// opens the signature store.
func newSession(cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	var dict *segment.Dictionary
	if cfg.MinHash.DictionaryPath != "" {
		dict, err = segment.LoadDictionary(cfg.MinHash.DictionaryPath)
		if err != nil {
			return nil, err
		}
		log.Info("dictionary loaded", "path", cfg.MinHash.DictionaryPath, "words", dict.Len())
	}
	seg := segment.New(dict)
	gen, err := minhash.New(seg, cfg.MinHash)
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg}
	opts := []pipeline.Option{
		pipeline.WithLogger(log),
		pipeline.WithProgress(cmd.OutOrStdout()),
		pipeline.WithHTTPClient(&http.Client{Timeout: cfg.HTTP.Timeout}),
	}
	if cfg.Dataset.SignatureDB != "" {
		s.store, err = sigstore.Open(cfg.Dataset.SignatureDB, cfg.MinHash, seg.Fingerprint())
		if err != nil {
			return nil, err
		}
		opts = append(opts, pipeline.WithStore(s.store))
	}

	s.runner, err = pipeline.New(cfg, gen, opts...)
	if err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
