// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"time"
)

// Defaults shared by every stage.
const (
	DefaultNumPerm     = 128
	DefaultSeed        = 1
	DefaultShingleSize = 5
	DefaultThreshold   = 0.8
	DefaultBatchSize   = 1000
)

// MinHashConfig holds the signature parameters. Signatures are only
// comparable when NumPerm and Seed match.
type MinHashConfig struct {
	// NumPerm is the signature width (default 128).
	NumPerm int `json:"num_perm" yaml:"num_perm" mapstructure:"num_perm"`

	// Seed derives the permutation functions (default 1).
	Seed int64 `json:"seed" yaml:"seed" mapstructure:"seed"`

	// ShingleSize is the number of consecutive tokens per shingle (default 5).
	ShingleSize int `json:"shingle_size" yaml:"shingle_size" mapstructure:"shingle_size"`

	// DictionaryPath is an optional word list, one word per line, used by the
	// segmenter for scripts written without spaces.
	DictionaryPath string `json:"dictionary_path,omitempty" yaml:"dictionary_path,omitempty" mapstructure:"dictionary_path"`
}

// Validate rejects unusable signature parameters.
func (c MinHashConfig) Validate() error {
	if c.NumPerm <= 0 {
		return fmt.Errorf("num_perm must be positive, got %d", c.NumPerm)
	}
	if c.ShingleSize <= 0 {
		return fmt.Errorf("shingle_size must be positive, got %d", c.ShingleSize)
	}
	return nil
}

// IndexConfig holds LSH settings.
type IndexConfig struct {
	// Threshold is the similarity cutoff; pairs scoring strictly above it are duplicates.
	Threshold float64 `json:"threshold" yaml:"threshold" mapstructure:"threshold"`

	// SnapshotPath optionally names a bbolt file holding persisted buckets.
	SnapshotPath string `json:"snapshot_path,omitempty" yaml:"snapshot_path,omitempty" mapstructure:"snapshot_path"`
}

// Validate rejects thresholds outside (0, 1).
func (c IndexConfig) Validate() error {
	if c.Threshold <= 0 || c.Threshold >= 1 {
		return fmt.Errorf("threshold must be in (0, 1), got %v", c.Threshold)
	}
	return nil
}

// RunConfig holds execution settings for the batch stages.
type RunConfig struct {
	// BatchSize is the number of documents per batch (default 1000).
	BatchSize int `json:"batch_size" yaml:"batch_size" mapstructure:"batch_size"`

	// NumWorkers bounds the worker pool (default GOMAXPROCS).
	NumWorkers int `json:"num_workers" yaml:"num_workers" mapstructure:"num_workers"`
}

// Validate rejects non-positive batch sizes.
func (c RunConfig) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, got %d", c.BatchSize)
	}
	return nil
}

// DatasetConfig locates the training corpus and where results go.
type DatasetConfig struct {
	// Path is the input JSONL file.
	Path string `json:"path" yaml:"path" mapstructure:"path"`

	// IDField, TextField and SourceField are gjson paths into each row.
	IDField     string `json:"id_field" yaml:"id_field" mapstructure:"id_field"`
	TextField   string `json:"text_field" yaml:"text_field" mapstructure:"text_field"`
	SourceField string `json:"source_field" yaml:"source_field" mapstructure:"source_field"`

	// SignatureDB is the SQLite signature store path.
	SignatureDB string `json:"signature_db" yaml:"signature_db" mapstructure:"signature_db"`

	// OutputPath receives the removal-applied JSONL.
	OutputPath string `json:"output_path" yaml:"output_path" mapstructure:"output_path"`

	// ReportDir receives the audit CSV and run summary.
	ReportDir string `json:"report_dir" yaml:"report_dir" mapstructure:"report_dir"`
}

// ExtractKind selects a reference-text extraction strategy.
type ExtractKind string

const (
	ExtractField     ExtractKind = "field"
	ExtractConcat    ExtractKind = "concat"
	ExtractHellaswag ExtractKind = "hellaswag"
	ExtractChoice    ExtractKind = "choice"
	ExtractTokens    ExtractKind = "tokens"
)

// ExtractConfig configures how comparison text is produced from a raw
// reference row. Fields are gjson paths; their meaning depends on Kind.
type ExtractConfig struct {
	Kind   ExtractKind `json:"kind" yaml:"kind" mapstructure:"kind"`
	Fields []string    `json:"fields" yaml:"fields" mapstructure:"fields"`
}

// ReferenceGroup is one held-out evaluation corpus.
type ReferenceGroup struct {
	// Path is a local JSONL file or an http(s) URL.
	Path string `json:"path" yaml:"path" mapstructure:"path"`

	// Split is recorded in cache and store keys (e.g. "test").
	Split string `json:"split" yaml:"split" mapstructure:"split"`

	// IDField is an optional gjson path for the reference id.
	IDField string `json:"id_field,omitempty" yaml:"id_field,omitempty" mapstructure:"id_field"`

	Extract ExtractConfig `json:"extract" yaml:"extract" mapstructure:"extract"`
}

// HTTPConfig holds settings used when fetching remote reference datasets.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// CacheDir stores downloaded datasets.
	CacheDir string `json:"cache_dir" yaml:"cache_dir" mapstructure:"cache_dir"`

	// MaxRetries bounds retries on HTTP 429 and 503 (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// PipelineConfig groups all stage configurations.
type PipelineConfig struct {
	MinHash         MinHashConfig             `json:"minhash" yaml:"minhash" mapstructure:"minhash"`
	Index           IndexConfig               `json:"index" yaml:"index" mapstructure:"index"`
	Run             RunConfig                 `json:"run" yaml:"run" mapstructure:"run"`
	Dataset         DatasetConfig             `json:"dataset" yaml:"dataset" mapstructure:"dataset"`
	HTTP            HTTPConfig                `json:"http" yaml:"http" mapstructure:"http"`
	ReferenceGroups map[string]ReferenceGroup `json:"reference_groups" yaml:"reference_groups" mapstructure:"reference_groups"`
}

// DefaultPipelineConfig returns a config populated with defaults.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		MinHash: MinHashConfig{
			NumPerm:     DefaultNumPerm,
			Seed:        DefaultSeed,
			ShingleSize: DefaultShingleSize,
		},
		Index: IndexConfig{Threshold: DefaultThreshold},
		Run:   RunConfig{BatchSize: DefaultBatchSize},
		Dataset: DatasetConfig{
			IDField:     "id",
			TextField:   "text",
			SourceField: "source",
			SignatureDB: "signatures/signatures.db",
			OutputPath:  "output/cleaned.jsonl",
			ReportDir:   "output",
		},
		HTTP: HTTPConfig{
			Timeout:    60 * time.Second,
			UserAgent:  "corpus-clean/0.1",
			CacheDir:   "temp",
			MaxRetries: 5,
		},
	}
}

// Validate checks every stage's settings.
func (c PipelineConfig) Validate() error {
	if err := c.MinHash.Validate(); err != nil {
		return fmt.Errorf("minhash: %w", err)
	}
	if err := c.Index.Validate(); err != nil {
		return fmt.Errorf("index: %w", err)
	}
	if err := c.Run.Validate(); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	for key, g := range c.ReferenceGroups {
		switch g.Extract.Kind {
		case ExtractField, ExtractConcat, ExtractHellaswag, ExtractChoice, ExtractTokens:
		default:
			return fmt.Errorf("reference group %s: unknown extract kind %q", key, g.Extract.Kind)
		}
		if len(g.Extract.Fields) == 0 {
			return fmt.Errorf("reference group %s: extract needs at least one field", key)
		}
	}
	return nil
}
