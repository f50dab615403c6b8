// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline composes signature generation, LSH indexing, candidate
// resolution and removal into the deduplication and decontamination
// workflows.
package pipeline

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/pdiddy/corpus-clean/internal/batch"
	"github.com/pdiddy/corpus-clean/internal/logging"
	"github.com/pdiddy/corpus-clean/internal/minhash"
	"github.com/pdiddy/corpus-clean/internal/removal"
	"github.com/pdiddy/corpus-clean/internal/sigstore"
	"github.com/pdiddy/corpus-clean/pkg/types"
)

// Runner holds everything a workflow needs. Collaborators are passed in
// explicitly; a Runner has no global state.
type Runner struct {
	cfg    types.PipelineConfig
	gen    *minhash.Generator
	store  *sigstore.Store
	client *http.Client
	log    *logging.Logger
	w      io.Writer
}

// Option customises a Runner.
type Option func(*Runner)

// WithStore persists and reuses signatures through s.
func WithStore(s *sigstore.Store) Option { return func(r *Runner) { r.store = s } }

// WithHTTPClient sets the client used to fetch remote reference groups.
func WithHTTPClient(c *http.Client) Option { return func(r *Runner) { r.client = c } }

// WithLogger sets the structured logger.
func WithLogger(l *logging.Logger) Option { return func(r *Runner) { r.log = l } }

// WithProgress sets the writer that receives progress and summary lines.
func WithProgress(w io.Writer) Option { return func(r *Runner) { r.w = w } }

// New returns a Runner for cfg. gen must be built from cfg.MinHash.
func New(cfg types.PipelineConfig, gen *minhash.Generator, opts ...Option) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if gen == nil {
		return nil, fmt.Errorf("pipeline: signature generator is required")
	}
	if gen.NumPerm() != cfg.MinHash.NumPerm || gen.Seed() != cfg.MinHash.Seed {
		return nil, fmt.Errorf("%w: generator num_perm=%d seed=%d, config num_perm=%d seed=%d",
			minhash.ErrIncompatible, gen.NumPerm(), gen.Seed(), cfg.MinHash.NumPerm, cfg.MinHash.Seed)
	}
	r := &Runner{cfg: cfg, gen: gen, client: http.DefaultClient, w: io.Discard}
	for _, o := range opts {
		o(r)
	}
	r.log = logging.OrNop(r.log)
	return r, nil
}

// Outcome is the result of one workflow run.
type Outcome struct {
	Summary types.RunSummary
	Records []types.DuplicateRecord
	Kept    []types.Document
}

func (r *Runner) batchOptions() batch.Options {
	return batch.Options{
		BatchSize:  r.cfg.Run.BatchSize,
		NumWorkers: r.cfg.Run.NumWorkers,
		Progress:   r.w,
		Log:        r.log,
	}
}

func (r *Runner) newSummary(wf types.Workflow, input int) types.RunSummary {
	return types.RunSummary{
		RunID:     uuid.NewString(),
		Workflow:  wf,
		NumPerm:   r.cfg.MinHash.NumPerm,
		Seed:      r.cfg.MinHash.Seed,
		Threshold: r.cfg.Index.Threshold,
		Input:     input,
	}
}

// finish writes the kept dataset, the audit report and the run summary.
func (r *Runner) finish(sum types.RunSummary, records []types.DuplicateRecord, kept []types.Document) (Outcome, error) {
	ds := r.cfg.Dataset
	sum.Removed = sum.Input - len(kept)
	sum.Kept = len(kept)
	sum.OutputPath = ds.OutputPath

	if ds.OutputPath != "" {
		if err := saveDataset(ds.OutputPath, kept); err != nil {
			return Outcome{}, err
		}
	}
	if ds.ReportDir != "" {
		base := fmt.Sprintf("%s_%s", sum.Workflow, sum.RunID)
		sum.ReportPath = filepath.Join(ds.ReportDir, base+".csv")
		if err := removal.SaveCSV(sum.ReportPath, records); err != nil {
			return Outcome{}, fmt.Errorf("writing report: %w", err)
		}
		if err := removal.SaveSummary(filepath.Join(ds.ReportDir, base+".yaml"), sum); err != nil {
			return Outcome{}, fmt.Errorf("writing summary: %w", err)
		}
	}

	r.log.Info("run finished", "run_id", sum.RunID, "workflow", sum.Workflow,
		"input", sum.Input, "removed", sum.Removed, "kept", sum.Kept)
	fmt.Fprintf(r.w, "%s: %d documents, %d removed, %d kept\n", sum.Workflow, sum.Input, sum.Removed, sum.Kept)
	return Outcome{Summary: sum, Records: records, Kept: kept}, nil
}
