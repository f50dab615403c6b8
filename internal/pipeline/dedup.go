// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"

	"github.com/pdiddy/corpus-clean/internal/batch"
	"github.com/pdiddy/corpus-clean/internal/removal"
	"github.com/pdiddy/corpus-clean/internal/resolve"
	"github.com/pdiddy/corpus-clean/pkg/types"
)

// Deduplicate removes near-duplicates within the configured dataset and
// writes the kept rows, the audit report and the run summary.
func (r *Runner) Deduplicate(ctx context.Context) (Outcome, error) {
	docs, err := r.loadCorpus()
	if err != nil {
		return Outcome{}, err
	}
	return r.DeduplicateDocs(ctx, docs)
}

// DeduplicateDocs runs self-deduplication over docs. Within a group of
// near-duplicates the earliest document is kept.
func (r *Runner) DeduplicateDocs(ctx context.Context, docs []types.Document) (Outcome, error) {
	if err := checkPositions(docs); err != nil {
		return Outcome{}, err
	}
	sum := r.newSummary(types.WorkflowDedup, len(docs))
	log := r.log.With("run_id", sum.RunID)

	sigs, _, err := r.Signatures(ctx, corpusKey(r.cfg.Dataset.Path), docs)
	if err != nil {
		return Outcome{}, err
	}
	idx, err := r.index(sigs, r.cfg.Index.SnapshotPath)
	if err != nil {
		return Outcome{}, err
	}

	res, err := batch.Run(ctx, docs, sigs, idx, population(docs, sigs, r.cfg.Dataset.Path),
		&resolve.Resolver{Threshold: r.cfg.Index.Threshold, SelfDedup: true, Log: log},
		r.batchOptions())
	if err != nil {
		return Outcome{}, err
	}
	return r.finish(sum, res.Records, removal.Apply(docs, res.Removed))
}
