// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"fmt"

	"github.com/pdiddy/corpus-clean/internal/batch"
	"github.com/pdiddy/corpus-clean/internal/sigstore"
	"github.com/pdiddy/corpus-clean/pkg/types"
)

// SignatureStats counts how a dataset's signatures were obtained.
type SignatureStats struct {
	Dataset   string
	Generated int
	Reused    int
}

// Signatures returns one signature per document, parallel to docs. With a
// store, signatures whose id and text digest are unchanged are reused and
// only the rest are generated and written back.
func (r *Runner) Signatures(ctx context.Context, name string, docs []types.Document) ([]types.Signature, SignatureStats, error) {
	stats := SignatureStats{Dataset: name}
	if r.store == nil {
		sigs, err := batch.Signatures(ctx, r.gen, docs, r.batchOptions())
		if err != nil {
			return nil, stats, fmt.Errorf("generating signatures for %s: %w", name, err)
		}
		stats.Generated = len(sigs)
		return sigs, stats, nil
	}

	entries, err := r.store.Load(ctx, name)
	if err != nil {
		return nil, stats, fmt.Errorf("loading stored signatures for %s: %w", name, err)
	}
	stored := make(map[int]sigstore.Entry, len(entries))
	for _, e := range entries {
		stored[e.Signature.Position] = e
	}

	sigs := make([]types.Signature, len(docs))
	var stale []types.Document
	var staleAt []int
	for i, doc := range docs {
		if e, ok := stored[doc.Position]; ok && e.Digest == sigstore.Digest(doc) {
			sigs[i] = e.Signature
			stats.Reused++
			continue
		}
		stale = append(stale, doc)
		staleAt = append(staleAt, i)
	}

	if len(stale) > 0 {
		fresh, err := batch.Signatures(ctx, r.gen, stale, r.batchOptions())
		if err != nil {
			return nil, stats, fmt.Errorf("generating signatures for %s: %w", name, err)
		}
		if err := r.store.Put(ctx, name, stale, fresh); err != nil {
			return nil, stats, fmt.Errorf("storing signatures for %s: %w", name, err)
		}
		for j, i := range staleAt {
			sigs[i] = fresh[j]
		}
		stats.Generated = len(fresh)
	}
	if len(entries) > len(docs) {
		if err := r.store.Truncate(ctx, name, len(docs)); err != nil {
			return nil, stats, err
		}
	}

	r.log.Info("signatures ready", "dataset", name, "generated", stats.Generated, "reused", stats.Reused)
	return sigs, stats, nil
}

// GenerateSignatures fills the store for the training dataset and every
// reference group without running a workflow.
func (r *Runner) GenerateSignatures(ctx context.Context) ([]SignatureStats, error) {
	docs, err := r.loadCorpus()
	if err != nil {
		return nil, err
	}
	_, st, err := r.Signatures(ctx, corpusKey(r.cfg.Dataset.Path), docs)
	if err != nil {
		return nil, err
	}
	all := []SignatureStats{st}

	for _, name := range r.groupNames() {
		refs, err := r.loadGroup(ctx, name)
		if err != nil {
			return nil, err
		}
		_, st, err := r.Signatures(ctx, groupKey(name, r.cfg.ReferenceGroups[name]), refs)
		if err != nil {
			return nil, err
		}
		all = append(all, st)
	}
	for _, st := range all {
		fmt.Fprintf(r.w, "signatures %s: %d generated, %d reused\n", st.Dataset, st.Generated, st.Reused)
	}
	return all, nil
}
