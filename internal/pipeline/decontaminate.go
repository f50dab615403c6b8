// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/pdiddy/corpus-clean/internal/batch"
	"github.com/pdiddy/corpus-clean/internal/lsh"
	"github.com/pdiddy/corpus-clean/internal/removal"
	"github.com/pdiddy/corpus-clean/internal/resolve"
	"github.com/pdiddy/corpus-clean/pkg/types"
)

// ReferenceIndex is the queryable state of one reference group.
type ReferenceIndex struct {
	Index      *lsh.Index
	Population resolve.Slice
}

// ReferenceIndexes maps reference group keys to their indexes.
type ReferenceIndexes map[string]ReferenceIndex

// BuildReferenceIndexes loads, signs and indexes every configured
// reference group.
func (r *Runner) BuildReferenceIndexes(ctx context.Context) (ReferenceIndexes, error) {
	out := make(ReferenceIndexes, len(r.cfg.ReferenceGroups))
	for _, name := range r.groupNames() {
		refs, err := r.loadGroup(ctx, name)
		if err != nil {
			return nil, err
		}
		ri, err := r.ReferenceIndex(ctx, name, refs)
		if err != nil {
			return nil, err
		}
		out[name] = ri
	}
	return out, nil
}

// ReferenceIndex signs and indexes refs as reference group name.
func (r *Runner) ReferenceIndex(ctx context.Context, name string, refs []types.Document) (ReferenceIndex, error) {
	g := r.cfg.ReferenceGroups[name]
	sigs, _, err := r.Signatures(ctx, groupKey(name, g), refs)
	if err != nil {
		return ReferenceIndex{}, err
	}
	idx, err := r.index(sigs, groupSnapshot(r.cfg.Index.SnapshotPath, name))
	if err != nil {
		return ReferenceIndex{}, fmt.Errorf("indexing reference group %s: %w", name, err)
	}
	return ReferenceIndex{Index: idx, Population: population(refs, sigs, name)}, nil
}

// Decontaminate removes training documents that near-duplicate any
// configured reference group.
func (r *Runner) Decontaminate(ctx context.Context) (Outcome, error) {
	docs, err := r.loadCorpus()
	if err != nil {
		return Outcome{}, err
	}
	refs, err := r.BuildReferenceIndexes(ctx)
	if err != nil {
		return Outcome{}, err
	}
	return r.DecontaminateDocs(ctx, docs, refs)
}

// DecontaminateDocs checks docs against each reference group in key order.
// A document flagged by one group is not checked against later groups, so
// it carries at most one record.
func (r *Runner) DecontaminateDocs(ctx context.Context, docs []types.Document, refs ReferenceIndexes) (Outcome, error) {
	if err := checkPositions(docs); err != nil {
		return Outcome{}, err
	}
	sum := r.newSummary(types.WorkflowDecontaminate, len(docs))
	sum.PerGroup = make(map[string]int, len(refs))
	log := r.log.With("run_id", sum.RunID)

	sigs, _, err := r.Signatures(ctx, corpusKey(r.cfg.Dataset.Path), docs)
	if err != nil {
		return Outcome{}, err
	}

	names := make([]string, 0, len(refs))
	for name := range refs {
		names = append(names, name)
	}
	sort.Strings(names)

	removed := make(types.RemovalSet)
	var records []types.DuplicateRecord
	pending, pendingSigs := docs, sigs
	for _, name := range names {
		ref := refs[name]
		res, err := batch.Run(ctx, pending, pendingSigs, ref.Index, ref.Population,
			&resolve.Resolver{Threshold: r.cfg.Index.Threshold, Log: log.With("group", name)},
			r.batchOptions())
		if err != nil {
			return Outcome{}, fmt.Errorf("reference group %s: %w", name, err)
		}
		sum.PerGroup[name] = len(res.Records)
		records = append(records, res.Records...)
		removed.Union(res.Removed)
		pending, pendingSigs = remaining(pending, pendingSigs, res.Removed)
	}
	return r.finish(sum, records, removal.Apply(docs, removed))
}

func remaining(docs []types.Document, sigs []types.Signature, removed types.RemovalSet) ([]types.Document, []types.Signature) {
	if len(removed) == 0 {
		return docs, sigs
	}
	outDocs := make([]types.Document, 0, len(docs)-len(removed))
	outSigs := make([]types.Signature, 0, len(docs)-len(removed))
	for i, d := range docs {
		if removed.Contains(d.ID) {
			continue
		}
		outDocs = append(outDocs, d)
		outSigs = append(outSigs, sigs[i])
	}
	return outDocs, outSigs
}
