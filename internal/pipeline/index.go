// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/corpus-clean/internal/lsh"
	"github.com/pdiddy/corpus-clean/internal/resolve"
	"github.com/pdiddy/corpus-clean/pkg/types"
)

// BuildIndex inserts sigs in one session keyed by slice position and
// returns the finalized index.
func (r *Runner) BuildIndex(sigs []types.Signature) (*lsh.Index, error) {
	b, err := lsh.NewBuilder(r.cfg.Index.Threshold, r.cfg.MinHash.NumPerm, r.cfg.MinHash.Seed)
	if err != nil {
		return nil, err
	}
	for i, sig := range sigs {
		if sig.Seed != r.cfg.MinHash.Seed {
			return nil, fmt.Errorf("indexing %s: seed %d, want %d", sig.OwnerID, sig.Seed, r.cfg.MinHash.Seed)
		}
		if err := b.Insert(lsh.Key(i), sig.HashValues); err != nil {
			return nil, fmt.Errorf("indexing %s: %w", sig.OwnerID, err)
		}
	}
	idx := b.Finalize()
	p := idx.Meta().Params
	r.log.Info("index built", "bands", p.Bands, "rows", p.Rows, "size", idx.Len(), "skipped", idx.Skipped())
	return idx, nil
}

// index loads the snapshot at path when it matches sigs, otherwise builds
// a fresh index and, when path is set, writes it there.
func (r *Runner) index(sigs []types.Signature, path string) (*lsh.Index, error) {
	if path != "" {
		idx, err := lsh.Load(path, r.meta())
		switch {
		case err == nil && idx.Fingerprint() == lsh.Fingerprint(sigs):
			r.log.Info("index loaded", "path", path, "size", idx.Len())
			return idx, nil
		case err == nil:
			r.log.Warn("snapshot is stale, rebuilding", "path", path,
				"indexed", idx.Len()+idx.Skipped(), "signatures", len(sigs))
		case errors.Is(err, lsh.ErrSnapshotMismatch):
			return nil, err
		case !errors.Is(err, os.ErrNotExist):
			return nil, err
		}
	}

	idx, err := r.BuildIndex(sigs)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating snapshot directory: %w", err)
		}
		if err := idx.Save(path); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

func (r *Runner) meta() lsh.Meta {
	return lsh.Meta{
		NumPerm:   r.cfg.MinHash.NumPerm,
		Seed:      r.cfg.MinHash.Seed,
		Threshold: r.cfg.Index.Threshold,
	}
}

// groupSnapshot derives a per-group snapshot path from the configured one.
func groupSnapshot(path, group string) string {
	if path == "" {
		return ""
	}
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "-" + sanitize(group) + ext
}

func sanitize(s string) string {
	return strings.Map(func(c rune) rune {
		if c == '/' || c == '\\' || c == ':' {
			return '_'
		}
		return c
	}, s)
}

// population pairs documents with their signatures as resolver references.
func population(docs []types.Document, sigs []types.Signature, dataset string) resolve.Slice {
	pop := make(resolve.Slice, len(docs))
	for i, d := range docs {
		pop[i] = resolve.Reference{ID: d.ID, Text: d.Text, Dataset: dataset, Signature: sigs[i]}
	}
	return pop
}

// BuildSnapshots writes the LSH snapshots for the training dataset and
// every reference group. It requires Index.SnapshotPath.
func (r *Runner) BuildSnapshots(ctx context.Context) ([]string, error) {
	path := r.cfg.Index.SnapshotPath
	if path == "" {
		return nil, fmt.Errorf("index snapshot path is not set")
	}
	docs, err := r.loadCorpus()
	if err != nil {
		return nil, err
	}
	sigs, _, err := r.Signatures(ctx, corpusKey(r.cfg.Dataset.Path), docs)
	if err != nil {
		return nil, err
	}
	if err := r.save(sigs, path); err != nil {
		return nil, err
	}
	written := []string{path}

	for _, name := range r.groupNames() {
		refs, err := r.loadGroup(ctx, name)
		if err != nil {
			return nil, err
		}
		rsigs, _, err := r.Signatures(ctx, groupKey(name, r.cfg.ReferenceGroups[name]), refs)
		if err != nil {
			return nil, err
		}
		gp := groupSnapshot(path, name)
		if err := r.save(rsigs, gp); err != nil {
			return nil, err
		}
		written = append(written, gp)
	}
	for _, p := range written {
		fmt.Fprintf(r.w, "index snapshot: %s\n", p)
	}
	return written, nil
}

func (r *Runner) save(sigs []types.Signature, path string) error {
	idx, err := r.BuildIndex(sigs)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	return idx.Save(path)
}
