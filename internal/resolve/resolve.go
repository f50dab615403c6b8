// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package resolve verifies LSH candidates and decides whether a document
// is a near-duplicate of a reference document.
//
// Candidates are examined in ascending key order and the first whose
// MinHash Jaccard estimate is strictly greater than the threshold wins; the
// remaining candidates are not checked. In self-deduplication a document is
// only compared with references at a lower position, so the first copy of
// a repeated text survives and the later copies are removed.
package resolve

import (
	"errors"
	"fmt"
	"slices"

	"github.com/pdiddy/corpus-clean/internal/logging"
	"github.com/pdiddy/corpus-clean/internal/lsh"
	"github.com/pdiddy/corpus-clean/internal/minhash"
	"github.com/pdiddy/corpus-clean/pkg/types"
)

// ErrMissingSignature marks a candidate key with no stored signature.
var ErrMissingSignature = errors.New("resolve: missing reference signature")

// Reference is one member of a reference population.
type Reference struct {
	ID        string
	Text      string
	Dataset   string
	Signature types.Signature
}

// Population gives keyed access to the references an index was built from.
// Implementations must be safe for concurrent reads.
type Population interface {
	Reference(key lsh.Key) (Reference, error)
}

// Slice is a Population whose keys are slice positions.
type Slice []Reference

// Reference returns the member at key.
func (s Slice) Reference(key lsh.Key) (Reference, error) {
	if int(key) >= len(s) || s[key].Signature.HashValues == nil {
		return Reference{}, fmt.Errorf("%w: key %d", ErrMissingSignature, key)
	}
	return s[key], nil
}

// Resolver applies the threshold and tie-break policy. The zero value is
// not useful; set Threshold.
type Resolver struct {
	// Threshold is the similarity a candidate must strictly exceed.
	Threshold float64

	// SelfDedup excludes the document itself and every reference at or
	// after its position.
	SelfDedup bool

	Log *logging.Logger
}

// Resolve checks candidates for doc, whose signature is sig, against pop.
// It returns nil when no candidate exceeds the threshold. Missing reference
// signatures are logged and skipped; incompatible signatures are an error.
func (r *Resolver) Resolve(doc types.Document, sig types.Signature, candidates []lsh.Key, pop Population) (*types.DuplicateRecord, error) {
	if minhash.IsEmpty(sig.HashValues) {
		return nil, nil
	}
	if !slices.IsSorted(candidates) {
		candidates = slices.Sorted(slices.Values(candidates))
	}
	log := logging.OrNop(r.Log)

	for _, key := range candidates {
		if r.SelfDedup && int(key) >= sig.Position {
			continue
		}
		ref, err := pop.Reference(key)
		if err != nil {
			if errors.Is(err, ErrMissingSignature) {
				log.Warn("skipping candidate without signature", "doc", doc.ID, "candidate", key)
				continue
			}
			return nil, fmt.Errorf("loading candidate %d for %s: %w", key, doc.ID, err)
		}
		if r.SelfDedup && ref.ID == doc.ID {
			continue
		}
		if minhash.IsEmpty(ref.Signature.HashValues) {
			continue
		}
		score, err := minhash.Jaccard(sig, ref.Signature)
		if err != nil {
			return nil, fmt.Errorf("comparing %s with %s: %w", doc.ID, ref.ID, err)
		}
		if score > r.Threshold {
			return &types.DuplicateRecord{
				SourceID:         doc.ID,
				SourceDataset:    doc.Source,
				SourceText:       doc.Text,
				ReferenceID:      ref.ID,
				ReferenceText:    ref.Text,
				ReferenceDataset: ref.Dataset,
				Score:            score,
			}, nil
		}
	}
	return nil, nil
}
