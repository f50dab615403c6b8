// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package batch drives signature generation and candidate resolution over
// a whole dataset with a bounded worker pool.
//
// Work is split into fixed-size batches. Each batch is handled by one
// worker that only reads shared state (generator, index, population) and
// writes its own result slot, so no locking is needed until the merge.
// Results are merged in batch order, which makes the record sequence
// follow document position regardless of scheduling. Any worker error or
// panic cancels the remaining batches and fails the run; no batch is ever
// dropped silently.
package batch

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/corpus-clean/internal/logging"
	"github.com/pdiddy/corpus-clean/internal/lsh"
	"github.com/pdiddy/corpus-clean/internal/minhash"
	"github.com/pdiddy/corpus-clean/internal/resolve"
	"github.com/pdiddy/corpus-clean/pkg/types"
)

// Options controls batching and reporting.
type Options struct {
	// BatchSize is the number of documents per batch (default 1000).
	BatchSize int

	// NumWorkers bounds concurrent batches (default GOMAXPROCS).
	NumWorkers int

	// Progress receives one line per finished batch when set.
	Progress io.Writer

	Log *logging.Logger
}

func (o Options) normalized() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = types.DefaultBatchSize
	}
	if o.NumWorkers <= 0 {
		o.NumWorkers = runtime.GOMAXPROCS(0)
	}
	o.Log = logging.OrNop(o.Log)
	return o
}

// span is the half-open document range [lo, hi) of one batch.
type span struct{ lo, hi int }

func spans(n, size int) []span {
	out := make([]span, 0, (n+size-1)/size)
	for lo := 0; lo < n; lo += size {
		out = append(out, span{lo, min(lo+size, n)})
	}
	return out
}

// forEachBatch runs fn on every batch with at most opts.NumWorkers in
// flight. A panic inside fn becomes an error.
func forEachBatch(ctx context.Context, n int, opts Options, stage string, fn func(ctx context.Context, i int, s span) error) error {
	batches := spans(n, opts.BatchSize)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.NumWorkers)

	var (
		mu   sync.Mutex
		done int
	)
	for i, s := range batches {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%s batch %d [%d,%d): panic: %v", stage, i, s.lo, s.hi, r)
				}
			}()
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := fn(gctx, i, s); err != nil {
				return fmt.Errorf("%s batch %d [%d,%d): %w", stage, i, s.lo, s.hi, err)
			}

			mu.Lock()
			done++
			if opts.Progress != nil {
				fmt.Fprintf(opts.Progress, "%s: batch %d/%d done\n", stage, done, len(batches))
			}
			mu.Unlock()
			opts.Log.Debug("batch finished", "stage", stage, "batch", i, "from", s.lo, "to", s.hi)
			return nil
		})
	}
	return g.Wait()
}

// Signatures computes the signature of every document. The result is
// parallel to docs.
func Signatures(ctx context.Context, gen *minhash.Generator, docs []types.Document, opts Options) ([]types.Signature, error) {
	opts = opts.normalized()
	out := make([]types.Signature, len(docs))
	err := forEachBatch(ctx, len(docs), opts, "signatures", func(_ context.Context, _ int, s span) error {
		for j := s.lo; j < s.hi; j++ {
			out[j] = gen.Signature(docs[j])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Querier is the read side of an LSH index.
type Querier interface {
	Query(hashValues []uint64) ([]lsh.Key, error)
}

// Result is the merged outcome of a resolution run.
type Result struct {
	// Removed holds the source ids of every record.
	Removed types.RemovalSet

	// Records are ordered by source document position.
	Records []types.DuplicateRecord

	// Checked counts documents that were queried; Empty counts documents
	// skipped because their signature is the empty sentinel.
	Checked int
	Empty   int
}

type batchResult struct {
	records []types.DuplicateRecord
	checked int
	empty   int
}

// Run queries index for every document and resolves its candidates
// against pop. sigs must be parallel to docs.
func Run(ctx context.Context, docs []types.Document, sigs []types.Signature, index Querier, pop resolve.Population, resolver *resolve.Resolver, opts Options) (Result, error) {
	if len(docs) != len(sigs) {
		return Result{}, fmt.Errorf("run: %d documents but %d signatures", len(docs), len(sigs))
	}
	opts = opts.normalized()
	results := make([]batchResult, len(spans(len(docs), opts.BatchSize)))

	err := forEachBatch(ctx, len(docs), opts, "resolve", func(ctx context.Context, i int, s span) error {
		var br batchResult
		for j := s.lo; j < s.hi; j++ {
			if j%256 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			if minhash.IsEmpty(sigs[j].HashValues) {
				br.empty++
				continue
			}
			candidates, err := index.Query(sigs[j].HashValues)
			if err != nil {
				return fmt.Errorf("querying %s: %w", docs[j].ID, err)
			}
			br.checked++
			if len(candidates) == 0 {
				continue
			}
			rec, err := resolver.Resolve(docs[j], sigs[j], candidates, pop)
			if err != nil {
				return err
			}
			if rec != nil {
				br.records = append(br.records, *rec)
			}
		}
		results[i] = br
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	res := Result{Removed: make(types.RemovalSet)}
	for _, br := range results {
		res.Records = append(res.Records, br.records...)
		res.Checked += br.checked
		res.Empty += br.empty
	}
	for _, r := range res.Records {
		res.Removed.Add(r.SourceID)
	}
	opts.Log.Info("resolution finished", "documents", len(docs), "checked", res.Checked,
		"empty", res.Empty, "flagged", len(res.Records))
	return res, nil
}
