// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package minhash builds fixed-width MinHash signatures from text and
// estimates Jaccard similarity between them.
//
// Each shingle is hashed once with xxhash and then passed through num_perm
// universal hash functions h_i(x) = (a_i*x + b_i) mod (2^61 - 1), whose
// coefficients are drawn from a PCG stream seeded with the configured seed.
// Slot i of the signature keeps the minimum h_i over all shingles.
package minhash

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
	"math/rand/v2"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/pdiddy/corpus-clean/pkg/types"
)

// mersenne61 is the modulus of the permutation family.
const mersenne61 = (1 << 61) - 1

// EmptyValue fills every slot of the empty signature. Permuted values are
// always below mersenne61, so a real shingle can never produce it.
const EmptyValue = math.MaxUint64

// ErrIncompatible reports a comparison between signatures built with
// different widths or seeds.
var ErrIncompatible = errors.New("incompatible signatures")

// Tokenizer splits text into ordered tokens.
type Tokenizer interface {
	Segment(text string) []string
}

// Generator turns text into signatures. It is immutable after New and safe
// for concurrent use.
type Generator struct {
	tokenizer   Tokenizer
	seed        int64
	shingleSize int
	a, b        []uint64
}

// New returns a generator for cfg. The tokenizer must already be
// initialized (dictionary loaded).
func New(tokenizer Tokenizer, cfg types.MinHashConfig) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if tokenizer == nil {
		return nil, fmt.Errorf("minhash: tokenizer is required")
	}
	a, b := permutations(cfg.NumPerm, cfg.Seed)
	return &Generator{
		tokenizer:   tokenizer,
		seed:        cfg.Seed,
		shingleSize: cfg.ShingleSize,
		a:           a,
		b:           b,
	}, nil
}

// permutations derives the coefficients for numPerm hash functions.
func permutations(numPerm int, seed int64) (a, b []uint64) {
	rng := rand.New(rand.NewPCG(uint64(seed), 0x9e3779b97f4a7c15))
	a = make([]uint64, numPerm)
	b = make([]uint64, numPerm)
	for i := range numPerm {
		a[i] = 1 + rng.Uint64N(mersenne61-1)
		b[i] = rng.Uint64N(mersenne61)
	}
	return a, b
}

// NumPerm returns the signature width.
func (g *Generator) NumPerm() int { return len(g.a) }

// Seed returns the permutation seed.
func (g *Generator) Seed() int64 { return g.seed }

// Empty returns the sentinel signature for degenerate text.
func (g *Generator) Empty() []uint64 {
	return EmptySignature(g.NumPerm())
}

// EmptySignature returns numPerm slots all set to EmptyValue.
func EmptySignature(numPerm int) []uint64 {
	hv := make([]uint64, numPerm)
	for i := range hv {
		hv[i] = EmptyValue
	}
	return hv
}

// IsEmpty reports whether hashValues is the sentinel signature.
func IsEmpty(hashValues []uint64) bool {
	for _, v := range hashValues {
		if v != EmptyValue {
			return false
		}
	}
	return true
}

// Shingles returns the overlapping shingles of tokens: every window of size
// consecutive tokens concatenated, step 1. Fewer tokens than size yields none.
func Shingles(tokens []string, size int) []string {
	if size <= 0 || len(tokens) < size {
		return nil
	}
	out := make([]string, 0, len(tokens)-size+1)
	for i := 0; i+size <= len(tokens); i++ {
		out = append(out, strings.Join(tokens[i:i+size], ""))
	}
	return out
}

// HashValues computes the signature slots for text. Empty or
// whitespace-only text, and text with fewer tokens than the shingle size,
// yields the empty signature.
func (g *Generator) HashValues(text string) []uint64 {
	hv := g.Empty()
	if strings.TrimSpace(text) == "" {
		return hv
	}
	for _, sh := range Shingles(g.tokenizer.Segment(text), g.shingleSize) {
		x := xxhash.Sum64String(sh) % mersenne61
		for i := range hv {
			if v := permute(g.a[i], g.b[i], x); v < hv[i] {
				hv[i] = v
			}
		}
	}
	return hv
}

// Signature builds the signature of a document.
func (g *Generator) Signature(doc types.Document) types.Signature {
	return types.Signature{
		OwnerID:    doc.ID,
		Position:   doc.Position,
		Seed:       g.seed,
		HashValues: g.HashValues(doc.Text),
	}
}

// permute computes (a*x + b) mod 2^61-1 without overflow.
func permute(a, b, x uint64) uint64 {
	hi, lo := bits.Mul64(a, x)
	v := mod61(((hi << 3) | (lo >> 61)) + (lo & mersenne61))
	return mod61(v + b)
}

func mod61(v uint64) uint64 {
	v = (v & mersenne61) + (v >> 61)
	if v >= mersenne61 {
		v -= mersenne61
	}
	return v
}

// Jaccard estimates the Jaccard similarity of two signatures as the
// fraction of equal slots. It fails when the signatures are not comparable.
func Jaccard(x, y types.Signature) (float64, error) {
	if x.Seed != y.Seed {
		return 0, fmt.Errorf("%w: seed %d vs %d", ErrIncompatible, x.Seed, y.Seed)
	}
	return JaccardValues(x.HashValues, y.HashValues)
}

// JaccardValues is Jaccard over raw slot slices.
func JaccardValues(x, y []uint64) (float64, error) {
	if len(x) != len(y) {
		return 0, fmt.Errorf("%w: num_perm %d vs %d", ErrIncompatible, len(x), len(y))
	}
	if len(x) == 0 {
		return 0, fmt.Errorf("%w: zero-width signature", ErrIncompatible)
	}
	matches := 0
	for i := range x {
		if x[i] == y[i] {
			matches++
		}
	}
	return float64(matches) / float64(len(x)), nil
}
