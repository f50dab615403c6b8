// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package lsh buckets MinHash signatures by band so that similar
// signatures can be retrieved without comparing every pair.
//
// Construction and querying are separate phases. A Builder is the single
// writer: callers insert every signature, then Finalize it into an Index.
// An Index is immutable and safe for any number of concurrent readers.
package lsh

import (
	"encoding/binary"
	"errors"
	"fmt"
	"slices"

	"github.com/cespare/xxhash/v2"

	"github.com/pdiddy/corpus-clean/internal/minhash"
	"github.com/pdiddy/corpus-clean/pkg/types"
)

// Key identifies an indexed signature: its position in the reference
// population.
type Key = uint32

// ErrFinalized is returned when inserting into a finalized builder.
var ErrFinalized = errors.New("lsh: builder already finalized")

// Meta describes the signatures an index accepts.
type Meta struct {
	Params    Params  `json:"params" yaml:"params"`
	NumPerm   int     `json:"num_perm" yaml:"num_perm"`
	Seed      int64   `json:"seed" yaml:"seed"`
	Threshold float64 `json:"threshold" yaml:"threshold"`
}

func (m Meta) check(hashValues []uint64) error {
	if len(hashValues) != m.NumPerm {
		return fmt.Errorf("%w: index num_perm %d, signature %d", minhash.ErrIncompatible, m.NumPerm, len(hashValues))
	}
	return nil
}

type bands []map[uint64][]Key

// Builder accumulates signatures for one index. It is not safe for
// concurrent use.
type Builder struct {
	meta      Meta
	buckets   bands
	size      int
	skipped   int
	digest    *xxhash.Digest
	finalized bool
}

// NewBuilder starts an insertion session for signatures of width numPerm
// built with seed, tuned for threshold.
func NewBuilder(threshold float64, numPerm int, seed int64) (*Builder, error) {
	params, err := OptimalParams(threshold, numPerm)
	if err != nil {
		return nil, err
	}
	meta := Meta{Params: params, NumPerm: numPerm, Seed: seed, Threshold: threshold}
	return newBuilder(meta), nil
}

func newBuilder(meta Meta) *Builder {
	buckets := make(bands, meta.Params.Bands)
	for i := range buckets {
		buckets[i] = make(map[uint64][]Key)
	}
	return &Builder{meta: meta, buckets: buckets, digest: xxhash.New()}
}

// Meta returns the index parameters.
func (b *Builder) Meta() Meta { return b.meta }

// Insert adds key to the bucket of each band of hashValues. The empty
// signature is skipped so degenerate documents never become candidates.
// Keys must be inserted in ascending order for queries to stay sorted
// without extra work; out-of-order keys are still handled.
func (b *Builder) Insert(key Key, hashValues []uint64) error {
	if b.finalized {
		return ErrFinalized
	}
	if err := b.meta.check(hashValues); err != nil {
		return err
	}
	writeEntry(b.digest, key, hashValues)
	if minhash.IsEmpty(hashValues) {
		b.skipped++
		return nil
	}
	for i, bucket := range b.buckets {
		h := bandHash(hashValues, i, b.meta.Params.Rows)
		bucket[h] = append(bucket[h], key)
	}
	b.size++
	return nil
}

// Add inserts a signature under its position after checking its seed.
func (b *Builder) Add(sig types.Signature) error {
	if sig.Seed != b.meta.Seed {
		return fmt.Errorf("%w: index seed %d, signature %d", minhash.ErrIncompatible, b.meta.Seed, sig.Seed)
	}
	return b.Insert(Key(sig.Position), sig.HashValues)
}

// Finalize closes the session and returns the queryable index.
func (b *Builder) Finalize() *Index {
	b.finalized = true
	for _, bucket := range b.buckets {
		for h, keys := range bucket {
			if !slices.IsSorted(keys) {
				slices.Sort(keys)
			}
			bucket[h] = slices.Compact(keys)
		}
	}
	return &Index{meta: b.meta, buckets: b.buckets, size: b.size, skipped: b.skipped, fingerprint: b.digest.Sum64()}
}

// Index is a read-only banded LSH index.
type Index struct {
	meta        Meta
	buckets     bands
	size        int
	skipped     int
	fingerprint uint64
}

// Meta returns the index parameters.
func (idx *Index) Meta() Meta { return idx.meta }

// Len returns the number of indexed (non-empty) signatures.
func (idx *Index) Len() int { return idx.size }

// Skipped returns how many empty signatures were left out.
func (idx *Index) Skipped() int { return idx.skipped }

// Fingerprint identifies the inserted keys and signatures in insertion
// order. It equals Fingerprint(sigs) for an index built by inserting each
// sigs[i] under key i.
func (idx *Index) Fingerprint() uint64 { return idx.fingerprint }

// Fingerprint digests sigs as if each sigs[i] were inserted under key i.
func Fingerprint(sigs []types.Signature) uint64 {
	d := xxhash.New()
	for i, sig := range sigs {
		writeEntry(d, Key(i), sig.HashValues)
	}
	return d.Sum64()
}

func writeEntry(d *xxhash.Digest, key Key, hashValues []uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint32(buf[:4], key)
	d.Write(buf[:4])
	for _, v := range hashValues {
		binary.LittleEndian.PutUint64(buf[:], v)
		d.Write(buf[:])
	}
}

// Query returns, in ascending order and without repeats, every key that
// shares at least one band with hashValues. The empty signature matches
// nothing.
func (idx *Index) Query(hashValues []uint64) ([]Key, error) {
	if err := idx.meta.check(hashValues); err != nil {
		return nil, err
	}
	if idx.size == 0 || minhash.IsEmpty(hashValues) {
		return nil, nil
	}
	var out []Key
	for i, bucket := range idx.buckets {
		out = append(out, bucket[bandHash(hashValues, i, idx.meta.Params.Rows)]...)
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

// bandHash hashes the rows of band i.
func bandHash(hashValues []uint64, i, rows int) uint64 {
	var buf [8]byte
	d := xxhash.New()
	for _, v := range hashValues[i*rows : (i+1)*rows] {
		binary.LittleEndian.PutUint64(buf[:], v)
		d.Write(buf[:])
	}
	return d.Sum64()
}
