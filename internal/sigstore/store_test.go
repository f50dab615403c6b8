// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sigstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/corpus-clean/internal/minhash"
	"github.com/pdiddy/corpus-clean/pkg/types"
)

var testCfg = types.MinHashConfig{NumPerm: 4, Seed: 1, ShingleSize: 5}

func testSetup(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "signatures", "signatures.db")
	store, err := Open(path, testCfg, "dict:test")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, path
}

func sampleDocs(n int) ([]types.Document, []types.Signature) {
	docs := make([]types.Document, n)
	sigs := make([]types.Signature, n)
	for i := range n {
		docs[i] = types.Document{ID: fmt.Sprintf("doc-%d", i), Position: i, Text: fmt.Sprintf("text %d", i)}
		sigs[i] = types.Signature{OwnerID: docs[i].ID, Position: i, Seed: 1, HashValues: []uint64{uint64(i), 2, 3, 4}}
	}
	return docs, sigs
}

func TestOpenCreatesDBFile(t *testing.T) {
	_, path := testSetup(t)
	_, err := os.Stat(path)
	require.NoError(t, err)
}

func TestPutLoadRoundTrip(t *testing.T) {
	store, _ := testSetup(t)
	ctx := context.Background()
	docs, sigs := sampleDocs(3)
	sigs[2].HashValues = minhash.EmptySignature(4)

	require.NoError(t, store.Put(ctx, "train", docs, sigs))

	entries, err := store.Load(ctx, "train")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i, e := range entries {
		assert.Equal(t, sigs[i], e.Signature)
		assert.Equal(t, Digest(docs[i]), e.Digest)
	}

	n, err := store.Count(ctx, "train")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	other, err := store.Load(ctx, "xquad")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestPutUpserts(t *testing.T) {
	store, _ := testSetup(t)
	ctx := context.Background()
	docs, sigs := sampleDocs(2)
	require.NoError(t, store.Put(ctx, "train", docs, sigs))

	docs[1].Text = "changed"
	sigs[1].HashValues = []uint64{9, 9, 9, 9}
	require.NoError(t, store.Put(ctx, "train", docs[1:], sigs[1:]))

	entries, err := store.Load(ctx, "train")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, Digest(docs[1]), entries[1].Digest)
	assert.Equal(t, []uint64{9, 9, 9, 9}, entries[1].Signature.HashValues)
}

func TestTruncate(t *testing.T) {
	store, _ := testSetup(t)
	ctx := context.Background()
	docs, sigs := sampleDocs(5)
	require.NoError(t, store.Put(ctx, "train", docs, sigs))

	require.NoError(t, store.Truncate(ctx, "train", 2))
	n, err := store.Count(ctx, "train")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestPutRejectsMismatchedSignature(t *testing.T) {
	store, _ := testSetup(t)
	docs, sigs := sampleDocs(1)

	sigs[0].Seed = 2
	require.ErrorIs(t, store.Put(context.Background(), "train", docs, sigs), ErrConfigMismatch)

	sigs[0].Seed = 1
	sigs[0].HashValues = []uint64{1, 2}
	require.ErrorIs(t, store.Put(context.Background(), "train", docs, sigs), ErrConfigMismatch)

	require.Error(t, store.Put(context.Background(), "train", docs, nil))
}

func TestReopenWithDifferentConfig(t *testing.T) {
	store, path := testSetup(t)
	require.NoError(t, store.Close())

	tests := []struct {
		name      string
		cfg       types.MinHashConfig
		tokenizer string
		wantErr   bool
	}{
		{"same config", testCfg, "dict:test", false},
		{"different num_perm", types.MinHashConfig{NumPerm: 8, Seed: 1, ShingleSize: 5}, "dict:test", true},
		{"different seed", types.MinHashConfig{NumPerm: 4, Seed: 2, ShingleSize: 5}, "dict:test", true},
		{"different shingle size", types.MinHashConfig{NumPerm: 4, Seed: 1, ShingleSize: 3}, "dict:test", true},
		{"different dictionary", testCfg, "dict:other", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(path, tt.cfg, tt.tokenizer)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrConfigMismatch)
				return
			}
			require.NoError(t, err)
			s.Close()
		})
	}
}

func TestDigestChangesWithText(t *testing.T) {
	a := types.Document{ID: "1", Text: "hello"}
	b := types.Document{ID: "1", Text: "hello!"}
	c := types.Document{ID: "2", Text: "hello"}
	assert.Equal(t, Digest(a), Digest(a))
	assert.NotEqual(t, Digest(a), Digest(b))
	assert.NotEqual(t, Digest(a), Digest(c))
}
