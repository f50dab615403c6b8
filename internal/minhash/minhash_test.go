// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package minhash

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/corpus-clean/internal/segment"
	"github.com/pdiddy/corpus-clean/pkg/types"
)

const longText = `Large language models are trained on web scale corpora that contain
a surprising amount of repeated material such as boilerplate navigation menus,
mirrored news articles, license texts and scraped forum threads, and removing
these near duplicates improves both training efficiency and the reliability of
downstream evaluation because memorised benchmark passages inflate scores`

func testGenerator(t *testing.T) *Generator {
	t.Helper()
	g, err := New(segment.New(nil), types.MinHashConfig{NumPerm: 128, Seed: 1, ShingleSize: 5})
	require.NoError(t, err)
	return g
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(segment.New(nil), types.MinHashConfig{NumPerm: 0, ShingleSize: 5})
	require.Error(t, err)
	_, err = New(segment.New(nil), types.MinHashConfig{NumPerm: 8, ShingleSize: 0})
	require.Error(t, err)
	_, err = New(nil, types.MinHashConfig{NumPerm: 8, ShingleSize: 5})
	require.Error(t, err)
}

func TestShingles(t *testing.T) {
	tests := []struct {
		name   string
		tokens []string
		size   int
		want   []string
	}{
		{"too few", []string{"a", "b"}, 3, nil},
		{"exact", []string{"a", "b", "c"}, 3, []string{"abc"}},
		{"sliding", []string{"a", "b", "c", "d"}, 2, []string{"ab", "bc", "cd"}},
		{"zero size", []string{"a"}, 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Shingles(tt.tokens, tt.size))
		})
	}
}

func TestHashValuesDeterministic(t *testing.T) {
	g1 := testGenerator(t)
	g2 := testGenerator(t)
	assert.Equal(t, g1.HashValues(longText), g1.HashValues(longText))
	assert.Equal(t, g1.HashValues(longText), g2.HashValues(longText))
}

func TestHashValuesSeedMatters(t *testing.T) {
	g1 := testGenerator(t)
	g2, err := New(segment.New(nil), types.MinHashConfig{NumPerm: 128, Seed: 2, ShingleSize: 5})
	require.NoError(t, err)
	assert.NotEqual(t, g1.HashValues(longText), g2.HashValues(longText))
}

func TestHashValuesBelowModulus(t *testing.T) {
	for _, v := range testGenerator(t).HashValues(longText) {
		assert.Less(t, v, uint64(mersenne61))
	}
}

func TestDegenerateTextIsEmpty(t *testing.T) {
	g := testGenerator(t)
	for _, text := range []string{"", "   \n\t", "only four short words"} {
		hv := g.HashValues(text)
		assert.True(t, IsEmpty(hv), "text %q", text)
		assert.Len(t, hv, 128)
	}
	assert.False(t, IsEmpty(g.HashValues(longText)))
}

func TestSelfSimilarity(t *testing.T) {
	g := testGenerator(t)
	doc := types.Document{ID: "a", Text: longText}
	s := g.Signature(doc)
	score, err := Jaccard(s, g.Signature(doc))
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)
}

func TestNearDuplicateScoresHigh(t *testing.T) {
	g := testGenerator(t)
	edited := strings.Replace(longText, "surprising", "surprisingx", 1)
	score, err := JaccardValues(g.HashValues(longText), g.HashValues(edited))
	require.NoError(t, err)
	assert.Greater(t, score, 0.7)
	assert.Less(t, score, 1.0)
}

func TestUnrelatedScoresLow(t *testing.T) {
	g := testGenerator(t)
	other := `The recipe calls for two cups of flour, a pinch of salt, three eggs
beaten with warm milk, and a generous spoonful of honey folded in slowly before
the batter rests overnight in a cool pantry away from sunlight`
	score, err := JaccardValues(g.HashValues(longText), g.HashValues(other))
	require.NoError(t, err)
	assert.Less(t, score, 0.1)
}

func TestJaccardIncompatible(t *testing.T) {
	a := types.Signature{Seed: 1, HashValues: []uint64{1, 2}}
	b := types.Signature{Seed: 2, HashValues: []uint64{1, 2}}
	_, err := Jaccard(a, b)
	require.ErrorIs(t, err, ErrIncompatible)

	c := types.Signature{Seed: 1, HashValues: []uint64{1, 2, 3}}
	_, err = Jaccard(a, c)
	require.ErrorIs(t, err, ErrIncompatible)

	_, err = JaccardValues(nil, nil)
	require.ErrorIs(t, err, ErrIncompatible)
}

func TestJaccardBounded(t *testing.T) {
	score, err := JaccardValues([]uint64{1, 2, 3, 4}, []uint64{1, 9, 3, 9})
	require.NoError(t, err)
	assert.Equal(t, 0.5, score)
}

func TestPermuteMatchesBigInt(t *testing.T) {
	p := new(big.Int).SetUint64(mersenne61)
	cases := [][3]uint64{
		{1, 0, 0},
		{mersenne61 - 1, mersenne61 - 1, mersenne61 - 1},
		{123456789, 987654321, 1 << 60},
		{0x1fffffffffff, 42, 0x0abcdef012345},
	}
	for _, c := range cases {
		want := new(big.Int).SetUint64(c[0])
		want.Mul(want, new(big.Int).SetUint64(c[2]))
		want.Add(want, new(big.Int).SetUint64(c[1]))
		want.Mod(want, p)
		assert.Equal(t, want.Uint64(), permute(c[0], c[1], c[2]), "case %v", c)
	}
}
