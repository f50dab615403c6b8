// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dataset

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/corpus-clean/pkg/types"
)

var defaultFields = Fields{ID: "id", Text: "text", Source: "source"}

func TestRead(t *testing.T) {
	input := `{"id": 7, "text": "first", "source": "web", "url": "a"}

{"id": "x-2", "text": "second", "meta": {"lang": "th"}}
{"text": "no id"}
`
	docs, err := Read(strings.NewReader(input), defaultFields)
	require.NoError(t, err)
	require.Len(t, docs, 3)

	assert.Equal(t, "7", docs[0].ID)
	assert.Equal(t, "first", docs[0].Text)
	assert.Equal(t, "web", docs[0].Source)
	assert.Equal(t, 0, docs[0].Position)

	assert.Equal(t, "x-2", docs[1].ID)
	assert.Equal(t, "", docs[1].Source)

	assert.Equal(t, "2", docs[2].ID, "missing id falls back to position")
	assert.Equal(t, 2, docs[2].Position)
}

func TestReadNoTrailingNewline(t *testing.T) {
	docs, err := Read(strings.NewReader(`{"id":1,"text":"a"}`), defaultFields)
	require.NoError(t, err)
	require.Len(t, docs, 1)
}

func TestReadErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"invalid json", `{"id": 1, "text": `},
		{"not an object", `["a"]`},
		{"duplicate id", "{\"id\":1,\"text\":\"a\"}\n{\"id\":1,\"text\":\"b\"}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.input), defaultFields)
			require.Error(t, err)
		})
	}
}

func TestWritePreservesRawRows(t *testing.T) {
	input := "{\"id\": 1, \"text\": \"a\", \"extra\": [1, 2]}\n{\"id\": 2, \"text\": \"b\"}\n"
	docs, err := Read(strings.NewReader(input), defaultFields)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, docs))
	assert.Equal(t, input, buf.String())
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	docs, err := Read(strings.NewReader("{\"id\":1,\"text\":\"a\"}\n"), defaultFields)
	require.NoError(t, err)

	path := filepath.Join(dir, "out", "cleaned.jsonl")
	require.NoError(t, Save(path, docs))

	loaded, err := Load(path, defaultFields)
	require.NoError(t, err)
	assert.Equal(t, docs, loaded)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.jsonl"), defaultFields)
	require.Error(t, err)
}

func TestExtractor(t *testing.T) {
	tests := []struct {
		name string
		cfg  types.ExtractConfig
		row  string
		want string
	}{
		{
			"field", types.ExtractConfig{Kind: types.ExtractField, Fields: []string{"context"}},
			`{"context": "passage text"}`, "passage text",
		},
		{
			"nested field", types.ExtractConfig{Kind: types.ExtractField, Fields: []string{"translation.th"}},
			`{"translation": {"th": "สวัสดี", "en": "hello"}}`, "สวัสดี",
		},
		{
			"concat", types.ExtractConfig{Kind: types.ExtractConcat, Fields: []string{"translation.th", "translation.en"}},
			`{"translation": {"th": "สวัสดี", "en": "hello"}}`, "สวัสดี hello",
		},
		{
			"concat skips missing", types.ExtractConfig{Kind: types.ExtractConcat, Fields: []string{"premise", "nope", "hypothesis"}},
			`{"premise": "p", "hypothesis": "h"}`, "p h",
		},
		{
			"hellaswag", types.ExtractConfig{Kind: types.ExtractHellaswag, Fields: []string{"activity_label", "ctx_a", "ctx_b"}},
			`{"activity_label": "Cooking", "ctx_a": "Making soup [title] Chop the onions [step]", "ctx_b": "THEN fry them"}`,
			"Cooking: Making soup. Chop the onions Then fry them",
		},
		{
			"hellaswag null ctx_b", types.ExtractConfig{Kind: types.ExtractHellaswag, Fields: []string{"activity_label", "ctx_a", "ctx_b"}},
			`{"activity_label": "Running", "ctx_a": "A man jogs", "ctx_b": null}`,
			"Running: A man jogs",
		},
		{
			"choice label 1", types.ExtractConfig{Kind: types.ExtractChoice, Fields: []string{"premise", "choice1", "choice2", "label"}},
			`{"premise": "It rained.", "choice1": "We stayed in.", "choice2": "We swam.", "label": 1}`,
			"It rained. We stayed in.",
		},
		{
			"choice label 0", types.ExtractConfig{Kind: types.ExtractChoice, Fields: []string{"premise", "choice1", "choice2", "label"}},
			`{"premise": "It rained.", "choice1": "We stayed in.", "choice2": "We swam.", "label": 0}`,
			"It rained. We swam.",
		},
		{
			"tokens", types.ExtractConfig{Kind: types.ExtractTokens, Fields: []string{"tokens"}},
			`{"tokens": ["ผม", "_", "กิน", "ข้าว"]}`, "ผม กินข้าว",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex, err := NewExtractor(tt.cfg)
			require.NoError(t, err)
			got, err := ex.Text([]byte(tt.row))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewExtractorErrors(t *testing.T) {
	for _, cfg := range []types.ExtractConfig{
		{Kind: "mapper", Fields: []string{"x"}},
		{Kind: types.ExtractField},
		{Kind: types.ExtractConcat},
		{Kind: types.ExtractChoice, Fields: []string{"premise"}},
	} {
		_, err := NewExtractor(cfg)
		assert.Error(t, err, "kind %s", cfg.Kind)
	}
}

func TestExtractorMissingField(t *testing.T) {
	ex, err := NewExtractor(types.ExtractConfig{Kind: types.ExtractField, Fields: []string{"body"}})
	require.NoError(t, err)
	_, err = ex.Text([]byte(`{"title": "x"}`))
	require.Error(t, err)
}

func TestReadReferencesUniques(t *testing.T) {
	input := `{"uid": "a", "body": "same passage"}
{"uid": "b", "body": "other passage"}
{"uid": "c", "body": "same passage"}
{"uid": "d", "body": "  "}
`
	ex, err := NewExtractor(types.ExtractConfig{Kind: types.ExtractField, Fields: []string{"body"}})
	require.NoError(t, err)

	refs, err := ReadReferences(strings.NewReader(input), "thaisum", "uid", ex)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "a", refs[0].ID)
	assert.Equal(t, "b", refs[1].ID)
	assert.Equal(t, 1, refs[1].Position)
	assert.Equal(t, "thaisum", refs[1].Source)
}
