// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package removal

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/corpus-clean/pkg/types"
)

func docs(ids ...string) []types.Document {
	out := make([]types.Document, len(ids))
	for i, id := range ids {
		out[i] = types.Document{ID: id, Position: i, Text: "text " + id, Raw: []byte(`{"id":"` + id + `"}`)}
	}
	return out
}

func TestApply(t *testing.T) {
	tests := []struct {
		name    string
		removed []string
		want    []string
	}{
		{"nothing removed", nil, []string{"a", "b", "c", "d"}},
		{"middle removed", []string{"b", "c"}, []string{"a", "d"}},
		{"unknown ids ignored", []string{"zzz"}, []string{"a", "b", "c", "d"}},
		{"all removed", []string{"a", "b", "c", "d"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := make(types.RemovalSet)
			for _, id := range tt.removed {
				set.Add(id)
			}
			input := docs("a", "b", "c", "d")
			got := Apply(input, set)

			ids := make([]string, len(got))
			for i, d := range got {
				ids[i] = d.ID
			}
			assert.Equal(t, tt.want, ids)
			assert.Len(t, input, 4, "input untouched")
		})
	}
}

func TestApplyPreservesFields(t *testing.T) {
	input := docs("a", "b")
	got := Apply(input, types.RemovalSet{"a": {}})
	require.Len(t, got, 1)
	assert.Equal(t, input[1], got[0])
}

func TestApplyIdempotent(t *testing.T) {
	set := types.NewRemovalSet([]types.DuplicateRecord{{SourceID: "b"}, {SourceID: "d"}})
	once := Apply(docs("a", "b", "c", "d", "e"), set)
	twice := Apply(once, set)
	assert.Equal(t, once, twice)
}

func TestCSVRoundTrip(t *testing.T) {
	records := []types.DuplicateRecord{
		{SourceID: "12", SourceDataset: "web", SourceText: "line one\nwith, comma", ReferenceID: "3",
			ReferenceText: `quoted "text"`, ReferenceDataset: "xquad", Score: 0.9453125},
		{SourceID: "40", ReferenceID: "7", ReferenceDataset: "thaisum", Score: 1},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, records))
	assert.True(t, strings.HasPrefix(buf.String(), strings.Join(ReportHeader, ",")+"\n"))

	got, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, records, got)
}

func TestReadCSVErrors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	require.Error(t, err)

	_, err = ReadCSV(strings.NewReader(strings.Join(ReportHeader, ",") + "\na,b,c,d,e,f,notanumber\n"))
	require.Error(t, err)
}

func TestSaveCSVAndSummary(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "reports", "duplicates.csv")
	require.NoError(t, SaveCSV(csvPath, []types.DuplicateRecord{{SourceID: "1", ReferenceID: "0", Score: 1}}))
	got, err := LoadCSV(csvPath)
	require.NoError(t, err)
	require.Len(t, got, 1)

	summary := types.RunSummary{RunID: "r1", Workflow: types.WorkflowDedup, Input: 11, Removed: 2, Kept: 9}
	sumPath := filepath.Join(dir, "reports", "summary.yaml")
	require.NoError(t, SaveSummary(sumPath, summary))

	data, err := os.ReadFile(sumPath)
	require.NoError(t, err)
	var loaded types.RunSummary
	require.NoError(t, yaml.Unmarshal(data, &loaded))
	assert.Equal(t, summary, loaded)
}
