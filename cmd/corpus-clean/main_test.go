package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/corpus-clean/pkg/types"
)

func TestPrintSummary(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	printSummary(&buf, types.RunSummary{
		RunID:      "run-1",
		Workflow:   types.WorkflowDecontaminate,
		NumPerm:    128,
		Seed:       1,
		Threshold:  0.8,
		Input:      11,
		Removed:    1,
		Kept:       10,
		PerGroup:   map[string]int{"mmlu": 1, "copa": 0},
		OutputPath: "output/cleaned.jsonl",
		ReportPath: "output/decontamination_run-1.csv",
	})
	out := buf.String()
	assert.Contains(t, out, "Run run-1")
	assert.Contains(t, out, "documents: 11 input, 1 removed, 10 kept")
	assert.Contains(t, out, "report:    output/decontamination_run-1.csv")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("copa:")), bytes.Index(buf.Bytes(), []byte("mmlu:")))
}

func TestLoadConfigMergesGroupsFile(t *testing.T) {
	groups := filepath.Join(t.TempDir(), "groups.yaml")
	require.NoError(t, os.WriteFile(groups, []byte(`
bench:
  path: bench.jsonl
  split: test
  extract:
    kind: field
    fields: [question]
`), 0o644))

	require.NoError(t, decontaminateCmd.ParseFlags([]string{"--groups", groups}))
	t.Cleanup(func() { decontaminateCmd.Flags().Set("groups", "") })

	cfg, err := loadConfig(decontaminateCmd)
	require.NoError(t, err)
	require.Contains(t, cfg.ReferenceGroups, "bench")
	assert.Equal(t, types.ExtractField, cfg.ReferenceGroups["bench"].Extract.Kind)
	assert.Equal(t, types.DefaultNumPerm, cfg.MinHash.NumPerm)
}

func TestLoadConfigFlagOverride(t *testing.T) {
	require.NoError(t, dedupCmd.ParseFlags([]string{"--threshold", "0.9", "--workers", "3"}))
	t.Cleanup(func() {
		dedupCmd.Flags().Set("threshold", "0.8")
		dedupCmd.Flags().Set("workers", "0")
	})

	cfg, err := loadConfig(dedupCmd)
	require.NoError(t, err)
	assert.Equal(t, 0.9, cfg.Index.Threshold)
	assert.Equal(t, 3, cfg.Run.NumWorkers)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	require.NoError(t, dedupCmd.ParseFlags([]string{"--num-perm", "0"}))
	t.Cleanup(func() { dedupCmd.Flags().Set("num-perm", "128") })

	_, err := loadConfig(dedupCmd)
	assert.Error(t, err)
}

// useConfigFile points viper at a config file for one test and restores
// the flag bindings afterwards.
func useConfigFile(t *testing.T, body string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corpus-clean.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	viper.SetConfigFile(path)
	require.NoError(t, viper.ReadInConfig())
	t.Cleanup(func() {
		viper.Reset()
		bindConfigFlags(rootCmd)
	})
}

func TestLoadConfigKeepsGroupKeyCase(t *testing.T) {
	useConfigFile(t, `
minhash:
  num_perm: 64
reference_groups:
  XQuAD_TH:
    path: xquad.jsonl
    split: validation
    extract:
      kind: field
      fields: [question]
  mmlu:
    path: mmlu.jsonl
    split: test
    extract:
      kind: choice
      fields: [question]
`)

	cfg, err := loadConfig(dedupCmd)
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.MinHash.NumPerm)
	require.Contains(t, cfg.ReferenceGroups, "XQuAD_TH")
	assert.NotContains(t, cfg.ReferenceGroups, "xquad_th")
	assert.Equal(t, "xquad.jsonl", cfg.ReferenceGroups["XQuAD_TH"].Path)
	assert.Equal(t, types.ExtractField, cfg.ReferenceGroups["XQuAD_TH"].Extract.Kind)
	assert.Contains(t, cfg.ReferenceGroups, "mmlu")
	assert.Len(t, cfg.ReferenceGroups, 2)
}

func TestLoadConfigGroupsFileOverridesConfigGroup(t *testing.T) {
	useConfigFile(t, `
reference_groups:
  HellaSwag:
    path: old.jsonl
    split: validation
    extract:
      kind: hellaswag
      fields: [ctx]
`)
	groups := filepath.Join(t.TempDir(), "groups.yaml")
	require.NoError(t, os.WriteFile(groups, []byte(`
HellaSwag:
  path: new.jsonl
  split: validation
  extract:
    kind: hellaswag
    fields: [ctx]
`), 0o644))
	require.NoError(t, decontaminateCmd.ParseFlags([]string{"--groups", groups}))
	t.Cleanup(func() { decontaminateCmd.Flags().Set("groups", "") })

	cfg, err := loadConfig(decontaminateCmd)
	require.NoError(t, err)
	require.Len(t, cfg.ReferenceGroups, 1)
	assert.Equal(t, "new.jsonl", cfg.ReferenceGroups["HellaSwag"].Path)
}
