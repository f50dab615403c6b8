// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"fmt"

	"github.com/pdiddy/corpus-clean/internal/removal"
	"github.com/pdiddy/corpus-clean/pkg/types"
)

// ApplyReport removes every source id listed in the audit report at
// reportPath from the configured dataset and writes the kept rows.
func (r *Runner) ApplyReport(reportPath string) (int, error) {
	records, err := removal.LoadCSV(reportPath)
	if err != nil {
		return 0, fmt.Errorf("reading report: %w", err)
	}
	docs, err := r.loadCorpus()
	if err != nil {
		return 0, err
	}
	kept := removal.Apply(docs, types.NewRemovalSet(records))
	if err := saveDataset(r.cfg.Dataset.OutputPath, kept); err != nil {
		return 0, err
	}
	removed := len(docs) - len(kept)
	fmt.Fprintf(r.w, "apply: %d documents, %d removed, %d kept\n", len(docs), removed, len(kept))
	return removed, nil
}
