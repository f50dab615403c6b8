// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package removal filters datasets by a removal set and writes the audit
// trail of duplicate and contamination records.
package removal

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/corpus-clean/pkg/types"
)

// Apply returns the documents whose id is not in removed, in their original
// order. The input slice is not modified. Applying the same set twice is a
// no-op the second time.
func Apply(docs []types.Document, removed types.RemovalSet) []types.Document {
	out := make([]types.Document, 0, len(docs))
	for _, d := range docs {
		if !removed.Contains(d.ID) {
			out = append(out, d)
		}
	}
	return out
}

// ReportHeader lists the audit CSV columns.
var ReportHeader = []string{
	"source_id", "source_dataset", "source_text",
	"reference_id", "reference_text", "reference_dataset", "score",
}

// WriteCSV writes records as CSV with ReportHeader.
func WriteCSV(w io.Writer, records []types.DuplicateRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ReportHeader); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.SourceID, r.SourceDataset, r.SourceText,
			r.ReferenceID, r.ReferenceText, r.ReferenceDataset,
			strconv.FormatFloat(r.Score, 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a report written by WriteCSV.
func ReadCSV(r io.Reader) ([]types.DuplicateRecord, error) {
	cr := csv.NewReader(r)
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("reading report: missing header")
	}
	records := make([]types.DuplicateRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) != len(ReportHeader) {
			return nil, fmt.Errorf("report row %d: %d columns, want %d", i+1, len(row), len(ReportHeader))
		}
		score, err := strconv.ParseFloat(row[6], 64)
		if err != nil {
			return nil, fmt.Errorf("report row %d: score: %w", i+1, err)
		}
		records = append(records, types.DuplicateRecord{
			SourceID: row[0], SourceDataset: row[1], SourceText: row[2],
			ReferenceID: row[3], ReferenceText: row[4], ReferenceDataset: row[5],
			Score: score,
		})
	}
	return records, nil
}

// SaveCSV writes the report to path.
func SaveCSV(path string, records []types.DuplicateRecord) error {
	return writeFile(path, func(w io.Writer) error { return WriteCSV(w, records) })
}

// LoadCSV reads a report from path.
func LoadCSV(path string) ([]types.DuplicateRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening report %s: %w", path, err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// SaveSummary writes the run summary as YAML.
func SaveSummary(path string, summary types.RunSummary) error {
	data, err := yaml.Marshal(&summary)
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}
	return writeFile(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// writeFile writes through a temp file and renames it into place.
func writeFile(path string, fn func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".report-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	writeErr := fn(tmp)
	closeErr := tmp.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", path, writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
