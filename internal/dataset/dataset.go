// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package dataset reads and writes JSONL corpora. Each non-blank line is one
// JSON object; id, text and source are located with gjson paths and the
// original line is kept so that writes reproduce every other field as-is.
package dataset

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/pdiddy/corpus-clean/pkg/types"
)

// Fields names the gjson paths of the columns the core needs.
type Fields struct {
	ID     string
	Text   string
	Source string
}

// FieldsFrom returns the paths configured in cfg.
func FieldsFrom(cfg types.DatasetConfig) Fields {
	return Fields{ID: cfg.IDField, Text: cfg.TextField, Source: cfg.SourceField}
}

// Read parses JSONL from r. A row without an id uses its zero-based
// position. Duplicate ids are rejected.
func Read(r io.Reader, f Fields) ([]types.Document, error) {
	br := bufio.NewReader(r)
	var docs []types.Document
	seen := make(map[string]int)

	for lineNo := 1; ; lineNo++ {
		line, err := br.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("reading line %d: %w", lineNo, err)
		}
		trimmed := bytes.TrimSpace(line)
		if len(trimmed) > 0 {
			doc, parseErr := parseRow(trimmed, len(docs), f)
			if parseErr != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, parseErr)
			}
			if prev, dup := seen[doc.ID]; dup {
				return nil, fmt.Errorf("line %d: duplicate id %q (first at position %d)", lineNo, doc.ID, prev)
			}
			seen[doc.ID] = doc.Position
			docs = append(docs, doc)
		}
		if errors.Is(err, io.EOF) {
			break
		}
	}
	return docs, nil
}

func parseRow(raw []byte, position int, f Fields) (types.Document, error) {
	if !gjson.ValidBytes(raw) {
		return types.Document{}, fmt.Errorf("invalid JSON")
	}
	row := gjson.ParseBytes(raw)
	if !row.IsObject() {
		return types.Document{}, fmt.Errorf("row is not a JSON object")
	}

	id := strconv.Itoa(position)
	if f.ID != "" {
		if v := row.Get(f.ID); v.Exists() && v.Type != gjson.Null {
			id = v.String()
		}
	}
	doc := types.Document{
		ID:       id,
		Position: position,
		Text:     row.Get(f.Text).String(),
		Raw:      append([]byte(nil), raw...),
	}
	if f.Source != "" {
		doc.Source = row.Get(f.Source).String()
	}
	return doc, nil
}

// Load reads a JSONL file.
func Load(path string, f Fields) ([]types.Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dataset %s: %w", path, err)
	}
	defer file.Close()

	docs, err := Read(file, f)
	if err != nil {
		return nil, fmt.Errorf("reading dataset %s: %w", path, err)
	}
	return docs, nil
}

// Write emits the raw row of each document, one per line.
func Write(w io.Writer, docs []types.Document) error {
	bw := bufio.NewWriter(w)
	for _, d := range docs {
		if _, err := bw.Write(d.Raw); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Save writes docs to path through a temporary file and rename, so a
// failed write never leaves a truncated dataset behind.
func Save(path string, docs []types.Document) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".dataset-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	writeErr := Write(tmp, docs)
	closeErr := tmp.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing dataset: %w", writeErr)
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
