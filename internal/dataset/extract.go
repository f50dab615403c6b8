// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dataset

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"github.com/pdiddy/corpus-clean/pkg/types"
)

// Extractor produces comparison text from a raw reference row. The set of
// strategies is closed; see types.ExtractKind.
type Extractor struct {
	kind   types.ExtractKind
	fields []string
}

// NewExtractor validates cfg against its strategy's field arity.
//
//	field     [path]
//	concat    [path, path, ...]
//	hellaswag [activity_label, ctx_a, ctx_b]
//	choice    [premise, choice1, choice2, label]
//	tokens    [tokens_array]
func NewExtractor(cfg types.ExtractConfig) (Extractor, error) {
	want := map[types.ExtractKind]int{
		types.ExtractField:     1,
		types.ExtractHellaswag: 3,
		types.ExtractChoice:    4,
		types.ExtractTokens:    1,
	}
	switch cfg.Kind {
	case types.ExtractConcat:
		if len(cfg.Fields) == 0 {
			return Extractor{}, fmt.Errorf("extract %s: needs at least one field", cfg.Kind)
		}
	case types.ExtractField, types.ExtractHellaswag, types.ExtractChoice, types.ExtractTokens:
		if len(cfg.Fields) != want[cfg.Kind] {
			return Extractor{}, fmt.Errorf("extract %s: needs %d field(s), got %d", cfg.Kind, want[cfg.Kind], len(cfg.Fields))
		}
	default:
		return Extractor{}, fmt.Errorf("unknown extract kind %q", cfg.Kind)
	}
	return Extractor{kind: cfg.Kind, fields: cfg.Fields}, nil
}

// Text returns the comparison text of raw.
func (e Extractor) Text(raw []byte) (string, error) {
	row := gjson.ParseBytes(raw)
	get := func(i int) gjson.Result { return row.Get(e.fields[i]) }

	switch e.kind {
	case types.ExtractField:
		v := get(0)
		if !v.Exists() {
			return "", fmt.Errorf("field %s missing", e.fields[0])
		}
		return v.String(), nil

	case types.ExtractConcat:
		var parts []string
		for i := range e.fields {
			if v := get(i); v.Exists() && v.String() != "" {
				parts = append(parts, v.String())
			}
		}
		return strings.Join(parts, " "), nil

	case types.ExtractHellaswag:
		ctx := get(1).String()
		if b := get(2); b.Exists() && b.Type != gjson.Null {
			ctx += " " + capitalize(b.String())
		}
		return cleanHellaswag(get(0).String() + ": " + ctx), nil

	case types.ExtractChoice:
		answer := get(2).String()
		if get(3).Int() == 1 {
			answer = get(1).String()
		}
		return get(0).String() + " " + answer, nil

	case types.ExtractTokens:
		var b strings.Builder
		for _, tok := range get(0).Array() {
			b.WriteString(tok.String())
		}
		return strings.ReplaceAll(b.String(), "_", " "), nil
	}
	return "", fmt.Errorf("unknown extract kind %q", e.kind)
}

var bracketTag = regexp.MustCompile(`\[.*?\]`)

func cleanHellaswag(text string) string {
	text = strings.TrimSpace(text)
	text = strings.ReplaceAll(text, " [title]", ". ")
	text = bracketTag.ReplaceAllString(text, "")
	return strings.ReplaceAll(text, "  ", " ")
}

// capitalize upper-cases the first rune and lower-cases the rest.
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}

// LoadReferences reads a reference JSONL file and extracts comparison text
// for every row. Empty texts are dropped and repeated texts keep only their
// first occurrence. Positions are renumbered from zero; ids come from
// idField when set, otherwise from the row's line ordinal.
func LoadReferences(path, group, idField string, ex Extractor) ([]types.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening reference dataset %s: %w", path, err)
	}
	defer f.Close()
	return ReadReferences(f, group, idField, ex)
}

// ReadReferences is LoadReferences over a reader.
func ReadReferences(r io.Reader, group, idField string, ex Extractor) ([]types.Document, error) {
	rows, err := Read(r, Fields{ID: idField})
	if err != nil {
		return nil, fmt.Errorf("reading reference group %s: %w", group, err)
	}

	seen := make(map[string]struct{}, len(rows))
	out := make([]types.Document, 0, len(rows))
	for _, row := range rows {
		text, err := ex.Text(row.Raw)
		if err != nil {
			return nil, fmt.Errorf("reference group %s row %s: %w", group, row.ID, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		if _, dup := seen[text]; dup {
			continue
		}
		seen[text] = struct{}{}
		out = append(out, types.Document{
			ID:       row.ID,
			Position: len(out),
			Text:     text,
			Source:   group,
			Raw:      row.Raw,
		})
	}
	return out, nil
}
