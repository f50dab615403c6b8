// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"fmt"
	"os"
	"sort"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/corpus-clean/internal/dataset"
	"github.com/pdiddy/corpus-clean/internal/fetch"
	"github.com/pdiddy/corpus-clean/pkg/types"
)

// corpusKey names the training dataset in the signature store.
func corpusKey(path string) string {
	return "corpus:" + path
}

// groupKey names a reference group in the signature store.
func groupKey(name string, g types.ReferenceGroup) string {
	return "ref:" + name + ":" + g.Split
}

func (r *Runner) loadCorpus() ([]types.Document, error) {
	if r.cfg.Dataset.Path == "" {
		return nil, fmt.Errorf("dataset path is not set")
	}
	docs, err := dataset.Load(r.cfg.Dataset.Path, dataset.FieldsFrom(r.cfg.Dataset))
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(r.w, "loaded %d documents from %s\n", len(docs), r.cfg.Dataset.Path)
	return docs, nil
}

func saveDataset(path string, docs []types.Document) error {
	if err := dataset.Save(path, docs); err != nil {
		return fmt.Errorf("writing output dataset: %w", err)
	}
	return nil
}

// groupNames returns the reference group keys in a fixed order.
func (r *Runner) groupNames() []string {
	names := make([]string, 0, len(r.cfg.ReferenceGroups))
	for name := range r.cfg.ReferenceGroups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// loadGroup fetches (when remote) and extracts one reference group.
func (r *Runner) loadGroup(ctx context.Context, name string) ([]types.Document, error) {
	g := r.cfg.ReferenceGroups[name]
	ex, err := dataset.NewExtractor(g.Extract)
	if err != nil {
		return nil, fmt.Errorf("reference group %s: %w", name, err)
	}
	path, err := fetch.New(r.client, r.cfg.HTTP, r.log).Resolve(ctx, name, g)
	if err != nil {
		return nil, err
	}
	refs, err := dataset.LoadReferences(path, name, g.IDField, ex)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(r.w, "reference group %s: %d unique texts\n", name, len(refs))
	return refs, nil
}

// LoadReferenceGroups reads a YAML file mapping group keys to reference
// group settings.
func LoadReferenceGroups(path string) (map[string]types.ReferenceGroup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading reference groups: %w", err)
	}
	var groups map[string]types.ReferenceGroup
	if err := yaml.Unmarshal(data, &groups); err != nil {
		return nil, fmt.Errorf("parsing reference groups %s: %w", path, err)
	}
	return groups, nil
}

// checkPositions ensures docs[i].Position == i, which index keys and the
// signature store rely on.
func checkPositions(docs []types.Document) error {
	for i, d := range docs {
		if d.Position != i {
			return fmt.Errorf("document %s has position %d, want %d", d.ID, d.Position, i)
		}
	}
	return nil
}
