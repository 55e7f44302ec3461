package assets

import (
	_ "embed"
	"fmt"
	"sort"

	"stagehand/internal/bundles"
	"stagehand/internal/replicant"
)

//go:embed schema.cue
var recordSchema string

// CollectionName returns the replicant name backing a category.
func CollectionName(category string) string {
	return "assets:" + category
}

// Table maps (namespace, category) to the collection holding its records.
type Table struct {
	root        string
	categories  []Category
	collections map[string]map[string]*replicant.Replicant[Record]
}

// NewTable declares one collection per category of every bundle, including
// the synthesized sounds category of bundles with assignable sound cues.
func NewTable(reg *replicant.Registry, root string, bundleList []*bundles.Bundle) (*Table, error) {
	t := &Table{
		root:        root,
		collections: make(map[string]map[string]*replicant.Replicant[Record]),
	}
	for _, b := range bundleList {
		for _, c := range b.Categories() {
			rep, err := replicant.Declare(reg, CollectionName(c.Name), b.Name, replicant.Options[Record]{
				DefaultValue: []Record{},
				Schema:       recordSchema,
			})
			if err != nil {
				return nil, fmt.Errorf("declare asset collection %s/%s: %w", b.Name, c.Name, err)
			}
			if t.collections[b.Name] == nil {
				t.collections[b.Name] = make(map[string]*replicant.Replicant[Record])
			}
			t.collections[b.Name][c.Name] = rep
			t.categories = append(t.categories, newCategory(root, b, c))
		}
	}
	sort.SliceStable(t.categories, func(i, j int) bool {
		if t.categories[i].Namespace != t.categories[j].Namespace {
			return t.categories[i].Namespace < t.categories[j].Namespace
		}
		return t.categories[i].Name < t.categories[j].Name
	})
	return t, nil
}

// Root returns the assets root directory.
func (t *Table) Root() string { return t.root }

// Categories returns every watched category.
func (t *Table) Categories() []Category {
	out := make([]Category, len(t.categories))
	copy(out, t.categories)
	return out
}

// Category returns the category definition for (namespace, name).
func (t *Table) Category(namespace, name string) (Category, bool) {
	for _, c := range t.categories {
		if c.Namespace == namespace && c.Name == name {
			return c, true
		}
	}
	return Category{}, false
}

// Lookup returns the collection for (namespace, category).
func (t *Table) Lookup(namespace, category string) (*replicant.Replicant[Record], bool) {
	byCategory, ok := t.collections[namespace]
	if !ok {
		return nil, false
	}
	rep, ok := byCategory[category]
	return rep, ok
}

// Records returns the current records of a collection, or nil when unknown.
func (t *Table) Records(namespace, category string) []Record {
	rep, ok := t.Lookup(namespace, category)
	if !ok {
		return nil
	}
	return rep.Value()
}
