package assets

import (
	"path/filepath"
	"strings"

	"stagehand/internal/bundles"
)

// uploadPrefix marks in-flight upload files; hidden files never match a category.
const uploadPrefix = ".upload-"

// Category is one watched (namespace, category) directory.
type Category struct {
	Namespace    string   `json:"namespace"`
	Name         string   `json:"name"`
	Title        string   `json:"title"`
	AllowedTypes []string `json:"allowedTypes,omitempty"`
	Dir          string   `json:"dir"`
}

func newCategory(root string, b *bundles.Bundle, c bundles.AssetCategory) Category {
	return Category{
		Namespace:    b.Name,
		Name:         c.Name,
		Title:        c.Title,
		AllowedTypes: c.AllowedTypes,
		Dir:          filepath.Join(root, b.Name, c.Name),
	}
}

// Patterns returns the glob patterns selecting this category's files: one per
// allowed type, or a catch-all when the category is unrestricted.
func (c Category) Patterns() []string {
	dir := escapeGlob(c.Dir)
	if len(c.AllowedTypes) == 0 {
		return []string{filepath.Join(dir, "*")}
	}
	patterns := make([]string, 0, len(c.AllowedTypes))
	for _, ext := range c.AllowedTypes {
		patterns = append(patterns, filepath.Join(dir, "*."+escapeGlob(ext)))
	}
	return patterns
}

// Matches reports whether path is a file this category tracks. Extensions
// compare case-insensitively.
func (c Category) Matches(path string) bool {
	dir, base := filepath.Split(path)
	if filepath.Clean(dir) != filepath.Clean(c.Dir) || base == "" || strings.HasPrefix(base, ".") {
		return false
	}
	ext := filepath.Ext(base)
	candidate := filepath.Join(c.Dir, strings.TrimSuffix(base, ext)+strings.ToLower(ext))
	for _, pattern := range c.Patterns() {
		if ok, _ := filepath.Match(pattern, candidate); ok {
			return true
		}
	}
	return false
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
