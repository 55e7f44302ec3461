package assets

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Record describes one asset file.
type Record struct {
	Digest    string `json:"digest"`
	BaseName  string `json:"baseName"`
	Extension string `json:"extension"`
	Name      string `json:"name"`
	Namespace string `json:"namespace"`
	Category  string `json:"category"`
	URL       string `json:"url"`
}

// ParseRecord derives the identity of the asset at path, which must live at
// least two levels below root ({root}/{namespace}/{category}/...). Any other
// path is a programming error and panics.
func ParseRecord(root, path, digest string) Record {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		panic(fmt.Sprintf("assets: %q is not relative to %q: %v", path, root, err))
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 3 || parts[0] == ".." || parts[0] == "" || parts[1] == "" {
		panic(fmt.Sprintf("assets: %q is not below %s/<namespace>/<category>", path, root))
	}

	base := norm.NFC.String(parts[len(parts)-1])
	ext := filepath.Ext(base)
	return Record{
		Digest:    digest,
		BaseName:  base,
		Extension: ext,
		Name:      strings.TrimSuffix(base, ext),
		Namespace: parts[0],
		Category:  parts[1],
		URL:       AssetURL(parts[0], parts[1], base),
	}
}

// AssetURL returns the canonical URL of an asset.
func AssetURL(namespace, category, baseName string) string {
	return "/assets/" + namespace + "/" + category + "/" + url.PathEscape(norm.NFC.String(baseName))
}
