package bundles

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Manifest file names, in lookup order.
const (
	ManifestTOML = "bundle.toml"
	ManifestYAML = "bundle.yaml"
)

// ErrNoManifest indicates a directory does not contain a bundle manifest.
var ErrNoManifest = errors.New("bundle manifest not found")

// Graphic describes one graphic page a bundle serves.
type Graphic struct {
	File           string `toml:"file" yaml:"file" json:"file"`
	Width          int    `toml:"width" yaml:"width" json:"width"`
	Height         int    `toml:"height" yaml:"height" json:"height"`
	SingleInstance bool   `toml:"single_instance" yaml:"single_instance" json:"singleInstance"`
	// URL is the browser path of the graphic, derived from the bundle name and file.
	URL string `toml:"-" yaml:"-" json:"url"`
}

// AssetCategory declares a group of user-uploadable files.
type AssetCategory struct {
	Name         string   `toml:"name" yaml:"name" json:"name"`
	Title        string   `toml:"title" yaml:"title" json:"title"`
	AllowedTypes []string `toml:"allowed_types" yaml:"allowed_types" json:"allowedTypes,omitempty"`
}

// SoundCue declares a named sound slot operators can assign an asset to.
type SoundCue struct {
	Name        string `toml:"name" yaml:"name" json:"name"`
	Assignable  bool   `toml:"assignable" yaml:"assignable" json:"assignable"`
	DefaultFile string `toml:"default_file" yaml:"default_file" json:"defaultFile,omitempty"`
}

// Manifest is the on-disk bundle description.
type Manifest struct {
	Name            string          `toml:"name" yaml:"name"`
	Version         string          `toml:"version" yaml:"version"`
	Graphics        []Graphic       `toml:"graphics" yaml:"graphics"`
	AssetCategories []AssetCategory `toml:"asset_categories" yaml:"asset_categories"`
	SoundCues       []SoundCue      `toml:"sound_cues" yaml:"sound_cues"`
}

// ReadManifest locates and decodes the manifest in dir.
func ReadManifest(dir string) (Manifest, string, error) {
	var manifest Manifest
	for _, name := range []string{ManifestTOML, ManifestYAML} {
		manifestPath := filepath.Join(dir, name)
		data, err := os.ReadFile(manifestPath)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return manifest, manifestPath, fmt.Errorf("read manifest: %w", err)
		}
		if name == ManifestTOML {
			err = toml.Unmarshal(data, &manifest)
		} else {
			err = yaml.Unmarshal(data, &manifest)
		}
		if err != nil {
			return manifest, manifestPath, fmt.Errorf("parse %s: %w", manifestPath, err)
		}
		return manifest, manifestPath, nil
	}
	return manifest, "", fmt.Errorf("%w in %s", ErrNoManifest, dir)
}

// normalize validates the manifest for the bundle directory named dirName and
// fills derived fields.
func (m *Manifest) normalize(dirName string) error {
	m.Name = strings.TrimSpace(m.Name)
	if m.Name == "" {
		m.Name = dirName
	}
	if m.Name != dirName {
		return fmt.Errorf("bundle name %q does not match directory %q", m.Name, dirName)
	}
	m.Version = strings.TrimSpace(m.Version)

	seenGraphics := make(map[string]struct{}, len(m.Graphics))
	for i := range m.Graphics {
		g := &m.Graphics[i]
		g.File = strings.TrimPrefix(path.Clean("/"+strings.TrimSpace(g.File)), "/")
		if g.File == "" || g.File == "." {
			return fmt.Errorf("graphics[%d]: file is required", i)
		}
		if _, dup := seenGraphics[g.File]; dup {
			return fmt.Errorf("graphics[%d]: duplicate file %q", i, g.File)
		}
		seenGraphics[g.File] = struct{}{}
		g.URL = GraphicURL(m.Name, g.File)
	}

	assignable := false
	for _, cue := range m.SoundCues {
		if cue.Assignable {
			assignable = true
			break
		}
	}

	title := cases.Title(language.Und)
	seenCategories := make(map[string]struct{}, len(m.AssetCategories))
	for i := range m.AssetCategories {
		c := &m.AssetCategories[i]
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" || strings.ContainsAny(c.Name, `/\`) {
			return fmt.Errorf("asset_categories[%d]: invalid name %q", i, c.Name)
		}
		if c.Name == SoundsCategory && assignable {
			return fmt.Errorf("asset_categories[%d]: %q is reserved for assignable sound cues", i, SoundsCategory)
		}
		if _, dup := seenCategories[c.Name]; dup {
			return fmt.Errorf("asset_categories[%d]: duplicate name %q", i, c.Name)
		}
		seenCategories[c.Name] = struct{}{}
		if strings.TrimSpace(c.Title) == "" {
			c.Title = title.String(strings.NewReplacer("-", " ", "_", " ").Replace(c.Name))
		}
		c.AllowedTypes = normalizeTypes(c.AllowedTypes)
	}
	return nil
}

// GraphicURL returns the browser path of a bundle graphic.
func GraphicURL(bundleName, file string) string {
	return "/bundles/" + bundleName + "/graphics/" + file
}

func normalizeTypes(types []string) []string {
	if len(types) == 0 {
		return nil
	}
	out := make([]string, 0, len(types))
	seen := make(map[string]struct{}, len(types))
	for _, t := range types {
		normalized := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(t), "."))
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out
}
