package bundles

import "slices"

// SoundsCategory is the asset category synthesized for bundles with assignable sound cues.
const SoundsCategory = "sounds"

// SoundTypes are the file types accepted by the synthesized sounds category.
var SoundTypes = []string{"mp3", "ogg"}

// Bundle is an immutable snapshot of a loaded bundle.
type Bundle struct {
	Name            string          `json:"name"`
	Dir             string          `json:"dir"`
	Version         string          `json:"version"`
	Git             *GitInfo        `json:"git,omitempty"`
	Graphics        []Graphic       `json:"graphics"`
	AssetCategories []AssetCategory `json:"assetCategories"`
	SoundCues       []SoundCue      `json:"soundCues"`
}

// GraphicByURL returns the graphic served at pathName.
func (b *Bundle) GraphicByURL(pathName string) (Graphic, bool) {
	for _, g := range b.Graphics {
		if g.URL == pathName {
			return g, true
		}
	}
	return Graphic{}, false
}

// HasAssignableSoundCues reports whether any sound cue accepts operator-assigned files.
func (b *Bundle) HasAssignableSoundCues() bool {
	return slices.ContainsFunc(b.SoundCues, func(c SoundCue) bool { return c.Assignable })
}

// Categories returns the declared asset categories plus the synthesized
// sounds category when the bundle has assignable sound cues.
func (b *Bundle) Categories() []AssetCategory {
	out := slices.Clone(b.AssetCategories)
	if b.HasAssignableSoundCues() {
		out = append(out, AssetCategory{
			Name:         SoundsCategory,
			Title:        "Sounds",
			AllowedTypes: slices.Clone(SoundTypes),
		})
	}
	return out
}

func sameGit(a, b *GitInfo) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
