package api

import (
	"time"

	"stagehand/internal/assets"
	"stagehand/internal/bundles"
	"stagehand/internal/graphics"
	"stagehand/internal/sounds"
)

// FromGit converts bundle git metadata.
func FromGit(git *bundles.GitInfo) *GitRevision {
	if git == nil {
		return nil
	}
	return &GitRevision{Branch: git.Branch, Hash: git.Hash, ShortHash: git.ShortHash}
}

// FromBundle converts a loaded bundle to its API representation.
func FromBundle(b *bundles.Bundle) BundleSummary {
	if b == nil {
		return BundleSummary{}
	}
	dto := BundleSummary{
		Name:       b.Name,
		Version:    b.Version,
		Dir:        b.Dir,
		Git:        FromGit(b.Git),
		Graphics:   make([]GraphicSummary, 0, len(b.Graphics)),
		Categories: make([]string, 0, len(b.AssetCategories)+1),
	}
	for _, g := range b.Graphics {
		dto.Graphics = append(dto.Graphics, GraphicSummary{
			URL:            g.URL,
			File:           g.File,
			Width:          g.Width,
			Height:         g.Height,
			SingleInstance: g.SingleInstance,
		})
	}
	for _, c := range b.Categories() {
		dto.Categories = append(dto.Categories, c.Name)
	}
	return dto
}

// FromBundles converts bundles preserving order.
func FromBundles(list []*bundles.Bundle) []BundleSummary {
	out := make([]BundleSummary, 0, len(list))
	for _, b := range list {
		out = append(out, FromBundle(b))
	}
	return out
}

// FromCategory converts a watched category and its current size.
func FromCategory(c assets.Category, count int) AssetCategorySummary {
	return AssetCategorySummary{
		Namespace:    c.Namespace,
		Category:     c.Name,
		Title:        c.Title,
		AllowedTypes: c.AllowedTypes,
		Patterns:     c.Patterns(),
		Count:        count,
	}
}

// FromInstance converts a graphic registration.
func FromInstance(inst graphics.Instance) GraphicInstance {
	dto := GraphicInstance{
		BundleName:           inst.BundleName,
		PathName:             inst.PathName,
		SocketID:             inst.SocketID,
		IPv4:                 inst.IPv4,
		SingleInstance:       inst.SingleInstance,
		Open:                 inst.Open,
		PotentiallyOutOfDate: inst.PotentiallyOutOfDate,
		BundleVersion:        inst.BundleVersion,
		BundleGit:            FromGit(inst.BundleGit),
	}
	if inst.Timestamp > 0 {
		dto.RegisteredAt = time.UnixMilli(inst.Timestamp).UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromInstances converts registrations preserving order.
func FromInstances(list []graphics.Instance) []GraphicInstance {
	out := make([]GraphicInstance, 0, len(list))
	for _, inst := range list {
		out = append(out, FromInstance(inst))
	}
	return out
}

// CountGraphics summarizes registrations.
func CountGraphics(list []graphics.Instance) GraphicCounts {
	counts := GraphicCounts{Registered: len(list)}
	for _, inst := range list {
		if inst.Open {
			counts.Open++
		}
		if inst.PotentiallyOutOfDate {
			counts.Outdated++
		}
	}
	return counts
}

// FromCue converts a sound cue of namespace.
func FromCue(namespace string, c sounds.Cue) SoundCue {
	return SoundCue{
		Namespace:   namespace,
		Name:        c.Name,
		Assignable:  c.Assignable,
		DefaultFile: c.DefaultFile,
		File:        c.File,
		Volume:      c.Volume,
	}
}
