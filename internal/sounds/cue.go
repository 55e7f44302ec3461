package sounds

import (
	"slices"

	"stagehand/internal/bundles"
)

// DefaultVolume is the volume of a cue nobody has adjusted.
const DefaultVolume = 30

// Cue is one entry of a bundle's soundCues collection.
type Cue struct {
	Name        string `json:"name"`
	Assignable  bool   `json:"assignable"`
	DefaultFile string `json:"defaultFile,omitempty"`
	// File is the asset URL an operator assigned, empty when unassigned.
	File   string `json:"file,omitempty"`
	Volume int    `json:"volume"`
}

func defaultCues(declared []bundles.SoundCue) []Cue {
	out := make([]Cue, 0, len(declared))
	for _, c := range declared {
		out = append(out, Cue{
			Name:        c.Name,
			Assignable:  c.Assignable,
			DefaultFile: c.DefaultFile,
			Volume:      DefaultVolume,
		})
	}
	return out
}

// reconcile lays the manifest's cues over a persisted value: manifest order
// and flags win, assignments and volumes carry over by name, and cues the
// manifest no longer declares are dropped.
func reconcile(declared []bundles.SoundCue, persisted []Cue) []Cue {
	out := defaultCues(declared)
	for i := range out {
		idx := slices.IndexFunc(persisted, func(c Cue) bool { return c.Name == out[i].Name })
		if idx < 0 {
			continue
		}
		out[i].Volume = persisted[idx].Volume
		if out[i].Assignable {
			out[i].File = persisted[idx].File
		}
	}
	return out
}
