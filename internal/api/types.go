package api

import (
	"stagehand/internal/assets"
	"stagehand/internal/replicant"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// DaemonStatus captures daemon runtime information.
type DaemonStatus struct {
	Running         bool                   `json:"running"`
	PID             int                    `json:"pid"`
	LockFilePath    string                 `json:"lockFilePath"`
	SocketPath      string                 `json:"socketPath"`
	APIBind         string                 `json:"apiBind,omitempty"`
	ReplicantDBPath string                 `json:"replicantDbPath,omitempty"`
	Bundles         int                    `json:"bundles"`
	AssetCategories int                    `json:"assetCategories"`
	Assets          int                    `json:"assets"`
	AssetsReady     bool                   `json:"assetsReady"`
	Graphics        GraphicCounts          `json:"graphics"`
	Clients         int                    `json:"clients"`
	Replicants      []replicant.Descriptor `json:"replicants,omitempty"`
}

// GraphicCounts summarizes graphic registrations.
type GraphicCounts struct {
	Registered int `json:"registered"`
	Open       int `json:"open"`
	Outdated   int `json:"outdated"`
}

// GitRevision describes the checked-out revision of a bundle.
type GitRevision struct {
	Branch    string `json:"branch,omitempty"`
	Hash      string `json:"hash"`
	ShortHash string `json:"shortHash"`
}

// GraphicSummary describes one graphic page of a bundle.
type GraphicSummary struct {
	URL            string `json:"url"`
	File           string `json:"file"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	SingleInstance bool   `json:"singleInstance"`
}

// BundleSummary describes a loaded bundle.
type BundleSummary struct {
	Name       string           `json:"name"`
	Version    string           `json:"version"`
	Dir        string           `json:"dir"`
	Git        *GitRevision     `json:"git,omitempty"`
	Graphics   []GraphicSummary `json:"graphics"`
	Categories []string         `json:"categories"`
}

// AssetCategorySummary describes a watched asset category.
type AssetCategorySummary struct {
	Namespace    string   `json:"namespace"`
	Category     string   `json:"category"`
	Title        string   `json:"title"`
	AllowedTypes []string `json:"allowedTypes,omitempty"`
	Patterns     []string `json:"patterns"`
	Count        int      `json:"count"`
}

// AssetListResponse carries categories and, when a single category was
// requested, its records.
type AssetListResponse struct {
	Categories []AssetCategorySummary `json:"categories"`
	Assets     []assets.Record        `json:"assets,omitempty"`
}

// GraphicInstance describes a graphic registration.
type GraphicInstance struct {
	BundleName           string       `json:"bundleName"`
	PathName             string       `json:"pathName"`
	SocketID             string       `json:"socketId"`
	IPv4                 string       `json:"ipv4"`
	RegisteredAt         string       `json:"registeredAt,omitempty"`
	SingleInstance       bool         `json:"singleInstance"`
	Open                 bool         `json:"open"`
	PotentiallyOutOfDate bool         `json:"potentiallyOutOfDate"`
	BundleVersion        string       `json:"bundleVersion"`
	BundleGit            *GitRevision `json:"bundleGit,omitempty"`
}

// BundleListResponse lists loaded bundles.
type BundleListResponse struct {
	Bundles []BundleSummary `json:"bundles"`
}

// GraphicListResponse lists graphic registrations.
type GraphicListResponse struct {
	Instances []GraphicInstance `json:"instances"`
}

// SoundCue describes one sound cue of a bundle.
type SoundCue struct {
	Namespace   string `json:"namespace"`
	Name        string `json:"name"`
	Assignable  bool   `json:"assignable"`
	DefaultFile string `json:"defaultFile,omitempty"`
	File        string `json:"file,omitempty"`
	Volume      int    `json:"volume"`
}

// SoundCueListResponse lists sound cues.
type SoundCueListResponse struct {
	Cues []SoundCue `json:"cues"`
}

// SoundCueUpdate changes one cue. Nil fields are left as they are; an empty
// File clears the assignment.
type SoundCueUpdate struct {
	File   *string `json:"file,omitempty"`
	Volume *int    `json:"volume,omitempty"`
}
