package ipc

import "stagehand/internal/api"

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents daemon status information.
type StatusResponse = api.DaemonStatus

// BundleListRequest lists loaded bundles.
type BundleListRequest struct{}

// BundleListResponse contains loaded bundles.
type BundleListResponse = api.BundleListResponse

// BundleRefreshRequest reloads one bundle.
type BundleRefreshRequest struct {
	Name string `json:"name"`
}

// BundleRefreshResponse reports what the reload observed.
type BundleRefreshResponse struct {
	Name   string `json:"name"`
	Change string `json:"change"`
}

// AssetListRequest narrows the asset listing.
type AssetListRequest struct {
	Namespace string `json:"namespace"`
	Category  string `json:"category"`
}

// AssetListResponse contains categories and, for a single category, its records.
type AssetListResponse = api.AssetListResponse

// GraphicInstancesRequest lists graphic registrations.
type GraphicInstancesRequest struct{}

// GraphicInstancesResponse contains graphic registrations.
type GraphicInstancesResponse = api.GraphicListResponse

// GraphicRefreshRequest targets a graphic path, a socket id, or every bundle.
type GraphicRefreshRequest struct {
	Target string `json:"target"`
	All    bool   `json:"all"`
}

// GraphicRefreshResponse acknowledges a refresh broadcast.
type GraphicRefreshResponse struct {
	Sent bool `json:"sent"`
}

// GraphicKillRequest targets one graphic instance.
type GraphicKillRequest struct {
	SocketID string `json:"socket_id"`
}

// GraphicKillResponse acknowledges a kill broadcast.
type GraphicKillResponse struct {
	Sent bool `json:"sent"`
}

// SoundCueListRequest narrows the cue listing to one bundle.
type SoundCueListRequest struct {
	Namespace string `json:"namespace"`
}

// SoundCueListResponse contains sound cues.
type SoundCueListResponse = api.SoundCueListResponse

// SoundCueUpdateRequest assigns a file to a cue or changes its volume.
type SoundCueUpdateRequest struct {
	Namespace string  `json:"namespace"`
	Name      string  `json:"name"`
	File      *string `json:"file,omitempty"`
	Volume    *int    `json:"volume,omitempty"`
}

// SoundCueUpdateResponse is the cue after the update.
type SoundCueUpdateResponse = api.SoundCue
