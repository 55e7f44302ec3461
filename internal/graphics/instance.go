package graphics

import "stagehand/internal/bundles"

// Instance is one client's registration of a graphic page.
type Instance struct {
	BundleName           string           `json:"bundleName"`
	PathName             string           `json:"pathName"`
	SocketID             string           `json:"socketId"`
	IPv4                 string           `json:"ipv4"`
	Timestamp            int64            `json:"timestamp"`
	SingleInstance       bool             `json:"singleInstance"`
	Open                 bool             `json:"open"`
	PotentiallyOutOfDate bool             `json:"potentiallyOutOfDate"`
	BundleGit            *bundles.GitInfo `json:"bundleGit,omitempty"`
	BundleVersion        string           `json:"bundleVersion"`
}

// RegisterRequest is what a graphic page reports about itself when it loads.
type RegisterRequest struct {
	BundleName    string           `json:"bundleName"`
	PathName      string           `json:"pathName"`
	Timestamp     int64            `json:"timestamp,omitempty"`
	BundleVersion string           `json:"bundleVersion"`
	BundleGit     *bundles.GitInfo `json:"bundleGit,omitempty"`
}

// Stale reports whether a page built from (version, git) may differ from the
// loaded bundle.
func Stale(version string, git *bundles.GitInfo, loaded *bundles.Bundle) bool {
	if version != loaded.Version {
		return true
	}
	if (git == nil) != (loaded.Git == nil) {
		return true
	}
	return git != nil && git.Hash != loaded.Git.Hash
}
