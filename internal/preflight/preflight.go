package preflight

import (
	"context"

	"stagehand/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every preflight check for cfg.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Bundles directory", cfg.Paths.BundlesDir),
		CheckDirectoryAccess("Assets directory", cfg.Paths.AssetsDir),
		CheckDirectoryAccess("Database directory", cfg.Paths.DBDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	if cfg.Paths.APIBind != "" {
		results = append(results, CheckListenAddress(ctx, "API address", cfg.Paths.APIBind))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
