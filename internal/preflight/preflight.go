package preflight

import (
	"context"
	"fmt"
	"strings"

	"agbprep/internal/config"
	"agbprep/internal/services"
)

const stageName = "preflight"

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Filesystem runs the checks that guard the imagery output root.
func Filesystem(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	return []Result{
		CheckDirectoryAccess("Imagery directory", cfg.Paths.ImageryDir),
		CheckFreeSpace("Free space", cfg.Paths.ImageryDir, cfg.Imagery.MinFreeMiB),
	}
}

// RunAll executes every check for the given config. The catalog is probed
// only when a base URL is configured.
func RunAll(ctx context.Context, cfg *config.Config, catalog HealthChecker) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
		CheckDirectoryAccess("AOI directory", cfg.Paths.AOIDir),
	}
	results = append(results, Filesystem(cfg)...)

	if strings.TrimSpace(cfg.Imagery.BaseURL) == "" {
		results = append(results, Result{Name: "Imagery catalog", Detail: "base_url not configured"})
	} else {
		results = append(results, CheckCatalog(ctx, "Imagery catalog", catalog))
	}
	return results
}

// Gate returns a filesystem error naming the first failed result.
func Gate(results []Result) error {
	for _, result := range results {
		if result.Passed {
			continue
		}
		return services.Wrap(
			services.ErrFilesystem,
			stageName,
			"check "+strings.ToLower(result.Name),
			fmt.Sprintf("%s: %s", result.Name, result.Detail),
			nil,
		)
	}
	return nil
}

// Failed counts results that did not pass.
func Failed(results []Result) int {
	count := 0
	for _, result := range results {
		if !result.Passed {
			count++
		}
	}
	return count
}
