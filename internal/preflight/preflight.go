package preflight

import (
	"context"
	"strings"

	"notely/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckCredentials(cfg),
	}

	if strings.TrimSpace(cfg.Storage.Bucket) != "" {
		results = append(results, CheckStorage(ctx, cfg))
	}
	if cfg.Notes.DatabaseURL != "" {
		results = append(results, CheckNoteStore(ctx, cfg.Notes.DatabaseURL))
	}
	if cfg.Broadcast.RedisURL != "" {
		results = append(results, CheckRedis(ctx, cfg.Broadcast.RedisURL))
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
