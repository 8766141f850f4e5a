package preflight

import (
	"context"

	"medannotate/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
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

// RunAll executes the config-level preflight checks. The database check
// needs an open store and is run separately with CheckDatabase.
func RunAll(_ context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckBindAddress(cfg.Paths.APIBind),
	}
	if cfg.Assignment.LeaseTimeoutSeconds > 0 {
		results = append(results, CheckLease(cfg))
	}
	return results
}
