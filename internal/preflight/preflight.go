package preflight

import (
	"context"
	"strings"

	"postgate/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunLocal checks the directories every role reads or writes.
func RunLocal(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	return []Result{
		CheckDirectoryAccess("Queue directory", cfg.Queue.Path),
		CheckDirectoryAccess("Health directory", cfg.Health.Dir),
	}
}

// RunAll executes the local checks plus the network checks for every
// provider that has credentials configured.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	results := RunLocal(cfg)
	if strings.TrimSpace(cfg.Instagram.AccessToken) != "" {
		results = append(results, CheckInstagram(ctx, cfg.Instagram.BaseURL, cfg.Instagram.AccountID, cfg.Instagram.AccessToken))
	}
	return results
}

// Failed returns the subset of results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
