package preflight

import (
	"context"

	"newsflow/internal/config"
	"newsflow/internal/queue"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Options controls which network checks RunAll performs.
type Options struct {
	// Offline skips LLM and Telegram reachability probes; credentials are
	// still checked for presence.
	Offline bool
}

// RunAll executes the preflight checks for cfg. items may be nil when the
// store could not be opened; the store check then fails.
func RunAll(ctx context.Context, cfg *config.Config, items queue.Repository, opts Options) []Result {
	if cfg == nil {
		return nil
	}
	results := []Result{
		CheckDirectoryAccess("Artifact directory", cfg.Paths.ArtifactDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckStore(ctx, items),
	}
	if opts.Offline {
		results = append(results,
			credentialResult("Translation LLM", cfg.LLM.APIKey != "", "API key present", "API key missing"),
			CheckTelegramCredentials(cfg.Telegram),
		)
		return results
	}
	results = append(results,
		CheckLLM(ctx, "Translation LLM", cfg.LLM),
		CheckTelegram(ctx, cfg.Telegram),
	)
	return results
}

// Failed reports whether any result did not pass.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return true
		}
	}
	return false
}

func credentialResult(name string, present bool, ok, missing string) Result {
	if present {
		return Result{Name: name, Passed: true, Detail: ok}
	}
	return Result{Name: name, Detail: missing}
}
