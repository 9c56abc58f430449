// Package preflight provides readiness checks for the filesystem paths and
// external services newsflow depends on.
//
// `newsflow status` runs every check and prints the results. `newsflow run`
// does not gate on them: stage credentials are validated at startup by
// config.ValidateStage, and reachability problems surface as item failures
// that retry on the next tick.
//
// Network checks make a single attempt with a short timeout so a slow
// provider does not stall the status command.
package preflight
