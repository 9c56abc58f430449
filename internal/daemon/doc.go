// Package daemon owns the lifecycle of a `newsflow run` process.
//
// It takes one advisory file lock per stage under paths.log_dir before the
// workflow manager starts, so a second accidental worker for the same stage on
// this host refuses to start instead of racing the first. Locks are released
// when the daemon stops. Workers on other hosts are still safe because every
// status change is a compare-and-swap in the item store.
package daemon
