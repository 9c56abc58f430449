// Package workflow keeps pipeline stages ticking.
//
// A Scheduler calls one tick function immediately and then on a fixed
// interval until its context is cancelled; ticks never overlap and a failing
// or panicking tick never stops the loop. The Manager starts one Scheduler per
// stage runner in its own goroutine, so a slow stage only delays itself, and
// records the latest tick of every stage for `newsflow status`.
package workflow
