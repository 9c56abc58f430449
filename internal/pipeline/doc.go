// Package pipeline turns the status chain into runnable stages.
//
// An Edge names one forward step (From -> To) and the stage whose artifact
// that step produces. The Driver pairs each edge with its stage.Handler and
// validates the graph once at startup; it holds no mutable state. A Runner
// executes one tick of one edge: select items in From, reuse or produce the
// stage artifact, write it, and compare-and-swap the status to To.
//
// The ordering inside a tick (artifact before status) is what makes process
// termination safe at any point. A restart finds either no artifact, and
// reruns the transform, or a complete artifact, and only advances the status.
package pipeline
