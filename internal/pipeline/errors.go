package pipeline

import "errors"

var (
	// ErrTransformFailure marks an item whose stage transform returned an error.
	ErrTransformFailure = errors.New("transform failure")
	// ErrArtifactWriteFailure marks an item whose artifact could not be persisted.
	ErrArtifactWriteFailure = errors.New("artifact write failure")
	// ErrArtifactReadFailure marks an item whose existing artifact could not be inspected.
	ErrArtifactReadFailure = errors.New("artifact read failure")
	// ErrInvalidGraph reports an edge list that does not describe the status chain.
	ErrInvalidGraph = errors.New("invalid pipeline graph")
)
