// Package artifacts stores the per-stage output of each item on disk.
//
// Files live directly under the artifact directory as <Stage>_<id>.<ext>,
// the layout operators already inspect by hand. Writes go through a temporary
// file and an atomic rename so a reader never sees a partial artifact, and
// nothing in this package deletes files.
package artifacts
