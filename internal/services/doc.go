// Package services defines shared utilities consumed by the stage transforms
// and their external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp item IDs, stage names, and tick correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper so stage failures carry a
//     classifiable cause alongside the human readable detail.
//
// Use these helpers when wiring new transforms so operational behaviour (error
// handling, observability, retries) stays uniform across the pipeline.
package services
