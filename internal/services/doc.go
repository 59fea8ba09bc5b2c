// Package services defines shared utilities consumed by the pipeline stages
// and the external capability clients.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that translate failures
//     into the taxonomy the engine and retry logic act on (transient vs
//     fatal remote failures, degradable media errors, exhausted assembly).
//
// Use these helpers when wiring new stage logic so operational behaviour
// (error handling, observability, retries) stays uniform across the pipeline.
package services
