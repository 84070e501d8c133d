// Package services defines shared utilities consumed by the pipeline and the
// external tool integrations beneath it.
//
// Key responsibilities:
//   - Context helpers that stamp run identifiers, attempt numbers, and stage
//     names for logging and history records.
//   - Structured error markers plus the Wrap helper so callers can classify
//     failures (configuration vs external tool vs timeout) with errors.Is.
//
// Use these helpers when wiring new integrations so operational behaviour
// (error handling, observability) stays uniform across the pipeline.
package services
