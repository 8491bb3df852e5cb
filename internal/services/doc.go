// Package services defines shared utilities consumed by the queue adapters and
// the third-party provider integrations.
//
// Key responsibilities:
//   - Context helpers that stamp queue item IDs, process roles, and correlation
//     identifiers for logging.
//   - The ConfigurationError and ProviderError types plus the Wrap helper that
//     keep provider failures classifiable after they are annotated onto queue
//     records or surfaced to the operator.
//   - The TextGenerator and ImageGenerator contracts implemented by the
//     provider subpackages.
//
// Use these helpers when wiring new provider code so operational behaviour
// (error handling, observability, retries) stays uniform across the pipeline.
package services
