// Package textgen provides the caption and research text generators.
//
// The Anthropic client talks to the Messages API over plain HTTP with the
// shared retry policy (HTTP 408/429/5xx and timeouts, exponential backoff,
// Retry-After honoured). New selects between it and the Gemini client based
// on the [text] configuration section.
//
// Prompt builders live here too so the bot and producer phrase requests the
// same way regardless of backend.
package textgen
