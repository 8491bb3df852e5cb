// Package preflight provides readiness checks for the filesystem paths and
// external services that postgate depends on.
//
// These checks run in two contexts:
//   - Each long-running role calls RunLocal before starting its services.
//     A failed directory check aborts startup so the container restarts
//     with a clear log line instead of failing on the first write.
//   - The CLI "postgate check" command calls RunAll, which also probes the
//     Instagram Graph API with the configured credentials.
package preflight
