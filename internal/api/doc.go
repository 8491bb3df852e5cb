// Package api defines the read-only query layer and wire types shared by the
// dashboard HTTP server and the CLI.
//
// QueueService aggregates both queue collections: counts by status, the most
// recent items newest first, and single-item lookup. Items that momentarily
// exist in both collections (an interrupted move) are reported once, using
// the processed copy.
//
// Items are served in their persisted JSON shape (camelCase keys), so the
// dashboard page and external consumers read the same document the queue
// stores on disk.
package api
