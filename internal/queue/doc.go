// Package queue persists approval queue items and defines their lifecycle.
//
// An item lives in exactly one of two collections: "pending" while it waits
// for an operator decision, and "processed" once approved or rejected. The
// Store interface is the only way records change membership (Move) or content
// (Update); the bot, publisher, and dashboard run as separate processes and
// coordinate solely through it.
//
// Two backends implement Store. FileStore keeps one pretty-printed JSON
// document per item under <root>/pending and <root>/processed, writes through
// temp-file-plus-rename, and serializes mutations with an advisory flock on
// <root>/.queue.lock. SQLiteStore keeps one row per item in <root>/queue.db
// and guards Move and Update with a collection predicate inside a
// transaction.
//
// The transition functions (ApplyDecision, MarkPosted, MarkPostFailed) are pure
// and are passed to Move/Update as mutators, so every backend enforces the
// same state machine.
package queue
