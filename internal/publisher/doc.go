// Package publisher sweeps approved queue items to the social platform.
//
// A sweep lists the processed collection, picks items that are approved and
// not yet posted, oldest first, and publishes each one through a Provider
// until the daily quota is reached. Each item is re-read immediately before
// publishing so overlapping sweeps never post the same item twice. Outcomes
// are written back with Update: success stamps posted/postedAt/postId, failure
// records postError and leaves the item eligible for the next sweep.
//
// The quota is a process-local value object that resets when the local
// calendar date changes; the persisted posted flag remains the source of
// truth across restarts.
package publisher
