// Package daemon runs one long-running postgate role (bot, publisher or
// dashboard) as a single lifecycle.
//
// A role acquires a flock-based lock under the queue root so two processes
// of the same role never share a queue, runs its services in one process
// group, and releases the lock on shutdown. The first service to fail stops
// the others.
//
// Keep role wiring in cmd/postgate: the daemon only owns startup, shutdown
// and the lock.
package daemon
