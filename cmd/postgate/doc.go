// Package main hosts the postgate CLI entrypoint and command graph.
//
// Three subcommands run the long-lived roles (bot, publisher, dashboard),
// each as its own process sharing only the queue root. The remaining
// commands operate on the queue directly for maintenance: listing, manual
// decisions, reconciliation after a crash, and container health checks.
//
// Keep this package lean: wiring lives here, behavior lives in internal/.
package main
