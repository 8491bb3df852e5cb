// Package health writes and checks the heartbeat files that container
// health checks read. Each long-running role owns <dir>/<role>_health.
package health
