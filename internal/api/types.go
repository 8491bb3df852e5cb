package api

import "time"

// StatsResponse is the payload of GET /api/stats.
type StatsResponse struct {
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}

// Total returns the number of items across all statuses.
func (s StatsResponse) Total() int {
	return s.Pending + s.Approved + s.Rejected
}

// HealthResponse is the payload of GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// NewHealthResponse reports liveness at now.
func NewHealthResponse(now time.Time) HealthResponse {
	return HealthResponse{Status: "healthy", Timestamp: now.UTC().Format(time.RFC3339Nano)}
}

// ErrorResponse is the body of every non-2xx API reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
