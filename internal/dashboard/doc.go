// Package dashboard serves the read-only HTTP status API and a small status
// page over the approval queue.
//
// Routes:
//
//	GET /health      liveness, never authenticated
//	GET /api/stats   {pending, approved, rejected}
//	GET /api/queue   most recent items across both collections, newest first
//	GET /            embedded status page
//
// When dashboard.auth_token is set, every route except /health requires
// "Authorization: Bearer <token>" or "?token=<token>".
package dashboard
