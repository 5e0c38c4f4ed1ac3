// Package gateway bridges HTTP clients onto the platform's NATS
// request/reply subjects. Each route maps an HTTP endpoint to one subject;
// the reply envelope decides the HTTP status. The gateway adds request IDs,
// CORS, body-size limits and a per-client rate limit, and sanitizes
// internal error detail out of responses.
//
// The gateway registers its routes on a mux owned by the caller; it does
// not run its own listener. The websocket event endpoint lives in the ws
// subpackage.
package gateway
