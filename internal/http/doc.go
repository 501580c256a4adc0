// Package http exposes the booking dispatcher over HTTP.
//
// The router serves:
//   - POST /v1/dispatch: runs one booking operation. Body:
//     {"operation": "<name>", "payload": {...}}. Success answers 200 with
//     {"data": ...}; refusals answer {"error": {"kind", "message", "details",
//     "fields"}} with the status from statusForKind.
//   - DELETE /v1/sessions/current: revokes the bearer token of the request and
//     answers 204.
//   - GET /healthz: pings the store; 200 {"status":"ok"} or 503.
//
// Both /v1 routes require "Authorization: Bearer <token>" or the session_token
// cookie.
package http
