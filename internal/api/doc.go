// Package api implements the HTTP REST API and WebSocket stream for the
// IR climate bridge.
//
// This package provides:
//   - REST endpoints to list devices, read state and history, and send commands
//   - Prometheus exposition on /metrics
//   - A WebSocket hub that pushes every state change to subscribed clients
//   - Optional HS256 JWT authentication on mutating routes
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// The server sits beside the MQTT command topic as a second way into the
// bridge. Commands posted here run synchronously against the device and the
// response carries the applied state. State changes from any source reach
// WebSocket clients through the Hub, which is registered as a device
// observer.
//
// # Security
//
// When security.jwt.secret is set, POST routes require a bearer token
// signed with that secret. Read routes and the WebSocket stream stay open.
package api
