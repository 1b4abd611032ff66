// Package httpd implements the portal's control server.
//
// Three surfaces are served over one or two listening sockets (plain HTTP,
// plus HTTPS when certificate material is present):
//
//   - GET  /         the portal page (configured assets or a built-in page)
//   - GET  /scan     discovered networks as JSON, strongest first
//   - POST /connect  join a network; the response waits for the outcome
//
// plus GET /events, a WebSocket stream of radio state transitions.
//
// The server is deliberately not a web framework: a handful of
// hand-routed handlers, explanatory 4xx bodies for malformed requests,
// and per-connection goroutines so a slow client cannot starve anyone.
package httpd
