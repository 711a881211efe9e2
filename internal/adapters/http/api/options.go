package api

import "net/http"

// Option configures a Server.
type Option func(*Server)

// WithWebsocket mounts h at /ws.
func WithWebsocket(h http.Handler) Option {
	return func(s *Server) { s.websocket = h }
}

// WithStatic serves h for every path no other route matches.
func WithStatic(h http.Handler) Option {
	return func(s *Server) { s.static = h }
}

// WithCORSOrigins enables CORS for the given origins.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) { s.corsOrigins = origins }
}
